package mongo

import (
	"context"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"recruitcore.io/internal/auth"
)

var byName = options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

func idsFilter(ids []string, activeOnly bool) bson.D {
	filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}
	if activeOnly {
		filter = append(filter, bson.E{Key: "is_active", Value: true})
	}
	return filter
}

func activeFilter(activeOnly bool) bson.D {
	if activeOnly {
		return bson.D{{Key: "is_active", Value: true}}
	}
	return bson.D{}
}

func replaceByID(ctx context.Context, coll *mongo.Collection, id string, doc any) (int64, error) {
	res, err := coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, doc)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

type userStore struct{ coll *mongo.Collection }

// Emails are stored lower-cased so the unique index is case-insensitive.
func (u userStore) Create(ctx context.Context, user *auth.User) error {
	doc := *user
	doc.Email = auth.NormalizeEmail(doc.Email)
	_, err := u.coll.InsertOne(ctx, doc)
	return authErr(ctx, "insert user", err)
}

func (u userStore) Update(ctx context.Context, user *auth.User) error {
	doc := *user
	doc.Email = auth.NormalizeEmail(doc.Email)
	n, err := replaceByID(ctx, u.coll, doc.ID, doc)
	if err != nil {
		return authErr(ctx, "update user", err)
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (u userStore) FindByID(ctx context.Context, id string) (*auth.User, error) {
	var user auth.User
	err := u.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&user)
	if err != nil {
		return nil, authErr(ctx, "find user", err)
	}
	return &user, nil
}

func (u userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	var user auth.User
	err := u.coll.FindOne(ctx, bson.D{{Key: "email", Value: auth.NormalizeEmail(email)}}).Decode(&user)
	if err != nil {
		return nil, authErr(ctx, "find user by email", err)
	}
	return &user, nil
}

type actorStore struct{ coll *mongo.Collection }

func (a actorStore) Create(ctx context.Context, actor *auth.Actor) error {
	_, err := a.coll.InsertOne(ctx, actor)
	return authErr(ctx, "insert actor", err)
}

func (a actorStore) Update(ctx context.Context, actor *auth.Actor) error {
	n, err := replaceByID(ctx, a.coll, actor.ID, actor)
	if err != nil {
		return authErr(ctx, "update actor", err)
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (a actorStore) Delete(ctx context.Context, id string) error {
	res, err := a.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return authErr(ctx, "delete actor", err)
	}
	if res.DeletedCount == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (a actorStore) FindByID(ctx context.Context, id string) (*auth.Actor, error) {
	var actor auth.Actor
	if err := a.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&actor); err != nil {
		return nil, authErr(ctx, "find actor", err)
	}
	return &actor, nil
}

func (a actorStore) FindByName(ctx context.Context, name string) (*auth.Actor, error) {
	var actor auth.Actor
	if err := a.coll.FindOne(ctx, bson.D{{Key: "name", Value: name}}).Decode(&actor); err != nil {
		return nil, authErr(ctx, "find actor by name", err)
	}
	return &actor, nil
}

func (a actorStore) FindByIDs(ctx context.Context, ids []string, activeOnly bool) ([]auth.Actor, error) {
	if len(ids) == 0 {
		return []auth.Actor{}, nil
	}
	out, err := findAll[auth.Actor](ctx, a.coll, idsFilter(ids, activeOnly), byName)
	return out, authErr(ctx, "find actors", err)
}

func (a actorStore) List(ctx context.Context, activeOnly bool) ([]auth.Actor, error) {
	out, err := findAll[auth.Actor](ctx, a.coll, activeFilter(activeOnly), byName)
	return out, authErr(ctx, "list actors", err)
}

type permissionStore struct{ coll *mongo.Collection }

func (p permissionStore) Create(ctx context.Context, perm *auth.Permission) error {
	_, err := p.coll.InsertOne(ctx, perm)
	return authErr(ctx, "insert permission", err)
}

func (p permissionStore) Update(ctx context.Context, perm *auth.Permission) error {
	n, err := replaceByID(ctx, p.coll, perm.ID, perm)
	if err != nil {
		return authErr(ctx, "update permission", err)
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (p permissionStore) FindByID(ctx context.Context, id string) (*auth.Permission, error) {
	var perm auth.Permission
	if err := p.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&perm); err != nil {
		return nil, authErr(ctx, "find permission", err)
	}
	return &perm, nil
}

func (p permissionStore) FindByName(ctx context.Context, name string) (*auth.Permission, error) {
	var perm auth.Permission
	if err := p.coll.FindOne(ctx, bson.D{{Key: "name", Value: name}}).Decode(&perm); err != nil {
		return nil, authErr(ctx, "find permission by name", err)
	}
	return &perm, nil
}

func (p permissionStore) FindByIDs(ctx context.Context, ids []string, activeOnly bool) ([]auth.Permission, error) {
	if len(ids) == 0 {
		return []auth.Permission{}, nil
	}
	out, err := findAll[auth.Permission](ctx, p.coll, idsFilter(ids, activeOnly), byName)
	return out, authErr(ctx, "find permissions", err)
}

func (p permissionStore) List(ctx context.Context, activeOnly bool) ([]auth.Permission, error) {
	out, err := findAll[auth.Permission](ctx, p.coll, activeFilter(activeOnly), byName)
	return out, authErr(ctx, "list permissions", err)
}

type linkStore struct {
	actorPerms *mongo.Collection
	userActors *mongo.Collection
}

var byID = options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

func (l linkStore) AddActorPermission(ctx context.Context, link *auth.ActorPermission) error {
	_, err := l.actorPerms.InsertOne(ctx, link)
	return authErr(ctx, "insert actor permission", err)
}

func (l linkStore) RemoveActorPermission(ctx context.Context, actorID, permissionID string) error {
	res, err := l.actorPerms.DeleteOne(ctx, bson.D{
		{Key: "actor_id", Value: actorID},
		{Key: "permission_id", Value: permissionID},
	})
	if err != nil {
		return authErr(ctx, "delete actor permission", err)
	}
	if res.DeletedCount == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (l linkStore) ActorPermissionLinks(ctx context.Context, actorIDs []string) ([]auth.ActorPermission, error) {
	if len(actorIDs) == 0 {
		return []auth.ActorPermission{}, nil
	}
	filter := bson.D{{Key: "actor_id", Value: bson.D{{Key: "$in", Value: actorIDs}}}}
	out, err := findAll[auth.ActorPermission](ctx, l.actorPerms, filter, byID)
	return out, authErr(ctx, "find actor permissions", err)
}

func (l linkStore) ActorsWithPermission(ctx context.Context, permissionID string) ([]string, error) {
	out, err := distinctStrings(ctx, l.actorPerms, "actor_id", bson.D{{Key: "permission_id", Value: permissionID}})
	if err != nil {
		return nil, authErr(ctx, "find actors with permission", err)
	}
	sort.Strings(out)
	return out, nil
}

func (l linkStore) RemoveActorLinks(ctx context.Context, actorID string) error {
	filter := bson.D{{Key: "actor_id", Value: actorID}}
	if _, err := l.actorPerms.DeleteMany(ctx, filter); err != nil {
		return authErr(ctx, "delete actor permissions", err)
	}
	if _, err := l.userActors.DeleteMany(ctx, filter); err != nil {
		return authErr(ctx, "delete user actors", err)
	}
	return nil
}

func (l linkStore) AddUserActor(ctx context.Context, link *auth.UserActor) error {
	_, err := l.userActors.InsertOne(ctx, link)
	return authErr(ctx, "insert user actor", err)
}

func (l linkStore) RemoveUserActor(ctx context.Context, userID, actorID string) error {
	res, err := l.userActors.DeleteOne(ctx, bson.D{
		{Key: "user_id", Value: userID},
		{Key: "actor_id", Value: actorID},
	})
	if err != nil {
		return authErr(ctx, "delete user actor", err)
	}
	if res.DeletedCount == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (l linkStore) UserActorLinks(ctx context.Context, userID string) ([]auth.UserActor, error) {
	out, err := findAll[auth.UserActor](ctx, l.userActors, bson.D{{Key: "user_id", Value: strings.TrimSpace(userID)}}, byID)
	return out, authErr(ctx, "find user actors", err)
}

func (l linkStore) UsersWithActor(ctx context.Context, actorID string) ([]string, error) {
	out, err := distinctStrings(ctx, l.userActors, "user_id", bson.D{{Key: "actor_id", Value: actorID}})
	if err != nil {
		return nil, authErr(ctx, "find users with actor", err)
	}
	sort.Strings(out)
	return out, nil
}
