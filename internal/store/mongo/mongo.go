// Package mongo implements the repository contracts on MongoDB. Uniqueness (emails, names and
// link pairs) is enforced by the indexes internal/migrate creates; duplicate-key failures surface
// as the owning package's ErrAlreadyExists.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"recruitcore.io/internal/auth"
	"recruitcore.io/internal/directory"
)

// Collection names.
const (
	CollUsers            = "users"
	CollActors           = "actors"
	CollPermissions      = "permissions"
	CollActorPermissions = "actor_permissions"
	CollUserActors       = "user_actors"
	CollCompanies        = "companies"
	CollBranches         = "company_branches"
	CollMemberships      = "user_companies"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var (
	_ auth.Store           = (*Store)(nil)
	_ directory.Repository = (*Store)(nil)
)

// Connect dials uri, verifies the primary is reachable and returns a store over database.
func Connect(ctx context.Context, uri, database string, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(timeout).
		SetConnectTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

// New wraps an existing database handle.
func New(db *mongo.Database) *Store {
	return &Store{client: db.Client(), db: db}
}

func (s *Store) Database() *mongo.Database { return s.db }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Users(context.Context) auth.UserStore {
	return userStore{coll: s.db.Collection(CollUsers)}
}

func (s *Store) Actors(context.Context) auth.ActorStore {
	return actorStore{coll: s.db.Collection(CollActors)}
}

func (s *Store) Permissions(context.Context) auth.PermissionStore {
	return permissionStore{coll: s.db.Collection(CollPermissions)}
}

func (s *Store) Links(context.Context) auth.LinkStore {
	return linkStore{
		actorPerms: s.db.Collection(CollActorPermissions),
		userActors: s.db.Collection(CollUserActors),
	}
}

func (s *Store) Companies(context.Context) directory.CompanyStore {
	return companyStore{coll: s.db.Collection(CollCompanies)}
}

func (s *Store) Branches(context.Context) directory.BranchStore {
	return branchStore{coll: s.db.Collection(CollBranches)}
}

func (s *Store) Members(context.Context) directory.MemberStore {
	return memberStore{coll: s.db.Collection(CollMemberships)}
}

// translate maps driver errors onto the sentinel errors of a repository package.
func translate(ctx context.Context, op string, err error, notFound, exists error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return notFound
	case mongo.IsDuplicateKeyError(err):
		return exists
	default:
		zerolog.Ctx(ctx).Error().Err(err).Str("component", "mongo").Str("op", op).Msg("query failed")
		return fmt.Errorf("%s: %w", op, err)
	}
}

func authErr(ctx context.Context, op string, err error) error {
	return translate(ctx, op, err, auth.ErrNotFound, auth.ErrAlreadyExists)
}

func dirErr(ctx context.Context, op string, err error) error {
	return translate(ctx, op, err, directory.ErrNotFound, directory.ErrAlreadyExists)
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func distinctStrings(ctx context.Context, coll *mongo.Collection, field string, filter any) ([]string, error) {
	values, err := coll.Distinct(ctx, field, filter)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}
