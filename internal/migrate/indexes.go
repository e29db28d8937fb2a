package migrate

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	store "recruitcore.io/internal/store/mongo"
)

// CollectionIndexes is the set of indexes one migration creates on one collection.
type CollectionIndexes struct {
	Collection string
	Models     []mongo.IndexModel
}

// Migration is a named, reversible set of index definitions.
type Migration struct {
	Name    string
	Indexes []CollectionIndexes
}

func (m Migration) up(ctx context.Context, db *mongo.Database) error {
	for _, ci := range m.Indexes {
		if _, err := db.Collection(ci.Collection).Indexes().CreateMany(ctx, ci.Models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", ci.Collection, err)
		}
	}
	return nil
}

func (m Migration) down(ctx context.Context, db *mongo.Database) error {
	for _, ci := range m.Indexes {
		for _, model := range ci.Models {
			if _, err := db.Collection(ci.Collection).Indexes().DropOne(ctx, IndexName(model)); err != nil {
				return fmt.Errorf("drop index on %s: %w", ci.Collection, err)
			}
		}
	}
	return nil
}

// IndexName returns the explicit name every model here carries.
func IndexName(model mongo.IndexModel) string {
	if model.Options != nil && model.Options.Name != nil {
		return *model.Options.Name
	}
	return ""
}

func index(name string, unique bool, keys ...string) mongo.IndexModel {
	doc := make(bson.D, 0, len(keys))
	for _, k := range keys {
		doc = append(doc, bson.E{Key: k, Value: 1})
	}
	opts := options.Index().SetName(name)
	if unique {
		opts.SetUnique(true)
	}
	return mongo.IndexModel{Keys: doc, Options: opts}
}

// Migrations lists the schema in application order. Link collections are unique on their
// composite pair so a grant or assignment can never be recorded twice.
func Migrations() []Migration {
	return []Migration{
		{
			Name: "0001_identity_indexes",
			Indexes: []CollectionIndexes{
				{Collection: store.CollUsers, Models: []mongo.IndexModel{
					index("users_email_unique", true, "email"),
				}},
				{Collection: store.CollActors, Models: []mongo.IndexModel{
					index("actors_name_unique", true, "name"),
				}},
				{Collection: store.CollPermissions, Models: []mongo.IndexModel{
					index("permissions_name_unique", true, "name"),
				}},
				{Collection: store.CollActorPermissions, Models: []mongo.IndexModel{
					index("actor_permissions_pair_unique", true, "actor_id", "permission_id"),
					index("actor_permissions_permission", false, "permission_id"),
				}},
				{Collection: store.CollUserActors, Models: []mongo.IndexModel{
					index("user_actors_pair_unique", true, "user_id", "actor_id"),
					index("user_actors_actor", false, "actor_id"),
				}},
			},
		},
		{
			Name: "0002_directory_indexes",
			Indexes: []CollectionIndexes{
				{Collection: store.CollCompanies, Models: []mongo.IndexModel{
					index("companies_owner", false, "owner_id"),
				}},
				{Collection: store.CollBranches, Models: []mongo.IndexModel{
					index("company_branches_company", false, "company_id", "is_active"),
				}},
				{Collection: store.CollMemberships, Models: []mongo.IndexModel{
					index("user_companies_pair_unique", true, "company_id", "user_id"),
					index("user_companies_user", false, "user_id"),
				}},
			},
		},
	}
}
