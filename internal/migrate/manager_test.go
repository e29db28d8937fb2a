package migrate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMigrationsDeclareCompositeUniqueIndexes(t *testing.T) {
	want := map[string][]string{
		"actor_permissions_pair_unique": {"actor_id", "permission_id"},
		"user_actors_pair_unique":       {"user_id", "actor_id"},
		"user_companies_pair_unique":    {"company_id", "user_id"},
		"users_email_unique":            {"email"},
	}
	seen := map[string]bool{}
	names := map[string]bool{}
	for _, mig := range Migrations() {
		require.False(t, names[mig.Name], "duplicate migration %s", mig.Name)
		names[mig.Name] = true
		for _, ci := range mig.Indexes {
			for _, model := range ci.Models {
				name := IndexName(model)
				require.NotEmpty(t, name)
				keys, ok := want[name]
				if !ok {
					continue
				}
				seen[name] = true
				require.NotNil(t, model.Options.Unique)
				require.True(t, *model.Options.Unique)
				doc := model.Keys.(bson.D)
				got := make([]string, 0, len(doc))
				for _, e := range doc {
					got = append(got, e.Key)
				}
				require.Equal(t, keys, got)
			}
		}
	}
	require.Len(t, seen, len(want))
}

func TestUpAppliesPendingMigrations(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("fresh database", func(mt *mtest.T) {
		responses := []bson.D{mtest.CreateCursorResponse(0, "recruitcore.schema_migrations", mtest.FirstBatch)}
		for _, mig := range Migrations() {
			for range mig.Indexes {
				responses = append(responses, mtest.CreateSuccessResponse())
			}
			responses = append(responses, mtest.CreateSuccessResponse())
		}
		mt.AddMockResponses(responses...)
		require.NoError(mt, NewManager(mt.DB).Up(ctx))
	})

	mt.Run("already applied", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "recruitcore.schema_migrations", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "0001_identity_indexes"}, {Key: "applied_at", Value: time.Now()}},
			bson.D{{Key: "_id", Value: "0002_directory_indexes"}, {Key: "applied_at", Value: time.Now()}},
		))
		require.NoError(mt, NewManager(mt.DB).Up(ctx))
	})

	mt.Run("index failure stops the run", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "recruitcore.schema_migrations", mtest.FirstBatch),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 85, Name: "IndexOptionsConflict", Message: "conflict"}),
		)
		err := NewManager(mt.DB).Up(ctx)
		require.Error(mt, err)
		require.Contains(mt, err.Error(), "0001_identity_indexes")
	})
}

func TestStatusAndDown(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	applied := func() bson.D {
		return mtest.CreateCursorResponse(0, "recruitcore.schema_migrations", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "0001_identity_indexes"}, {Key: "applied_at", Value: time.Now()}},
			bson.D{{Key: "_id", Value: "0002_directory_indexes"}, {Key: "applied_at", Value: time.Now()}},
		)
	}

	mt.Run("status", func(mt *mtest.T) {
		mt.AddMockResponses(applied())
		got, err := NewManager(mt.DB).Status(ctx)
		require.NoError(mt, err)
		require.Equal(mt, []string{"0001_identity_indexes", "0002_directory_indexes"}, got)
	})

	mt.Run("down drops the last migration", func(mt *mtest.T) {
		responses := []bson.D{applied()}
		last := Migrations()[1]
		for _, ci := range last.Indexes {
			for range ci.Models {
				responses = append(responses, mtest.CreateSuccessResponse())
			}
		}
		responses = append(responses, mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		mt.AddMockResponses(responses...)
		require.NoError(mt, NewManager(mt.DB).Down(ctx))
	})

	mt.Run("down with nothing applied", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "recruitcore.schema_migrations", mtest.FirstBatch))
		require.Error(mt, NewManager(mt.DB).Down(ctx))
	})
}
