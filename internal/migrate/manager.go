package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"recruitcore.io/internal/auth"
)

const (
	defaultMigrationsCollection = "schema_migrations"
	defaultSeedsCollection      = "schema_seeds"
)

// Manager applies index migrations to a Mongo database and records them by name.
type Manager struct {
	db                   *mongo.Database
	migrations           []Migration
	migrationsCollection string
	seedsCollection      string
	now                  func() time.Time
}

// Option configures Manager.
type Option func(*Manager)

// WithMigrationsCollection overrides the default migrations bookkeeping collection.
func WithMigrationsCollection(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.migrationsCollection = name
		}
	}
}

// WithSeedsCollection overrides the default seeds bookkeeping collection.
func WithSeedsCollection(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.seedsCollection = name
		}
	}
}

// WithMigrations replaces the built-in migration list.
func WithMigrations(list []Migration) Option {
	return func(m *Manager) {
		m.migrations = list
	}
}

// NewManager constructs a Manager over the built-in migrations.
func NewManager(db *mongo.Database, opts ...Option) *Manager {
	m := &Manager{
		db:                   db,
		migrations:           Migrations(),
		migrationsCollection: defaultMigrationsCollection,
		seedsCollection:      defaultSeedsCollection,
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type record struct {
	Name      string    `bson:"_id"`
	AppliedAt time.Time `bson:"applied_at"`
}

// Up applies all pending migrations in order.
func (m *Manager) Up(ctx context.Context) error {
	executed, err := m.listExecuted(ctx, m.migrationsCollection)
	if err != nil {
		return err
	}
	logger := zerolog.Ctx(ctx)
	for _, mig := range m.migrations {
		if executed[mig.Name] {
			continue
		}
		if err := mig.up(ctx, m.db); err != nil {
			return fmt.Errorf("apply migration %s: %w", mig.Name, err)
		}
		if err := m.insertRecord(ctx, m.migrationsCollection, mig.Name); err != nil {
			return err
		}
		logger.Info().Str("migration", mig.Name).Msg("migration applied")
	}
	return nil
}

// Down rolls back the most recent applied migration by dropping its indexes.
func (m *Manager) Down(ctx context.Context) error {
	executed, err := m.history(ctx, m.migrationsCollection)
	if err != nil {
		return err
	}
	if len(executed) == 0 {
		return errors.New("no migrations applied")
	}
	last := executed[len(executed)-1]
	mig, ok := m.find(last)
	if !ok {
		return fmt.Errorf("unknown migration %s", last)
	}
	if err := mig.down(ctx, m.db); err != nil {
		return fmt.Errorf("rollback migration %s: %w", last, err)
	}
	_, err = m.db.Collection(m.migrationsCollection).DeleteOne(ctx, bson.D{{Key: "_id", Value: last}})
	return err
}

// Status returns applied migrations in application order.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	return m.history(ctx, m.migrationsCollection)
}

// Seed ensures the default permissions, actors and optional administrator, then records the
// run. auth.Seed is idempotent, so re-running only fills gaps.
func (m *Manager) Seed(ctx context.Context, store auth.Store, opts auth.SeedOptions) (auth.SeedReport, error) {
	report, err := auth.Seed(ctx, store, opts)
	if err != nil {
		return report, err
	}
	_, err = m.db.Collection(m.seedsCollection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: "default_rbac"}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "applied_at", Value: m.now().UTC()}}}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return report, fmt.Errorf("record seed: %w", err)
	}
	return report, nil
}

func (m *Manager) find(name string) (Migration, bool) {
	for _, mig := range m.migrations {
		if mig.Name == name {
			return mig, true
		}
	}
	return Migration{}, false
}

func (m *Manager) insertRecord(ctx context.Context, coll, name string) error {
	_, err := m.db.Collection(coll).InsertOne(ctx, record{Name: name, AppliedAt: m.now().UTC()})
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (m *Manager) listExecuted(ctx context.Context, coll string) (map[string]bool, error) {
	names, err := m.history(ctx, coll)
	if err != nil {
		return nil, err
	}
	result := make(map[string]bool, len(names))
	for _, name := range names {
		result[name] = true
	}
	return result, nil
}

func (m *Manager) history(ctx context.Context, coll string) ([]string, error) {
	opts := options.Find().SetSort(bson.D{{Key: "applied_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := m.db.Collection(coll).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	var records []record
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}
	res := make([]string, 0, len(records))
	for _, r := range records {
		res = append(res, r.Name)
	}
	return res, nil
}
