package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"recruitcore.io/internal/auth"
	"recruitcore.io/internal/cache"
	"recruitcore.io/internal/ids"
	"recruitcore.io/internal/store/memory"
)

const fixtureSecret = "fixture-signing-secret"

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, cache.ErrUnavailable }
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return cache.ErrUnavailable
}
func (brokenStore) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, cache.ErrUnavailable
}
func (brokenStore) Delete(context.Context, ...string) error     { return cache.ErrUnavailable }
func (brokenStore) Exists(context.Context, string) (bool, error) { return false, cache.ErrUnavailable }
func (brokenStore) Ping(context.Context) error                   { return cache.ErrUnavailable }

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	kv       *cache.MemoryStore
	cache    *cache.Cache
	tokens   *auth.TokenService
	resolver *auth.Resolver
	gate     *auth.Gate
	sessions *auth.Service
	rbac     *auth.RBACService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{ctx: context.Background(), store: memory.New(), kv: cache.NewMemoryStore()}
	f.cache = cache.New(f.kv)
	return f.wire(t, f.cache)
}

// newUncachedFixture shares nothing with a cache, so every read goes to the store.
func newUncachedFixture(t *testing.T, store *memory.Store) *fixture {
	t.Helper()
	f := &fixture{ctx: context.Background(), store: store}
	return f.wire(t, cache.New(nil))
}

func (f *fixture) wire(t *testing.T, c *cache.Cache) *fixture {
	t.Helper()
	var err error
	f.tokens, err = auth.NewTokenService(fixtureSecret, "HS256", auth.WithSharedBlacklist(cache.NewBlacklist(c)))
	require.NoError(t, err)
	f.resolver = auth.NewResolver(f.store, c)
	f.gate = auth.NewGate(f.tokens, f.resolver)
	f.sessions, err = auth.NewService(f.store, f.tokens, f.resolver)
	require.NoError(t, err)
	f.rbac, err = auth.NewRBACService(f.store, f.resolver)
	require.NoError(t, err)
	return f
}

// permission returns the named permission, creating it when absent.
func (f *fixture) permission(t *testing.T, name string) *auth.Permission {
	t.Helper()
	if p, err := f.store.Permissions(f.ctx).FindByName(f.ctx, name); err == nil {
		return p
	}
	p, err := f.rbac.CreatePermission(f.ctx, auth.PermissionInput{Name: name})
	require.NoError(t, err)
	return p
}

// actor creates an actor granted the named permissions.
func (f *fixture) actor(t *testing.T, name string, perms ...string) *auth.Actor {
	t.Helper()
	a, err := f.rbac.CreateActor(f.ctx, auth.ActorInput{Name: name})
	require.NoError(t, err)
	if len(perms) > 0 {
		f.grant(t, a, perms...)
	}
	return a
}

func (f *fixture) grant(t *testing.T, a *auth.Actor, perms ...string) {
	t.Helper()
	pids := make([]string, 0, len(perms))
	for _, name := range perms {
		pids = append(pids, f.permission(t, name).ID)
	}
	_, err := f.rbac.AssignPermissions(f.ctx, a.ID, pids, "test")
	require.NoError(t, err)
}

func (f *fixture) revoke(t *testing.T, a *auth.Actor, perms ...string) {
	t.Helper()
	pids := make([]string, 0, len(perms))
	for _, name := range perms {
		pids = append(pids, f.permission(t, name).ID)
	}
	_, err := f.rbac.UnassignPermissions(f.ctx, a.ID, pids)
	require.NoError(t, err)
}

// user creates an active, verified user holding the given actors.
func (f *fixture) user(t *testing.T, email, password string, actors ...*auth.Actor) *auth.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	now := time.Now().UTC()
	u := &auth.User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		IsVerified:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, f.store.Users(f.ctx).Create(f.ctx, u))
	for _, a := range actors {
		_, err := f.rbac.AssignActor(f.ctx, u.ID, a.ID, "test")
		require.NoError(t, err)
	}
	return u
}

func (f *fixture) login(t *testing.T, email, password string) auth.TokenPair {
	t.Helper()
	pair, _, err := f.sessions.Login(f.ctx, email, password)
	require.NoError(t, err)
	return pair
}

func (f *fixture) resolve(t *testing.T, u *auth.User) []string {
	t.Helper()
	actx, err := f.resolver.Resolve(f.ctx, u)
	require.NoError(t, err)
	return actx.PermissionNames()
}
