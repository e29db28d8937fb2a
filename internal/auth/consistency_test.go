package auth_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"recruitcore.io/internal/auth"
	"recruitcore.io/internal/store/memory"
)

// wrappedStore swaps individual repositories of a memory store.
type wrappedStore struct {
	*memory.Store
	links auth.LinkStore
	perms auth.PermissionStore
}

func (w wrappedStore) Links(ctx context.Context) auth.LinkStore {
	if w.links != nil {
		return w.links
	}
	return w.Store.Links(ctx)
}

func (w wrappedStore) Permissions(ctx context.Context) auth.PermissionStore {
	if w.perms != nil {
		return w.perms
	}
	return w.Store.Permissions(ctx)
}

// stallingLinks parks the first armed ActorPermissionLinks call after it has read the links,
// until release is closed.
type stallingLinks struct {
	auth.LinkStore
	armed   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (l *stallingLinks) ActorPermissionLinks(ctx context.Context, actorIDs []string) ([]auth.ActorPermission, error) {
	links, err := l.LinkStore.ActorPermissionLinks(ctx, actorIDs)
	if l.armed.CompareAndSwap(true, false) {
		close(l.read)
		<-l.release
	}
	return links, err
}

type failingLookupLinks struct{ auth.LinkStore }

func (failingLookupLinks) ActorsWithPermission(context.Context, string) ([]string, error) {
	return nil, errors.New("links unavailable")
}

// lossyPermissions applies updates but reports them as failed, like a write whose reply was lost.
type lossyPermissions struct{ auth.PermissionStore }

func (p lossyPermissions) Update(ctx context.Context, perm *auth.Permission) error {
	if err := p.PermissionStore.Update(ctx, perm); err != nil {
		return err
	}
	return context.DeadlineExceeded
}

func TestRevokeIsSeenByReadsStartedAfterIt(t *testing.T) {
	f := newFixture(t)
	recruiter := f.actor(t, "Recruiter", "jobs:view", "jobs:create")
	u := f.user(t, "ada@example.com", "password123", recruiter)

	links := &stallingLinks{
		LinkStore: f.store.Links(f.ctx),
		read:      make(chan struct{}),
		release:   make(chan struct{}),
	}
	links.armed.Store(true)
	store := wrappedStore{Store: f.store, links: links}
	resolver := auth.NewResolver(store, f.cache)
	rbac, err := auth.NewRBACService(store, resolver)
	require.NoError(t, err)

	type result struct {
		names []string
		err   error
	}
	inflight := make(chan result, 1)
	go func() {
		actx, err := resolver.Resolve(f.ctx, u)
		inflight <- result{names: actx.PermissionNames(), err: err}
	}()

	<-links.read
	_, err = rbac.UnassignPermissions(f.ctx, recruiter.ID, []string{f.permission(t, "jobs:create").ID})
	require.NoError(t, err)
	close(links.release)

	stale := <-inflight
	require.NoError(t, stale.err)
	require.Contains(t, stale.names, "jobs:create")

	actx, err := resolver.Resolve(f.ctx, u)
	require.NoError(t, err)
	require.Equal(t, []string{"jobs:view"}, actx.PermissionNames())
}

func TestUpdatePermissionLookupFailureLeavesNothingHalfDone(t *testing.T) {
	f := newFixture(t)
	recruiter := f.actor(t, "Recruiter", "jobs:view", "jobs:create")
	u := f.user(t, "ada@example.com", "password123", recruiter)
	require.Equal(t, []string{"jobs:create", "jobs:view"}, f.resolve(t, u))

	store := wrappedStore{Store: f.store, links: failingLookupLinks{f.store.Links(f.ctx)}}
	rbac, err := auth.NewRBACService(store, f.resolver)
	require.NoError(t, err)

	perm := f.permission(t, "jobs:create")
	require.Error(t, rbac.DeactivatePermission(f.ctx, perm.ID))

	saved, err := f.store.Permissions(f.ctx).FindByID(f.ctx, perm.ID)
	require.NoError(t, err)
	require.True(t, saved.IsActive)
	require.Equal(t, []string{"jobs:create", "jobs:view"}, f.resolve(t, u))
}

func TestUpdatePermissionInvalidatesEvenWhenWriteReportsFailure(t *testing.T) {
	f := newFixture(t)
	recruiter := f.actor(t, "Recruiter", "jobs:view", "jobs:create")
	u := f.user(t, "ada@example.com", "password123", recruiter)
	require.Equal(t, []string{"jobs:create", "jobs:view"}, f.resolve(t, u))

	store := wrappedStore{Store: f.store, perms: lossyPermissions{f.store.Permissions(f.ctx)}}
	rbac, err := auth.NewRBACService(store, f.resolver)
	require.NoError(t, err)

	err = rbac.DeactivatePermission(f.ctx, f.permission(t, "jobs:create").ID)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, []string{"jobs:view"}, f.resolve(t, u))
}
