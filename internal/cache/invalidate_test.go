package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInvalidateDeletesKeys(t *testing.T) {
	store := NewMemoryStore()
	c := New(store)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "b", []byte("1"), time.Minute))

	c.Invalidate(ctx, "a", "b", "a", "")

	for _, key := range []string{"a", "b"} {
		_, err := store.Get(ctx, key)
		require.ErrorIs(t, err, ErrMiss)
		ok, err := store.Exists(ctx, MarkerKey(key))
		require.NoError(t, err)
		require.True(t, ok, "marker for %s", key)
	}
	require.Equal(t, 2, store.Len())
	require.Empty(t, c.Pending())
}

func TestInvalidateDefersAndFlushes(t *testing.T) {
	store := newFlakyStore()
	c := New(store)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "authz:user_actors:u1", []byte(`["a1"]`), time.Minute))

	store.setDown(true)
	c.Invalidate(ctx, "authz:user_actors:u1")
	require.Equal(t, []string{"authz:user_actors:u1"}, c.Pending())
	require.Equal(t, 1, c.Flush(ctx))

	store.setDown(false)
	require.Equal(t, 0, c.Flush(ctx))
	require.Empty(t, c.Pending())
	_, err := store.Get(ctx, "authz:user_actors:u1")
	require.ErrorIs(t, err, ErrMiss)
}

func TestFetchSettlesPendingInvalidationBeforeReading(t *testing.T) {
	store := newFlakyStore()
	c := New(store)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "authz:user_actors:u1", []byte(`["stale"]`), time.Minute))

	store.setDown(true)
	c.Invalidate(ctx, "authz:user_actors:u1")
	store.setDown(false)

	v, fromCache, err := Fetch(ctx, c, "authz:user_actors:u1", time.Minute, func(context.Context) ([]string, error) {
		return []string{"fresh"}, nil
	})
	require.NoError(t, err)
	require.False(t, fromCache)
	require.Equal(t, []string{"fresh"}, v)
	require.Empty(t, c.Pending())
}
