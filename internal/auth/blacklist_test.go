package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"recruitcore.io/internal/cache"
)

type downStore struct{}

func (downStore) Get(context.Context, string) ([]byte, error) { return nil, cache.ErrUnavailable }
func (downStore) Set(context.Context, string, []byte, time.Duration) error {
	return cache.ErrUnavailable
}
func (downStore) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, cache.ErrUnavailable
}
func (downStore) Delete(context.Context, ...string) error     { return cache.ErrUnavailable }
func (downStore) Exists(context.Context, string) (bool, error) { return false, cache.ErrUnavailable }
func (downStore) Ping(context.Context) error                   { return cache.ErrUnavailable }

func issue(t *testing.T, svc *TokenService, ttl time.Duration) string {
	t.Helper()
	token, err := svc.CreateAccessToken(Claims{Email: "ada@example.com", UserID: "u1"}, ttl)
	require.NoError(t, err)
	return token
}

func TestBlacklistEntriesExpireWithToken(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	svc := newTestTokens(t, clock)
	token := issue(t, svc, time.Minute)

	require.False(t, svc.IsTokenBlacklisted(ctx, token))
	require.NoError(t, svc.BlacklistToken(ctx, token))
	require.True(t, svc.IsTokenBlacklisted(ctx, token))
	require.Equal(t, 1, svc.LocalBlacklist().Len())

	clock.Advance(2 * time.Minute)
	require.False(t, svc.LocalBlacklist().Contains(token))
	require.Equal(t, 1, svc.LocalBlacklist().Prune())
	require.Equal(t, 0, svc.LocalBlacklist().Len())
}

func TestBlacklistIgnoresUnverifiableTokens(t *testing.T) {
	ctx := context.Background()
	svc := newTestTokens(t, newTestClock())
	require.NoError(t, svc.BlacklistToken(ctx, "garbage"))
	require.Equal(t, 0, svc.LocalBlacklist().Len())

	consumed, err := svc.ConsumeToken(ctx, "garbage")
	require.NoError(t, err)
	require.False(t, consumed)
}

func TestSharedBlacklistAcrossInstances(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	shared := cache.NewBlacklist(cache.New(cache.NewMemoryStore().WithClock(clock.Now)))
	require.NotNil(t, shared)

	a := newTestTokens(t, clock, WithSharedBlacklist(shared))
	b := newTestTokens(t, clock, WithSharedBlacklist(shared))
	token := issue(t, a, time.Hour)

	require.NoError(t, a.BlacklistToken(ctx, token))
	require.True(t, b.IsTokenBlacklisted(ctx, token))
	require.False(t, b.LocalBlacklist().Contains(token))

	clock.Advance(2 * time.Hour)
	require.False(t, b.IsTokenBlacklisted(ctx, token))
}

func TestConsumeTokenIsOneShot(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	shared := cache.NewBlacklist(cache.New(cache.NewMemoryStore().WithClock(clock.Now)))
	a := newTestTokens(t, clock, WithSharedBlacklist(shared))
	b := newTestTokens(t, clock, WithSharedBlacklist(shared))
	token := issue(t, a, time.Hour)

	first, err := a.ConsumeToken(ctx, token)
	require.NoError(t, err)
	require.True(t, first)

	second, err := b.ConsumeToken(ctx, token)
	require.NoError(t, err)
	require.False(t, second)
	require.True(t, b.IsTokenBlacklisted(ctx, token))
}

func TestConsumeTokenConcurrent(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	shared := cache.NewBlacklist(cache.New(cache.NewMemoryStore().WithClock(clock.Now)))
	services := []*TokenService{
		newTestTokens(t, clock, WithSharedBlacklist(shared)),
		newTestTokens(t, clock, WithSharedBlacklist(shared)),
	}
	token := issue(t, services[0], time.Hour)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(svc *TokenService) {
			defer wg.Done()
			ok, err := svc.ConsumeToken(ctx, token)
			if err == nil && ok {
				wins.Add(1)
			}
		}(services[i%2])
	}
	wg.Wait()
	require.EqualValues(t, 1, wins.Load())
}

func TestSharedBlacklistOutage(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	down := cache.NewBlacklist(cache.New(downStore{}))

	t.Run("fail open", func(t *testing.T) {
		svc := newTestTokens(t, clock, WithSharedBlacklist(down))
		token := issue(t, svc, time.Hour)
		require.False(t, svc.IsTokenBlacklisted(ctx, token))

		require.Error(t, svc.BlacklistToken(ctx, token))
		require.True(t, svc.IsTokenBlacklisted(ctx, token))

		other := issue(t, svc, time.Hour)
		consumed, err := svc.ConsumeToken(ctx, other)
		require.NoError(t, err)
		require.True(t, consumed)
		consumed, err = svc.ConsumeToken(ctx, other)
		require.NoError(t, err)
		require.False(t, consumed)
	})

	t.Run("fail closed", func(t *testing.T) {
		svc := newTestTokens(t, clock, WithSharedBlacklist(down), WithFailClosed(true))
		token := issue(t, svc, time.Hour)
		require.True(t, svc.IsTokenBlacklisted(ctx, token))

		consumed, err := svc.ConsumeToken(ctx, token)
		require.Error(t, err)
		require.False(t, consumed)
	})
}

func TestNilSharedBlacklistIsIgnored(t *testing.T) {
	require.Nil(t, cache.NewBlacklist(cache.New(nil)))
	svc := newTestTokens(t, newTestClock(), WithSharedBlacklist(cache.NewBlacklist(cache.New(nil))))
	token := issue(t, svc, time.Hour)
	require.NoError(t, svc.BlacklistToken(context.Background(), token))
	require.True(t, svc.IsTokenBlacklisted(context.Background(), token))
}
