package cache

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"recruitcore.io/internal/obs"
)

// Invalidate deletes keys synchronously. Keys that cannot be deleted are queued for Flush and
// bypassed by Fetch on this instance until their deletion lands. Fills already in flight for
// these keys are vetoed, locally through the sequence and elsewhere through the shared markers.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	keys = uniqueKeys(keys)
	if len(keys) == 0 {
		return
	}
	c.bump(keys)
	c.writeMarkers(ctx, keys)
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.deferKeys(ctx, keys, err)
		return
	}
	c.mu.Lock()
	for _, key := range keys {
		delete(c.pending, key)
	}
	n := len(c.pending)
	c.mu.Unlock()
	obs.CacheInvalidation("ok", len(keys))
	obs.SetPendingInvalidations(n)
}

// deferKeys queues keys whose deletion failed with err.
func (c *Cache) deferKeys(ctx context.Context, keys []string, err error) {
	c.mu.Lock()
	for _, key := range keys {
		c.pending[key] = struct{}{}
	}
	n := len(c.pending)
	c.mu.Unlock()
	obs.CacheInvalidation("deferred", len(keys))
	obs.SetPendingInvalidations(n)
	zerolog.Ctx(ctx).Warn().Err(err).
		Str("event", "cache_invalidation_failed").
		Strs("keys", keys).
		Msg("cache invalidation deferred")
}

// Flush retries deferred invalidations and returns how many remain queued.
func (c *Cache) Flush(ctx context.Context) int {
	if !c.Enabled() {
		return 0
	}
	keys := c.Pending()
	if len(keys) == 0 {
		return 0
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Int("pending", len(keys)).Msg("cache invalidation retry failed")
		return len(keys)
	}
	c.mu.Lock()
	for _, key := range keys {
		delete(c.pending, key)
	}
	n := len(c.pending)
	c.mu.Unlock()
	obs.CacheInvalidation("retried", len(keys))
	obs.SetPendingInvalidations(n)
	return n
}

// Pending lists keys whose invalidation is still outstanding, sorted.
func (c *Cache) Pending() []string {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.pending))
	for key := range c.pending {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// settle reports whether key may be read from the store. A key with a queued invalidation is
// deleted first; if that still fails the caller must bypass the cache.
func (c *Cache) settle(ctx context.Context, key string) bool {
	c.mu.Lock()
	_, queued := c.pending[key]
	c.mu.Unlock()
	if !queued {
		return true
	}
	if err := c.store.Delete(ctx, key); err != nil {
		return false
	}
	c.mu.Lock()
	delete(c.pending, key)
	n := len(c.pending)
	c.mu.Unlock()
	obs.SetPendingInvalidations(n)
	return true
}

func uniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0:0]
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
