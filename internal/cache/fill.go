package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"recruitcore.io/internal/obs"
)

// markerTTL bounds how long an invalidation marker outlives its write. A load slower than this
// can no longer be told apart from one that started after the invalidation.
const markerTTL = time.Minute

// fill is one cache-aside population, opened before the source read and closed after the write.
type fill struct {
	key    string
	seq    uint64
	marker string
}

// beginFill snapshots the local invalidation sequence and the shared marker of key.
func (c *Cache) beginFill(ctx context.Context, key string) fill {
	c.mu.Lock()
	c.inflight[key]++
	f := fill{key: key, seq: c.seq}
	c.mu.Unlock()
	f.marker = c.readMarker(ctx, key)
	return f
}

func (c *Cache) endFill(f fill) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[f.key] <= 1 {
		delete(c.inflight, f.key)
		delete(c.bumped, f.key)
		return
	}
	c.inflight[f.key]--
}

// superseded reports whether this instance invalidated f's key after f began.
func (c *Cache) superseded(f fill) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bumped[f.key] > f.seq
}

// populate stores raw unless an invalidation overlapped the load. The checks run again after
// the write: an Invalidate whose delete landed before our Set has already bumped the sequence
// or rewritten the marker, so the entry is removed again.
func (c *Cache) populate(ctx context.Context, f fill, raw []byte, ttl time.Duration) {
	if c.superseded(f) {
		obs.CacheInvalidation("fill_dropped", 1)
		return
	}
	if err := c.store.Set(ctx, f.key, raw, ttl); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("component", "cache").Str("key", f.key).Msg("cache write failed")
		return
	}
	if !c.superseded(f) && c.readMarker(ctx, f.key) == f.marker {
		return
	}
	obs.CacheInvalidation("fill_dropped", 1)
	if err := c.store.Delete(ctx, f.key); err != nil {
		c.deferKeys(ctx, []string{f.key}, err)
	}
}

// bump records an invalidation of keys for every fill currently in flight on them.
func (c *Cache) bump(keys []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	for _, key := range keys {
		if c.inflight[key] > 0 {
			c.bumped[key] = c.seq
		}
	}
}

// writeMarkers gives every key a fresh marker in the shared store so fills running on other
// instances notice the invalidation.
func (c *Cache) writeMarkers(ctx context.Context, keys []string) {
	token := []byte(uuid.NewString())
	for _, key := range keys {
		if err := c.store.Set(ctx, MarkerKey(key), token, markerTTL); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("key", key).Msg("invalidation marker not written")
		}
	}
}

// readMarker returns the current marker of key. An unreadable marker yields a value that never
// matches, so the fill is discarded.
func (c *Cache) readMarker(ctx context.Context, key string) string {
	raw, err := c.store.Get(ctx, MarkerKey(key))
	switch {
	case err == nil:
		return string(raw)
	case errors.Is(err, ErrMiss):
		return ""
	default:
		return "unreadable:" + uuid.NewString()
	}
}
