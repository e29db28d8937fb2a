package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"recruitcore.io/internal/obs"
	"recruitcore.io/internal/tracing"
)

var tracer = tracing.Tracer("cache")

// Fetch is the cache-aside read path. It returns the value, whether it came from the cache,
// and the loader's error. Cache faults never surface: a miss loads and populates, an outage
// loads without populating, and a key with an invalidation still in flight bypasses the cache.
// Loaded values are passed through the codec so a hit and a miss return identical data.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, bool, error) {
	fam := family(key)
	ctx, span := tracer.Start(ctx, "cache.Fetch", trace.WithAttributes(attribute.String("cache.family", fam)))
	defer span.End()

	populate := false
	if c.Enabled() && c.settle(ctx, key) {
		raw, err := c.store.Get(ctx, key)
		switch {
		case err == nil:
			var v T
			if derr := json.Unmarshal(raw, &v); derr == nil {
				obs.CacheLookup(fam, "hit")
				span.SetAttributes(attribute.Bool("cache.hit", true))
				return v, true, nil
			}
			zerolog.Ctx(ctx).Warn().Str("component", "cache").Str("key", key).Msg("discarding undecodable cache entry")
			obs.CacheLookup(fam, "corrupt")
			populate = c.store.Delete(ctx, key) == nil
		case errors.Is(err, ErrMiss):
			obs.CacheLookup(fam, "miss")
			populate = true
		default:
			obs.CacheLookup(fam, "unavailable")
			zerolog.Ctx(ctx).Warn().Err(err).Str("component", "cache").Str("key", key).Msg("cache read failed; reading source")
		}
	} else {
		obs.CacheLookup(fam, "bypass")
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	var f fill
	if populate {
		f = c.beginFill(ctx, key)
		defer c.endFill(f)
	}
	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("component", "cache").Str("key", key).Msg("value is not cacheable")
		return v, false, nil
	}
	var normalized T
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return v, false, nil
	}
	if populate {
		c.populate(ctx, f, raw, ttl)
	}
	return normalized, false, nil
}

// family groups keys for metrics: the first two ":"-separated segments.
func family(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return parts[0]
	}
	return parts[0] + ":" + parts[1]
}

// FetchMany is Fetch over several keys. Keys that are not served from the cache are loaded with
// a single call to load, which receives their indexes and returns values by index; an index
// missing from the result yields the zero value. The result is ordered like keys.
func FetchMany[T any](ctx context.Context, c *Cache, keys []string, ttl time.Duration, load func(context.Context, []int) (map[int]T, error)) ([]T, error) {
	ctx, span := tracer.Start(ctx, "cache.FetchMany", trace.WithAttributes(attribute.Int("cache.keys", len(keys))))
	defer span.End()

	out := make([]T, len(keys))
	var missing []int
	populate := make(map[int]bool, len(keys))
	for i, key := range keys {
		fam := family(key)
		if !c.Enabled() || !c.settle(ctx, key) {
			obs.CacheLookup(fam, "bypass")
			missing = append(missing, i)
			continue
		}
		raw, err := c.store.Get(ctx, key)
		switch {
		case err == nil:
			var v T
			if derr := json.Unmarshal(raw, &v); derr == nil {
				obs.CacheLookup(fam, "hit")
				out[i] = v
				continue
			}
			obs.CacheLookup(fam, "corrupt")
			populate[i] = c.store.Delete(ctx, key) == nil
		case errors.Is(err, ErrMiss):
			obs.CacheLookup(fam, "miss")
			populate[i] = true
		default:
			obs.CacheLookup(fam, "unavailable")
			zerolog.Ctx(ctx).Warn().Err(err).Str("component", "cache").Str("key", key).Msg("cache read failed; reading source")
		}
		missing = append(missing, i)
	}
	span.SetAttributes(attribute.Int("cache.hits", len(keys)-len(missing)))
	if len(missing) == 0 {
		return out, nil
	}

	fills := make(map[int]fill, len(populate))
	for i, ok := range populate {
		if ok {
			fills[i] = c.beginFill(ctx, keys[i])
		}
	}
	defer func() {
		for _, f := range fills {
			c.endFill(f)
		}
	}()

	loaded, err := load(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, i := range missing {
		raw, err := json.Marshal(loaded[i])
		if err != nil {
			out[i] = loaded[i]
			continue
		}
		var normalized T
		if err := json.Unmarshal(raw, &normalized); err != nil {
			out[i] = loaded[i]
			continue
		}
		out[i] = normalized
		if f, ok := fills[i]; ok {
			c.populate(ctx, f, raw, ttl)
		}
	}
	return out, nil
}
