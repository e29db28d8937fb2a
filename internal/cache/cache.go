// Package cache holds the primitives of the cache-consistency layer: a small key/value contract,
// Redis and in-memory backends, cache-aside reads and invalidate-on-write with deferred retry.
//
// The cache is never a source of truth. Backends report absent keys with ErrMiss and outages
// with ErrUnavailable so callers can tell "populate after computing" from "compute and move on".
package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrMiss        = errors.New("cache: miss")
	ErrUnavailable = errors.New("cache: unavailable")
)

// Store is the key/value contract shared by every backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}

// Enabled reports whether s is a usable store; a nil interface or typed nil means caching is off.
func Enabled(s Store) bool {
	switch v := s.(type) {
	case nil:
		return false
	case *RedisStore:
		return v != nil
	case *MemoryStore:
		return v != nil
	default:
		return true
	}
}

// Cache couples a Store with the set of keys whose invalidation has not landed yet and the
// bookkeeping that stops an in-flight read from repopulating a key invalidated under it.
// A nil or disabled store turns every read into a source read.
type Cache struct {
	store Store

	mu      sync.Mutex
	pending map[string]struct{}
	// seq counts Invalidate calls; bumped holds, for keys with fills in flight, the seq of
	// the latest invalidation that touched them.
	seq      uint64
	inflight map[string]int
	bumped   map[string]uint64
}

// New wraps store; pass nil to run without a cache.
func New(store Store) *Cache {
	if !Enabled(store) {
		store = nil
	}
	return &Cache{
		store:    store,
		pending:  make(map[string]struct{}),
		inflight: make(map[string]int),
		bumped:   make(map[string]uint64),
	}
}

// Store returns the backing store, or nil when caching is disabled.
func (c *Cache) Store() Store {
	if c == nil {
		return nil
	}
	return c.store
}

// Enabled reports whether reads consult a backing store.
func (c *Cache) Enabled() bool {
	return c != nil && c.store != nil
}

// Ping checks the backing store; a disabled cache is always healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.store.Ping(ctx)
}
