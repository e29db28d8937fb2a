package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// flakyStore wraps a MemoryStore and fails every call while down is set.
type flakyStore struct {
	*MemoryStore
	mu   sync.Mutex
	down bool
	sets int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: NewMemoryStore()}
}

func (f *flakyStore) setDown(v bool) {
	f.mu.Lock()
	f.down = v
	f.mu.Unlock()
}

func (f *flakyStore) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errors.Join(ErrUnavailable, errors.New("connection refused"))
	}
	return nil
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := f.err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.sets++
	f.mu.Unlock()
	return f.MemoryStore.Set(ctx, key, value, ttl)
}

func (f *flakyStore) Delete(ctx context.Context, keys ...string) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.MemoryStore.Delete(ctx, keys...)
}

func (f *flakyStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := f.err(); err != nil {
		return false, err
	}
	return f.MemoryStore.Exists(ctx, key)
}

func (f *flakyStore) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}
