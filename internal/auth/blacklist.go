package auth

import (
	"sync"
	"time"

	"recruitcore.io/internal/cache"
)

// MemoryBlacklist is the in-process revocation set. It only covers the current instance; the
// shared cache.Blacklist is layered on top for multi-instance deployments.
type MemoryBlacklist struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]time.Time
}

func NewMemoryBlacklist(now func() time.Time) *MemoryBlacklist {
	if now == nil {
		now = time.Now
	}
	return &MemoryBlacklist{now: now, entries: make(map[string]time.Time)}
}

// Add records token until expiresAt.
func (b *MemoryBlacklist) Add(token string, expiresAt time.Time) {
	b.mu.Lock()
	b.entries[cache.TokenDigest(token)] = expiresAt
	b.mu.Unlock()
}

// AddIfAbsent records token and reports whether it was not already present.
func (b *MemoryBlacklist) AddIfAbsent(token string, expiresAt time.Time) bool {
	key := cache.TokenDigest(token)
	b.mu.Lock()
	defer b.mu.Unlock()
	if exp, ok := b.entries[key]; ok && b.now().Before(exp) {
		return false
	}
	b.entries[key] = expiresAt
	return true
}

func (b *MemoryBlacklist) Contains(token string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	exp, ok := b.entries[cache.TokenDigest(token)]
	return ok && b.now().Before(exp)
}

// Prune drops entries whose token has expired and returns how many were removed.
func (b *MemoryBlacklist) Prune() int {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for key, exp := range b.entries {
		if !now.Before(exp) {
			delete(b.entries, key)
			removed++
		}
	}
	return removed
}

func (b *MemoryBlacklist) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
