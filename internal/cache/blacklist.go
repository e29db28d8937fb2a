package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Blacklist is the shared token revocation set. Entries are keyed by the SHA-256 of the raw
// token and live exactly as long as the token itself would.
type Blacklist struct {
	store Store
}

// NewBlacklist returns nil when c has no backing store.
func NewBlacklist(c *Cache) *Blacklist {
	if !c.Enabled() {
		return nil
	}
	return &Blacklist{store: c.Store()}
}

func (b *Blacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.store.Set(ctx, BlacklistKey(TokenDigest(token)), []byte("1"), ttl)
}

// AddIfAbsent revokes token and reports whether this call was the one that did it.
func (b *Blacklist) AddIfAbsent(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}
	return b.store.SetNX(ctx, BlacklistKey(TokenDigest(token)), []byte("1"), ttl)
}

func (b *Blacklist) Contains(ctx context.Context, token string) (bool, error) {
	return b.store.Exists(ctx, BlacklistKey(TokenDigest(token)))
}

// TokenDigest is the hex SHA-256 of a raw token.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
