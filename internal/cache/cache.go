// ===========================================
// Package cache - Resolution Cache
// ===========================================
// Volatile key/value layer fronting LinkStore reads on the redirect
// path. Entries are advisory: the cache losing data (restart, eviction,
// backend outage) only costs an extra store read, never correctness.
//
// Two implementations share the Cache interface:
//   - Memory: in-process map with a background sweep (the default)
//   - Redis:  go-redis backed, for sharing the cache between replicas

package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is the cached resolution payload for one short code.
// It carries the link ID so a cache hit can attribute click events
// without touching the store.
type Entry struct {
	LinkID          uuid.UUID `json:"link_id"`
	Destination     string    `json:"destination"`
	Active          bool      `json:"active"`
	SecretProtected bool      `json:"secret_protected"`
}

// Cache is the resolution cache contract.
//
// Get returns (nil, nil) on a miss; errors are reserved for backend
// failures, which callers treat the same as a miss (fail-open).
type Cache interface {
	Get(ctx context.Context, code string) (*Entry, error)
	Set(ctx context.Context, code string, entry *Entry, ttl time.Duration) error
	Delete(ctx context.Context, code string) error
}
