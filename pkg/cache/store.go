package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is the storage layer behind a Manager.
//
// Implementations must be safe for concurrent use, and a single key's
// entry must be replaced atomically. Expiry decisions belong to the
// Manager; stores only hold entries.
type Store interface {
	// Get returns the stored entry or ErrCacheMiss.
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set stores entry under key, replacing any previous entry.
	Set(ctx context.Context, key string, entry *CacheEntry) error

	// DeleteExpired removes the entry under key only if it is still
	// expired at now, so a fresh concurrent Set survives.
	DeleteExpired(ctx context.Context, key string, now time.Time) error

	// Layer names the store for metrics ("memory", "redis").
	Layer() string
}
