package cache

import (
	"time"
)

// CacheEntry represents a cached upstream value.
type CacheEntry struct {
	// Data is the JSON encoded value (document or listing)
	Data []byte `json:"data"`

	// Expires is when the entry stops being visible
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this value
	CachedAt time.Time `json:"cached_at"`
}

// IsExpiredAt reports whether the entry is expired at now.
// An entry is visible only while now < Expires.
func (e *CacheEntry) IsExpiredAt(now time.Time) bool {
	return !now.Before(e.Expires)
}
