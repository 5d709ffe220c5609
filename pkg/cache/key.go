package cache

import (
	"strings"
)

// indexSentinel marks the key of a collection listing.
const indexSentinel = "index"

// CacheKey identifies a cached upstream value.
type CacheKey struct {
	// Family is the upstream collection (e.g., "monsters", "equipment-categories")
	Family string

	// Index is the resource index; empty for the collection listing
	Index string
}

// IndexKey returns the key of a family's collection listing.
func IndexKey(family string) CacheKey {
	return CacheKey{Family: family}
}

// DetailKey returns the key of a single resource document.
func DetailKey(family, index string) CacheKey {
	return CacheKey{Family: family, Index: index}
}

// IsIndex reports whether the key addresses a collection listing.
func (k CacheKey) IsIndex() bool {
	return k.Index == ""
}

// String generates a deterministic cache key string.
// Format: srd:family:index for listings, srd:family:doc:index for documents.
// Documents live under their own segment so a resource whose index is
// literally "index" cannot collide with the listing.
//
// Example:
//
//	srd:monsters:index
//	srd:monsters:doc:aboleth
func (k CacheKey) String() string {
	parts := []string{"srd", strings.Trim(k.Family, "/")}
	if k.IsIndex() {
		parts = append(parts, indexSentinel)
	} else {
		parts = append(parts, "doc", k.Index)
	}
	return strings.Join(parts, ":")
}
