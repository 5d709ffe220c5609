// Package gateway orchestrates cached, filtered and paginated access to
// SRD resource families.
//
// A listing call runs through these stages:
//
//	index lookup (cache, upstream on miss)
//	  -> name filter
//	  -> alias filter (items only)
//	  -> enrichment (when type, CR or expand is requested)
//	  -> type and CR filters
//	  -> pagination
//
// Detail calls read through the same cache. Concurrent misses for one key
// share a single upstream fetch. Upstream 404s are returned to the caller
// and never cached.
//
// Example usage:
//
//	gw := gateway.New(cacheManager, upstreamClient, gateway.DefaultConfig())
//	env, err := gw.List(ctx, srd.Monsters, filter.Spec{Type: "dragon"}, pagination.Request{})
//	doc, err := gw.Detail(ctx, srd.Spells, "fireball")
package gateway
