// Package cache provides the gateway's time-boxed read-through cache.
//
// The cache manager implements TTL caching with the following features:
//
// - Lazy expiry: an entry is visible only while now < expires, and an
//   expired entry is evicted by the read that finds it
// - No background eviction goroutines
// - Pluggable storage: in-process memory (default) or Redis
// - Deterministic cache keys per resource family and index
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	// Create cache manager over the in-process store
//	manager := cache.NewManager(cache.NewMemoryStore(),
//		cache.WithDefaultTTL(time.Hour),
//	)
//
//	// Listing and detail keys
//	listKey := cache.IndexKey("spells")
//	docKey := cache.DetailKey("spells", "fireball")
//
//	// Get from cache
//	data, err := manager.Get(ctx, docKey)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - fetch from upstream
//	}
//
// # JSON Values
//
//	var doc srd.Document
//	if err := manager.GetJSON(ctx, docKey, &doc); err == nil {
//		return doc, nil
//	}
//	_ = manager.SetJSON(ctx, docKey, doc, 0) // 0 = default TTL
//
// # Redis Backend
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(cache.NewRedisStore(redisClient))
//
// The Redis store keeps the same entry encoding and applies a native
// Redis TTL, so replicas can share warm entries.
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - srd_cache_hits_total{layer} - Cache hits by store layer
//   - srd_cache_misses_total - Cache misses (absent or expired)
//   - srd_cache_evictions_total - Expired entries evicted on read
//   - srd_cache_errors_total{operation} - Cache operation errors
package cache
