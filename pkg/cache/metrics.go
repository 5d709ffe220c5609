package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (memory, redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "srd_cache_hits_total",
			Help: "Total number of SRD cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks cache misses, expired reads included
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "srd_cache_misses_total",
			Help: "Total number of SRD cache misses",
		},
	)

	// CacheEvictions tracks expired entries evicted on read
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "srd_cache_evictions_total",
			Help: "Total number of expired SRD cache entries evicted lazily",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "srd_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "evict", "encode", "decode"
	)
)
