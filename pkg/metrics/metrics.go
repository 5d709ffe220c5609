// Package metrics provides the Prometheus registry and /metrics handler for
// the SRD gateway. All metrics are defined in their respective packages
// (cache, client, ratelimit, fanout, gateway) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the gateway.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - srd_cache_hits_total{layer} (Counter): Cache hits by layer (memory, redis)
//   - srd_cache_misses_total (Counter): Cache misses, expired entries included
//   - srd_cache_evictions_total (Counter): Expired entries removed on read
//   - srd_cache_errors_total{operation} (Counter): Cache operation errors
//
// Upstream Metrics (pkg/client):
//   - srd_upstream_requests_total{resource, status} (Counter): Requests by resource family and HTTP status
//   - srd_upstream_request_duration_seconds{resource} (Histogram): Request duration by resource family
//   - srd_upstream_errors_total{class} (Counter): Errors by class (not_found, client, server, rate_limit, network, decode)
//
// Retry Metrics (pkg/client):
//   - srd_upstream_retries_total{error_class} (Counter): Retry attempts by error class
//   - srd_upstream_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - srd_upstream_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - srd_upstream_rate_limited_total (Counter): 429 responses received
//   - srd_rate_limit_blocks_total (Counter): Requests refused locally inside a Retry-After window
//
// Enrichment Metrics (pkg/fanout):
//   - srd_enrich_items_total (Counter): Stubs submitted for enrichment
//   - srd_enrich_failures_total (Counter): Stubs dropped after a failed detail fetch
//   - srd_enrich_duration_seconds (Histogram): Duration of one enrichment join
//
// Gateway Metrics (pkg/gateway):
//   - srd_gateway_requests_total{family, operation, outcome} (Counter): Calls by outcome
//   - srd_gateway_request_duration_seconds{operation} (Histogram): Call duration
//   - srd_gateway_shared_fetches_total (Counter): Misses served by an in-flight fetch
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(srd_cache_hits_total[5m])) /
//   (sum(rate(srd_cache_hits_total[5m])) + sum(rate(srd_cache_misses_total[5m])))
//
//   # Enrichment Drop Rate
//   rate(srd_enrich_failures_total[5m]) / rate(srd_enrich_items_total[5m])
//
//   # Upstream Error Rate
//   sum by (class) (rate(srd_upstream_errors_total[5m]))
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(srd_upstream_request_duration_seconds_bucket[5m]))
