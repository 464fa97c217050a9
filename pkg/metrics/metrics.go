// Package metrics documents the Prometheus metrics exposed by the
// federator. All metrics are defined in their respective packages
// (upstream, cache, breaker, health) to maintain modularity and avoid
// circular dependencies.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the federator.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Upstream Metrics (pkg/upstream):
//   - stacfed_upstream_requests_total{source, status} (Counter): Requests by source and HTTP status
//   - stacfed_upstream_request_duration_seconds{source} (Histogram): Request duration by source
//   - stacfed_upstream_failures_total{source, kind} (Counter): Failures by kind (unreachable, timeout, protocol)
//
// Cache Metrics (pkg/cache):
//   - stacfed_cache_hits_total{source} (Counter): Upstream response cache hits
//   - stacfed_cache_misses_total{source} (Counter): Upstream response cache misses
//   - stacfed_cache_errors_total{operation} (Counter): Cache operation errors
//
// Breaker Metrics (pkg/breaker):
//   - stacfed_breaker_opens_total{source} (Counter): Times a source breaker opened
//   - stacfed_breaker_short_circuits_total{source} (Counter): Dispatches short-circuited while open
//   - stacfed_breaker_failures{source} (Gauge): Current consecutive failure count
//
// Health Metrics (pkg/health):
//   - stacfed_source_up{source} (Gauge): 1 when reachable and capable at last check
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(stacfed_cache_hits_total[5m])) /
//   (sum(rate(stacfed_cache_hits_total[5m])) + sum(rate(stacfed_cache_misses_total[5m])))
//
//   # Per-Source Failure Rate
//   rate(stacfed_upstream_failures_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(stacfed_upstream_request_duration_seconds_bucket[5m]))
//
//   # Sources Currently Down
//   stacfed_source_up == 0
