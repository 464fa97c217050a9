package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by source.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stacfed_cache_hits_total",
			Help: "Total number of upstream response cache hits",
		},
		[]string{"source"},
	)

	// CacheMisses tracks cache misses by source.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stacfed_cache_misses_total",
			Help: "Total number of upstream response cache misses",
		},
		[]string{"source"},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stacfed_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
