package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Process-wide metrics. Registered once on the default registry and served
// from /metrics by the HTTP server.
var (
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossfin_upstream_requests_total",
		Help: "Outbound fetches by host and outcome.",
	}, []string{"host", "outcome"})

	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crossfin_upstream_latency_seconds",
		Help:    "Outbound fetch latency by host.",
		Buckets: prometheus.DefBuckets,
	}, []string{"host"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossfin_cache_hits_total",
		Help: "Price cache hits by cache name.",
	}, []string{"cache"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossfin_cache_misses_total",
		Help: "Price cache misses by cache name.",
	}, []string{"cache"})

	CacheFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossfin_cache_fallbacks_total",
		Help: "Times a cache served a stale value after a failed refresh.",
	}, []string{"cache"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crossfin_rate_limited_total",
		Help: "Requests rejected by the public fixed-window limiter.",
	}, []string{"route"})

	SnapshotWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossfin_kimchi_snapshot_writes_total",
		Help: "Kimchi snapshot rows written by the scheduled job.",
	})
)
