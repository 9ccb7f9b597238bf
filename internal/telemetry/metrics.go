// Package telemetry provides observability primitives for ipscope.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the lookup service.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ActiveRequests   prometheus.Gauge
	UpstreamDuration *prometheus.HistogramVec
	UpstreamErrors   *prometheus.CounterVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheEvictions   prometheus.Counter
	BogonLookups     prometheus.Counter
	BatchChunks      *prometheus.CounterVec
	BatchKeys        *prometheus.CounterVec
	BreakerState     prometheus.Gauge
	RateLimited      prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ipscope",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "ipscope",
			Name:                            "request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ipscope",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "ipscope",
			Name:                            "upstream_duration_seconds",
			Help:                            "Remote API call duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"op"}),

		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ipscope",
			Name:      "upstream_errors_total",
			Help:      "Total remote API errors.",
		}, []string{"op", "status"}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ipscope",
			Name:      "cache_hits_total",
			Help:      "Total lookup cache hits.",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ipscope",
			Name:      "cache_misses_total",
			Help:      "Total lookup cache misses.",
		}),

		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ipscope",
			Name:      "cache_swept_total",
			Help:      "Total expired entries removed by the cache sweeper.",
		}),

		BogonLookups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ipscope",
			Name:      "bogon_lookups_total",
			Help:      "Total lookups answered locally because the address is a bogon.",
		}),

		BatchChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ipscope",
			Name:      "batch_chunks_total",
			Help:      "Total batch chunks dispatched, by result.",
		}, []string{"result"}),

		BatchKeys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ipscope",
			Name:      "batch_keys_total",
			Help:      "Total batch keys, by source.",
		}, []string{"source"}),

		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ipscope",
			Name:      "upstream_breaker_state",
			Help:      "Remote API circuit breaker state (0=closed, 1=open, 2=half_open).",
		}),

		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ipscope",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the per-client rate limiter.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.UpstreamDuration,
		m.UpstreamErrors,
		m.CacheHits,
		m.CacheMisses,
		m.CacheEvictions,
		m.BogonLookups,
		m.BatchChunks,
		m.BatchKeys,
		m.BreakerState,
		m.RateLimited,
	)

	return m
}

// RegisterCacheSize exposes the current cache entry count as a gauge.
func RegisterCacheSize(reg prometheus.Registerer, size func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "ipscope",
		Name:      "cache_entries",
		Help:      "Current number of cached lookup entries.",
	}, func() float64 { return float64(size()) }))
}
