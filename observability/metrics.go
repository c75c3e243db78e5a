// Package observability exposes gateway metrics via Prometheus.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the gateway's Prometheus collector set.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	TierHitsTotal   *prometheus.CounterVec
	CacheMissTotal  prometheus.Counter
	InvalidationsTotal prometheus.Counter
}

// NewMetrics registers the gateway's collectors on a fresh registry.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcache_requests_total",
			Help: "Total gateway requests by kind, operation, and outcome.",
		}, []string{"kind", "op", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentcache_request_duration_ms",
			Help:    "Gateway request latency in milliseconds.",
			Buckets: []float64{1, 3, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}, []string{"kind", "op"}),

		TierHitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcache_tier_hits_total",
			Help: "Cache hits by tier (L1/L2/L3).",
		}, []string{"tier"}),

		CacheMissTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentcache_cache_misses_total",
			Help: "Total cache misses across all tiers.",
		}),

		InvalidationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentcache_invalidations_total",
			Help: "Total keys invalidated by the invalidation engine.",
		}),
	}, reg
}

// TrackRequest records a completed request's outcome and latency.
func (m *Metrics) TrackRequest(kind, op, status string, latencyMs float64) {
	m.RequestsTotal.WithLabelValues(kind, op, status).Inc()
	m.RequestDuration.WithLabelValues(kind, op).Observe(latencyMs)
}

// TrackHit records a served cache hit by tier.
func (m *Metrics) TrackHit(tier string) {
	m.TierHitsTotal.WithLabelValues(tier).Inc()
}

// TrackMiss records a cache miss (no tier served the lookup).
func (m *Metrics) TrackMiss() {
	m.CacheMissTotal.Inc()
}

// TrackInvalidations records keys removed by a single invalidation call.
func (m *Metrics) TrackInvalidations(count int) {
	m.InvalidationsTotal.Add(float64(count))
}

// Handler serves the registry in Prometheus text exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
