// Package metrics defines the Prometheus collectors for the similarity
// pipeline and the vector cleanup worker, and exposes the scrape handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	SearchesTotal        *prometheus.CounterVec
	StageDuration        *prometheus.HistogramVec
	CleanupQueueDepth    prometheus.Gauge
	CleanupRetriesTotal  prometheus.Counter
	CleanupFailuresTotal prometheus.Counter

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "similarity_searches_total",
				Help: "Total similarity searches by outcome (ok, error).",
			},
			[]string{"outcome"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "similarity_stage_duration_seconds",
				Help:    "Wall-clock duration of each pipeline stage.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		CleanupQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "vector_cleanup_queue_depth",
				Help: "Documents currently queued for vector deletion.",
			},
		),
		CleanupRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vector_cleanup_retries_total",
				Help: "Total deferred retries scheduled by the cleanup worker.",
			},
		),
		CleanupFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vector_cleanup_failures_total",
				Help: "Cleanup tasks abandoned after exhausting all retries.",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.SearchesTotal,
		m.StageDuration,
		m.CleanupQueueDepth,
		m.CleanupRetriesTotal,
		m.CleanupFailuresTotal,
	)
	return m
}

// Handler returns the HTTP handler serving the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
