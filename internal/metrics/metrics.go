// Package metrics provides Prometheus instrumentation for the pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	ItemsProcessed  *prometheus.CounterVec
	UnsafeVerdicts  prometheus.Counter
	Severity        prometheus.Histogram
	BackendFailover prometheus.Counter
	PublishDuration prometheus.Histogram
	ArchiveFailures prometheus.Counter
}

// New creates and registers the pipeline collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		ItemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_items_processed_total",
			Help: "Items processed, labeled by terminal result.",
		}, []string{"result"}),
		UnsafeVerdicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_unsafe_verdicts_total",
			Help: "Items the moderation engine judged unsafe.",
		}),
		Severity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_moderation_severity",
			Help:    "Severity scores produced by the moderation engine.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		BackendFailover: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_backend_failovers_total",
			Help: "Generations served by the fallback backend.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_publish_duration_seconds",
			Help:    "Wall time of successful publish attempts.",
			Buckets: prometheus.DefBuckets,
		}),
		ArchiveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_archive_failures_total",
			Help: "Individual archival file operations that failed.",
		}),
	}

	reg.MustRegister(
		m.ItemsProcessed,
		m.UnsafeVerdicts,
		m.Severity,
		m.BackendFailover,
		m.PublishDuration,
		m.ArchiveFailures,
	)
	return m
}

// Handler exposes the registry for scraping in watch mode.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
