package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for runs and resource steps. A nil
// *Metrics is a valid no-op receiver, so the engine can be wired without
// metrics in tests and one-shot invocations.
type Metrics struct {
	registry *prometheus.Registry

	runsCompleted    *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	resourceOutcomes *prometheus.CounterVec
	resourceDuration *prometheus.HistogramVec
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "provisor",
				Name:      "runs_completed_total",
				Help:      "Total number of runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "provisor",
				Name:      "run_duration_seconds",
				Help:      "Duration of run execution in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		resourceOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "provisor",
				Name:      "resource_outcomes_total",
				Help:      "Total number of resource outcomes by kind",
			},
			[]string{"kind", "outcome"},
		),
		resourceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "provisor",
				Name:      "resource_duration_seconds",
				Help:      "Duration of resource check+apply in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.runsCompleted,
		m.runDuration,
		m.resourceOutcomes,
		m.resourceDuration,
	)

	return m
}

// ObserveRun records a completed run.
func (m *Metrics) ObserveRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(d.Seconds())
}

// ObserveStep records a terminal resource outcome.
func (m *Metrics) ObserveStep(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.resourceOutcomes.WithLabelValues(kind, outcome).Inc()
	if d > 0 {
		m.resourceDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// Handler exposes the registry for scraping; used by the long-lived watch
// mode.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
