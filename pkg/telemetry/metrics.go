package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the build pipeline. With metrics
// disabled every recording method is a no-op, so callers never guard.
type Metrics struct {
	config MetricsConfig

	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	buildsExecuted *prometheus.CounterVec
	buildDuration  *prometheus.HistogramVec

	fusionsExecuted *prometheus.CounterVec
	launches        prometheus.Counter
	watchRebuilds   prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of build runs started",
			},
			[]string{"project"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of build runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of build runs in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"status"},
		),
		buildsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_executed_total",
				Help:      "Total number of per-target build steps executed",
			},
			[]string{"target", "status"},
		),
		buildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "build_duration_seconds",
				Help:      "Duration of per-target build steps in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"target"},
		),
		fusionsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fusions_executed_total",
				Help:      "Total number of universal binary fusion steps",
			},
			[]string{"status"},
		),
		launches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "launches_total",
				Help:      "Total number of produced binaries launched",
			},
		),
		watchRebuilds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watch_rebuilds_total",
				Help:      "Total number of rebuilds triggered by watch mode",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.runsStarted, m.runsCompleted, m.runDuration,
		m.buildsExecuted, m.buildDuration,
		m.fusionsExecuted, m.launches, m.watchRebuilds,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// RecordRunStarted records the start of a build run.
func (m *Metrics) RecordRunStarted(project string) {
	if m.registry == nil {
		return
	}
	m.runsStarted.WithLabelValues(project).Inc()
}

// RecordRunCompleted records a build run's terminal outcome.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordBuild records one per-target build step.
func (m *Metrics) RecordBuild(target, status string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.buildsExecuted.WithLabelValues(target, status).Inc()
	m.buildDuration.WithLabelValues(target).Observe(duration.Seconds())
}

// RecordFusion records a universal binary fusion step.
func (m *Metrics) RecordFusion(status string) {
	if m.registry == nil {
		return
	}
	m.fusionsExecuted.WithLabelValues(status).Inc()
}

// RecordLaunch records a launched binary.
func (m *Metrics) RecordLaunch() {
	if m.registry == nil {
		return
	}
	m.launches.Inc()
}

// RecordWatchRebuild records a watch-triggered rebuild.
func (m *Metrics) RecordWatchRebuild() {
	if m.registry == nil {
		return
	}
	m.watchRebuilds.Inc()
}

// Handler returns the Prometheus scrape handler for the watch-mode metrics
// endpoint, or nil when metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
