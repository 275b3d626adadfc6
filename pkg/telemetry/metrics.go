package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for sync runs.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	// Entity metrics
	itemsSynced  *prometheus.CounterVec
	itemDuration *prometheus.HistogramVec

	// Reconciliation metrics
	unresolvedReferences *prometheus.CounterVec
	issuesByClass        *prometheus.CounterVec
	changesApplied       *prometheus.CounterVec

	// Store metrics
	entitiesManaged *prometheus.GaugeVec

	activeRuns prometheus.Gauge

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_runs_started_total",
				Help:      "Total number of sync runs started",
			},
			[]string{"direction"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_runs_completed_total",
				Help:      "Total number of sync runs completed",
			},
			[]string{"direction", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_run_duration_seconds",
				Help:      "Duration of sync runs in seconds",
				Buckets:   buckets,
			},
			[]string{"direction"},
		),

		itemsSynced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_items_total",
				Help:      "Total number of entities processed, by outcome",
			},
			[]string{"kind", "change"},
		),
		itemDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_item_duration_seconds",
				Help:      "Duration of a single entity import or export in seconds",
				Buckets:   buckets,
			},
			[]string{"kind", "phase"},
		),

		unresolvedReferences: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unresolved_references_total",
				Help:      "Total number of references that could not be resolved",
			},
			[]string{"kind"},
		),
		issuesByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_issues_total",
				Help:      "Total number of non-fatal reconciliation issues by class",
			},
			[]string{"class"},
		),
		changesApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_changes_total",
				Help:      "Total number of attribute writes made during import",
			},
			[]string{"kind", "action"},
		),

		entitiesManaged: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "entities_managed",
				Help:      "Current number of entities in the store",
			},
			[]string{"kind"},
		),

		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sync_runs",
				Help:      "Current number of active sync runs",
			},
		),
	}

	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.itemsSynced,
		m.itemDuration,
		m.unresolvedReferences,
		m.issuesByClass,
		m.changesApplied,
		m.entitiesManaged,
		m.activeRuns,
	)

	return m, nil
}

// Run Metrics

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted(direction string) {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.WithLabelValues(direction).Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(direction, status string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(direction, status).Inc()
	m.runDuration.WithLabelValues(direction).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// Entity Metrics

// RecordItem records the outcome of one entity.
func (m *Metrics) RecordItem(kind, change string) {
	if m.itemsSynced == nil {
		return
	}
	m.itemsSynced.WithLabelValues(kind, change).Inc()
}

// RecordItemDuration records how long one phase took for one entity.
func (m *Metrics) RecordItemDuration(kind, phase string, duration time.Duration) {
	if m.itemDuration == nil {
		return
	}
	m.itemDuration.WithLabelValues(kind, phase).Observe(duration.Seconds())
}

// Reconciliation Metrics

// RecordUnresolvedReference records a dropped reference.
func (m *Metrics) RecordUnresolvedReference(kind string) {
	if m.unresolvedReferences == nil {
		return
	}
	m.unresolvedReferences.WithLabelValues(kind).Inc()
}

// RecordIssue records a non-fatal issue by class.
func (m *Metrics) RecordIssue(class string) {
	if m.issuesByClass == nil {
		return
	}
	m.issuesByClass.WithLabelValues(class).Inc()
}

// RecordChanges adds n attribute writes for the given action.
func (m *Metrics) RecordChanges(kind, action string, n int) {
	if m.changesApplied == nil || n == 0 {
		return
	}
	m.changesApplied.WithLabelValues(kind, action).Add(float64(n))
}

// Store Metrics

// SetEntityCount sets the current number of entities of a kind.
func (m *Metrics) SetEntityCount(kind string, count float64) {
	if m.entitiesManaged == nil {
		return
	}
	m.entitiesManaged.WithLabelValues(kind).Set(count)
}

// Registry returns the underlying registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer binds the metrics endpoint and serves it in the
// background until Stop.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled || m.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", m.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.config.ListenAddress, err)
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.server = server

	go func() {
		_ = server.Serve(ln)
	}()
	return nil
}

// Stop shuts the metrics endpoint down.
func (m *Metrics) Stop(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	err := m.server.Shutdown(ctx)
	m.server = nil
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
