package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cerberus/cerberus/pkg/config"
	"github.com/cerberus/cerberus/pkg/policy"
	"github.com/cerberus/cerberus/pkg/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics provides Prometheus metrics for configuration loading and checking.
// A disabled instance accepts every call and records nothing.
type Metrics struct {
	config MetricsConfig

	// Load metrics
	loadsTotal   *prometheus.CounterVec
	loadDuration *prometheus.HistogramVec
	entries      prometheus.Gauge
	diagnostics  *prometheus.CounterVec

	// Reload metrics
	reloadsTotal *prometheus.CounterVec
	changes      prometheus.Counter

	// Validation metrics
	validationRuns       *prometheus.CounterVec
	validationDuration   prometheus.Histogram
	validationHardErrors prometheus.Gauge
	validationWarnings   prometheus.Gauge

	// Policy metrics
	policyEvaluations *prometheus.CounterVec
	policyViolations  *prometheus.CounterVec
	policyDuration    prometheus.Histogram

	// History metrics
	snapshotsRecorded *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
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

		loadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_loads_total",
				Help:      "Total number of configuration loads",
			},
			[]string{"status"},
		),
		loadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "config_load_duration_seconds",
				Help:      "Duration of configuration loads in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		entries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_entries",
				Help:      "Number of entries in the current configuration",
			},
		),
		diagnostics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_diagnostics_total",
				Help:      "Total number of diagnostics reported while parsing",
			},
			[]string{"severity"},
		),

		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of reloads triggered by file changes",
			},
			[]string{"status"},
		),
		changes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_changes_total",
				Help:      "Total number of paths added, removed or changed by reloads",
			},
		),

		validationRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_runs_total",
				Help:      "Total number of schema validation runs",
			},
			[]string{"result"},
		),
		validationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "validation_duration_seconds",
				Help:      "Duration of schema validation in seconds",
				Buckets:   buckets,
			},
		),
		validationHardErrors: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "validation_hard_errors",
				Help:      "Hard errors found by the latest validation",
			},
		),
		validationWarnings: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "validation_warnings",
				Help:      "Warnings found by the latest validation",
			},
		),

		policyEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_evaluations_total",
				Help:      "Total number of policy evaluation runs",
			},
			[]string{"result"},
		),
		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations",
			},
			[]string{"policy", "severity"},
		),
		policyDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "policy_evaluation_duration_seconds",
				Help:      "Duration of policy evaluation in seconds",
				Buckets:   buckets,
			},
		),

		snapshotsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_recorded_total",
				Help:      "Total number of configuration snapshots written to history",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.loadsTotal,
		m.loadDuration,
		m.entries,
		m.diagnostics,
		m.reloadsTotal,
		m.changes,
		m.validationRuns,
		m.validationDuration,
		m.validationHardErrors,
		m.validationWarnings,
		m.policyEvaluations,
		m.policyViolations,
		m.policyDuration,
		m.snapshotsRecorded,
	)

	return m, nil
}

// Enabled reports whether metrics are being recorded.
func (m *Metrics) Enabled() bool {
	return m.registry != nil
}

// Registry returns the registry the metrics are registered with, or nil when
// metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Load Metrics

// ObserveLoad implements config.LoadObserver.
func (m *Metrics) ObserveLoad(event config.LoadEvent) {
	if m.registry == nil {
		return
	}

	status := "success"
	if event.Err != nil {
		status = "failure"
	}
	m.loadsTotal.WithLabelValues(status).Inc()
	m.loadDuration.WithLabelValues(status).Observe(event.Duration.Seconds())

	if event.Err != nil {
		return
	}
	m.entries.Set(float64(event.Entries))
	for _, d := range event.Diagnostics {
		m.diagnostics.WithLabelValues(string(d.Severity)).Inc()
	}
}

// RecordReload records a reload triggered by a file change.
func (m *Metrics) RecordReload(changes int, err error) {
	if m.registry == nil {
		return
	}
	if err != nil {
		m.reloadsTotal.WithLabelValues("failure").Inc()
		return
	}
	m.reloadsTotal.WithLabelValues("success").Inc()
	m.changes.Add(float64(changes))
}

// Validation Metrics

// ObserveValidation records one schema validation run.
func (m *Metrics) ObserveValidation(result *schema.Result, duration time.Duration) {
	if m.registry == nil || result == nil {
		return
	}

	outcome := "passed"
	if !result.Passed() {
		outcome = "failed"
	}
	m.validationRuns.WithLabelValues(outcome).Inc()
	m.validationDuration.Observe(duration.Seconds())
	m.validationHardErrors.Set(float64(result.HardErrors))
	m.validationWarnings.Set(float64(result.Warnings))
}

// Policy Metrics

// ObservePolicy records one policy evaluation run.
func (m *Metrics) ObservePolicy(result *policy.Result) {
	if m.registry == nil || result == nil {
		return
	}

	outcome := "allowed"
	if !result.Allowed {
		outcome = "denied"
	}
	m.policyEvaluations.WithLabelValues(outcome).Inc()
	m.policyDuration.Observe(result.Duration.Seconds())
	for _, v := range result.Violations {
		m.policyViolations.WithLabelValues(v.Policy, string(v.Severity)).Inc()
	}
}

// History Metrics

// RecordSnapshot records an attempt to write a snapshot to history.
func (m *Metrics) RecordSnapshot(err error) {
	if m.registry == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.snapshotsRecorded.WithLabelValues(status).Inc()
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

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
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

// StartMetricsServer serves the metrics endpoint until ctx is cancelled. It
// returns once the listener is bound, with the address it is bound to, or nil
// when metrics are disabled.
func (m *Metrics) StartMetricsServer(ctx context.Context, logger zerolog.Logger) (net.Addr, error) {
	if m.registry == nil {
		return nil, nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	listener, err := net.Listen("tcp", m.config.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", m.config.ListenAddress, err)
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", listener.Addr().String()).Str("path", path).Msg("Serving metrics")
	return listener.Addr(), nil
}
