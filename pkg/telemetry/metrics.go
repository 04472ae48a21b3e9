package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for quarry.
type Metrics struct {
	config MetricsConfig

	// Scan metrics
	scansStarted   prometheus.Counter
	scansCompleted *prometheus.CounterVec
	scanDuration   *prometheus.HistogramVec

	// Classification metrics
	packagesClassified prometheus.Counter
	orphansFound       prometheus.Counter
	lastScanOrphans    prometheus.Gauge

	// Database metrics
	dbOperations *prometheus.CounterVec

	// Error metrics
	scanErrors *prometheus.CounterVec

	registry *prometheus.Registry
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

		scansStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orphan_scans_started_total",
				Help:      "Total number of orphan scans started",
			},
		),
		scansCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orphan_scans_completed_total",
				Help:      "Total number of orphan scans completed",
			},
			[]string{"status"},
		),
		scanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "orphan_scan_duration_seconds",
				Help:      "Duration of orphan scans in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		packagesClassified: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "packages_classified_total",
				Help:      "Total number of package records visited by scans",
			},
		),
		orphansFound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orphans_found_total",
				Help:      "Total number of orphans found across all scans",
			},
		),
		lastScanOrphans: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_scan_orphans",
				Help:      "Number of orphans found by the most recent successful scan",
			},
		),

		dbOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pkgdb_operations_total",
				Help:      "Total number of package database operations",
			},
			[]string{"operation", "status"},
		),

		scanErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scan_errors_total",
				Help:      "Total number of scan errors by error code",
			},
			[]string{"code"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.scansStarted,
		m.scansCompleted,
		m.scanDuration,
		m.packagesClassified,
		m.orphansFound,
		m.lastScanOrphans,
		m.dbOperations,
		m.scanErrors,
	)

	return m, nil
}

// Scan Metrics

// RecordScanStarted increments the counter for started scans.
func (m *Metrics) RecordScanStarted() {
	if m.scansStarted == nil {
		return
	}
	m.scansStarted.Inc()
}

// RecordScanCompleted records a finished scan with its status, duration and
// classification counts.
func (m *Metrics) RecordScanCompleted(status string, duration time.Duration, classified, orphans int) {
	if m.scansCompleted == nil {
		return
	}
	m.scansCompleted.WithLabelValues(status).Inc()
	m.scanDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.packagesClassified.Add(float64(classified))
	if status == "completed" {
		m.orphansFound.Add(float64(orphans))
		m.lastScanOrphans.Set(float64(orphans))
	}
}

// RecordScanError records a scan error by code.
func (m *Metrics) RecordScanError(code string) {
	if m.scanErrors == nil {
		return
	}
	if code == "" {
		code = "UNKNOWN"
	}
	m.scanErrors.WithLabelValues(code).Inc()
}

// Database Metrics

// RecordDBOperation records a package database operation.
func (m *Metrics) RecordDBOperation(operation string, err error) {
	if m.dbOperations == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.dbOperations.WithLabelValues(operation, status).Inc()
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

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
