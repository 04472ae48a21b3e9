// Package telemetry provides observability instrumentation for quarry.
//
// The telemetry package integrates structured logging (zerolog),
// distributed tracing (OpenTelemetry) and Prometheus metrics into a
// unified system for monitoring quarry operations.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context
// propagation:
//
//	logger := tel.Logger.NewComponentLogger("orphan-engine")
//	logger = logger.WithScanID("scan-123").WithPackage("libfoo")
//	logger.Info("Starting orphan scan")
//	logger.WithError(err).Error("Scan failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into scan flow and performance:
//
//	ctx, span := tel.Tracer.StartScanSpan(ctx, scanID)
//	defer span.End()
//
//	span.SetAttributes(
//	    telemetry.AttrPackagesClassified.Int(n),
//	    telemetry.AttrOrphansFound.Int(found),
//	)
//
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development)
//
// # Metrics
//
// Prometheus metrics track scan and database behavior:
//
//	tel.Metrics.RecordScanStarted()
//	tel.Metrics.RecordScanCompleted("completed", duration, classified, orphans)
//	tel.Metrics.RecordScanError("MALFORMED_RECORD")
//	tel.Metrics.RecordDBOperation("register", err)
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Key metrics
//
//   - quarry_orphan_scans_started_total
//   - quarry_orphan_scans_completed_total{status}
//   - quarry_orphan_scan_duration_seconds{status}
//   - quarry_packages_classified_total
//   - quarry_orphans_found_total
//   - quarry_last_scan_orphans
//   - quarry_pkgdb_operations_total{operation,status}
//   - quarry_scan_errors_total{code}
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
package telemetry
