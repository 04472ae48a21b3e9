package orphans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/quarrypkg/quarry/pkg/pkgdb"
	"github.com/quarrypkg/quarry/pkg/telemetry"
)

// SnapshotProvider hands out reference-counted views of the installed-
// package database. The engine releases every snapshot it acquires exactly
// once, on success and on every failure path.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (*pkgdb.Snapshot, error)
}

// Engine is the orphan-detection engine. It is safe for concurrent use:
// every scan owns its snapshot reference and its candidate list.
type Engine struct {
	provider SnapshotProvider
	log      zerolog.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log.With().Str("component", "orphan-engine").Logger()
	}
}

// WithMetrics enables metrics collection for scans.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracer enables trace spans for scans.
func WithTracer(t *telemetry.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// New creates an orphan-detection engine backed by the given provider.
func New(provider SnapshotProvider, opts ...Option) *Engine {
	e := &Engine{
		provider: provider,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FindOrphanPackages computes the set of installed packages that were
// pulled in automatically and that nothing depends on any longer. The
// result is ordered from most-recently-installed orphan to least, owns
// deep copies of the package records, and is all-or-nothing: any failure
// returns a nil slice and a typed error, never a partial list.
//
// An empty database yields an empty result, not an error. Scanning the
// same unchanged database twice yields identical output.
func (e *Engine) FindOrphanPackages(ctx context.Context) ([]pkgdb.PackageRecord, error) {
	scanID := uuid.NewString()
	log := e.log.With().Str("scan_id", scanID).Logger()
	start := time.Now()

	if e.metrics != nil {
		e.metrics.RecordScanStarted()
	}

	ctx, span := e.startSpan(ctx, scanID)

	snap, err := e.provider.Snapshot(ctx)
	if err != nil {
		scanErr := NewTransientError(ErrCodeSnapshotUnavailable, "failed to acquire database snapshot", err)
		e.finish(span, log, start, scanErr, 0, 0)
		return nil, scanErr
	}
	defer snap.Release()

	cls := newClassifier(log)
	if err := cls.classify(ctx, snap); err != nil {
		e.finish(span, log, start, err, snap.Len(), 0)
		return nil, err
	}

	result := materialize(cls.take())

	e.finish(span, log, start, nil, snap.Len(), len(result))
	return result, nil
}

// startSpan begins a scan span when tracing is configured.
func (e *Engine) startSpan(ctx context.Context, scanID string) (context.Context, trace.Span) {
	if e.tracer == nil {
		return ctx, nil
	}
	return e.tracer.StartScanSpan(ctx, scanID)
}

// finish records the scan outcome on every configured sink.
func (e *Engine) finish(span trace.Span, log zerolog.Logger, start time.Time, err error, classified, found int) {
	duration := time.Since(start)

	status := "completed"
	if err != nil {
		status = "failed"
	}

	if e.metrics != nil {
		e.metrics.RecordScanCompleted(status, duration, classified, found)
		if err != nil {
			e.metrics.RecordScanError(Code(err))
		}
	}

	if span != nil {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.RecordSuccess(span)
			span.SetAttributes(
				telemetry.AttrPackagesClassified.Int(classified),
				telemetry.AttrOrphansFound.Int(found),
			)
		}
		span.End()
	}

	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Msg("Orphan scan failed")
		return
	}

	log.Info().
		Int("packages", classified).
		Int("orphans", found).
		Dur("duration", duration).
		Msg("Orphan scan completed")
}
