package commands

import (
	"context"
	"fmt"

	"github.com/quarrypkg/quarry/pkg/config"
	"github.com/quarrypkg/quarry/pkg/orphans"
	"github.com/quarrypkg/quarry/pkg/pkgdb"
	"github.com/quarrypkg/quarry/pkg/policy"
	"github.com/quarrypkg/quarry/pkg/telemetry"
)

// app wires configuration, telemetry, the package database and the
// orphan engine together for one command invocation.
type app struct {
	cfg    *config.Config
	tel    *telemetry.Telemetry
	store  pkgdb.Store
	engine *orphans.Engine
}

// newApp builds the application from the global flags. Callers must
// Close it.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Telemetry.LogLevel = "debug"
	}

	tel, err := telemetry.NewTelemetry(cfg.TelemetryConfig(appVersion))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if err := tel.StartMetricsServer(); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	sqlStore, err := pkgdb.NewSQLiteStore(pkgdb.Config{
		Path:        cfg.Database.Path,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, err
	}
	store := newInstrumentedStore(sqlStore, tel)
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	if cfg.Database.WatchExternal {
		if err := sqlStore.Watch(ctx, tel.Logger.Zerolog()); err != nil {
			tel.Logger.WithError(err).Warn("Failed to watch database file")
		}
	}

	engine := orphans.New(store,
		orphans.WithLogger(tel.Logger.Zerolog()),
		orphans.WithMetrics(tel.Metrics),
		orphans.WithTracer(tel.Tracer),
	)

	return &app{
		cfg:    cfg,
		tel:    tel,
		store:  store,
		engine: engine,
	}, nil
}

// policyEngine builds the removal-policy engine with the configured
// custom policies loaded.
func (a *app) policyEngine(ctx context.Context) (*policy.Engine, error) {
	eng, err := policy.NewEngine(a.tel.Logger.Zerolog())
	if err != nil {
		return nil, err
	}
	if len(a.cfg.Policy.Paths) > 0 {
		if err := eng.LoadPolicies(ctx, a.cfg.Policy.Paths); err != nil {
			return nil, err
		}
		if a.cfg.Policy.WatchPaths {
			if err := eng.WatchPolicies(ctx, a.cfg.Policy.Paths); err != nil {
				a.tel.Logger.WithError(err).Warn("Failed to watch policy paths")
			}
		}
	}
	return eng, nil
}

// Close releases the database and flushes telemetry.
func (a *app) Close(ctx context.Context) {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.tel != nil {
		_ = a.tel.Shutdown(ctx)
	}
}
