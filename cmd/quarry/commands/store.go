package commands

import (
	"context"

	"github.com/quarrypkg/quarry/pkg/pkgdb"
	"github.com/quarrypkg/quarry/pkg/telemetry"
)

// instrumentedStore wraps a package database store, recording a span and
// a pkgdb_operations_total sample for every operation.
type instrumentedStore struct {
	inner pkgdb.Store
	tel   *telemetry.Telemetry
}

func newInstrumentedStore(inner pkgdb.Store, tel *telemetry.Telemetry) *instrumentedStore {
	return &instrumentedStore{inner: inner, tel: tel}
}

func (s *instrumentedStore) record(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx = s.tel.WithContext(ctx)
	return telemetry.RecordDBOperation(ctx, operation, func() error {
		return fn(ctx)
	})
}

func (s *instrumentedStore) Init(ctx context.Context) error {
	return s.inner.Init(ctx)
}

func (s *instrumentedStore) Close() error {
	return s.inner.Close()
}

func (s *instrumentedStore) Migrate(ctx context.Context) error {
	return s.record(ctx, "migrate", s.inner.Migrate)
}

func (s *instrumentedStore) Register(ctx context.Context, rec *pkgdb.PackageRecord) error {
	return s.record(ctx, "register", func(ctx context.Context) error {
		return s.inner.Register(ctx, rec)
	})
}

func (s *instrumentedStore) Unregister(ctx context.Context, name string) error {
	return s.record(ctx, "unregister", func(ctx context.Context) error {
		return s.inner.Unregister(ctx, name)
	})
}

func (s *instrumentedStore) Get(ctx context.Context, name string) (*pkgdb.PackageRecord, error) {
	var rec *pkgdb.PackageRecord
	err := s.record(ctx, "get", func(ctx context.Context) error {
		var err error
		rec, err = s.inner.Get(ctx, name)
		return err
	})
	return rec, err
}

func (s *instrumentedStore) List(ctx context.Context) ([]*pkgdb.PackageRecord, error) {
	var records []*pkgdb.PackageRecord
	err := s.record(ctx, "list", func(ctx context.Context) error {
		var err error
		records, err = s.inner.List(ctx)
		return err
	})
	return records, err
}

func (s *instrumentedStore) SetState(ctx context.Context, name string, state pkgdb.PkgState) error {
	return s.record(ctx, "set_state", func(ctx context.Context) error {
		return s.inner.SetState(ctx, name, state)
	})
}

func (s *instrumentedStore) SetAutomatic(ctx context.Context, name string, automatic bool) error {
	return s.record(ctx, "set_automatic", func(ctx context.Context) error {
		return s.inner.SetAutomatic(ctx, name, automatic)
	})
}

func (s *instrumentedStore) AddDependent(ctx context.Context, name, token string) error {
	return s.record(ctx, "add_dependent", func(ctx context.Context) error {
		return s.inner.AddDependent(ctx, name, token)
	})
}

func (s *instrumentedStore) RemoveDependent(ctx context.Context, name, token string) error {
	return s.record(ctx, "remove_dependent", func(ctx context.Context) error {
		return s.inner.RemoveDependent(ctx, name, token)
	})
}

func (s *instrumentedStore) Snapshot(ctx context.Context) (*pkgdb.Snapshot, error) {
	var snap *pkgdb.Snapshot
	err := s.record(ctx, "snapshot", func(ctx context.Context) error {
		var err error
		snap, err = s.inner.Snapshot(ctx)
		return err
	})
	return snap, err
}

func (s *instrumentedStore) HealthCheck(ctx context.Context) error {
	return s.record(ctx, "health_check", s.inner.HealthCheck)
}
