package pkgdb

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

// setupTestStore creates an in-memory SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	return store
}

func register(t *testing.T, store *SQLiteStore, name string, automatic bool, requiredBy ...string) *PackageRecord {
	t.Helper()

	rec := &PackageRecord{
		Name:      name,
		Version:   "1.0",
		Revision:  "1",
		State:     StateInstalled,
		Automatic: automatic,
	}
	if requiredBy != nil {
		raw, err := json.Marshal(requiredBy)
		if err != nil {
			t.Fatalf("failed to encode required_by: %v", err)
		}
		rec.RequiredBy = raw
	}

	if err := store.Register(context.Background(), rec); err != nil {
		t.Fatalf("failed to register %s: %v", name, err)
	}
	return rec
}

func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestRegisterAndGet(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	rec := register(t, store, "zlib", true, "libpng-1.6.40_1")

	if rec.InstallID == 0 {
		t.Error("expected install id to be assigned on registration")
	}

	got, err := store.Get(ctx, "zlib")
	if err != nil {
		t.Fatalf("failed to get package: %v", err)
	}

	if got.Name != "zlib" || got.Version != "1.0" || got.Revision != "1" {
		t.Errorf("unexpected record: %+v", got)
	}
	if !got.Automatic {
		t.Error("expected automatic_install to be true")
	}
	if got.State != StateInstalled {
		t.Errorf("expected state installed, got %s", got.State)
	}

	tokens, err := got.DecodeRequiredBy()
	if err != nil {
		t.Fatalf("failed to decode required_by: %v", err)
	}
	if len(tokens) != 1 || tokens[0] != "libpng-1.6.40_1" {
		t.Errorf("unexpected required_by: %v", tokens)
	}
}

func TestRegister_RejectsInvalidRecords(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	tests := []struct {
		name string
		rec  *PackageRecord
	}{
		{"missing name", &PackageRecord{Version: "1.0", Revision: "1", State: StateInstalled}},
		{"missing version", &PackageRecord{Name: "x", Revision: "1", State: StateInstalled}},
		{"bad state", &PackageRecord{Name: "x", Version: "1.0", Revision: "1", State: "borked"}},
		{"malformed required_by", &PackageRecord{
			Name: "x", Version: "1.0", Revision: "1", State: StateInstalled,
			RequiredBy: json.RawMessage(`"not-an-array"`),
		}},
	}

	for _, tt := range tests {
		if err := store.Register(ctx, tt.rec); err == nil {
			t.Errorf("%s: expected registration to fail", tt.name)
		}
	}
}

func TestUnregister(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	register(t, store, "zlib", false)

	if err := store.Unregister(ctx, "zlib"); err != nil {
		t.Fatalf("failed to unregister: %v", err)
	}

	if _, err := store.Get(ctx, "zlib"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.Unregister(ctx, "zlib"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second unregister, got %v", err)
	}
}

func TestListPreservesInstallOrder(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	names := []string{"base-system", "zlib", "libpng", "imagemagick"}
	for _, name := range names {
		register(t, store, name, false)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("failed to list packages: %v", err)
	}

	if len(records) != len(names) {
		t.Fatalf("expected %d records, got %d", len(names), len(records))
	}
	for i, name := range names {
		if records[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, records[i].Name)
		}
	}
}

func TestSetAutomaticAndState(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	register(t, store, "zlib", false)

	if err := store.SetAutomatic(ctx, "zlib", true); err != nil {
		t.Fatalf("failed to set automatic: %v", err)
	}
	if err := store.SetState(ctx, "zlib", StateHalfRemoved); err != nil {
		t.Fatalf("failed to set state: %v", err)
	}

	got, err := store.Get(ctx, "zlib")
	if err != nil {
		t.Fatalf("failed to get package: %v", err)
	}
	if !got.Automatic {
		t.Error("expected automatic_install to be true")
	}
	if got.State != StateHalfRemoved {
		t.Errorf("expected state half-removed, got %s", got.State)
	}

	if err := store.SetState(ctx, "zlib", "nonsense"); err == nil {
		t.Error("expected error for invalid state")
	}
	if err := store.SetAutomatic(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDependentMutation(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	register(t, store, "zlib", true)

	if err := store.AddDependent(ctx, "zlib", "libpng-1.6.40_1"); err != nil {
		t.Fatalf("failed to add dependent: %v", err)
	}
	// Duplicate adds are idempotent.
	if err := store.AddDependent(ctx, "zlib", "libpng-1.6.40_1"); err != nil {
		t.Fatalf("failed to re-add dependent: %v", err)
	}
	if err := store.AddDependent(ctx, "zlib", "imagemagick-7.1.1_2"); err != nil {
		t.Fatalf("failed to add second dependent: %v", err)
	}

	got, err := store.Get(ctx, "zlib")
	if err != nil {
		t.Fatalf("failed to get package: %v", err)
	}
	tokens, err := got.DecodeRequiredBy()
	if err != nil {
		t.Fatalf("failed to decode required_by: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected 2 dependents, got %v", tokens)
	}

	if err := store.RemoveDependent(ctx, "zlib", "libpng-1.6.40_1"); err != nil {
		t.Fatalf("failed to remove dependent: %v", err)
	}

	got, err = store.Get(ctx, "zlib")
	if err != nil {
		t.Fatalf("failed to get package: %v", err)
	}
	tokens, err = got.DecodeRequiredBy()
	if err != nil {
		t.Fatalf("failed to decode required_by: %v", err)
	}
	if len(tokens) != 1 || tokens[0] != "imagemagick-7.1.1_2" {
		t.Errorf("unexpected dependents after removal: %v", tokens)
	}
}

func TestSnapshotCachingAndInvalidation(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	register(t, store, "zlib", true)

	snap1, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("failed to acquire snapshot: %v", err)
	}
	snap2, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("failed to acquire second snapshot: %v", err)
	}

	if snap1 != snap2 {
		t.Error("expected consecutive snapshots of an unchanged database to be shared")
	}
	snap2.Release()

	// A mutation invalidates the cache; the held reference stays consistent.
	register(t, store, "libpng", true)

	snap3, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("failed to acquire post-mutation snapshot: %v", err)
	}
	defer snap3.Release()

	if snap3 == snap1 {
		t.Error("expected a fresh snapshot after mutation")
	}
	if snap1.Len() != 1 {
		t.Errorf("held snapshot changed under reader: len=%d", snap1.Len())
	}
	if snap3.Len() != 2 {
		t.Errorf("expected 2 records in fresh snapshot, got %d", snap3.Len())
	}
	snap1.Release()
}

func TestSnapshotUnaffectedByLaterUnregister(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	register(t, store, "zlib", true)

	snap, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("failed to acquire snapshot: %v", err)
	}
	defer snap.Release()

	if err := store.Unregister(ctx, "zlib"); err != nil {
		t.Fatalf("failed to unregister: %v", err)
	}

	if snap.Len() != 1 {
		t.Errorf("snapshot should retain the unregistered package, len=%d", snap.Len())
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{Path: "/var/db/quarry/pkgdb.sqlite"}.withDefaults()

	if c.BusyTimeout != 5*time.Second {
		t.Errorf("default BusyTimeout = %v, want 5s", c.BusyTimeout)
	}
	if c.MaxOpenConns != 25 || c.MaxIdleConns != 5 {
		t.Errorf("default pool = %d/%d, want 25/5", c.MaxOpenConns, c.MaxIdleConns)
	}
	if c.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("default ConnMaxLifetime = %v, want 5m", c.ConnMaxLifetime)
	}

	c = Config{
		Path:            "/var/db/quarry/pkgdb.sqlite",
		BusyTimeout:     time.Second,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}.withDefaults()

	if c.BusyTimeout != time.Second || c.MaxOpenConns != 2 || c.MaxIdleConns != 1 || c.ConnMaxLifetime != time.Minute {
		t.Errorf("explicit settings were overridden: %+v", c)
	}
}

func TestConfigDSNCarriesBusyTimeout(t *testing.T) {
	c := Config{Path: "/var/db/quarry/pkgdb.sqlite", BusyTimeout: 2500 * time.Millisecond}.withDefaults()

	dsn := c.dsn()
	if !strings.HasPrefix(dsn, c.Path+"?") {
		t.Errorf("dsn does not start with the database path: %s", dsn)
	}
	if !strings.Contains(dsn, "_busy_timeout=2500") {
		t.Errorf("dsn does not carry the configured busy timeout: %s", dsn)
	}
}

func TestStoreHonorsConfiguredBusyTimeout(t *testing.T) {
	store, err := NewSQLiteStore(Config{Path: ":memory:", BusyTimeout: time.Second})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	defer store.Close()

	if err := store.HealthCheck(ctx); err != nil {
		t.Errorf("health check failed: %v", err)
	}
	if got := store.cfg.BusyTimeout; got != time.Second {
		t.Errorf("store BusyTimeout = %v, want 1s", got)
	}
}
