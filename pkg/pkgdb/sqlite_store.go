package pkgdb

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// validate is the shared validator for package records.
var validate = validator.New()

// ErrNotFound is returned when a package record does not exist.
var ErrNotFound = errors.New("package not found")

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	cfg  Config
	path string

	// mu guards the cached snapshot and read-modify-write updates of
	// required_by.
	mu     sync.Mutex
	cached *Snapshot
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	BusyTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// withDefaults fills unset tuning fields.
func (c Config) withDefaults() Config {
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	return c
}

// dsn builds the connection string, carrying the configured busy timeout.
func (c Config) dsn() string {
	return fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL&_txlock=immediate",
		c.Path, c.BusyTimeout.Milliseconds())
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	return &SQLiteStore{
		cfg:  cfg.withDefaults(),
		path: cfg.Path,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.cfg.dsn())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if s.path == ":memory:" {
		// Each pooled connection would otherwise get its own private
		// in-memory database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(s.cfg.MaxOpenConns)
		db.SetMaxIdleConns(s.cfg.MaxIdleConns)
		db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close releases the cached snapshot reference and closes the database.
func (s *SQLiteStore) Close() error {
	s.invalidateSnapshot()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Register inserts a new package record. The install-order key is assigned
// by the database and written back to rec.
func (s *SQLiteStore) Register(ctx context.Context, rec *PackageRecord) error {
	if rec.State == "" {
		rec.State = StateInstalled
	}
	if err := validate.Struct(rec); err != nil {
		return fmt.Errorf("invalid package record: %w", err)
	}
	if !rec.State.Valid() {
		return fmt.Errorf("invalid package state: %s", rec.State)
	}
	if _, err := rec.DecodeRequiredBy(); err != nil {
		return fmt.Errorf("invalid package record: %w", err)
	}

	now := time.Now().UTC()
	if rec.InstalledAt.IsZero() {
		rec.InstalledAt = now
	}
	rec.UpdatedAt = now

	query := `
		INSERT INTO packages (name, version, revision, state, automatic_install, required_by, installed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		rec.Name,
		rec.Version,
		rec.Revision,
		rec.State,
		rec.Automatic,
		rawToNullString(rec.RequiredBy),
		rec.InstalledAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to register package %s: %w", rec.Name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get install id: %w", err)
	}
	rec.InstallID = id

	s.invalidateSnapshot()
	return nil
}

// Unregister removes a package record by name.
func (s *SQLiteStore) Unregister(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM packages WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to unregister package %s: %w", name, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	s.invalidateSnapshot()
	return nil
}

// Get retrieves a package record by name.
func (s *SQLiteStore) Get(ctx context.Context, name string) (*PackageRecord, error) {
	query := `
		SELECT install_id, name, version, revision, state, automatic_install, required_by, installed_at, updated_at
		FROM packages
		WHERE name = ?
	`

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get package %s: %w", name, err)
	}

	return rec, nil
}

// List returns all package records in install order.
func (s *SQLiteStore) List(ctx context.Context) ([]*PackageRecord, error) {
	query := `
		SELECT install_id, name, version, revision, state, automatic_install, required_by, installed_at, updated_at
		FROM packages
		ORDER BY install_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer rows.Close()

	records := []*PackageRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating packages: %w", err)
	}

	return records, nil
}

// SetState updates the installation state of a package.
func (s *SQLiteStore) SetState(ctx context.Context, name string, state PkgState) error {
	if !state.Valid() {
		return fmt.Errorf("invalid package state: %s", state)
	}
	return s.updateColumn(ctx, name, `UPDATE packages SET state = ?, updated_at = ? WHERE name = ?`, state)
}

// SetAutomatic updates the automatic-install marker of a package.
func (s *SQLiteStore) SetAutomatic(ctx context.Context, name string, automatic bool) error {
	return s.updateColumn(ctx, name, `UPDATE packages SET automatic_install = ?, updated_at = ? WHERE name = ?`, automatic)
}

// AddDependent appends a dependent token to a package's required_by list.
// Adding an already-recorded token is a no-op.
func (s *SQLiteStore) AddDependent(ctx context.Context, name, token string) error {
	return s.updateDependents(ctx, name, func(tokens []string) []string {
		for _, t := range tokens {
			if t == token {
				return tokens
			}
		}
		return append(tokens, token)
	})
}

// RemoveDependent removes a dependent token from a package's required_by list.
func (s *SQLiteStore) RemoveDependent(ctx context.Context, name, token string) error {
	return s.updateDependents(ctx, name, func(tokens []string) []string {
		out := tokens[:0]
		for _, t := range tokens {
			if t != token {
				out = append(out, t)
			}
		}
		return out
	})
}

// Snapshot returns a reference-counted view of the database in install
// order. Consecutive calls share the cached snapshot until a mutation or
// an external database write invalidates it.
func (s *SQLiteStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return s.cached.Retain(), nil
	}

	records, err := s.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot: %w", err)
	}

	// The store keeps its own reference for the cache.
	s.cached = NewSnapshot(records, nil)
	return s.cached.Retain(), nil
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// invalidateSnapshot drops the store's cached snapshot reference. Readers
// holding their own reference keep a consistent view until they release it.
func (s *SQLiteStore) invalidateSnapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		s.cached.Release()
		s.cached = nil
	}
}

func (s *SQLiteStore) updateColumn(ctx context.Context, name, query string, value interface{}) error {
	result, err := s.db.ExecContext(ctx, query, value, time.Now().UTC(), name)
	if err != nil {
		return fmt.Errorf("failed to update package %s: %w", name, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	s.invalidateSnapshot()
	return nil
}

// updateDependents performs a read-modify-write of a package's required_by
// list inside a transaction.
func (s *SQLiteStore) updateDependents(ctx context.Context, name string, mutate func([]string) []string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var raw sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT required_by FROM packages WHERE name = ?`, name).Scan(&raw)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("failed to read dependents of %s: %w", name, err)
	}

	var tokens []string
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &tokens); err != nil {
			return fmt.Errorf("required_by of package %s is not an array of tokens: %w", name, err)
		}
	}

	tokens = mutate(tokens)
	if tokens == nil {
		tokens = []string{}
	}

	encoded, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to encode dependents of %s: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE packages SET required_by = ?, updated_at = ? WHERE name = ?`,
		string(encoded), time.Now().UTC(), name,
	); err != nil {
		return fmt.Errorf("failed to update dependents of %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dependents update: %w", err)
	}

	s.invalidateSnapshot()
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*PackageRecord, error) {
	rec := &PackageRecord{}
	var requiredBy sql.NullString

	err := row.Scan(
		&rec.InstallID,
		&rec.Name,
		&rec.Version,
		&rec.Revision,
		&rec.State,
		&rec.Automatic,
		&requiredBy,
		&rec.InstalledAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if requiredBy.Valid && requiredBy.String != "" {
		rec.RequiredBy = json.RawMessage(requiredBy.String)
	}

	return rec, nil
}

func rawToNullString(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
