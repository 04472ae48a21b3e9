package pkgdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// PkgState represents the installation state of a package record.
type PkgState string

const (
	// StateUnpacked means the package files are extracted but not configured.
	StateUnpacked PkgState = "unpacked"

	// StateHalfInstalled means installation was interrupted mid-way.
	StateHalfInstalled PkgState = "half-installed"

	// StateInstalled means the package is fully installed and configured.
	StateInstalled PkgState = "installed"

	// StateHalfRemoved means removal was interrupted mid-way.
	StateHalfRemoved PkgState = "half-removed"

	// StateBroken means the package failed an integrity check.
	StateBroken PkgState = "broken"

	// StateConfigFiles means only configuration files remain on disk.
	StateConfigFiles PkgState = "config-files"
)

// Valid reports whether s is a known package state.
func (s PkgState) Valid() bool {
	switch s {
	case StateUnpacked, StateHalfInstalled, StateInstalled,
		StateHalfRemoved, StateBroken, StateConfigFiles:
		return true
	}
	return false
}

// PackageRecord is one entry in the installed-package database.
type PackageRecord struct {
	// InstallID is the monotonic install-order key assigned at registration.
	InstallID int64 `json:"install_id"`

	// Name is the bare package name, unique within the database.
	Name string `json:"name" validate:"required,min=1"`

	// Version is the upstream version of the installed build.
	Version string `json:"version" validate:"required"`

	// Revision is the package build revision.
	Revision string `json:"revision" validate:"required"`

	// State is the installation state; only installed packages are
	// eligible for orphan classification.
	State PkgState `json:"state" validate:"required"`

	// Automatic is true when the package was pulled in to satisfy another
	// package's dependency rather than requested explicitly.
	Automatic bool `json:"automatic_install"`

	// RequiredBy holds the recorded dependents as a raw JSON array of
	// package tokens ("name-version_revision"). A nil value means no
	// package depends on this one. Anything other than a JSON array is a
	// data-corruption error surfaced by DecodeRequiredBy.
	RequiredBy json.RawMessage `json:"required_by,omitempty"`

	// InstalledAt is when the package was registered.
	InstalledAt time.Time `json:"installed_at"`

	// UpdatedAt is when the record was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// PkgVer returns the full package token, e.g. "zlib-1.3_1".
func (r *PackageRecord) PkgVer() string {
	return fmt.Sprintf("%s-%s_%s", r.Name, r.Version, r.Revision)
}

// Clone returns a deep copy of the record. The copy shares no mutable
// state with the original.
func (r *PackageRecord) Clone() *PackageRecord {
	c := *r
	if r.RequiredBy != nil {
		c.RequiredBy = append(json.RawMessage(nil), r.RequiredBy...)
	}
	return &c
}

// DecodeRequiredBy decodes the recorded dependents. An absent field
// decodes to an empty slice; a present field that is not a JSON array of
// strings is a data-integrity error and must never be skipped silently.
func (r *PackageRecord) DecodeRequiredBy() ([]string, error) {
	if len(r.RequiredBy) == 0 {
		return nil, nil
	}

	var tokens []string
	if err := json.Unmarshal(r.RequiredBy, &tokens); err != nil {
		return nil, fmt.Errorf("required_by of package %s is not an array of tokens: %w", r.Name, err)
	}
	return tokens, nil
}

// Store defines the interface for the installed-package database.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Record operations
	Register(ctx context.Context, rec *PackageRecord) error
	Unregister(ctx context.Context, name string) error
	Get(ctx context.Context, name string) (*PackageRecord, error)
	List(ctx context.Context) ([]*PackageRecord, error)
	SetState(ctx context.Context, name string, state PkgState) error
	SetAutomatic(ctx context.Context, name string, automatic bool) error
	AddDependent(ctx context.Context, name, token string) error
	RemoveDependent(ctx context.Context, name, token string) error

	// Snapshot acquires a reference-counted, immutable view of the
	// database in install order. The caller must release it exactly once.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
