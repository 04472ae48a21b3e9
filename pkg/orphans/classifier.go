package orphans

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/quarrypkg/quarry/pkg/pkgdb"
	"github.com/quarrypkg/quarry/pkg/pkgexpr"
)

// candidate is a confirmed orphan awaiting materialization. It owns a deep
// copy of the package record, so later database mutations cannot alias
// into an in-flight scan.
type candidate struct {
	name   string
	record *pkgdb.PackageRecord
}

// classifier walks a database snapshot in reverse install order and
// accumulates orphan candidates. All state is owned by the enclosing call:
// a classifier is built, used for one scan and dropped, so repeated or
// concurrent scans never observe each other.
type classifier struct {
	log zerolog.Logger

	// candidates holds confirmed orphans in discovery order; members
	// indexes their names for the dependent membership test.
	candidates []*candidate
	members    map[string]struct{}
}

func newClassifier(log zerolog.Logger) *classifier {
	return &classifier{
		log:     log,
		members: make(map[string]struct{}),
	}
}

// classify runs the single reverse pass over the snapshot. On any failure
// the accumulated candidates are discarded; a partial classification is
// never kept.
func (c *classifier) classify(ctx context.Context, snap *pkgdb.Snapshot) error {
	err := snap.ReverseForEach(func(rec *pkgdb.PackageRecord) error {
		// Cancellation is honored only at the record boundary, never
		// mid-record.
		select {
		case <-ctx.Done():
			return NewTransientError(ErrCodeScanCancelled, "scan cancelled", ctx.Err())
		default:
		}

		return c.visit(rec)
	})
	if err != nil {
		c.discard()

		var scanErr *ScanError
		if !errors.As(err, &scanErr) {
			return NewPermanentError(ErrCodeIterationFailed, "snapshot iteration failed", err)
		}
		return err
	}

	return nil
}

// visit classifies a single record. The classification is final: records
// are never revisited within a scan.
func (c *classifier) visit(rec *pkgdb.PackageRecord) error {
	// Explicitly installed packages are never orphans.
	if !rec.Automatic {
		return nil
	}

	// Partially installed or broken packages are excluded.
	if rec.State != pkgdb.StateInstalled {
		return nil
	}

	tokens, err := rec.DecodeRequiredBy()
	if err != nil {
		return NewPermanentError(ErrCodeMalformedRecord, "malformed required_by field", err).
			WithPackage(rec.Name)
	}

	if len(tokens) > 0 {
		// Every dependent was visited earlier in the reverse walk, so
		// its classification is already final: the package is an orphan
		// exactly when all of its dependents are.
		ndep := 0
		for _, token := range tokens {
			name, err := pkgexpr.ParseName(token)
			if err != nil {
				return NewPermanentError(ErrCodeMalformedToken, "malformed dependent token", err).
					WithPackage(rec.Name)
			}
			if _, ok := c.members[name]; ok {
				ndep++
			}
		}
		if ndep != len(tokens) {
			c.log.Debug().
				Str("package", rec.Name).
				Int("dependents", len(tokens)).
				Int("orphaned_dependents", ndep).
				Msg("Package still required")
			return nil
		}
	}

	c.add(rec)
	return nil
}

func (c *classifier) add(rec *pkgdb.PackageRecord) {
	c.candidates = append(c.candidates, &candidate{
		name:   rec.Name,
		record: rec.Clone(),
	})
	c.members[rec.Name] = struct{}{}

	c.log.Debug().Str("package", rec.Name).Msg("Orphan found")
}

// take hands the accumulated candidates to the materializer, leaving the
// classifier empty.
func (c *classifier) take() []*candidate {
	candidates := c.candidates
	c.candidates = nil
	c.members = nil
	return candidates
}

// discard releases every accumulated candidate.
func (c *classifier) discard() {
	for _, cand := range c.candidates {
		cand.record = nil
	}
	c.candidates = nil
	c.members = nil
}
