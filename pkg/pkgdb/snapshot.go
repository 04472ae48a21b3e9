package pkgdb

import (
	"sync/atomic"
)

// Snapshot is an immutable, reference-counted view of the installed-package
// database at a point in time. Records are held in install order. Every
// acquisition (Snapshot or Retain) must be balanced by exactly one Release;
// the backing records are dropped when the last reference goes away.
//
// Visitors receive records owned by the snapshot and must not mutate them;
// callers that need to keep a record beyond the snapshot's lifetime take a
// Clone.
type Snapshot struct {
	records []*PackageRecord
	refs    atomic.Int32

	// onFinal runs once, when the reference count drops to zero.
	onFinal func()
}

// NewSnapshot creates a snapshot over the given records, in install
// order, holding one reference. onFinal, if non-nil, runs when the last
// reference is released.
func NewSnapshot(records []*PackageRecord, onFinal func()) *Snapshot {
	s := &Snapshot{
		records: records,
		onFinal: onFinal,
	}
	s.refs.Store(1)
	return s
}

// Retain acquires an additional reference and returns the snapshot.
func (s *Snapshot) Retain() *Snapshot {
	if s.refs.Add(1) <= 1 {
		panic("pkgdb: retain of released snapshot")
	}
	return s
}

// Release drops one reference. Releasing more often than the snapshot was
// acquired is a programming error.
func (s *Snapshot) Release() {
	n := s.refs.Add(-1)
	switch {
	case n > 0:
		return
	case n < 0:
		panic("pkgdb: snapshot released twice")
	}

	s.records = nil
	if s.onFinal != nil {
		s.onFinal()
		s.onFinal = nil
	}
}

// Len returns the number of records in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.records)
}

// ForEach visits every record in install order. A visitor error aborts
// iteration and is returned unchanged.
func (s *Snapshot) ForEach(visit func(*PackageRecord) error) error {
	for _, rec := range s.records {
		if err := visit(rec); err != nil {
			return err
		}
	}
	return nil
}

// ReverseForEach visits every record in reverse install order, most
// recently installed first. A visitor error aborts iteration and is
// returned unchanged.
func (s *Snapshot) ReverseForEach(visit func(*PackageRecord) error) error {
	for i := len(s.records) - 1; i >= 0; i-- {
		if err := visit(s.records[i]); err != nil {
			return err
		}
	}
	return nil
}
