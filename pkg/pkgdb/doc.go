// Package pkgdb implements the installed-package database.
//
// One record is kept per installed package, keyed by name and ordered by a
// monotonic install identifier. Because packages can only be registered
// after the packages they depend on, that install order is a topological
// order of the depends-on relation; the orphan scanner relies on this
// invariant and it is documented as part of the database contract.
//
// Readers consume the database through immutable, reference-counted
// snapshots rather than live queries, so a scan observes a single
// consistent view regardless of concurrent registrations.
package pkgdb
