// Package orphans implements orphan detection for installed packages.
//
// An orphan is a package that was installed automatically to satisfy a
// dependency and that no installed package depends on any longer, directly
// or transitively. Detection is a single pass over a database snapshot in
// reverse install order: because a package can only be depended on by
// packages registered after it, every dependent has already been classified
// by the time its dependency is visited, so transitive closure reduces to a
// membership test against the orphans found so far. No fixpoint iteration
// is needed, and the walk order must not be changed.
//
// The engine only classifies and reports. It never mutates the package
// database, and it never returns a partial result: any failure discards
// all accumulated state and surfaces a typed error.
package orphans
