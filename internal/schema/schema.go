// Package schema defines the normalized description of a database schema:
// tables, columns, indexes, and views, independent of any vendor catalog
// representation.
//
// Values in this package are produced by the metadata providers and consumed
// by downstream tooling (snapshots, diffing, dialect generation). They carry
// no connection state of their own.
package schema

import "context"

// Schema is the read contract over one introspected database schema.
//
// All name lookups are case-insensitive: names are canonicalized by
// upper-casing, while returned entities keep the exact casing the catalog
// reported. A Schema represents a single point-in-time snapshot; there is
// no way to refresh it, construct a new provider instead.
type Schema interface {
	// IsEmptyDatabase reports whether the schema contains no tables at all.
	IsEmptyDatabase(ctx context.Context) (bool, error)

	// TableExists reports whether a table with the given name exists.
	TableExists(ctx context.Context, name string) (bool, error)

	// TableNames returns the discovered table names in catalog order,
	// with their original casing.
	TableNames(ctx context.Context) ([]string, error)

	// Tables returns a facade for every discovered table.
	Tables(ctx context.Context) ([]Table, error)

	// GetTable resolves a table by name. The returned facade reads its
	// columns and indexes lazily. Unknown names yield a not-found error.
	GetTable(ctx context.Context, name string) (Table, error)

	// ViewExists reports whether a view with the given name exists.
	ViewExists(ctx context.Context, name string) (bool, error)

	// ViewNames returns the discovered view names in catalog order,
	// with their original casing.
	ViewNames(ctx context.Context) ([]string, error)

	// Views returns a facade for every discovered view.
	Views(ctx context.Context) ([]View, error)

	// GetView resolves a view by name. Unknown names yield a not-found error.
	GetView(ctx context.Context, name string) (View, error)
}
