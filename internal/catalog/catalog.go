// Package catalog defines the vendor-neutral surface through which the
// metadata engine reads a database's own description of its structure.
//
// Each database driver package implements Catalog with its own fixed SQL
// against information_schema, PRAGMA calls, or vendor system tables, and
// normalizes the results into the row types here. The engine in
// internal/metadata consumes only these interfaces.
package catalog

import "context"

// TableRow is one entity returned by a table/view discovery scan.
type TableRow struct {
	Schema string
	Name   string
	Type   string // e.g. "TABLE", "VIEW"
}

// ColumnRow is one column returned by a whole-schema column scan.
type ColumnRow struct {
	Table    string
	Name     string
	TypeCode TypeCode
	TypeName string // the vendor's own type text, kept for diagnostics

	Size          int // display width / precision
	DecimalDigits int // scale
	Nullable      bool
	AutoIncrement bool
}

// KeyRow is one column of a table's primary key. Sequence is the 1-based
// position of the column within the key; rows may arrive in any order.
type KeyRow struct {
	Column   string
	Sequence int
}

// IndexRow is one (index, column) pair of a per-table index scan. Rows for
// one index arrive in ordinal-position order. Rows with an empty Index name
// are statistics entries, not index members.
type IndexRow struct {
	Index     string
	Column    string
	NonUnique bool
}

// TableLister is the minimal catalog capability: discovering which tables
// and views exist. Providers that bulk-load everything else themselves
// (see internal/nuodb) need only this.
type TableLister interface {
	// Tables returns every entity in schemaName whose type is one of types.
	// An empty schemaName means the connection's default schema.
	Tables(ctx context.Context, schemaName string, types []string) ([]TableRow, error)
}

// Catalog is the full introspection surface used by the generic engine.
type Catalog interface {
	TableLister

	// Columns returns every column of every table in schemaName, in one
	// scan. Rows of tables the engine filtered out are simply skipped by
	// the caller, so implementations need not pre-filter.
	Columns(ctx context.Context, schemaName string) ([]ColumnRow, error)

	// PrimaryKeys returns the primary key columns of one table, with their
	// 1-based key sequence.
	PrimaryKeys(ctx context.Context, schemaName, table string) ([]KeyRow, error)

	// Indexes returns the index membership rows of one table, ordered by
	// index then ordinal position.
	Indexes(ctx context.Context, schemaName, table string) ([]IndexRow, error)
}
