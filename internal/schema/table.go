package schema

import "context"

// Table is a lightweight facade over one introspected table. Columns and
// indexes are resolved on first access and cached for the facade's lifetime.
//
// Invariants upheld by the providers:
//   - columns flagged PrimaryKey appear in ascending key-sequence order;
//   - Indexes never contains the index backing the primary key.
type Table interface {
	// Name returns the table name with its catalog-original casing.
	Name() string

	// Columns returns the table's columns in catalog order.
	Columns(ctx context.Context) ([]Column, error)

	// Indexes returns the table's secondary indexes.
	Indexes(ctx context.Context) ([]Index, error)

	// Temporary reports whether this is a temporary table. Introspected
	// tables are never temporary; vendor temp tables are filtered out
	// during discovery.
	Temporary() bool
}
