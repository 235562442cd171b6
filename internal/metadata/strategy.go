package metadata

import (
	"context"

	"github.com/schemata-db/schemata/internal/catalog"
	"github.com/schemata-db/schemata/internal/logger"
	"github.com/schemata-db/schemata/internal/schema"
)

// Strategy is the vendor capability set of the engine: everything a database
// is allowed to disagree about. Vendor packages embed Defaults and override
// only the methods their catalog needs.
type Strategy interface {
	// IsSystemTable reports whether a discovered table belongs to the
	// database itself rather than the application. System tables are
	// dropped during discovery.
	IsSystemTable(name string) bool

	// ShouldIgnoreTable reports whether a discovered table should be
	// hidden from the schema, typically vendor temporary tables.
	ShouldIgnoreTable(name string) bool

	// IsPrimaryKeyIndex reports whether an index name identifies the
	// index backing a table's primary key. Such indexes never appear in
	// Table.Indexes.
	IsPrimaryKeyIndex(name string) bool

	// TableTypes returns the catalog entity types scanned during table
	// discovery.
	TableTypes() []string

	// ViewTypes returns the catalog entity types scanned during view
	// discovery.
	ViewTypes() []string

	// ColumnType maps one catalog column row onto the normalized type.
	// Returning an error aborts the whole column load.
	ColumnType(row catalog.ColumnRow) (schema.DataType, error)

	// EnrichColumn adjusts a column after the standard fields are set,
	// e.g. to resolve autonumber metadata from vendor-specific sources.
	EnrichColumn(ctx context.Context, table string, col schema.Column, row catalog.ColumnRow) (schema.Column, error)
}

// Defaults is the standard Strategy: no system or ignored tables, the
// primary-key index is named exactly "PRIMARY", types come from the numeric
// code table, and a column the catalog flags auto-increment is autonumbered
// with an unknown start value.
type Defaults struct{}

func (Defaults) IsSystemTable(string) bool { return false }

func (Defaults) ShouldIgnoreTable(string) bool { return false }

func (Defaults) IsPrimaryKeyIndex(name string) bool { return name == "PRIMARY" }

func (Defaults) TableTypes() []string { return []string{"TABLE"} }

func (Defaults) ViewTypes() []string { return []string{"VIEW"} }

func (Defaults) ColumnType(row catalog.ColumnRow) (schema.DataType, error) {
	return DataTypeFromCode(row.TypeCode, row.TypeName)
}

func (Defaults) EnrichColumn(_ context.Context, _ string, col schema.Column, row catalog.ColumnRow) (schema.Column, error) {
	if row.AutoIncrement {
		col.AutoNumbered = true
		col.AutoNumberStart = schema.AutoNumberStartUnknown
	}
	return col, nil
}

// Loaders replace the engine's standard per-table catalog reads. A bulk
// strategy (see internal/nuodb) supplies all three and serves them from its
// own whole-schema caches; any loader left nil falls back to the standard
// catalog path.
//
// Columns returns the table's columns in raw catalog order, without primary
// key flags — the engine applies key flagging and ordering itself. Indexes
// returns reconstructed indexes; the engine still filters out primary-key
// and ignored index names afterwards.
type Loaders struct {
	PrimaryKey func(ctx context.Context, table string) ([]string, error)
	Columns    func(ctx context.Context, table string) ([]schema.Column, error)
	Indexes    func(ctx context.Context, table string) ([]schema.Index, error)
}

// Options configure a Provider. The zero value of every field selects a
// default: Defaults{} as the strategy, the standard catalog path for every
// loader, and a no-op logger.
type Options struct {
	Strategy Strategy
	Loaders  *Loaders
	Logger   *logger.Logger
}
