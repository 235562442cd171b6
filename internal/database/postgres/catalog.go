package postgres

import (
	"context"
	"strings"

	"github.com/schemata-db/schemata/internal/catalog"
	"github.com/schemata-db/schemata/internal/database"
	"github.com/schemata-db/schemata/internal/errs"
	"github.com/schemata-db/schemata/internal/logger"
	"github.com/schemata-db/schemata/internal/metadata"
)

// NewProvider returns a schema provider over one PostgreSQL schema. An
// empty schemaName selects "public".
func NewProvider(db database.Queryer, schemaName string, log *logger.Logger) (*metadata.Provider, error) {
	if db == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "database handle must not be nil")
	}
	if schemaName == "" {
		schemaName = "public"
	}
	return metadata.NewProvider(NewCatalog(db), schemaName, &metadata.Options{
		Strategy: Strategy{},
		Logger:   log,
	})
}

// Strategy adjusts the engine for PostgreSQL naming conventions.
type Strategy struct {
	metadata.Defaults
}

// IsPrimaryKeyIndex matches the constraint-backed index PostgreSQL creates
// for a primary key, named <table>_pkey.
func (Strategy) IsPrimaryKeyIndex(name string) bool {
	return strings.HasSuffix(name, "_pkey")
}

// Catalog reads PostgreSQL metadata from information_schema and the system
// catalogs.
type Catalog struct {
	db database.Queryer
}

func NewCatalog(db database.Queryer) *Catalog {
	return &Catalog{db: db}
}

const tablesQuery = `
	SELECT table_schema, table_name, table_type
	FROM information_schema.tables
	WHERE table_schema = $1
	ORDER BY table_name`

func (c *Catalog) Tables(ctx context.Context, schemaName string, types []string) ([]catalog.TableRow, error) {
	rows, err := c.db.Query(ctx, tablesQuery, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	want := make(map[string]bool, len(types))
	for _, t := range types {
		want[t] = true
	}

	var out []catalog.TableRow
	for rows.Next() {
		var row catalog.TableRow
		if err := rows.Scan(&row.Schema, &row.Name, &row.Type); err != nil {
			return nil, err
		}
		row.Type = canonicalTableType(row.Type)
		if want[row.Type] {
			out = append(out, row)
		}
	}
	return out, rows.Err()
}

// canonicalTableType maps information_schema table_type values onto the
// engine's vocabulary.
func canonicalTableType(tableType string) string {
	if tableType == "BASE TABLE" {
		return "TABLE"
	}
	return tableType
}

const columnsQuery = `
	SELECT c.table_name,
	       c.column_name,
	       c.data_type,
	       COALESCE(c.character_maximum_length, c.numeric_precision, 0),
	       COALESCE(c.numeric_scale, 0),
	       c.is_nullable = 'YES',
	       (c.is_identity = 'YES' OR COALESCE(c.column_default, '') LIKE 'nextval(%')
	FROM information_schema.columns c
	WHERE c.table_schema = $1
	ORDER BY c.table_name, c.ordinal_position`

func (c *Catalog) Columns(ctx context.Context, schemaName string) ([]catalog.ColumnRow, error) {
	rows, err := c.db.Query(ctx, columnsQuery, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.ColumnRow
	for rows.Next() {
		var row catalog.ColumnRow
		var dataType string
		if err := rows.Scan(&row.Table, &row.Name, &dataType, &row.Size, &row.DecimalDigits, &row.Nullable, &row.AutoIncrement); err != nil {
			return nil, err
		}
		row.TypeCode = typeCodeFor(dataType)
		row.TypeName = dataType
		out = append(out, row)
	}
	return out, rows.Err()
}

const primaryKeysQuery = `
	SELECT kcu.column_name, kcu.ordinal_position
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
	  ON tc.constraint_name = kcu.constraint_name
	 AND tc.table_schema    = kcu.table_schema
	WHERE tc.constraint_type = 'PRIMARY KEY'
	  AND tc.table_schema    = $1
	  AND tc.table_name      = $2
	ORDER BY kcu.ordinal_position`

func (c *Catalog) PrimaryKeys(ctx context.Context, schemaName, table string) ([]catalog.KeyRow, error) {
	rows, err := c.db.Query(ctx, primaryKeysQuery, schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.KeyRow
	for rows.Next() {
		var row catalog.KeyRow
		if err := rows.Scan(&row.Column, &row.Sequence); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Index membership lives in pg_index; information_schema has no view of
// non-constraint indexes.
const indexesQuery = `
	SELECT i.relname,
	       a.attname,
	       NOT ix.indisunique
	FROM pg_class t
	JOIN pg_namespace n ON n.oid = t.relnamespace
	JOIN pg_index ix    ON ix.indrelid = t.oid
	JOIN pg_class i     ON i.oid = ix.indexrelid
	JOIN unnest(ix.indkey) WITH ORDINALITY AS k(attnum, pos) ON TRUE
	JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
	WHERE n.nspname = $1
	  AND t.relname = $2
	ORDER BY i.relname, k.pos`

func (c *Catalog) Indexes(ctx context.Context, schemaName, table string) ([]catalog.IndexRow, error) {
	rows, err := c.db.Query(ctx, indexesQuery, schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.IndexRow
	for rows.Next() {
		var row catalog.IndexRow
		if err := rows.Scan(&row.Index, &row.Column, &row.NonUnique); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// typeCodeFor maps information_schema data_type names onto catalog type
// codes. Unmapped types surface as TypeOther so the engine can report them.
func typeCodeFor(dataType string) catalog.TypeCode {
	switch dataType {
	case "smallint":
		return catalog.TypeSmallInt
	case "integer":
		return catalog.TypeInteger
	case "bigint":
		return catalog.TypeBigInt
	case "numeric":
		return catalog.TypeNumeric
	case "decimal":
		return catalog.TypeDecimal
	case "real":
		return catalog.TypeReal
	case "double precision":
		return catalog.TypeDouble
	case "character":
		return catalog.TypeChar
	case "character varying", "text":
		return catalog.TypeVarChar
	case "boolean":
		return catalog.TypeBoolean
	case "date":
		return catalog.TypeDate
	case "bytea":
		return catalog.TypeBinary
	case "time without time zone", "time with time zone":
		return catalog.TypeTime
	case "timestamp without time zone", "timestamp with time zone":
		return catalog.TypeTimestamp
	default:
		return catalog.TypeOther
	}
}
