package mysql

import (
	"context"

	"github.com/schemata-db/schemata/internal/catalog"
	"github.com/schemata-db/schemata/internal/database"
	"github.com/schemata-db/schemata/internal/errs"
	"github.com/schemata-db/schemata/internal/logger"
	"github.com/schemata-db/schemata/internal/metadata"
)

// NewProvider returns a schema provider over one MySQL database. An empty
// schemaName selects the connection's default database. The engine defaults
// already match MySQL's conventions: the primary key index is literally
// named PRIMARY.
func NewProvider(db database.Queryer, schemaName string, log *logger.Logger) (*metadata.Provider, error) {
	if db == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "database handle must not be nil")
	}
	return metadata.NewProvider(NewCatalog(db), schemaName, &metadata.Options{
		Logger: log,
	})
}

// Catalog reads MySQL metadata from information_schema. Every query scopes
// the schema with COALESCE(NULLIF(?, ''), DATABASE()) so an empty schema
// name falls back to the connected database.
type Catalog struct {
	db database.Queryer
}

func NewCatalog(db database.Queryer) *Catalog {
	return &Catalog{db: db}
}

const tablesQuery = `
	SELECT table_schema, table_name, table_type
	FROM information_schema.tables
	WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
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
	       c.extra LIKE '%auto_increment%'
	FROM information_schema.columns c
	WHERE c.table_schema = COALESCE(NULLIF(?, ''), DATABASE())
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
	FROM information_schema.key_column_usage kcu
	WHERE kcu.table_schema    = COALESCE(NULLIF(?, ''), DATABASE())
	  AND kcu.table_name      = ?
	  AND kcu.constraint_name = 'PRIMARY'
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

const indexesQuery = `
	SELECT s.index_name, s.column_name, s.non_unique
	FROM information_schema.statistics s
	WHERE s.table_schema = COALESCE(NULLIF(?, ''), DATABASE())
	  AND s.table_name   = ?
	ORDER BY s.index_name, s.seq_in_index`

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
// codes. MySQL reports booleans as tinyint, which the normalized model
// treats as an integer.
func typeCodeFor(dataType string) catalog.TypeCode {
	switch dataType {
	case "tinyint":
		return catalog.TypeTinyInt
	case "smallint":
		return catalog.TypeSmallInt
	case "mediumint", "int":
		return catalog.TypeInteger
	case "bigint":
		return catalog.TypeBigInt
	case "decimal":
		return catalog.TypeDecimal
	case "numeric":
		return catalog.TypeNumeric
	case "float":
		return catalog.TypeReal
	case "double":
		return catalog.TypeDouble
	case "char":
		return catalog.TypeChar
	case "varchar":
		return catalog.TypeVarChar
	case "tinytext", "text", "mediumtext", "longtext":
		return catalog.TypeLongVarChar
	case "binary":
		return catalog.TypeBinary
	case "varbinary":
		return catalog.TypeVarBinary
	case "tinyblob", "blob", "mediumblob", "longblob":
		return catalog.TypeBlob
	case "date":
		return catalog.TypeDate
	case "time":
		return catalog.TypeTime
	case "datetime", "timestamp":
		return catalog.TypeTimestamp
	case "bit":
		return catalog.TypeBit
	default:
		return catalog.TypeOther
	}
}
