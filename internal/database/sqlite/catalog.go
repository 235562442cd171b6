package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/schemata-db/schemata/internal/catalog"
	"github.com/schemata-db/schemata/internal/database"
	"github.com/schemata-db/schemata/internal/errs"
	"github.com/schemata-db/schemata/internal/logger"
	"github.com/schemata-db/schemata/internal/metadata"
)

// NewProvider returns a schema provider over the connection's database.
// SQLite has no server-side schemas; schemaName only labels log and error
// messages and defaults to "main".
func NewProvider(db database.Queryer, schemaName string, log *logger.Logger) (*metadata.Provider, error) {
	if db == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "database handle must not be nil")
	}
	if schemaName == "" {
		schemaName = "main"
	}
	return metadata.NewProvider(NewCatalog(db), schemaName, &metadata.Options{
		Logger: log,
	})
}

// Catalog reads SQLite metadata from sqlite_master and the table pragmas.
// The schemaName argument of every method is ignored.
//
// SQLite does not report autoincrement through the pragmas, so no column is
// ever marked auto-increment here.
type Catalog struct {
	db database.Queryer
}

func NewCatalog(db database.Queryer) *Catalog {
	return &Catalog{db: db}
}

const tablesQuery = `
	SELECT name, type
	FROM sqlite_master
	WHERE type IN ('table', 'view')
	  AND name NOT LIKE 'sqlite_%'
	ORDER BY name`

func (c *Catalog) Tables(ctx context.Context, _ string, types []string) ([]catalog.TableRow, error) {
	rows, err := c.db.Query(ctx, tablesQuery)
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
		var name, entityType string
		if err := rows.Scan(&name, &entityType); err != nil {
			return nil, err
		}
		canonical := strings.ToUpper(entityType)
		if want[canonical] {
			out = append(out, catalog.TableRow{Schema: "main", Name: name, Type: canonical})
		}
	}
	return out, rows.Err()
}

func (c *Catalog) Columns(ctx context.Context, _ string) ([]catalog.ColumnRow, error) {
	tables, err := c.baseTables(ctx)
	if err != nil {
		return nil, err
	}

	var out []catalog.ColumnRow
	for _, table := range tables {
		rows, err := c.db.Query(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var (
				cid       int
				name      string
				declared  string
				notNull   int
				dfltValue sql.NullString
				pk        int
			)
			if err := rows.Scan(&cid, &name, &declared, &notNull, &dfltValue, &pk); err != nil {
				rows.Close()
				return nil, err
			}
			keyword, width, scale := parseDeclaredType(declared)
			out = append(out, catalog.ColumnRow{
				Table:         table,
				Name:          name,
				TypeCode:      typeCodeFor(keyword),
				TypeName:      declared,
				Size:          width,
				DecimalDigits: scale,
				Nullable:      notNull == 0,
			})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

func (c *Catalog) PrimaryKeys(ctx context.Context, _ string, table string) ([]catalog.KeyRow, error) {
	rows, err := c.db.Query(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.KeyRow
	for rows.Next() {
		var (
			cid       int
			name      string
			declared  string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &declared, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		// pk is the 1-based position of the column in the primary key.
		if pk > 0 {
			out = append(out, catalog.KeyRow{Column: name, Sequence: pk})
		}
	}
	return out, rows.Err()
}

// Indexes reads index_list and index_info. The index backing a primary key
// has origin "pk" and is dropped at source; index names in SQLite carry no
// reliable primary-key marker for the engine's name-based filter.
func (c *Catalog) Indexes(ctx context.Context, _ string, table string) ([]catalog.IndexRow, error) {
	type indexEntry struct {
		name   string
		unique bool
	}

	listRows, err := c.db.Query(ctx, fmt.Sprintf("PRAGMA index_list(%q)", table))
	if err != nil {
		return nil, err
	}
	var entries []indexEntry
	for listRows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := listRows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			listRows.Close()
			return nil, err
		}
		if origin == "pk" {
			continue
		}
		entries = append(entries, indexEntry{name: name, unique: unique == 1})
	}
	if err := listRows.Err(); err != nil {
		listRows.Close()
		return nil, err
	}
	listRows.Close()

	// index_list reports newest first; read oldest first so reconstruction
	// follows creation order.
	var out []catalog.IndexRow
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		infoRows, err := c.db.Query(ctx, fmt.Sprintf("PRAGMA index_info(%q)", entry.name))
		if err != nil {
			return nil, err
		}
		for infoRows.Next() {
			var (
				seqno int
				cid   int
				name  string
			)
			if err := infoRows.Scan(&seqno, &cid, &name); err != nil {
				infoRows.Close()
				return nil, err
			}
			out = append(out, catalog.IndexRow{
				Index:     entry.name,
				Column:    name,
				NonUnique: !entry.unique,
			})
		}
		if err := infoRows.Err(); err != nil {
			infoRows.Close()
			return nil, err
		}
		infoRows.Close()
	}
	return out, nil
}

const baseTablesQuery = `
	SELECT name
	FROM sqlite_master
	WHERE type = 'table'
	  AND name NOT LIKE 'sqlite_%'
	ORDER BY name`

func (c *Catalog) baseTables(ctx context.Context) ([]string, error) {
	rows, err := c.db.Query(ctx, baseTablesQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// parseDeclaredType splits a declared column type such as "NUMERIC(10,2)"
// into its keyword and dimensions.
func parseDeclaredType(declared string) (keyword string, width, scale int) {
	open := strings.IndexByte(declared, '(')
	if open < 0 {
		return strings.TrimSpace(declared), 0, 0
	}
	keyword = strings.TrimSpace(declared[:open])

	end := strings.IndexByte(declared, ')')
	if end < open {
		return keyword, 0, 0
	}
	dims := strings.Split(declared[open+1:end], ",")
	width, _ = strconv.Atoi(strings.TrimSpace(dims[0]))
	if len(dims) > 1 {
		scale, _ = strconv.Atoi(strings.TrimSpace(dims[1]))
	}
	return keyword, width, scale
}

// typeCodeFor maps declared type keywords onto catalog type codes. SQLite
// accepts nearly any declared type; a column declared without a type has
// BLOB affinity.
func typeCodeFor(keyword string) catalog.TypeCode {
	switch strings.ToUpper(keyword) {
	case "TINYINT":
		return catalog.TypeTinyInt
	case "SMALLINT":
		return catalog.TypeSmallInt
	case "INT", "INTEGER", "MEDIUMINT":
		return catalog.TypeInteger
	case "BIGINT":
		return catalog.TypeBigInt
	case "NUMERIC":
		return catalog.TypeNumeric
	case "DECIMAL":
		return catalog.TypeDecimal
	case "REAL":
		return catalog.TypeReal
	case "FLOAT":
		return catalog.TypeFloat
	case "DOUBLE", "DOUBLE PRECISION":
		return catalog.TypeDouble
	case "CHARACTER", "CHAR", "NCHAR":
		return catalog.TypeChar
	case "VARCHAR", "CHARACTER VARYING", "NVARCHAR", "VARYING CHARACTER":
		return catalog.TypeVarChar
	case "TEXT":
		return catalog.TypeLongVarChar
	case "CLOB":
		return catalog.TypeClob
	case "BLOB", "":
		return catalog.TypeBlob
	case "BOOLEAN", "BOOL":
		return catalog.TypeBoolean
	case "DATE":
		return catalog.TypeDate
	case "TIME":
		return catalog.TypeTime
	case "DATETIME", "TIMESTAMP":
		return catalog.TypeTimestamp
	default:
		return catalog.TypeOther
	}
}
