// Package nuodb adapts the introspection engine to NuoDB.
//
// NuoDB's system tables are slow to read row by row, so instead of the
// standard per-table catalog path this package loads the whole schema's
// columns in one query and all index and key structure in another, caches
// both, and serves the engine's per-table reads from the caches. NuoDB also
// stores column types unreliably, so types are parsed from each column's
// declared type text rather than the stored type code, and autonumber start
// values are recovered from the name of the column's generator sequence.
package nuodb

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/schemata-db/schemata/internal/catalog"
	"github.com/schemata-db/schemata/internal/database"
	"github.com/schemata-db/schemata/internal/errs"
	"github.com/schemata-db/schemata/internal/logger"
	"github.com/schemata-db/schemata/internal/metadata"
	"github.com/schemata-db/schemata/internal/schema"
)

// NewProvider returns a schema provider for one NuoDB schema. The schema
// name is required; NuoDB metadata queries are always schema-scoped.
func NewProvider(db database.Queryer, schemaName string, log *logger.Logger) (*metadata.Provider, error) {
	if db == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "database handle must not be nil")
	}
	if schemaName == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "schema name is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	reader := &bulkReader{db: db, schemaName: schemaName, log: log}
	return metadata.NewProvider(&tableLister{db: db}, schemaName, &metadata.Options{
		Strategy: Strategy{},
		Logger:   log,
		Loaders: &metadata.Loaders{
			PrimaryKey: reader.primaryKey,
			Columns:    reader.tableColumns,
			Indexes:    reader.tableIndexes,
		},
	})
}

// Strategy adjusts the engine for NuoDB naming conventions.
type Strategy struct {
	metadata.Defaults
}

// ShouldIgnoreTable hides NuoDB temporary tables, which carry a TEMP_
// prefix.
func (Strategy) ShouldIgnoreTable(name string) bool {
	return strings.HasPrefix(strings.ToUpper(name), "TEMP_")
}

// IsPrimaryKeyIndex matches NuoDB's generated primary key indexes, named
// <table>..PRIMARY_KEY.
func (Strategy) IsPrimaryKeyIndex(name string) bool {
	return strings.HasSuffix(name, "..PRIMARY_KEY")
}

// --- discovery ---

const tableQuery = `
SELECT SCHEMA, TABLENAME, TYPE
FROM SYSTEM.TABLES
WHERE SCHEMA = ?
ORDER BY TABLENAME`

type tableLister struct {
	db database.Queryer
}

func (l *tableLister) Tables(ctx context.Context, schemaName string, types []string) ([]catalog.TableRow, error) {
	rows, err := l.db.Query(ctx, tableQuery, schemaName)
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
		if want[row.Type] {
			out = append(out, row)
		}
	}
	return out, rows.Err()
}

// --- bulk metadata caches ---

// bulkReader holds the whole-schema caches. Each cache is loaded by a
// single query on first use and committed only if the full scan succeeds.
type bulkReader struct {
	db         database.Queryer
	schemaName string
	log        *logger.Logger

	columns map[string][]schema.Column

	primaryKeys map[string][]string
	indexes     map[string][]schema.Index
	indexesRead bool
}

func (r *bulkReader) tableColumns(ctx context.Context, table string) ([]schema.Column, error) {
	if err := r.ensureColumns(ctx); err != nil {
		return nil, err
	}
	return r.columns[table], nil
}

func (r *bulkReader) primaryKey(ctx context.Context, table string) ([]string, error) {
	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return r.primaryKeys[table], nil
}

func (r *bulkReader) tableIndexes(ctx context.Context, table string) ([]schema.Index, error) {
	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return r.indexes[table], nil
}

const columnQuery = `
SELECT F.TABLENAME, F.FIELD, F.DECLARED_TYPE, F.GENERATOR_SEQUENCE, F.SCALE, F.PRECISION, F.FLAGS
FROM SYSTEM.FIELDS AS F, SYSTEM.TABLES AS T
WHERE T.TABLENAME = F.TABLENAME
  AND T.TYPE = 'TABLE'
  AND T.SCHEMA = F.SCHEMA
  AND F.SCHEMA = ?`

func (r *bulkReader) ensureColumns(ctx context.Context) error {
	if r.columns != nil {
		return nil
	}
	r.log.Infof("initialising column metadata cache for schema [%s]", r.schemaName)

	rows, err := r.db.Query(ctx, columnQuery, r.schemaName)
	if err != nil {
		return fmt.Errorf("reading column metadata for schema [%s]: %w", r.schemaName, err)
	}
	defer rows.Close()

	columns := make(map[string][]schema.Column)
	for rows.Next() {
		var (
			table, field        string
			declared, generator sql.NullString
			scale, precision    int
			flags               int
		)
		if err := rows.Scan(&table, &field, &declared, &generator, &scale, &precision, &flags); err != nil {
			return fmt.Errorf("reading column metadata for schema [%s]: %w", r.schemaName, err)
		}
		r.log.Debugf("fetched metadata for [%s.%s] type [%s]", table, field, declared.String)

		col, err := buildColumn(table, field, declared, generator, scale, precision, flags)
		if err != nil {
			return err
		}
		columns[table] = append(columns[table], col)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading column metadata for schema [%s]: %w", r.schemaName, err)
	}

	r.columns = columns
	return nil
}

func buildColumn(table, field string, declared, generator sql.NullString, scale, precision, flags int) (schema.Column, error) {
	if !declared.Valid {
		return schema.Column{}, errs.New(errs.ErrKindInconsistentMetadata,
			fmt.Sprintf("null declared type for [%s].[%s]", table, field))
	}
	dataType, err := dataTypeFromDeclaredType(declared.String)
	if err != nil {
		return schema.Column{}, fmt.Errorf("reading metadata for column [%s] on table [%s]: %w", field, table, err)
	}

	col := schema.Column{
		Name:         field,
		Type:         dataType,
		Width:        precision,
		Scale:        scale,
		Nullable:     flags == 0,
		DefaultValue: metadata.DefaultValue(field),
	}
	if seq := strings.TrimSpace(generator.String); seq != "" {
		start, err := autoNumberStart(seq)
		if err != nil {
			return schema.Column{}, err
		}
		col.AutoNumbered = true
		col.AutoNumberStart = start
	}
	return col, nil
}

// declaredKeyword extracts the leading type keyword from a declared type
// such as "character varying(255)" or "numeric (10,2)". NuoDB declares
// types in lower case; any width suffix is dropped.
var declaredKeyword = regexp.MustCompile(`^[a-z ]+`)

func dataTypeFromDeclaredType(declared string) (schema.DataType, error) {
	keyword := strings.TrimRight(declaredKeyword.FindString(declared), " ")
	switch strings.ToUpper(keyword) {
	case "INTEGER":
		return schema.DataTypeInteger, nil
	case "BIGINT":
		return schema.DataTypeBigInteger, nil
	case "NUMERIC", "DECIMAL":
		return schema.DataTypeDecimal, nil
	case "CHARACTER VARYING", "CHAR", "VARCHAR":
		return schema.DataTypeString, nil
	// Boolean columns are stored as smallint.
	case "SMALLINT", "BOOLEAN":
		return schema.DataTypeBoolean, nil
	case "DATE":
		return schema.DataTypeDate, nil
	case "BLOB":
		return schema.DataTypeBlob, nil
	case "CLOB":
		return schema.DataTypeClob, nil
	default:
		return 0, errs.New(errs.ErrKindUnknownType,
			fmt.Sprintf("unknown SQL data type [%s]", declared))
	}
}

// autoNumberStart recovers the autonumber start value, which NuoDB records
// as the trailing integer of the generator sequence name.
func autoNumberStart(generatorSequence string) (int, error) {
	start, err := strconv.Atoi(generatorSequence[strings.LastIndex(generatorSequence, "_")+1:])
	if err != nil {
		return 0, errs.New(errs.ErrKindInconsistentMetadata,
			fmt.Sprintf("cannot determine autonumber start from generator sequence [%s]", generatorSequence))
	}
	return start, nil
}

const indexQuery = `
SELECT I.INDEXNAME, I.TABLENAME, I.INDEXTYPE, FI.FIELD, FI.POSITION, I.FIELDCOUNT
FROM SYSTEM.INDEXES AS I, SYSTEM.INDEXFIELDS AS FI
WHERE I.INDEXNAME = FI.INDEXNAME
  AND I.TABLENAME = FI.TABLENAME
  AND I.SCHEMA = FI.SCHEMA
  AND I.SCHEMA = ?`

// indexGroup accumulates one index's columns. Rows may arrive in any order;
// each lands at its zero-based position in a slice sized by the row's field
// count.
type indexGroup struct {
	table   string
	name    string
	kind    int
	columns []string
	filled  int
}

// ensureIndexes loads the index and primary key caches together. An index
// type of 0 is a primary key and contributes the table's key column list;
// a type of 1 is a unique index; everything else is a plain index.
func (r *bulkReader) ensureIndexes(ctx context.Context) error {
	if r.indexesRead {
		return nil
	}
	r.log.Infof("initialising index metadata cache for schema [%s]", r.schemaName)

	rows, err := r.db.Query(ctx, indexQuery, r.schemaName)
	if err != nil {
		return fmt.Errorf("reading index metadata for schema [%s]: %w", r.schemaName, err)
	}
	defer rows.Close()

	type groupKey struct {
		table string
		name  string
		kind  int
	}
	groups := make(map[groupKey]*indexGroup)
	var order []groupKey

	for rows.Next() {
		var (
			name, table, field    string
			kind, position, count int
		)
		if err := rows.Scan(&name, &table, &kind, &field, &position, &count); err != nil {
			return fmt.Errorf("reading index metadata for schema [%s]: %w", r.schemaName, err)
		}
		r.log.Debugf("fetched index metadata for [%s], index name [%s] and column [%s] in position [%d]", table, name, field, position)

		key := groupKey{table: table, name: name, kind: kind}
		group, ok := groups[key]
		if !ok {
			group = &indexGroup{table: table, name: name, kind: kind, columns: make([]string, count)}
			groups[key] = group
			order = append(order, key)
		}
		if count != len(group.columns) {
			return errs.New(errs.ErrKindInconsistentMetadata,
				fmt.Sprintf("index [%s] on table [%s] reports conflicting field counts", name, table))
		}
		if position < 0 || position >= len(group.columns) {
			return errs.New(errs.ErrKindInconsistentMetadata,
				fmt.Sprintf("index [%s] on table [%s] has column [%s] at position [%d] of [%d]", name, table, field, position, len(group.columns)))
		}
		if group.columns[position] != "" {
			return errs.New(errs.ErrKindInconsistentMetadata,
				fmt.Sprintf("index [%s] on table [%s] has two columns at position [%d]", name, table, position))
		}
		group.columns[position] = field
		group.filled++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading index metadata for schema [%s]: %w", r.schemaName, err)
	}

	primaryKeys := make(map[string][]string)
	indexes := make(map[string][]schema.Index)
	for _, key := range order {
		group := groups[key]
		if group.filled != len(group.columns) {
			return errs.New(errs.ErrKindInconsistentMetadata,
				fmt.Sprintf("index [%s] on table [%s] is missing column positions", group.name, group.table))
		}
		if group.kind == 0 {
			primaryKeys[group.table] = append(primaryKeys[group.table], group.columns...)
			continue
		}
		indexes[group.table] = append(indexes[group.table], schema.Index{
			Name:    group.name,
			Unique:  group.kind == 1,
			Columns: group.columns,
		})
	}

	r.log.Debugf("caching index metadata for schema [%s]", r.schemaName)
	r.primaryKeys = primaryKeys
	r.indexes = indexes
	r.indexesRead = true
	return nil
}
