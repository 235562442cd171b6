// Package metadata implements the database-agnostic half of schema
// introspection: a Provider that satisfies schema.Schema by reading a
// catalog.Catalog and normalizing what it finds.
//
// Everything is loaded lazily and cached for the life of the Provider. The
// first call that needs the table list scans the catalog once; the first
// call that needs any column scans the whole schema's columns once; each
// table's indexes are read on first use. Caches are committed only when a
// scan fully succeeds, so a failed call leaves the Provider ready to retry.
// A Provider is a point-in-time snapshot: DDL applied after a cache is
// populated is never observed. Discovery is not safe for concurrent first
// use; perform the first reads from a single goroutine, after which the
// cached state is read-only.
//
// Vendor behavior is injected through a Strategy, and databases whose
// catalog reads are too slow row-by-row can replace the per-table reads
// wholesale through Loaders (see internal/nuodb).
package metadata

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/schemata-db/schemata/internal/catalog"
	"github.com/schemata-db/schemata/internal/errs"
	"github.com/schemata-db/schemata/internal/logger"
	"github.com/schemata-db/schemata/internal/schema"
)

// Indexes with a _PRF<n> suffix are performance tuning artifacts managed
// outside the schema and are hidden from metadata on every database.
var tuningIndexPattern = regexp.MustCompile(`_PRF\d+$`)

// Provider implements schema.Schema over a catalog.
type Provider struct {
	cat        catalog.TableLister
	full       catalog.Catalog // nil when all loaders are supplied
	schemaName string
	strategy   Strategy
	loaders    Loaders
	log        *logger.Logger

	// Lazily populated, at most once each. nil means not yet loaded;
	// loads assign only on full success.
	tableIdx  *nameIndex
	viewIdx   *nameIndex
	columnMap map[string][]schema.Column
}

// NewProvider returns a Provider over the named schema. cat must implement
// the full catalog.Catalog surface unless opts supplies a replacement loader
// for every per-table read.
func NewProvider(cat catalog.TableLister, schemaName string, opts *Options) (*Provider, error) {
	if cat == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "catalog must not be nil")
	}

	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Strategy == nil {
		o.Strategy = Defaults{}
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	var ld Loaders
	if o.Loaders != nil {
		ld = *o.Loaders
	}

	p := &Provider{
		cat:        cat,
		schemaName: schemaName,
		strategy:   o.Strategy,
		loaders:    ld,
		log:        o.Logger,
	}
	if ld.PrimaryKey == nil || ld.Columns == nil || ld.Indexes == nil {
		full, ok := cat.(catalog.Catalog)
		if !ok {
			return nil, errs.New(errs.ErrKindInvalidInput,
				"catalog only lists tables; column, key and index loaders must all be supplied")
		}
		p.full = full
	}
	return p, nil
}

// SchemaName returns the schema this Provider reads.
func (p *Provider) SchemaName() string { return p.schemaName }

// --- schema.Schema: tables ---

func (p *Provider) IsEmptyDatabase(ctx context.Context) (bool, error) {
	idx, err := p.tableIndex(ctx)
	if err != nil {
		return false, err
	}
	return len(idx.names) == 0, nil
}

func (p *Provider) TableExists(ctx context.Context, name string) (bool, error) {
	idx, err := p.tableIndex(ctx)
	if err != nil {
		return false, err
	}
	_, ok := idx.canonical(name)
	return ok, nil
}

func (p *Provider) TableNames(ctx context.Context) ([]string, error) {
	p.log.Debugf("listing tables in schema [%s]", p.schemaName)
	idx, err := p.tableIndex(ctx)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), idx.names...), nil
}

func (p *Provider) Tables(ctx context.Context) ([]schema.Table, error) {
	idx, err := p.tableIndex(ctx)
	if err != nil {
		return nil, err
	}
	tables := make([]schema.Table, len(idx.names))
	for i, name := range idx.names {
		tables[i] = &lazyTable{provider: p, name: name}
	}
	return tables, nil
}

func (p *Provider) GetTable(ctx context.Context, name string) (schema.Table, error) {
	idx, err := p.tableIndex(ctx)
	if err != nil {
		return nil, err
	}
	canon, ok := idx.canonical(name)
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound,
			fmt.Sprintf("table [%s] not found in schema [%s]", name, p.schemaName))
	}
	return &lazyTable{provider: p, name: canon}, nil
}

// --- schema.Schema: views ---

func (p *Provider) ViewExists(ctx context.Context, name string) (bool, error) {
	idx, err := p.viewIndex(ctx)
	if err != nil {
		return false, err
	}
	_, ok := idx.canonical(name)
	return ok, nil
}

func (p *Provider) ViewNames(ctx context.Context) ([]string, error) {
	idx, err := p.viewIndex(ctx)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), idx.names...), nil
}

func (p *Provider) Views(ctx context.Context) ([]schema.View, error) {
	idx, err := p.viewIndex(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]schema.View, len(idx.names))
	for i, name := range idx.names {
		views[i] = schema.DatabaseView(name)
	}
	return views, nil
}

func (p *Provider) GetView(ctx context.Context, name string) (schema.View, error) {
	idx, err := p.viewIndex(ctx)
	if err != nil {
		return nil, err
	}
	canon, ok := idx.canonical(name)
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound,
			fmt.Sprintf("view [%s] not found in schema [%s]", name, p.schemaName))
	}
	return schema.DatabaseView(canon), nil
}

// --- discovery ---

func (p *Provider) tableIndex(ctx context.Context) (*nameIndex, error) {
	if p.tableIdx != nil {
		return p.tableIdx, nil
	}

	rows, err := p.cat.Tables(ctx, p.schemaName, p.strategy.TableTypes())
	if err != nil {
		return nil, fmt.Errorf("reading table metadata for schema [%s]: %w", p.schemaName, err)
	}

	idx := newNameIndex()
	for _, row := range rows {
		system := p.strategy.IsSystemTable(row.Name)
		ignored := p.strategy.ShouldIgnoreTable(row.Name)

		note := ""
		if system {
			note += " - system table"
		}
		if ignored {
			note += " - ignored"
		}
		p.log.Debugf("found table [%s] of type [%s] in schema [%s]%s", row.Name, row.Type, row.Schema, note)

		if system || ignored {
			continue
		}
		if err := idx.add(row.Name); err != nil {
			return nil, err
		}
	}

	p.tableIdx = idx
	return idx, nil
}

func (p *Provider) viewIndex(ctx context.Context) (*nameIndex, error) {
	if p.viewIdx != nil {
		return p.viewIdx, nil
	}

	rows, err := p.cat.Tables(ctx, p.schemaName, p.strategy.ViewTypes())
	if err != nil {
		return nil, fmt.Errorf("reading view metadata for schema [%s]: %w", p.schemaName, err)
	}

	idx := newNameIndex()
	for _, row := range rows {
		p.log.Debugf("found view [%s] in schema [%s]", row.Name, row.Schema)
		if err := idx.add(row.Name); err != nil {
			return nil, err
		}
	}

	p.viewIdx = idx
	return idx, nil
}

// --- columns ---

// schemaColumns loads every table's columns in one catalog scan, keyed by
// canonical table name. Rows for tables that discovery filtered out are
// skipped; a row that cannot be typed aborts the load and nothing is cached.
func (p *Provider) schemaColumns(ctx context.Context) (map[string][]schema.Column, error) {
	if p.columnMap != nil {
		return p.columnMap, nil
	}

	idx, err := p.tableIndex(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := p.full.Columns(ctx, p.schemaName)
	if err != nil {
		return nil, fmt.Errorf("reading column metadata for schema [%s]: %w", p.schemaName, err)
	}

	columns := make(map[string][]schema.Column, len(idx.names))
	for _, row := range rows {
		canon, ok := idx.canonical(row.Table)
		if !ok {
			continue
		}
		col, err := p.buildColumn(ctx, row)
		if err != nil {
			return nil, fmt.Errorf("reading metadata for column [%s] on table [%s]: %w", row.Name, row.Table, err)
		}
		columns[canon] = append(columns[canon], col)
	}

	p.columnMap = columns
	return columns, nil
}

func (p *Provider) buildColumn(ctx context.Context, row catalog.ColumnRow) (schema.Column, error) {
	dataType, err := p.strategy.ColumnType(row)
	if err != nil {
		return schema.Column{}, err
	}

	col := schema.Column{
		Name:         row.Name,
		Type:         dataType,
		Width:        row.Size,
		Scale:        row.DecimalDigits,
		Nullable:     row.Nullable,
		DefaultValue: DefaultValue(row.Name),
	}
	return p.strategy.EnrichColumn(ctx, row.Table, col, row)
}

// readColumns produces the final column list for one table: raw columns in
// catalog order, primary key members flagged, then the flagged positions
// rewritten so the key columns appear in key-sequence order.
func (p *Provider) readColumns(ctx context.Context, table string) ([]schema.Column, error) {
	primaryKey, err := p.readPrimaryKey(ctx, table)
	if err != nil {
		return nil, err
	}

	raw, err := p.rawColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	inKey := make(map[string]bool, len(primaryKey))
	for _, name := range primaryKey {
		inKey[name] = true
	}
	flagged := make([]schema.Column, len(raw))
	for i, col := range raw {
		col.PrimaryKey = inKey[col.Name]
		flagged[i] = col
	}

	return applyPrimaryKeyOrder(primaryKey, flagged)
}

// rawColumns returns the table's columns in catalog order, before key
// flagging, from the replacement loader or the whole-schema cache.
func (p *Provider) rawColumns(ctx context.Context, table string) ([]schema.Column, error) {
	if p.loaders.Columns != nil {
		raw, err := p.loaders.Columns(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("reading columns for table [%s]: %w", table, err)
		}
		return raw, nil
	}
	byTable, err := p.schemaColumns(ctx)
	if err != nil {
		return nil, err
	}
	return byTable[table], nil
}

// applyPrimaryKeyOrder walks the columns in catalog order and rewrites each
// primary-key position with the column named by the next unconsumed entry of
// the key sequence. Column order is preserved; only which key column sits at
// which flagged position changes. A key entry naming no column is an
// inconsistency in the catalog and fails the load.
func applyPrimaryKeyOrder(primaryKey []string, columns []schema.Column) ([]schema.Column, error) {
	byName := make(map[string]schema.Column, len(columns))
	for _, col := range columns {
		if _, dup := byName[col.Name]; dup {
			return nil, errs.New(errs.ErrKindInconsistentMetadata,
				fmt.Sprintf("duplicate column [%s]", col.Name))
		}
		byName[col.Name] = col
	}

	ordered := make([]schema.Column, 0, len(columns))
	next := 0
	for _, col := range columns {
		if !col.PrimaryKey {
			ordered = append(ordered, col)
			continue
		}
		keyColumn, ok := byName[primaryKey[next]]
		if !ok {
			return nil, errs.New(errs.ErrKindInconsistentMetadata,
				fmt.Sprintf("could not find primary key column [%s]", primaryKey[next]))
		}
		ordered = append(ordered, keyColumn)
		next++
	}
	if next != len(primaryKey) {
		return nil, errs.New(errs.ErrKindInconsistentMetadata,
			fmt.Sprintf("primary key columns %v not all present in table", primaryKey[next:]))
	}
	return ordered, nil
}

// readPrimaryKey returns the key column names in ascending key-sequence
// order.
func (p *Provider) readPrimaryKey(ctx context.Context, table string) ([]string, error) {
	if p.loaders.PrimaryKey != nil {
		names, err := p.loaders.PrimaryKey(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("reading primary key for table [%s]: %w", table, err)
		}
		return names, nil
	}

	rows, err := p.full.PrimaryKeys(ctx, p.schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("reading primary key for table [%s]: %w", table, err)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Sequence < rows[j].Sequence })
	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = row.Column
	}
	return names, nil
}

// --- indexes ---

// readIndexes returns the table's indexes with the primary-key index and
// tuning indexes removed. Filtering runs here so that it applies to replaced
// index loaders as well as the standard catalog path.
func (p *Provider) readIndexes(ctx context.Context, table string) ([]schema.Index, error) {
	var raw []schema.Index
	var err error
	if p.loaders.Indexes != nil {
		raw, err = p.loaders.Indexes(ctx, table)
	} else {
		raw, err = p.standardIndexes(ctx, table)
	}
	if err != nil {
		return nil, fmt.Errorf("reading indexes for table [%s]: %w", table, err)
	}

	kept := make([]schema.Index, 0, len(raw))
	for _, index := range raw {
		if p.strategy.IsPrimaryKeyIndex(index.Name) {
			continue
		}
		if tuningIndexPattern.MatchString(strings.ToUpper(index.Name)) {
			p.log.Debugf("ignoring index [%s] on table [%s]", index.Name, table)
			continue
		}
		kept = append(kept, index)
	}
	return kept, nil
}

// standardIndexes groups catalog index rows into indexes, in order of first
// appearance. Uniqueness is taken from an index's first row; rows without an
// index name are statistics entries and carry no index membership.
func (p *Provider) standardIndexes(ctx context.Context, table string) ([]schema.Index, error) {
	rows, err := p.full.Indexes(ctx, p.schemaName, table)
	if err != nil {
		return nil, err
	}

	indexes := make([]schema.Index, 0)
	position := make(map[string]int)
	for _, row := range rows {
		if row.Index == "" {
			continue
		}
		at, seen := position[row.Index]
		if !seen {
			position[row.Index] = len(indexes)
			indexes = append(indexes, schema.Index{
				Name:    row.Index,
				Unique:  !row.NonUnique,
				Columns: []string{row.Column},
			})
			continue
		}
		indexes[at].Columns = append(indexes[at].Columns, row.Column)
	}
	return indexes, nil
}

// --- name index ---

// nameIndex holds discovered entity names in catalog order and resolves
// lookups case-insensitively while preserving the catalog's casing.
type nameIndex struct {
	names []string
	upper map[string]string // upper-cased name -> name as discovered
}

func newNameIndex() *nameIndex {
	return &nameIndex{upper: make(map[string]string)}
}

func (n *nameIndex) add(name string) error {
	key := strings.ToUpper(name)
	if existing, ok := n.upper[key]; ok {
		return errs.New(errs.ErrKindInconsistentMetadata,
			fmt.Sprintf("name [%s] collides with [%s] when upper-cased", name, existing))
	}
	n.upper[key] = name
	n.names = append(n.names, name)
	return nil
}

// canonical resolves any casing of a discovered name to the casing the
// catalog reported.
func (n *nameIndex) canonical(name string) (string, bool) {
	canon, ok := n.upper[strings.ToUpper(name)]
	return canon, ok
}

// --- table facade ---

// lazyTable defers column and index reads until first use and then caches
// them for its own lifetime. Facades for the same table do not share these
// caches, but the expensive whole-schema scans behind them are shared
// through the Provider.
type lazyTable struct {
	provider *Provider
	name     string
	columns  []schema.Column
	indexes  []schema.Index
}

func (t *lazyTable) Name() string { return t.name }

func (t *lazyTable) Temporary() bool { return false }

func (t *lazyTable) Columns(ctx context.Context) ([]schema.Column, error) {
	if t.columns != nil {
		return t.columns, nil
	}
	columns, err := t.provider.readColumns(ctx, t.name)
	if err != nil {
		return nil, err
	}
	t.columns = columns
	return columns, nil
}

func (t *lazyTable) Indexes(ctx context.Context) ([]schema.Index, error) {
	if t.indexes != nil {
		return t.indexes, nil
	}
	indexes, err := t.provider.readIndexes(ctx, t.name)
	if err != nil {
		return nil, err
	}
	t.indexes = indexes
	return indexes, nil
}
