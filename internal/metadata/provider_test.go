package metadata

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemata-db/schemata/internal/catalog"
	"github.com/schemata-db/schemata/internal/errs"
	"github.com/schemata-db/schemata/internal/schema"
)

// fakeCatalog serves fixture rows and counts scans so tests can assert the
// one-shot cache behavior.
type fakeCatalog struct {
	tables  []catalog.TableRow
	columns []catalog.ColumnRow
	keys    map[string][]catalog.KeyRow
	indexes map[string][]catalog.IndexRow

	tableCalls  int
	columnCalls int
	failColumns bool
}

func (f *fakeCatalog) Tables(_ context.Context, _ string, types []string) ([]catalog.TableRow, error) {
	f.tableCalls++
	want := make(map[string]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var rows []catalog.TableRow
	for _, row := range f.tables {
		if want[row.Type] {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (f *fakeCatalog) Columns(_ context.Context, _ string) ([]catalog.ColumnRow, error) {
	f.columnCalls++
	if f.failColumns {
		return nil, errs.New(errs.ErrKindQueryFailed, "catalog offline")
	}
	return f.columns, nil
}

func (f *fakeCatalog) PrimaryKeys(_ context.Context, _ string, table string) ([]catalog.KeyRow, error) {
	return f.keys[table], nil
}

func (f *fakeCatalog) Indexes(_ context.Context, _ string, table string) ([]catalog.IndexRow, error) {
	return f.indexes[table], nil
}

// listerOnly implements just catalog.TableLister.
type listerOnly struct{}

func (listerOnly) Tables(context.Context, string, []string) ([]catalog.TableRow, error) {
	return nil, nil
}

type filteringStrategy struct {
	Defaults
}

func (filteringStrategy) IsSystemTable(name string) bool {
	return strings.HasPrefix(strings.ToUpper(name), "SYS_")
}

func (filteringStrategy) ShouldIgnoreTable(name string) bool {
	return strings.HasPrefix(strings.ToUpper(name), "TMP_")
}

func personCatalog() *fakeCatalog {
	return &fakeCatalog{
		tables: []catalog.TableRow{
			{Schema: "TEST", Name: "Person", Type: "TABLE"},
			{Schema: "TEST", Name: "ActivePeople", Type: "VIEW"},
		},
		columns: []catalog.ColumnRow{
			{Table: "Person", Name: "id", TypeCode: catalog.TypeInteger, TypeName: "integer", Size: 10, Nullable: false, AutoIncrement: true},
			{Table: "Person", Name: "name", TypeCode: catalog.TypeVarChar, TypeName: "varchar", Size: 50, Nullable: true},
			{Table: "Person", Name: "version", TypeCode: catalog.TypeInteger, TypeName: "integer", Size: 10, Nullable: false},
		},
		keys: map[string][]catalog.KeyRow{
			"Person": {{Column: "id", Sequence: 1}},
		},
		indexes: map[string][]catalog.IndexRow{},
	}
}

func newTestProvider(t *testing.T, cat catalog.TableLister, opts *Options) *Provider {
	t.Helper()
	p, err := NewProvider(cat, "TEST", opts)
	require.NoError(t, err)
	return p
}

func TestNewProvider_RequiresCatalog(t *testing.T) {
	_, err := NewProvider(nil, "TEST", nil)
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestNewProvider_ListerOnlyNeedsLoaders(t *testing.T) {
	_, err := NewProvider(listerOnly{}, "TEST", nil)
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))

	loaders := &Loaders{
		PrimaryKey: func(context.Context, string) ([]string, error) { return nil, nil },
		Columns:    func(context.Context, string) ([]schema.Column, error) { return nil, nil },
		Indexes:    func(context.Context, string) ([]schema.Index, error) { return nil, nil },
	}
	_, err = NewProvider(listerOnly{}, "TEST", &Options{Loaders: loaders})
	require.NoError(t, err)
}

func TestProvider_Discovery(t *testing.T) {
	cat := &fakeCatalog{
		tables: []catalog.TableRow{
			{Schema: "TEST", Name: "Person", Type: "TABLE"},
			{Schema: "TEST", Name: "SYS_CONFIG", Type: "TABLE"},
			{Schema: "TEST", Name: "Orders", Type: "TABLE"},
			{Schema: "TEST", Name: "TMP_LOAD", Type: "TABLE"},
		},
	}
	p := newTestProvider(t, cat, &Options{Strategy: filteringStrategy{}})
	ctx := context.Background()

	names, err := p.TableNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Person", "Orders"}, names)

	empty, err := p.IsEmptyDatabase(ctx)
	require.NoError(t, err)
	assert.False(t, empty)

	exists, err := p.TableExists(ctx, "SYS_CONFIG")
	require.NoError(t, err)
	assert.False(t, exists, "system tables are not part of the schema")
}

func TestProvider_EmptyDatabase(t *testing.T) {
	p := newTestProvider(t, &fakeCatalog{}, nil)

	empty, err := p.IsEmptyDatabase(context.Background())
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestProvider_CaseInsensitiveLookup(t *testing.T) {
	p := newTestProvider(t, personCatalog(), nil)
	ctx := context.Background()

	for _, name := range []string{"Person", "person", "PERSON", "pErSoN"} {
		exists, err := p.TableExists(ctx, name)
		require.NoError(t, err)
		assert.True(t, exists, name)

		table, err := p.GetTable(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, "Person", table.Name(), "lookup keeps the catalog's casing")
	}

	_, err := p.GetTable(ctx, "NoSuchTable")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.Contains(t, err.Error(), "[NoSuchTable]")
}

func TestProvider_UpperCaseCollision(t *testing.T) {
	cat := &fakeCatalog{
		tables: []catalog.TableRow{
			{Schema: "TEST", Name: "Person", Type: "TABLE"},
			{Schema: "TEST", Name: "PERSON", Type: "TABLE"},
		},
	}
	p := newTestProvider(t, cat, nil)

	_, err := p.TableNames(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsInconsistentMetadata(err))
}

func TestProvider_Columns(t *testing.T) {
	p := newTestProvider(t, personCatalog(), nil)

	table, err := p.GetTable(context.Background(), "person")
	require.NoError(t, err)

	columns, err := table.Columns(context.Background())
	require.NoError(t, err)
	require.Len(t, columns, 3)

	id := columns[0]
	assert.Equal(t, "id", id.Name)
	assert.Equal(t, schema.DataTypeInteger, id.Type)
	assert.True(t, id.PrimaryKey)
	assert.False(t, id.Nullable)
	assert.True(t, id.AutoNumbered)
	assert.Equal(t, schema.AutoNumberStartUnknown, id.AutoNumberStart)

	name := columns[1]
	assert.Equal(t, "name", name.Name)
	assert.Equal(t, schema.DataTypeString, name.Type)
	assert.Equal(t, 50, name.Width)
	assert.True(t, name.Nullable)
	assert.False(t, name.PrimaryKey)
	assert.Equal(t, "", name.DefaultValue)

	version := columns[2]
	assert.Equal(t, "version", version.Name)
	assert.Equal(t, "0", version.DefaultValue)
	assert.False(t, version.PrimaryKey)
}

func TestProvider_CompositeKeyOrder(t *testing.T) {
	cat := &fakeCatalog{
		tables: []catalog.TableRow{{Schema: "TEST", Name: "Assignment", Type: "TABLE"}},
		columns: []catalog.ColumnRow{
			{Table: "Assignment", Name: "person_id", TypeCode: catalog.TypeBigInt, TypeName: "bigint"},
			{Table: "Assignment", Name: "role", TypeCode: catalog.TypeVarChar, TypeName: "varchar", Size: 20},
			{Table: "Assignment", Name: "project_id", TypeCode: catalog.TypeBigInt, TypeName: "bigint"},
		},
		// Key rows arrive out of sequence order; project_id leads the key.
		keys: map[string][]catalog.KeyRow{
			"Assignment": {{Column: "person_id", Sequence: 2}, {Column: "project_id", Sequence: 1}},
		},
	}
	p := newTestProvider(t, cat, nil)

	table, err := p.GetTable(context.Background(), "Assignment")
	require.NoError(t, err)
	columns, err := table.Columns(context.Background())
	require.NoError(t, err)
	require.Len(t, columns, 3)

	// Key columns occupy the flagged positions in key-sequence order while
	// non-key columns stay where the catalog put them.
	assert.Equal(t, "project_id", columns[0].Name)
	assert.Equal(t, "role", columns[1].Name)
	assert.Equal(t, "person_id", columns[2].Name)
	assert.True(t, columns[0].PrimaryKey)
	assert.False(t, columns[1].PrimaryKey)
	assert.True(t, columns[2].PrimaryKey)
}

func TestProvider_PrimaryKeyNamingMissingColumn(t *testing.T) {
	cat := &fakeCatalog{
		tables: []catalog.TableRow{{Schema: "TEST", Name: "Broken", Type: "TABLE"}},
		columns: []catalog.ColumnRow{
			{Table: "Broken", Name: "a", TypeCode: catalog.TypeInteger, TypeName: "int"},
			{Table: "Broken", Name: "b", TypeCode: catalog.TypeInteger, TypeName: "int"},
		},
		keys: map[string][]catalog.KeyRow{
			"Broken": {{Column: "ghost", Sequence: 1}, {Column: "b", Sequence: 2}},
		},
	}
	p := newTestProvider(t, cat, nil)

	table, err := p.GetTable(context.Background(), "Broken")
	require.NoError(t, err)
	_, err = table.Columns(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsInconsistentMetadata(err))
	assert.Contains(t, err.Error(), "could not find primary key column [ghost]")
}

func TestProvider_PrimaryKeyEntryNeverConsumed(t *testing.T) {
	cat := &fakeCatalog{
		tables: []catalog.TableRow{{Schema: "TEST", Name: "Broken", Type: "TABLE"}},
		columns: []catalog.ColumnRow{
			{Table: "Broken", Name: "a", TypeCode: catalog.TypeInteger, TypeName: "int"},
		},
		keys: map[string][]catalog.KeyRow{
			"Broken": {{Column: "ghost", Sequence: 1}},
		},
	}
	p := newTestProvider(t, cat, nil)

	table, err := p.GetTable(context.Background(), "Broken")
	require.NoError(t, err)
	_, err = table.Columns(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsInconsistentMetadata(err))
}

func TestProvider_UnknownTypeAbortsColumnLoad(t *testing.T) {
	cat := personCatalog()
	cat.columns = append(cat.columns, catalog.ColumnRow{
		Table: "Person", Name: "payload", TypeCode: catalog.TypeOther, TypeName: "json",
	})
	p := newTestProvider(t, cat, nil)

	table, err := p.GetTable(context.Background(), "Person")
	require.NoError(t, err)
	_, err = table.Columns(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsUnknownType(err))
	assert.Contains(t, err.Error(), "[json]")
	assert.Contains(t, err.Error(), "[payload]")
}

func TestProvider_ColumnsOfFilteredTablesSkipped(t *testing.T) {
	cat := &fakeCatalog{
		tables: []catalog.TableRow{
			{Schema: "TEST", Name: "Person", Type: "TABLE"},
			{Schema: "TEST", Name: "TMP_LOAD", Type: "TABLE"},
		},
		columns: []catalog.ColumnRow{
			{Table: "Person", Name: "id", TypeCode: catalog.TypeInteger, TypeName: "int"},
			// Would fail the type mapping, but the table is ignored so the
			// row must never be typed.
			{Table: "TMP_LOAD", Name: "blob_of_mystery", TypeCode: catalog.TypeOther, TypeName: "mystery"},
		},
		keys: map[string][]catalog.KeyRow{"Person": {{Column: "id", Sequence: 1}}},
	}
	p := newTestProvider(t, cat, &Options{Strategy: filteringStrategy{}})

	table, err := p.GetTable(context.Background(), "Person")
	require.NoError(t, err)
	columns, err := table.Columns(context.Background())
	require.NoError(t, err)
	assert.Len(t, columns, 1)
}

func TestProvider_Indexes(t *testing.T) {
	cat := &fakeCatalog{
		tables: []catalog.TableRow{{Schema: "TEST", Name: "Orders", Type: "TABLE"}},
		indexes: map[string][]catalog.IndexRow{
			"Orders": {
				{Index: "", Column: ""}, // statistics row
				{Index: "Orders_IX1", Column: "code", NonUnique: false},
				{Index: "PRIMARY", Column: "id", NonUnique: false},
				{Index: "Orders_IX2", Column: "region", NonUnique: true},
				{Index: "Orders_IX2", Column: "placed_on", NonUnique: true},
				{Index: "Orders_PRF1", Column: "code", NonUnique: true},
			},
		},
	}
	p := newTestProvider(t, cat, nil)

	table, err := p.GetTable(context.Background(), "Orders")
	require.NoError(t, err)
	indexes, err := table.Indexes(context.Background())
	require.NoError(t, err)
	require.Len(t, indexes, 2)

	assert.Equal(t, "Orders_IX1", indexes[0].Name)
	assert.True(t, indexes[0].Unique)
	assert.Equal(t, []string{"code"}, indexes[0].Columns)

	assert.Equal(t, "Orders_IX2", indexes[1].Name)
	assert.False(t, indexes[1].Unique)
	assert.Equal(t, []string{"region", "placed_on"}, indexes[1].Columns)
}

func TestProvider_IndexLoaderOutputStillFiltered(t *testing.T) {
	loaders := &Loaders{
		PrimaryKey: func(context.Context, string) ([]string, error) { return nil, nil },
		Columns:    func(context.Context, string) ([]schema.Column, error) { return nil, nil },
		Indexes: func(context.Context, string) ([]schema.Index, error) {
			return []schema.Index{
				{Name: "PRIMARY", Columns: []string{"id"}},
				{Name: "orders_prf7", Columns: []string{"code"}},
				{Name: "Orders_IX1", Unique: true, Columns: []string{"code"}},
			}, nil
		},
	}
	cat := &fakeCatalog{tables: []catalog.TableRow{{Schema: "TEST", Name: "Orders", Type: "TABLE"}}}
	p := newTestProvider(t, cat, &Options{Loaders: loaders})

	table, err := p.GetTable(context.Background(), "Orders")
	require.NoError(t, err)
	indexes, err := table.Indexes(context.Background())
	require.NoError(t, err)
	require.Len(t, indexes, 1)
	assert.Equal(t, "Orders_IX1", indexes[0].Name)
}

func TestProvider_Views(t *testing.T) {
	p := newTestProvider(t, personCatalog(), nil)
	ctx := context.Background()

	names, err := p.ViewNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ActivePeople"}, names)

	exists, err := p.ViewExists(ctx, "activepeople")
	require.NoError(t, err)
	assert.True(t, exists)

	view, err := p.GetView(ctx, "ACTIVEPEOPLE")
	require.NoError(t, err)
	assert.Equal(t, "ActivePeople", view.Name())

	_, err = view.Definition()
	assert.ErrorIs(t, err, schema.ErrViewFromDatabase)

	_, err = p.GetView(ctx, "NoSuchView")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestProvider_DiscoveryScansOnce(t *testing.T) {
	cat := personCatalog()
	p := newTestProvider(t, cat, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := p.TableNames(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, cat.tableCalls)

	_, err := p.ViewNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.tableCalls, "views scan separately, once")
}

func TestProvider_ColumnCacheSharedAcrossFacades(t *testing.T) {
	cat := personCatalog()
	p := newTestProvider(t, cat, nil)
	ctx := context.Background()

	first, err := p.GetTable(ctx, "Person")
	require.NoError(t, err)
	_, err = first.Columns(ctx)
	require.NoError(t, err)

	second, err := p.GetTable(ctx, "Person")
	require.NoError(t, err)
	_, err = second.Columns(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, cat.columnCalls, "whole-schema column scan runs once per provider")
}

func TestProvider_FailedScanIsNotCached(t *testing.T) {
	cat := personCatalog()
	cat.failColumns = true
	p := newTestProvider(t, cat, nil)
	ctx := context.Background()

	table, err := p.GetTable(ctx, "Person")
	require.NoError(t, err)

	_, err = table.Columns(ctx)
	require.Error(t, err)
	assert.True(t, errs.IsQueryFailed(err))

	cat.failColumns = false
	columns, err := table.Columns(ctx)
	require.NoError(t, err)
	assert.Len(t, columns, 3)
	assert.Equal(t, 2, cat.columnCalls)
}
