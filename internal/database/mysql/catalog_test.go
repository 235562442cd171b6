package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemata-db/schemata/internal/catalog"
	"github.com/schemata-db/schemata/internal/database"
	"github.com/schemata-db/schemata/internal/errs"
)

type fakeQueryer struct {
	rows [][]any
}

func (f *fakeQueryer) Query(context.Context, string, ...any) (database.Rows, error) {
	return &fakeRows{rows: f.rows}, nil
}

func (f *fakeQueryer) QueryRow(context.Context, string, ...any) (database.Row, error) {
	return nil, fmt.Errorf("unexpected single-row query")
}

type fakeRows struct {
	rows [][]any
	at   int
}

func (r *fakeRows) Next() bool {
	r.at++
	return r.at <= len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.at-1]
	for i, src := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = src.(string)
		case *int:
			*d = src.(int)
		case *bool:
			*d = src.(bool)
		default:
			return fmt.Errorf("unsupported scan destination %T", dest[i])
		}
	}
	return nil
}

func (r *fakeRows) Columns() ([]string, error) { return nil, nil }
func (r *fakeRows) Close()                     {}
func (r *fakeRows) Err() error                 { return nil }

func TestNewProvider_RequiresDB(t *testing.T) {
	_, err := NewProvider(nil, "", nil)
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestCatalog_Tables(t *testing.T) {
	db := &fakeQueryer{rows: [][]any{
		{"shop", "orders", "BASE TABLE"},
		{"shop", "recent_orders", "VIEW"},
	}}
	c := NewCatalog(db)

	tables, err := c.Tables(context.Background(), "shop", []string{"TABLE"})
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "orders", tables[0].Name)
	assert.Equal(t, "TABLE", tables[0].Type)
}

func TestCatalog_Indexes(t *testing.T) {
	db := &fakeQueryer{rows: [][]any{
		{"PRIMARY", "id", false},
		{"orders_code_uq", "code", false},
		{"orders_region_ix", "region", true},
		{"orders_region_ix", "placed_on", true},
	}}
	c := NewCatalog(db)

	rows, err := c.Indexes(context.Background(), "shop", "orders")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "PRIMARY", rows[0].Index)
	assert.False(t, rows[1].NonUnique)
	assert.True(t, rows[2].NonUnique)
}

func TestTypeCodeFor(t *testing.T) {
	tests := []struct {
		dataType string
		want     catalog.TypeCode
	}{
		{"tinyint", catalog.TypeTinyInt},
		{"smallint", catalog.TypeSmallInt},
		{"mediumint", catalog.TypeInteger},
		{"int", catalog.TypeInteger},
		{"bigint", catalog.TypeBigInt},
		{"decimal", catalog.TypeDecimal},
		{"float", catalog.TypeReal},
		{"double", catalog.TypeDouble},
		{"char", catalog.TypeChar},
		{"varchar", catalog.TypeVarChar},
		{"text", catalog.TypeLongVarChar},
		{"longtext", catalog.TypeLongVarChar},
		{"binary", catalog.TypeBinary},
		{"varbinary", catalog.TypeVarBinary},
		{"blob", catalog.TypeBlob},
		{"date", catalog.TypeDate},
		{"datetime", catalog.TypeTimestamp},
		{"bit", catalog.TypeBit},
		{"json", catalog.TypeOther},
		{"enum", catalog.TypeOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, typeCodeFor(tt.dataType), tt.dataType)
	}
}

func TestMapError(t *testing.T) {
	assert.Nil(t, mapError(nil, "noop"))

	err := mapError(context.DeadlineExceeded, "query timed out")
	assert.True(t, errs.IsTimeout(err))

	err = mapError(sql.ErrNoRows, "row missing")
	assert.True(t, errs.IsNotFound(err))

	err = mapError(&mysql.MySQLError{Number: 1045, Message: "access denied"}, "connect failed")
	assert.True(t, errs.IsPermissionDenied(err))

	err = mapError(&mysql.MySQLError{Number: 1146, Message: "table missing"}, "query failed")
	assert.True(t, errs.IsQueryFailed(err))
	assert.Contains(t, err.Error(), "table missing")

	err = mapError(&mysql.MySQLError{Number: 1049, Message: "unknown database"}, "connect failed")
	assert.True(t, errs.IsConnectionFailed(err))
}

func TestClassifyMySQLCode(t *testing.T) {
	assert.Equal(t, errs.ErrKindPermissionDenied, classifyMySQLCode(1044))
	assert.Equal(t, errs.ErrKindConnectionFailed, classifyMySQLCode(1040))
	assert.Equal(t, errs.ErrKindQueryFailed, classifyMySQLCode(1064))
	assert.Equal(t, errs.ErrKindQueryFailed, classifyMySQLCode(9999))
}
