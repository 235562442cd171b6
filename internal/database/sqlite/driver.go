// Package sqlite implements database.DB and catalog.Catalog for SQLite,
// backed by database/sql and the pure Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/schemata-db/schemata/internal/database"
	"github.com/schemata-db/schemata/internal/errs"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Driver is a SQLite implementation of database.DB backed by database/sql.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	db *sql.DB
}

// New opens a SQLite database using the provided Config and returns a
// Driver. DSNs may carry a sqlite:// or file: prefix. In-memory databases
// are pinned to a single connection; otherwise each pooled connection would
// open its own empty store.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	dsn := normalizeDSN(cfg.DSN)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(int(cfg.MaxConns))
		db.SetMaxIdleConns(int(cfg.MinConns))
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
		db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
	}

	d := &Driver{db: db}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := d.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return d, nil
}

// normalizeDSN strips common SQLite URI prefixes.
func normalizeDSN(dsn string) string {
	if strings.HasPrefix(dsn, "sqlite://") {
		return strings.TrimPrefix(dsn, "sqlite://")
	}
	return dsn
}

// --- database.DB implementation ---

func (d *Driver) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (d *Driver) Close() {
	_ = d.db.Close()
}

func (d *Driver) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	rows, err := d.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &sqliteRows{rows: rows}, nil
}

func (d *Driver) QueryRow(ctx context.Context, query string, args ...any) (database.Row, error) {
	row := d.db.QueryRowContext(ctx, query, args...)
	return &sqliteRow{row: row}, nil
}

// Exec executes a statement and returns the number of rows affected. It is
// not part of database.DB; callers that create fixtures or demo schemas use
// the concrete Driver.
func (d *Driver) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	return n, nil
}

// --- sql.DB type wrappers ---

type sqliteRows struct {
	rows *sql.Rows
}

func (r *sqliteRows) Next() bool                 { return r.rows.Next() }
func (r *sqliteRows) Scan(dest ...any) error     { return r.rows.Scan(dest...) }
func (r *sqliteRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqliteRows) Close()                     { _ = r.rows.Close() }
func (r *sqliteRows) Err() error                 { return r.rows.Err() }

type sqliteRow struct {
	row *sql.Row
}

func (r *sqliteRow) Scan(dest ...any) error { return r.row.Scan(dest...) }
