package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/schemata-db/schemata/internal/errs"
)

// PostgreSQL groups SQLSTATE codes into classes by the first two characters.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	sqlstateClassConnection    = "08"
	sqlstateClassAuthorization = "28"
)

// mapError translates pgx / pgconn native errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	// Server-side errors carry a SQLSTATE code.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		kind := errs.ErrKindQueryFailed
		switch sqlstateClass(pgErr.Code) {
		case sqlstateClassConnection:
			kind = errs.ErrKindConnectionFailed
		case sqlstateClassAuthorization:
			kind = errs.ErrKindPermissionDenied
		}
		return errs.Wrap(kind, fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
	}

	// Fallthrough: network and TLS failures surface as plain errors.
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

func sqlstateClass(code string) string {
	if len(code) < 2 {
		return ""
	}
	return code[:2]
}
