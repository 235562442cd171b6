package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"

	"github.com/schemata-db/schemata/internal/errs"
)

// SQLite primary result codes relevant to read paths.
// Full list: https://sqlite.org/rescode.html
const (
	codeBusy      = 5
	codeLocked    = 6
	codeInterrupt = 9
	codeCantOpen  = 14
	codeAuth      = 23
	codeNotADB    = 26
)

// mapError translates modernc sqlite errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return errs.Wrap(
			classifyCode(sqliteErr.Code()),
			fmt.Sprintf("%s: %s", msg, sqliteErr.Error()),
			err,
		)
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// classifyCode maps SQLite result codes to ErrKind. Extended codes carry
// the primary code in the low byte.
func classifyCode(code int) errs.ErrKind {
	switch code & 0xff {
	case codeBusy, codeLocked, codeInterrupt:
		return errs.ErrKindTimeout
	case codeCantOpen, codeNotADB:
		return errs.ErrKindConnectionFailed
	case codeAuth:
		return errs.ErrKindPermissionDenied
	default:
		return errs.ErrKindQueryFailed
	}
}
