package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schemata-db/schemata/internal/errs"
)

func TestClassifyCode(t *testing.T) {
	tests := []struct {
		name string
		code int
		want errs.ErrKind
	}{
		{"busy", codeBusy, errs.ErrKindTimeout},
		{"locked", codeLocked, errs.ErrKindTimeout},
		{"interrupt", codeInterrupt, errs.ErrKindTimeout},
		{"cantopen", codeCantOpen, errs.ErrKindConnectionFailed},
		{"not a database", codeNotADB, errs.ErrKindConnectionFailed},
		{"auth", codeAuth, errs.ErrKindPermissionDenied},
		{"generic error", 1, errs.ErrKindQueryFailed},
		{"constraint", 19, errs.ErrKindQueryFailed},
		{"extended busy_recovery", codeBusy | 1<<8, errs.ErrKindTimeout},
		{"extended cantopen_isdir", codeCantOpen | 2<<8, errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyCode(tt.code))
		})
	}
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil, "query failed"))

	err := mapError(context.DeadlineExceeded, "query failed")
	assert.True(t, errs.IsTimeout(err))

	err = mapError(sql.ErrNoRows, "query failed")
	assert.True(t, errs.IsNotFound(err))

	err = mapError(fmt.Errorf("dial unix /tmp/db.sock: no such file"), "connect failed")
	assert.True(t, errs.IsConnectionFailed(err))
}
