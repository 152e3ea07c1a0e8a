package persistence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteSingleConnection(t *testing.T) {
	db, err := Open(Options{Driver: DriverSQLite, DSN: ":memory:", MaxOpenConns: 10})
	require.NoError(t, err)
	defer Close(db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(Options{Driver: "oracle", DSN: "x"})

	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestIsUniqueConstraintError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("UNIQUE constraint failed: loyalty_accounts.customer_ref"), true},
		{errors.New(`ERROR: duplicate key value violates unique constraint "idx_ledger_idempotency" (SQLSTATE 23505)`), true},
		{errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsUniqueConstraintError(tt.err), "%v", tt.err)
	}
}
