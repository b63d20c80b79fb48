package txcmd

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestPgErrorHelpers(t *testing.T) {
	t.Parallel()

	wrap := func(code string) error {
		//nolint:exhaustruct // external type, only code matters
		return fmt.Errorf("sql exec: %w", &pgconn.PgError{Code: code})
	}

	require.True(t, IsNoRows(pgx.ErrNoRows))
	require.True(t, IsNoRows(fmt.Errorf("select: %w", sql.ErrNoRows)))
	require.True(t, IsNoRows(wrap(pgerrcode.NoDataFound)))
	require.False(t, IsNoRows(errors.New("other")))

	require.True(t, IsUniqueViolation(wrap(pgerrcode.UniqueViolation)))
	require.False(t, IsUniqueViolation(wrap(pgerrcode.ForeignKeyViolation)))

	require.True(t, IsForeignKeyViolation(wrap(pgerrcode.ForeignKeyViolation)))

	require.True(t, IsRetryable(wrap(pgerrcode.SerializationFailure)))
	require.True(t, IsRetryable(wrap(pgerrcode.DeadlockDetected)))
	require.False(t, IsRetryable(wrap(pgerrcode.UniqueViolation)))
	require.False(t, IsRetryable(errors.New("boom")))
}

func TestRecordCreationError(t *testing.T) {
	t.Parallel()

	err := error(&RecordCreationError{Table: "users", Where: map[string]any{"email": "a@b.c"}})

	require.ErrorIs(t, err, ErrRecordCreationFailed)
	require.Contains(t, err.Error(), "users")
	require.Contains(t, err.Error(), "a@b.c")

	var rcErr *RecordCreationError
	require.ErrorAs(t, fmt.Errorf("outer: %w", err), &rcErr)
	require.Equal(t, "users", rcErr.Table)
}

func TestTxOptions_Defaults(t *testing.T) {
	t.Parallel()

	var opts TxOptions
	require.Equal(t, TxReadCommitted, opts.IsolationLevel())
	require.Equal(t, TxReadWrite, opts.AccessMode())

	opts = TxOptions{Level: TxSerializable, Mode: TxReadOnly}
	require.Equal(t, TxSerializable, opts.IsolationLevel())
	require.Equal(t, TxReadOnly, opts.AccessMode())
}
