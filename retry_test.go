package txcmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestRunWithRetry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	policy := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(time.Millisecond)),
		backoff.WithMaxTries(3),
	}

	t.Run("retryable", func(t *testing.T) {
		t.Parallel()

		attempts := 0
		err := RunWithRetry(ctx, NopLogger{}, policy, func() error {
			attempts++
			if attempts < 3 {
				return &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, attempts)
	})

	t.Run("permanent", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		attempts := 0
		err := RunWithRetry(ctx, NopLogger{}, policy, func() error {
			attempts++
			return boom
		})
		require.Equal(t, boom, err)
		require.Equal(t, 1, attempts)
	})

	t.Run("no policy", func(t *testing.T) {
		t.Parallel()

		attempts := 0
		err := RunWithRetry(ctx, NopLogger{}, nil, func() error {
			attempts++
			return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
		})
		require.True(t, IsSerializationFailure(err))
		require.Equal(t, 1, attempts)
	})

	t.Run("gives up", func(t *testing.T) {
		t.Parallel()

		attempts := 0
		err := RunWithRetry(ctx, NopLogger{}, policy, func() error {
			attempts++
			return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
		})
		require.True(t, IsRetryable(err))
		require.Equal(t, 3, attempts)
	})

	t.Run("nil logger", func(t *testing.T) {
		t.Parallel()

		attempts := 0
		err := RunWithRetry(ctx, nil, policy, func() error {
			attempts++
			if attempts == 1 {
				return &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 2, attempts)
	})
}
