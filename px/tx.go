package px

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/n-r-w/txcmd"
)

// BeginTxFunc starts a transaction, executes the callback function, and handles commit/rollback automatically.
// If the callback returns an error, the transaction is rolled back and the error is returned unchanged.
// Otherwise, it is committed. If commit/rollback fails, the error is wrapped with the original error if any.
// Unlike pgx.BeginTxFunc, it passes the context to the function f.
func BeginTxFunc(ctx context.Context,
	conn ITransactionBeginner,
	options pgx.TxOptions,
	f func(ctx context.Context, tx pgx.Tx) error,
) (err error) {
	var tx pgx.Tx
	tx, err = conn.BeginTx(ctx, options)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// If panic occurs, rollback the transaction.
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p) // Re-throw panic after rollback.
		}
	}()

	defer func() {
		rollbackErr := tx.Rollback(ctx)
		if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			if err != nil {
				err = fmt.Errorf("%w (rollback error: %v)", err, rollbackErr) //nolint:errorlint // ok for 2 errors
			} else {
				err = rollbackErr
			}
		}
	}()

	err = f(ctx, tx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// savepointBeginner starts pseudo nested transactions (savepoints) inside tx.
type savepointBeginner struct {
	tx pgx.Tx
}

func (s savepointBeginner) BeginTx(ctx context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return s.tx.Begin(ctx)
}

// ToTxOptions converts transaction options to pgx options.
func ToTxOptions(opts txcmd.TxOptions) pgx.TxOptions {
	//nolint:exhaustruct // external type, only set necessary fields
	return pgx.TxOptions{
		IsoLevel:   getPgxLevel(opts.Level),
		AccessMode: getPgxMode(opts.Mode),
	}
}

// getPgxLevel returns pgx isolation level.
func getPgxLevel(level txcmd.TransactionLevel) pgx.TxIsoLevel {
	switch level {
	case txcmd.TxReadUncommitted:
		return pgx.ReadUncommitted
	case txcmd.TxRepeatableRead:
		return pgx.RepeatableRead
	case txcmd.TxSerializable:
		return pgx.Serializable
	default:
		return pgx.ReadCommitted
	}
}

// getPgxMode returns pgx transaction mode.
func getPgxMode(mode txcmd.TransactionMode) pgx.TxAccessMode {
	if mode == txcmd.TxReadOnly {
		return pgx.ReadOnly
	}
	return pgx.ReadWrite
}
