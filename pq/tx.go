package pq

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/n-r-w/txcmd"
)

// BeginTxFunc - starts a transaction, executes the callback function, and handles commit/rollback automatically.
// If the callback returns an error, the transaction is rolled back and the error is returned unchanged.
// Otherwise, it is committed. If commit/rollback fails, the error is wrapped with the original error if any.
func BeginTxFunc(ctx context.Context, conn ITransactionBeginner, opts txcmd.TxOptions,
	f func(ctx context.Context, tx *sql.Tx) error,
) (err error) {
	var tx *sql.Tx
	tx, err = conn.BeginTx(ctx, toSQLTxOptions(opts))
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// If panic occurs, rollback the transaction.
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p) // Re-throw panic after rollback.
		}
	}()

	defer func() {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			if err != nil {
				err = fmt.Errorf("%w (rollback error: %v)", err, rollbackErr) //nolint:errorlint // ok for 2 errors
			} else {
				err = rollbackErr
			}
		}
	}()

	err = f(ctx, tx)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// savepointFunc runs f inside a savepoint of an open transaction.
// The savepoint is released if f succeeds and rolled back to otherwise.
func savepointFunc(ctx context.Context, tx IQuerier, name string, f func(ctx context.Context) error) (err error) {
	if _, err = tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_, _ = tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
			panic(p)
		}
	}()

	if err = f(ctx); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("%w (rollback to savepoint error: %v)", err, rbErr) //nolint:errorlint // ok for 2 errors
		}
		return err
	}

	if _, err = tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint %s: %w", name, err)
	}

	return nil
}

func toSQLTxOptions(opts txcmd.TxOptions) *sql.TxOptions {
	res := &sql.TxOptions{
		ReadOnly: opts.Mode == txcmd.TxReadOnly,
	}

	switch opts.Level {
	case txcmd.TxReadUncommitted:
		res.Isolation = sql.LevelReadUncommitted
	case txcmd.TxReadCommitted:
		res.Isolation = sql.LevelReadCommitted
	case txcmd.TxRepeatableRead:
		res.Isolation = sql.LevelRepeatableRead
	case txcmd.TxSerializable:
		res.Isolation = sql.LevelSerializable
	default:
		res.Isolation = sql.LevelDefault
	}

	return res
}
