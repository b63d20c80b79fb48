// Package px provides a txcmd.IConnector over pgx.
package px

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/n-r-w/txcmd"
)

// Conn connector over pgxpool.Pool or pgx.Conn.
type Conn struct {
	db ITransactionBeginnerQuerier
}

var _ txcmd.IConnector = (*Conn)(nil)

// NewConn creates a new Conn.
func NewConn(db ITransactionBeginnerQuerier) *Conn {
	return &Conn{db: db}
}

// Execute implements txcmd.IConnector.
func (c *Conn) Execute(ctx context.Context, sql string, args txcmd.Args) error {
	_, err := ExecPlain(ctx, c.db, sql, args)
	return err
}

// Query implements txcmd.IConnector.
func (c *Conn) Query(ctx context.Context, sql string, args txcmd.Args) ([]txcmd.Row, error) {
	return SelectRows(ctx, c.db, sql, args)
}

// Transaction implements txcmd.IConnector. f receives a connector bound to the transaction.
func (c *Conn) Transaction(ctx context.Context, opts txcmd.TxOptions, f txcmd.TxFunc) error {
	return BeginTxFunc(ctx, c.db, ToTxOptions(opts), func(ctx context.Context, tx pgx.Tx) error {
		return f(ctx, NewTx(tx))
	})
}

// Tx connector bound to an open transaction.
type Tx struct {
	tx pgx.Tx
}

var _ txcmd.IConnector = (*Tx)(nil)

// NewTx creates a connector bound to tx.
func NewTx(tx pgx.Tx) *Tx {
	return &Tx{tx: tx}
}

// Tx returns the underlying transaction.
func (t *Tx) Tx() pgx.Tx {
	return t.tx
}

// Execute implements txcmd.IConnector.
func (t *Tx) Execute(ctx context.Context, sql string, args txcmd.Args) error {
	_, err := ExecPlain(ctx, t.tx, sql, args)
	return err
}

// Query implements txcmd.IConnector.
func (t *Tx) Query(ctx context.Context, sql string, args txcmd.Args) ([]txcmd.Row, error) {
	return SelectRows(ctx, t.tx, sql, args)
}

// Transaction implements txcmd.IConnector with a savepoint. opts are ignored: a savepoint
// always has the options of the enclosing transaction.
func (t *Tx) Transaction(ctx context.Context, _ txcmd.TxOptions, f txcmd.TxFunc) error {
	//nolint:exhaustruct // options are ignored by savepoints
	return BeginTxFunc(ctx, savepointBeginner{tx: t.tx}, pgx.TxOptions{}, func(ctx context.Context, tx pgx.Tx) error {
		return f(ctx, NewTx(tx))
	})
}

// ExecPlain executes a modification query. Querier can be either pgx.Tx or pgxpool.Pool.
func ExecPlain(ctx context.Context, querier IQuerier, sql string, args txcmd.Args) (pgconn.CommandTag, error) {
	var (
		tag pgconn.CommandTag
		err error
	)

	if tag, err = querier.Exec(ctx, sql, args...); err != nil {
		return tag, fmt.Errorf("sql exec: %w [%s]", err, txcmd.TruncSQL(sql))
	}

	return tag, nil
}

// SelectRows executes a query and returns rows as column name to value maps.
func SelectRows(ctx context.Context, querier IQuerier, sql string, args txcmd.Args) ([]txcmd.Row, error) {
	var dst []map[string]any
	if err := pgxscan.Select(ctx, querier, &dst, sql, args...); err != nil {
		return nil, fmt.Errorf("sql select: %w [%s]", err, txcmd.TruncSQL(sql))
	}

	rows := make([]txcmd.Row, 0, len(dst))
	for _, r := range dst {
		rows = append(rows, r)
	}

	return rows, nil
}

// SelectPlain executes a query. Querier can be either pgx.Tx or pgxpool.Pool.
func SelectPlain[T any](ctx context.Context, querier IQuerier, sql string, dst *[]T, args txcmd.Args) error {
	if err := pgxscan.Select(ctx, querier, dst, sql, args...); err != nil {
		return fmt.Errorf("sql select: %w [%s]", err, txcmd.TruncSQL(sql))
	}

	return nil
}

// SelectOnePlain executes a query. Querier can be either pgx.Tx or pgxpool.Pool.
// dst must contain a variable, not a slice.
func SelectOnePlain[T any](ctx context.Context, querier IQuerier, sql string, dst *T, args txcmd.Args) error {
	if err := pgxscan.Get(ctx, querier, dst, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// we don't need the original error, it contains extra service information that will come in the response
			return pgx.ErrNoRows
		}

		return fmt.Errorf("sql select: %w [%s]", err, txcmd.TruncSQL(sql))
	}

	return nil
}
