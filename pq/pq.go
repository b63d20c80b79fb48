// Package pq provides a txcmd.IConnector over database/sql.
package pq

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/cenkalti/backoff/v5"
	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/n-r-w/txcmd"
)

// DB connector over sql.DB or sql.Conn.
type DB struct {
	db          ITransactionBeginnerQuerier
	logger      txcmd.ILogger
	retryPolicy []backoff.RetryOption
}

var _ txcmd.IConnector = (*DB)(nil)

// Option option for DB.
type Option func(*DB)

// WithLogger sets the logger.
func WithLogger(logger txcmd.ILogger) Option {
	return func(d *DB) {
		d.logger = logger
	}
}

// WithRetryPolicy enables retrying of the whole transaction on serialization failures and deadlocks.
func WithRetryPolicy(policy ...backoff.RetryOption) Option {
	return func(d *DB) {
		d.retryPolicy = policy
	}
}

// New creates a new DB connector.
func New(db ITransactionBeginnerQuerier, opts ...Option) *DB {
	d := &DB{
		db:     db,
		logger: txcmd.NopLogger{},
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Execute implements txcmd.IConnector.
func (d *DB) Execute(ctx context.Context, query string, args txcmd.Args) error {
	_, err := ExecPlain(ctx, d.db, query, args)
	return err
}

// Query implements txcmd.IConnector.
func (d *DB) Query(ctx context.Context, query string, args txcmd.Args) ([]txcmd.Row, error) {
	return SelectRows(ctx, d.db, query, args)
}

// Transaction implements txcmd.IConnector. f receives a connector bound to the transaction.
func (d *DB) Transaction(ctx context.Context, opts txcmd.TxOptions, f txcmd.TxFunc) error {
	run := func() error {
		return BeginTxFunc(ctx, d.db, opts, func(ctx context.Context, tx *sql.Tx) error {
			return f(ctx, newTx(tx, 0))
		})
	}

	return txcmd.RunWithRetry(ctx, d.logger, d.retryPolicy, run)
}

// Tx connector bound to an open transaction.
type Tx struct {
	tx    *sql.Tx
	depth int
}

var _ txcmd.IConnector = (*Tx)(nil)

func newTx(tx *sql.Tx, depth int) *Tx {
	return &Tx{tx: tx, depth: depth}
}

// Tx returns the underlying transaction.
func (t *Tx) Tx() *sql.Tx {
	return t.tx
}

// Execute implements txcmd.IConnector.
func (t *Tx) Execute(ctx context.Context, query string, args txcmd.Args) error {
	_, err := ExecPlain(ctx, t.tx, query, args)
	return err
}

// Query implements txcmd.IConnector.
func (t *Tx) Query(ctx context.Context, query string, args txcmd.Args) ([]txcmd.Row, error) {
	return SelectRows(ctx, t.tx, query, args)
}

// Transaction implements txcmd.IConnector with a savepoint. opts are ignored: a savepoint
// always has the options of the enclosing transaction.
func (t *Tx) Transaction(ctx context.Context, _ txcmd.TxOptions, f txcmd.TxFunc) error {
	nested := newTx(t.tx, t.depth+1)
	return savepointFunc(ctx, t.tx, "sp_"+strconv.Itoa(nested.depth), func(ctx context.Context) error {
		return f(ctx, nested)
	})
}

// ExecPlain - executes a modification query. Querier can be either sql.Tx or sql.DB.
func ExecPlain(ctx context.Context, db IQuerier, query string, args txcmd.Args) (sql.Result, error) {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sql exec: %w [%s]", err, txcmd.TruncSQL(query))
	}
	return result, nil
}

// SelectRows - executes a query and returns rows as column name to value maps.
func SelectRows(ctx context.Context, db IQuerier, query string, args txcmd.Args) ([]txcmd.Row, error) {
	var dst []map[string]any
	if err := sqlscan.Select(ctx, db, &dst, query, args...); err != nil {
		return nil, fmt.Errorf("sql select: %w [%s]", err, txcmd.TruncSQL(query))
	}

	rows := make([]txcmd.Row, 0, len(dst))
	for _, r := range dst {
		rows = append(rows, r)
	}

	return rows, nil
}

// SelectPlain - executes a query. Querier can be either sql.Tx or sql.DB.
func SelectPlain[T any](ctx context.Context, db IQuerier, query string, dst *[]T, args txcmd.Args) error {
	if err := sqlscan.Select(ctx, db, dst, query, args...); err != nil {
		return fmt.Errorf("sql select: %w [%s]", err, txcmd.TruncSQL(query))
	}
	return nil
}

// SelectOnePlain - executes a query. Querier can be either sql.Tx or sql.DB.
// dst must contain a variable, not a slice.
func SelectOnePlain[T any](ctx context.Context, db IQuerier, query string, dst *T, args txcmd.Args) error {
	if err := sqlscan.Get(ctx, db, dst, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("sql select: %w [%s]", err, txcmd.TruncSQL(query))
	}
	return nil
}
