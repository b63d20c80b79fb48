package pq

import (
	"context"
	"database/sql"
)

// IQuerier - a subset of sql.DB, sql.Conn and sql.Tx for queries.
type IQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ITransactionBeginner - a subset of sql.DB, sql.Conn for starting transactions.
type ITransactionBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// ITransactionBeginnerQuerier - sql.DB or sql.Conn.
type ITransactionBeginnerQuerier interface {
	IQuerier
	ITransactionBeginner
}
