package px

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// IQuerier - a subset of pgxpool.Pool, pgx.Conn and pgx.Tx for queries.
type IQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ITransactionBeginner - a subset of pgxpool.Pool and pgx.Conn for starting transactions.
type ITransactionBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// ITransactionBeginnerQuerier - pgxpool.Pool or pgx.Conn.
type ITransactionBeginnerQuerier interface {
	IQuerier
	ITransactionBeginner
}
