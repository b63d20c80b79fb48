package txcmd

//go:generate mockgen -source interface.go -destination interface_mock.go -package txcmd

import (
	"context"
)

// TxFunc is the body of a physical transaction. conn is bound to the transaction.
type TxFunc func(ctx context.Context, conn IConnector) error

// IConnector executes statements against a specific database engine and opens physical transactions.
// Implemented in pq and px packages.
type IConnector interface {
	// Execute executes a statement without returning data.
	Execute(ctx context.Context, sql string, args Args) error
	// Query executes a statement and returns all rows.
	Query(ctx context.Context, sql string, args Args) ([]Row, error)
	// Transaction runs f within a transaction. Normal return commits, an error or panic rolls back.
	// The error returned by f is returned unchanged.
	Transaction(ctx context.Context, opts TxOptions, f TxFunc) error
}
