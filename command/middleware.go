package command

import (
	"context"

	"github.com/n-r-w/txcmd"
	"github.com/n-r-w/txcmd/txmgr"
)

// StatementKind kind of statement passed to the connector.
type StatementKind int

// Statement kinds.
const (
	KindExecute StatementKind = iota
	KindQuery
)

// String returns the name of the kind.
func (k StatementKind) String() string {
	if k == KindQuery {
		return "query"
	}
	return "execute"
}

// Statement SQL text with bound arguments.
type Statement struct {
	SQL  string
	Args txcmd.Args
}

// StatementInfo describes the statement being prepared.
type StatementInfo struct {
	Kind StatementKind
	// Table is empty for raw statements.
	Table string
	// Tx current transaction of the handle.
	Tx txmgr.TransactionInfo
}

// IMiddleware rewrites statements before they are sent to the connector.
type IMiddleware interface {
	Preprocess(ctx context.Context, stmt Statement, info StatementInfo) (Statement, error)
}

// MiddlewareFunc adapts a function to IMiddleware.
type MiddlewareFunc func(ctx context.Context, stmt Statement, info StatementInfo) (Statement, error)

// Preprocess calls f.
func (f MiddlewareFunc) Preprocess(ctx context.Context, stmt Statement, info StatementInfo) (Statement, error) {
	return f(ctx, stmt, info)
}
