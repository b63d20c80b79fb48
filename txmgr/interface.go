package txmgr

import (
	"context"
	"time"

	"github.com/n-r-w/txcmd"
)

// IHandle is a command interface instance which runs statements on a connector.
// Implemented in command package.
type IHandle interface {
	// HandleID returns the identifier used to associate the handle with its current transaction context.
	HandleID() string
	// Connector returns the connector the handle executes statements on.
	Connector() txcmd.IConnector
	// Bind returns a new handle on conn with the same logger, middlewares and configuration.
	Bind(conn txcmd.IConnector) IHandle
}

// Func is the body of a transaction scope.
type Func func(ctx context.Context, h IHandle) error

// Event describes a finished transaction scope.
type Event struct {
	ContextID string
	Level     int
	Root      bool
	Duration  time.Duration
	// Err is the error returned by the scope. ErrPanicked if the scope panicked.
	Err error
}

// IObserver receives an event for every finished transaction scope. Implemented in telemetry package.
type IObserver interface {
	ObserveTransaction(ctx context.Context, e Event)
}

// ITransactionManager interface for managing nested transactions.
// Located here at the implementation point for convenient use in other packages.
type ITransactionManager interface {
	// RunInTransaction runs f in a transaction. If the handle already runs inside a transaction,
	// f joins it as a nested scope.
	RunInTransaction(ctx context.Context, handle IHandle, f Func, opts ...Option) error
	// HasActiveTransaction returns true if the handle runs inside a transaction.
	HasActiveTransaction(handle IHandle) bool
	// CurrentTransactionInfo returns information about the current transaction scope of the handle.
	CurrentTransactionInfo(handle IHandle) TransactionInfo
	// Stats returns statistics of all active scopes.
	Stats() Stats
}
