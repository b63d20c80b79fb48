// Package command implements the CRUD and transaction API used by application code.
//
// A Command builds parameterized SQL and sends it through its connector. Transactions are
// grouped by txmgr.Manager: nested Txn calls join the transaction of the outermost call.
// Without a manager every Txn call opens a separate physical transaction (legacy mode).
package command

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	sq "github.com/n-r-w/squirrel"
	"github.com/n-r-w/txcmd"
	"github.com/n-r-w/txcmd/txmgr"
	"go.opentelemetry.io/otel/trace"
)

// Command is a handle for running statements and transactions on a connector.
type Command struct {
	id          string
	conn        txcmd.IConnector
	manager     *txmgr.Manager
	logger      txcmd.ILogger
	middlewares []IMiddleware
	quote       string
	placeholder sq.PlaceholderFormat
	logQueries  bool

	// legacyDepth nesting depth of legacy transactions. Used only without a manager.
	legacyDepth int
}

var _ txmgr.IHandle = (*Command)(nil)

// New creates a new Command on conn.
func New(conn txcmd.IConnector, opts ...Option) *Command {
	if conn == nil {
		panic("command.New: conn must not be nil")
	}

	c := &Command{
		id:          uuid.NewString(),
		conn:        conn,
		logger:      txcmd.NopLogger{},
		quote:       DefaultQuote,
		placeholder: sq.Question,
	}

	for _, o := range opts {
		o(c)
	}

	return c
}

// HandleID implements txmgr.IHandle.
func (c *Command) HandleID() string {
	return c.id
}

// Connector returns the connector of the handle.
func (c *Command) Connector() txcmd.IConnector {
	return c.conn
}

// Bind implements txmgr.IHandle.
func (c *Command) Bind(conn txcmd.IConnector) txmgr.IHandle {
	return c.bind(conn)
}

// bind returns a copy of the command on conn with its own identity.
func (c *Command) bind(conn txcmd.IConnector) *Command {
	return &Command{
		id:          uuid.NewString(),
		conn:        conn,
		manager:     c.manager,
		logger:      c.logger,
		middlewares: slices.Clone(c.middlewares),
		quote:       c.quote,
		placeholder: c.placeholder,
		logQueries:  c.logQueries,
		legacyDepth: c.legacyDepth,
	}
}

// Manager returns the transaction manager or nil in legacy mode.
func (c *Command) Manager() *txmgr.Manager {
	return c.manager
}

// Use registers middlewares. They run in registration order before every statement.
func (c *Command) Use(m ...IMiddleware) *Command {
	c.middlewares = append(c.middlewares, m...)
	return c
}

// Txn runs f in a transaction. f receives a handle bound to the transaction and must use it for all statements.
// With a manager, a Txn call made while the handle is inside a transaction joins it: no new physical
// transaction is started and an error at any depth rolls back the whole tree.
// The error returned by f is returned unchanged.
func (c *Command) Txn(ctx context.Context, f func(ctx context.Context, tx *Command) error, opts ...txmgr.Option) error {
	if c.manager != nil {
		return c.manager.RunInTransaction(ctx, c, func(ctx context.Context, h txmgr.IHandle) error {
			return f(ctx, h.(*Command)) //nolint:forcetypeassert // handles are created by Bind
		}, opts...)
	}

	// legacy mode: every call opens its own transaction
	o := legacyOptions(opts)

	txOpts := txcmd.TxOptions{Level: o.Level, Mode: o.Mode, Lock: o.Lock}
	start := time.Now()

	defer func() {
		if o.WarningThreshold > 0 {
			if d := time.Since(start); d > o.WarningThreshold {
				c.logger.Warningf(ctx, "transaction (level %d) took %s, threshold %s, metadata: %v",
					c.legacyDepth+1, d, o.WarningThreshold, o.Metadata)
			}
		}
	}()

	return c.conn.Transaction(ctx, txOpts, func(ctx context.Context, txConn txcmd.IConnector) error {
		tx := c.bind(txConn)
		tx.legacyDepth++
		return f(ctx, tx)
	})
}

// legacyOptions applies opts over the defaults of the manager.
func legacyOptions(opts []txmgr.Option) txmgr.Options {
	o := txmgr.Options{WarningThreshold: txmgr.DefaultWarningThreshold}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// TxnValue runs f in a transaction and returns its result.
func TxnValue[T any](ctx context.Context, c *Command, f func(ctx context.Context, tx *Command) (T, error),
	opts ...txmgr.Option,
) (T, error) {
	var res T

	err := c.Txn(ctx, func(ctx context.Context, tx *Command) error {
		v, err := f(ctx, tx)
		if err != nil {
			return err
		}
		res = v
		return nil
	}, opts...)
	if err != nil {
		var zero T
		return zero, err
	}

	return res, nil
}

// InTransaction returns true if the handle runs inside a transaction.
func (c *Command) InTransaction() bool {
	return c.CurrentTransactionInfo().IsInTransaction
}

// CurrentTransactionInfo returns information about the current transaction of the handle.
// Call it from within a Txn callback on the handle passed to the callback.
func (c *Command) CurrentTransactionInfo() txmgr.TransactionInfo {
	if c.manager != nil {
		return c.manager.CurrentTransactionInfo(c)
	}

	if c.legacyDepth == 0 {
		//nolint:exhaustruct // not in transaction
		return txmgr.TransactionInfo{}
	}

	//nolint:exhaustruct // legacy transactions are not registered
	return txmgr.TransactionInfo{
		IsInTransaction: true,
		Level:           c.legacyDepth,
	}
}

// Stats returns statistics of active transactions. Empty in legacy mode.
func (c *Command) Stats() txmgr.Stats {
	if c.manager == nil {
		//nolint:exhaustruct // legacy transactions are not registered
		return txmgr.Stats{}
	}
	return c.manager.Stats()
}

// Exec executes a raw statement through middlewares.
func (c *Command) Exec(ctx context.Context, sql string, args txcmd.Args) error {
	return c.execute(ctx, "", Statement{SQL: sql, Args: args})
}

// Query executes a raw query through middlewares.
func (c *Command) Query(ctx context.Context, sql string, args txcmd.Args) ([]txcmd.Row, error) {
	return c.query(ctx, "", Statement{SQL: sql, Args: args})
}

func (c *Command) execute(ctx context.Context, table string, stmt Statement) error {
	stmt, err := c.preprocess(ctx, KindExecute, table, stmt)
	if err != nil {
		return err
	}

	return c.logQueryHelper(ctx, KindExecute, stmt, func() error {
		return c.conn.Execute(ctx, stmt.SQL, stmt.Args)
	})
}

func (c *Command) query(ctx context.Context, table string, stmt Statement) (rows []txcmd.Row, err error) {
	stmt, err = c.preprocess(ctx, KindQuery, table, stmt)
	if err != nil {
		return nil, err
	}

	err = c.logQueryHelper(ctx, KindQuery, stmt, func() error {
		rows, err = c.conn.Query(ctx, stmt.SQL, stmt.Args)
		return err
	})

	return rows, err
}

// preprocess runs middlewares in registration order.
func (c *Command) preprocess(ctx context.Context, kind StatementKind, table string, stmt Statement,
) (Statement, error) {
	if len(c.middlewares) == 0 {
		return stmt, nil
	}

	info := StatementInfo{
		Kind:  kind,
		Table: table,
		Tx:    c.CurrentTransactionInfo(),
	}

	for i, m := range c.middlewares {
		var err error
		if stmt, err = m.Preprocess(ctx, stmt, info); err != nil {
			c.logger.Errorf(ctx, "middleware %d rejected %s: %v; sql: %s", i, kind, err, txcmd.TruncSQL(stmt.SQL))
			return stmt, err
		}
	}

	return stmt, nil
}

// logQueryHelper calls f and logs the statement. Failed statements are always logged.
// The error of f is returned unchanged.
func (c *Command) logQueryHelper(ctx context.Context, kind StatementKind, stmt Statement, f func() error) error {
	if !c.logQueries {
		err := f()
		if err != nil {
			c.logger.Errorf(ctx, "%s failed: %v; sql: %s; args: %v", kind, err, txcmd.TruncSQL(stmt.SQL), stmt.Args)
		}
		return err
	}

	start := time.Now()

	err := f()

	traceID := ""
	spanContext := trace.SpanFromContext(ctx).SpanContext()
	if spanContext.TraceID().IsValid() {
		traceID = spanContext.TraceID().String()
	}

	if err != nil {
		c.logger.Errorf(ctx, "%s failed: %v; sql: %s; args: %v; latency: %s; trace_id: %s",
			kind, err, txcmd.TruncSQL(stmt.SQL), stmt.Args, time.Since(start), traceID)
	} else {
		c.logger.Debugf(ctx, "%s: %s; args: %v; latency: %s; trace_id: %s",
			kind, txcmd.TruncSQL(stmt.SQL), stmt.Args, time.Since(start), traceID)
	}

	return err
}
