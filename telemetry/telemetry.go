// Package telemetry provides database telemetry and monitoring functionality.
package telemetry

import (
	"context"
	"time"

	"github.com/n-r-w/txcmd"
)

// Commands reported to ITelemetry.
const (
	CommandExecute     = "execute"
	CommandQuery       = "query"
	CommandTransaction = "transaction"
)

// Attribute span attribute.
type Attribute struct {
	Key   string
	Value any
}

// ISpan interface for span.
type ISpan interface {
	AddAttributes(attributes []Attribute)
	End()
}

// ITelemetry interface for telemetry.
type ITelemetry interface {
	// StartSpan starts new span. If returns nil, span is not created.
	StartSpan(ctx context.Context, name string) (context.Context, ISpan)
	// ObserveRequestDuration records request duration.
	ObserveRequestDuration(ctx context.Context, command string, duration time.Duration)
	// ObserveRequest records request count.
	ObserveRequest(ctx context.Context, command string)
	// ObserveRequestError records request error.
	ObserveRequestError(ctx context.Context, command string, err error)
}

// Connector wrapper over txcmd.IConnector which sends telemetry for every call.
type Connector struct {
	conn      txcmd.IConnector
	telemetry ITelemetry
}

var _ txcmd.IConnector = (*Connector)(nil)

// NewConnector creates a new Connector.
func NewConnector(conn txcmd.IConnector, telemetry ITelemetry) *Connector {
	return &Connector{
		conn:      conn,
		telemetry: telemetry,
	}
}

// Execute implements txcmd.IConnector.
func (c *Connector) Execute(ctx context.Context, sql string, args txcmd.Args) error {
	return c.telemetryHelper(ctx, CommandExecute, sql, args, func(ctx context.Context) error {
		return c.conn.Execute(ctx, sql, args)
	})
}

// Query implements txcmd.IConnector.
func (c *Connector) Query(ctx context.Context, sql string, args txcmd.Args) (rows []txcmd.Row, err error) {
	err = c.telemetryHelper(ctx, CommandQuery, sql, args, func(ctx context.Context) error {
		rows, err = c.conn.Query(ctx, sql, args)
		return err
	})

	return rows, err
}

// Transaction implements txcmd.IConnector. The connector passed to f is wrapped too.
func (c *Connector) Transaction(ctx context.Context, opts txcmd.TxOptions, f txcmd.TxFunc) error {
	return c.telemetryHelper(ctx, CommandTransaction, "", nil, func(ctx context.Context) error {
		return c.conn.Transaction(ctx, opts, func(ctx context.Context, conn txcmd.IConnector) error {
			return f(ctx, NewConnector(conn, c.telemetry))
		})
	})
}

func (c *Connector) telemetryHelper(ctx context.Context, command, details string, arguments []any,
	f func(ctx context.Context) error,
) error {
	ctxSpan, span := c.telemetry.StartSpan(ctx, "txcmd")
	if span != nil {
		ctx = ctxSpan
		defer span.End()

		attributes := make([]Attribute, 0, 3) //nolint:mnd // command, args, details
		attributes = append(attributes,
			Attribute{"command", command},
			Attribute{"query.args", arguments})
		if details != "" {
			attributes = append(attributes, Attribute{"details", txcmd.TruncSQL(details)})
		}
		span.AddAttributes(attributes)
	}

	startTime := time.Now()

	err := f(ctx)

	c.telemetry.ObserveRequestDuration(ctx, command, time.Since(startTime))

	c.telemetry.ObserveRequest(ctx, command)
	if err != nil {
		c.telemetry.ObserveRequestError(ctx, command, err)
	}

	return err
}
