// Package db provides a PostgreSQL service which implements txcmd.IConnector on a pgx pool.
package db

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/n-r-w/bootstrap"
	"github.com/n-r-w/txcmd"
	"github.com/n-r-w/txcmd/px"
)

// PxDB service for working with PostgreSQL database. Implements IService interface.
type PxDB struct {
	name           string
	restartPolicy  []backoff.RetryOption
	retryPolicy    []backoff.RetryOption
	dsn            string
	afterStartFunc func(context.Context, *PxDB) error

	config *pgxpool.Config
	pool   *pgxpool.Pool
	// ownPool the pool is created by Start and closed by Stop.
	ownPool bool
	conn    *px.Conn

	logger txcmd.ILogger
}

var (
	_ bootstrap.IService = (*PxDB)(nil)
	_ txcmd.IConnector   = (*PxDB)(nil)
)

// New creates a new instance of PxDB.
func New(opt ...Option) *PxDB {
	p := &PxDB{
		logger: txcmd.NopLogger{},
	}

	for _, o := range opt {
		o(p)
	}

	if p.name == "" {
		p.name = "pxdb"
	}

	return p
}

// Start starts the service.
func (p *PxDB) Start(ctx context.Context) (err error) {
	p.logger.Debugf(ctx, "starting database %s", p.name)

	defer func() {
		if err == nil && p.afterStartFunc != nil {
			err = p.afterStartFunc(ctx, p)
			if err != nil {
				err = fmt.Errorf("failed to run after start function: %w", err)
			}
		}
	}()

	pool := p.pool
	if pool == nil {
		if p.config != nil {
			pool, err = pgxpool.NewWithConfig(ctx, p.config)
		} else {
			pool, err = pgxpool.New(ctx, p.dsn)
		}
		if err != nil {
			return fmt.Errorf("failed to create pgx pool for database %s: %w", p.name, err)
		}
		p.ownPool = true
	}

	p.logger.Debugf(ctx, "checking connection to database %s", p.name)

	if err = pool.Ping(ctx); err != nil {
		if p.ownPool {
			pool.Close()
			p.ownPool = false
		}
		return fmt.Errorf("failed to connect to database %s: %w", p.name, err)
	}

	p.pool = pool
	p.conn = px.NewConn(pool)

	p.logger.Debugf(ctx, "connected to database %s", p.name)

	return nil
}

// Stop stops the service.
func (p *PxDB) Stop(_ context.Context) error {
	if p.pool != nil && p.ownPool {
		p.pool.Close()
		p.pool = nil
		p.ownPool = false
	}
	p.conn = nil

	return nil
}

// Info returns service information.
func (p *PxDB) Info() bootstrap.Info {
	return bootstrap.Info{
		Name:          p.name,
		RestartPolicy: p.restartPolicy,
	}
}

// Pool returns the connection pool. Nil before Start.
func (p *PxDB) Pool() *pgxpool.Pool {
	return p.pool
}

// Execute implements txcmd.IConnector.
func (p *PxDB) Execute(ctx context.Context, sql string, args txcmd.Args) error {
	if p.conn == nil {
		return fmt.Errorf("%s: %w", p.name, txcmd.ErrNotStarted)
	}
	return p.conn.Execute(ctx, sql, args)
}

// Query implements txcmd.IConnector.
func (p *PxDB) Query(ctx context.Context, sql string, args txcmd.Args) ([]txcmd.Row, error) {
	if p.conn == nil {
		return nil, fmt.Errorf("%s: %w", p.name, txcmd.ErrNotStarted)
	}
	return p.conn.Query(ctx, sql, args)
}

// Transaction implements txcmd.IConnector.
// With a retry policy the whole transaction is repeated on serialization failures and deadlocks.
func (p *PxDB) Transaction(ctx context.Context, opts txcmd.TxOptions, f txcmd.TxFunc) error {
	if p.conn == nil {
		return fmt.Errorf("%s: %w", p.name, txcmd.ErrNotStarted)
	}

	return txcmd.RunWithRetry(ctx, p.logger, p.retryPolicy, func() error {
		return p.conn.Transaction(ctx, opts, f)
	})
}
