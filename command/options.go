package command

import (
	sq "github.com/n-r-w/squirrel"
	"github.com/n-r-w/txcmd"
	"github.com/n-r-w/txcmd/txmgr"
)

// DefaultQuote default identifier quote character.
const DefaultQuote = "`"

// Option option for Command.
type Option func(*Command)

// WithManager enables nested transactions. Without a manager every Txn call
// opens its own physical transaction (legacy mode).
func WithManager(m *txmgr.Manager) Option {
	return func(c *Command) {
		c.manager = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger txcmd.ILogger) Option {
	return func(c *Command) {
		c.logger = logger
	}
}

// WithQuote sets the identifier quote character. Empty string disables quoting.
func WithQuote(quote string) Option {
	return func(c *Command) {
		c.quote = quote
	}
}

// WithoutQuoting disables identifier quoting.
func WithoutQuoting() Option {
	return WithQuote("")
}

// WithPlaceholderFormat sets the placeholder format, e.g. squirrel.Dollar for PostgreSQL.
// Default is squirrel.Question.
func WithPlaceholderFormat(f sq.PlaceholderFormat) Option {
	return func(c *Command) {
		c.placeholder = f
	}
}

// WithMiddlewares registers middlewares in the given order.
func WithMiddlewares(m ...IMiddleware) Option {
	return func(c *Command) {
		c.middlewares = append(c.middlewares, m...)
	}
}

// WithLogQueries enables logging of every statement.
func WithLogQueries() Option {
	return func(c *Command) {
		c.logQueries = true
	}
}
