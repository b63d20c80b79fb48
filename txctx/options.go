package txctx

import (
	"time"

	"github.com/n-r-w/txcmd"
)

// Option option for Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger txcmd.ILogger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithClock sets the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}
