package txmgr

import (
	"time"

	"github.com/n-r-w/txcmd"
	"github.com/n-r-w/txcmd/txctx"
)

// DefaultWarningThreshold duration after which a slow transaction scope is reported.
const DefaultWarningThreshold = 10 * time.Second

// Options represents options of a single RunInTransaction call.
type Options struct {
	// ParentContextID explicitly selects the parent scope.
	ParentContextID string
	// Metadata informational values attached to the scope.
	Metadata map[string]any
	// WarningThreshold duration after which a warning is logged. Zero disables the warning.
	WarningThreshold time.Duration
	// Level defines the transaction isolation level. Used only by the root scope.
	Level txcmd.TransactionLevel
	// Mode defines the transaction operation mode. Used only by the root scope.
	Mode txcmd.TransactionMode
	// Lock indicates if object locking is required.
	// This is an advisory option and the implementation decides what to lock.
	// In most cases it means SELECT ... FOR UPDATE.
	Lock bool
}

// Option transaction manager option function.
type Option func(*Options)

// WithParentContextID makes the scope a child of the context with the given id.
func WithParentContextID(id string) Option {
	return func(opts *Options) {
		opts.ParentContextID = id
	}
}

// WithMetadata attaches informational values to the scope.
func WithMetadata(metadata map[string]any) Option {
	return func(opts *Options) {
		opts.Metadata = metadata
	}
}

// WithWarningThreshold overrides the slow scope warning threshold.
func WithWarningThreshold(d time.Duration) Option {
	return func(opts *Options) {
		opts.WarningThreshold = d
	}
}

// WithTransactionLevel sets the transaction isolation level.
func WithTransactionLevel(level txcmd.TransactionLevel) Option {
	return func(opts *Options) {
		opts.Level = level
	}
}

// WithTransactionMode sets the transaction mode.
func WithTransactionMode(mode txcmd.TransactionMode) Option {
	return func(opts *Options) {
		opts.Mode = mode
	}
}

// WithLock enables object locking.
func WithLock() Option {
	return func(opts *Options) {
		opts.Lock = true
	}
}

// ManagerOption option for Manager.
type ManagerOption func(*Manager)

// WithRegistry shares the registry with other managers.
func WithRegistry(registry *txctx.Registry) ManagerOption {
	return func(m *Manager) {
		m.registry = registry
	}
}

// WithLogger sets the logger.
func WithLogger(logger txcmd.ILogger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithDefaultWarningThreshold sets the threshold used when a call doesn't set its own.
func WithDefaultWarningThreshold(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.warningThreshold = d
	}
}

// WithObserver sets the observer of finished scopes.
func WithObserver(observer IObserver) ManagerOption {
	return func(m *Manager) {
		m.observer = observer
	}
}
