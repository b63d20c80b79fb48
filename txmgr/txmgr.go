// Package txmgr implements a database-agnostic manager of nested transactions.
// Only the outermost scope of a call tree opens a physical transaction; nested scopes
// reuse its connection and are tracked in a txctx.Registry.
package txmgr

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/n-r-w/txcmd"
	"github.com/n-r-w/txcmd/txctx"
)

// ErrPanicked is reported to the observer for scopes that exited with a panic.
var ErrPanicked = errors.New("transaction scope panicked")

// TransactionInfo information about the current transaction scope of a handle.
type TransactionInfo struct {
	IsInTransaction bool
	ContextID       string
	Level           int
	Options         txcmd.TxOptions
}

// ContextStat statistics of a single scope.
type ContextStat struct {
	ID            string
	Level         int
	Duration      time.Duration
	ChildrenCount int
}

// Stats statistics of active scopes.
type Stats struct {
	ActiveTransactions int
	Contexts           []ContextStat
}

// Manager handles nested database transactions.
type Manager struct {
	registry         *txctx.Registry
	logger           txcmd.ILogger
	warningThreshold time.Duration
	observer         IObserver

	mu sync.Mutex
	// handles maps handle id to the stack of its context ids. The top is the current context.
	// Only ids are stored, so the map never keeps a handle alive.
	handles map[string][]string
}

var _ ITransactionManager = (*Manager)(nil)

// New creates a new Manager.
func New(opts ...ManagerOption) *Manager {
	m := &Manager{
		logger:           txcmd.NopLogger{},
		warningThreshold: DefaultWarningThreshold,
		handles:          make(map[string][]string),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.registry == nil {
		m.registry = txctx.NewRegistry(txctx.WithLogger(m.logger))
	}

	return m
}

// Registry returns the registry of the manager.
func (m *Manager) Registry() *txctx.Registry {
	return m.registry
}

// RunInTransaction runs f within a transaction.
// If a transaction context is already active for the handle, f runs as a nested scope on the same connection
// and no new physical transaction is started. Otherwise the handle's connector starts a transaction
// and f receives a new handle bound to it.
// Errors and panics of f are propagated unchanged after the scope bookkeeping is cleaned up.
func (m *Manager) RunInTransaction(ctx context.Context, handle IHandle, f Func, opts ...Option) error {
	o := Options{
		WarningThreshold: m.warningThreshold,
	}
	for _, opt := range opts {
		opt(&o)
	}

	current, err := m.resolve(handle, o.ParentContextID)
	if err != nil {
		return err
	}

	if current != nil { // transaction is already started
		return m.runNested(ctx, handle, current, f, o)
	}

	return m.runRoot(ctx, handle, f, o)
}

func (m *Manager) runNested(ctx context.Context, handle IHandle, parent *txctx.Context, f Func, o Options,
) (err error) {
	// we cannot change transaction level and mode
	if o.Level != txcmd.TxLevelDefault && o.Level != parent.Options.IsolationLevel() {
		return fmt.Errorf("%w: level %d != %d", txcmd.ErrTxOptionsMismatch, parent.Options.IsolationLevel(), o.Level)
	}
	if o.Mode != txcmd.TxModeDefault && o.Mode != parent.Options.AccessMode() {
		return fmt.Errorf("%w: mode %d != %d", txcmd.ErrTxOptionsMismatch, parent.Options.AccessMode(), o.Mode)
	}

	child, err := m.registry.Create(parent.ID, nil, txcmd.TxOptions{}, o.Metadata)
	if err != nil {
		return err
	}

	// statements of the scope must run on the connection of the tree
	scoped := handle
	if !txctx.SameConnection(handle.Connector(), parent.Connection) {
		scoped = handle.Bind(parent.Connection)
	}

	start := time.Now()
	handleID := scoped.HandleID()
	m.push(handleID, child.ID)

	completed := false
	defer func() {
		m.pop(handleID, child.ID)
		m.registry.Remove(child.ID)

		m.finish(ctx, child, start, o, scopeErr(err, completed))
	}()

	// just execute the function
	err = f(ctx, scoped)
	completed = true

	return err
}

func (m *Manager) runRoot(ctx context.Context, handle IHandle, f Func, o Options) (err error) {
	txOpts := txcmd.TxOptions{
		Level: o.Level,
		Mode:  o.Mode,
		Lock:  o.Lock,
	}

	var (
		root  *txctx.Context
		start = time.Now()
	)

	completed := false
	defer func() {
		if root != nil {
			m.finish(ctx, root, start, o, scopeErr(err, completed))
		}
	}()

	err = handle.Connector().Transaction(ctx, txOpts, func(ctxTr context.Context, txConn txcmd.IConnector) error {
		c, errCreate := m.registry.Create("", txConn, txOpts, o.Metadata)
		if errCreate != nil {
			return errCreate
		}
		root = c

		txHandle := handle.Bind(txConn)
		m.push(txHandle.HandleID(), c.ID)

		defer func() {
			m.registry.Remove(c.ID)
			m.clear(txHandle.HandleID())
			m.clear(handle.HandleID())
		}()

		return f(ctxTr, txHandle)
	})
	completed = true

	return err
}

// resolve finds the current context of the handle.
func (m *Manager) resolve(handle IHandle, parentID string) (*txctx.Context, error) {
	if parentID != "" {
		c, ok := m.registry.Get(parentID)
		if !ok {
			return nil, fmt.Errorf("parent %s: %w", parentID, txcmd.ErrContextNotFound)
		}
		return c, nil
	}

	if id, ok := m.current(handle.HandleID()); ok {
		if c, ok := m.registry.Get(id); ok {
			return c, nil
		}
	}

	// A handle created by the caller on a transaction connection has no association.
	if c, ok := m.registry.FindByConnection(handle.Connector()); ok {
		return c, nil
	}

	return nil, nil //nolint:nilnil // no active transaction
}

// HasActiveTransaction returns true if the handle runs inside a transaction.
func (m *Manager) HasActiveTransaction(handle IHandle) bool {
	c, err := m.resolve(handle, "")
	return err == nil && c != nil
}

// CurrentTransactionInfo returns information about the current transaction scope of the handle.
func (m *Manager) CurrentTransactionInfo(handle IHandle) TransactionInfo {
	c, err := m.resolve(handle, "")
	if err != nil || c == nil {
		//nolint:exhaustruct // not in transaction
		return TransactionInfo{}
	}

	return TransactionInfo{
		IsInTransaction: true,
		ContextID:       c.ID,
		Level:           c.Level,
		Options:         c.Options,
	}
}

// Stats returns statistics of all active scopes.
func (m *Manager) Stats() Stats {
	rs := m.registry.Stats()

	s := Stats{
		ActiveTransactions: rs.ActiveCount,
		Contexts:           make([]ContextStat, 0, len(rs.Entries)),
	}

	for _, e := range rs.Entries {
		s.Contexts = append(s.Contexts, ContextStat{
			ID:            e.ID,
			Level:         e.Level,
			Duration:      e.Duration,
			ChildrenCount: e.ChildCount,
		})
	}

	return s
}

// finish reports the finished scope.
func (m *Manager) finish(ctx context.Context, c *txctx.Context, start time.Time, o Options, err error) {
	duration := time.Since(start)

	if o.WarningThreshold > 0 && duration > o.WarningThreshold {
		m.logger.Warningf(ctx, "transaction %s (level %d) took %s, threshold %s, metadata: %v",
			c.ID, c.Level, duration, o.WarningThreshold, c.Metadata)
	}

	if m.observer != nil {
		m.observer.ObserveTransaction(ctx, Event{
			ContextID: c.ID,
			Level:     c.Level,
			Root:      c.IsRoot(),
			Duration:  duration,
			Err:       err,
		})
	}
}

func scopeErr(err error, completed bool) error {
	if !completed && err == nil {
		return ErrPanicked
	}
	return err
}

func (m *Manager) current(handleID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stack := m.handles[handleID]
	if len(stack) == 0 {
		return "", false
	}

	return stack[len(stack)-1], true
}

func (m *Manager) push(handleID, contextID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handles[handleID] = append(m.handles[handleID], contextID)
}

// pop removes contextID from the handle stack. Normally it is the top of the stack.
func (m *Manager) pop(handleID, contextID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stack := m.handles[handleID]
	if idx := slices.Index(stack, contextID); idx >= 0 {
		stack = slices.Delete(stack, idx, idx+1)
	}

	if len(stack) == 0 {
		delete(m.handles, handleID)
		return
	}

	m.handles[handleID] = stack
}

func (m *Manager) clear(handleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.handles, handleID)
}

// associations returns the number of handles with an active association. Used in tests.
func (m *Manager) associations() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.handles)
}
