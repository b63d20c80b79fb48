package txctx

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/n-r-w/txcmd"
)

// Registry owns all live transaction contexts.
// Independent trees may run on different goroutines, so the maps are guarded by a mutex.
// The mutex protects bookkeeping only and is never held while user code runs.
type Registry struct {
	mu       sync.RWMutex
	contexts map[string]*Context

	logger txcmd.ILogger
	now    func() time.Time
}

// Entry statistics for one live context.
type Entry struct {
	ID         string
	Level      int
	Duration   time.Duration
	ChildCount int
}

// Stats read-only snapshot of the registry.
type Stats struct {
	ActiveCount int
	Entries     []Entry
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		contexts: make(map[string]*Context),
		logger:   txcmd.NopLogger{},
		now:      time.Now,
	}

	for _, o := range opts {
		o(r)
	}

	return r
}

// Create registers a new context. Without parentID a root context (level 1) is created on conn with opts.
// A child context inherits connection and options from its parent; conn and opts are ignored for it.
func (r *Registry) Create(parentID string, conn txcmd.IConnector, opts txcmd.TxOptions,
	metadata map[string]any,
) (*Context, error) {
	id := newID()

	r.mu.Lock()

	c := &Context{
		ID:         id,
		Level:      1,
		Connection: conn,
		Options:    opts,
		StartedAt:  r.now(),
		Children:   make(map[string]struct{}),
		Metadata:   metadata,
	}

	if parentID != "" {
		parent, ok := r.contexts[parentID]
		if !ok {
			r.mu.Unlock()
			return nil, fmt.Errorf("parent %s: %w", parentID, txcmd.ErrContextNotFound)
		}

		c.ParentID = parent.ID
		c.Level = parent.Level + 1
		c.Connection = parent.Connection
		c.Options = parent.Options
		parent.Children[id] = struct{}{}
	}

	r.contexts[id] = c
	cp := c.clone()

	r.mu.Unlock()

	r.logger.Debugf(context.Background(), "transaction context %s created, level %d, parent %q", id, cp.Level, parentID)

	return cp, nil
}

// Remove removes the context and all its descendants. Unknown ids are ignored.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	removed := r.removeLocked(id)
	r.mu.Unlock()

	if removed > 0 {
		r.logger.Debugf(context.Background(), "transaction context %s removed with %d descendants", id, removed-1)
	}
}

// removeLocked returns the number of removed contexts.
func (r *Registry) removeLocked(id string) int {
	c, ok := r.contexts[id]
	if !ok {
		return 0
	}

	removed := 0
	for childID := range c.Children {
		removed += r.removeLocked(childID)
	}

	if c.ParentID != "" {
		if parent, ok := r.contexts[c.ParentID]; ok {
			delete(parent.Children, id)
		}
	}

	delete(r.contexts, id)

	return removed + 1
}

// Get returns a snapshot of the context.
func (r *Registry) Get(id string) (*Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contexts[id]
	if !ok {
		return nil, false
	}

	return c.clone(), true
}

// FindByConnection returns the deepest live context running on conn.
// It scans all live contexts and is used only when a handle has no direct association.
func (r *Registry) FindByConnection(conn txcmd.IConnector) (*Context, bool) {
	if !isComparable(conn) {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *Context
	for _, c := range r.contexts {
		if !SameConnection(c.Connection, conn) {
			continue
		}

		if found == nil || c.Level > found.Level {
			found = c
		}
	}

	if found == nil {
		return nil, false
	}

	return found.clone(), true
}

// SameConnection reports whether a and b are the same connector.
// Connectors holding non-comparable values never match.
func SameConnection(a, b txcmd.IConnector) bool {
	if !isComparable(a) || !isComparable(b) {
		return false
	}

	return a == b
}

// isComparable checks the dynamic value, including interfaces nested in structs.
func isComparable(conn txcmd.IConnector) bool {
	return conn != nil && reflect.ValueOf(conn).Comparable()
}

// Stats returns statistics of live contexts ordered by level and start time.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	contexts := make([]*Context, 0, len(r.contexts))
	for _, c := range r.contexts {
		contexts = append(contexts, c)
	}

	sort.Slice(contexts, func(i, j int) bool {
		if contexts[i].Level != contexts[j].Level {
			return contexts[i].Level < contexts[j].Level
		}
		return contexts[i].StartedAt.Before(contexts[j].StartedAt)
	})

	s := Stats{
		ActiveCount: len(contexts),
		Entries:     make([]Entry, 0, len(contexts)),
	}

	for _, c := range contexts {
		s.Entries = append(s.Entries, Entry{
			ID:         c.ID,
			Level:      c.Level,
			Duration:   now.Sub(c.StartedAt),
			ChildCount: len(c.Children),
		})
	}

	return s
}

// newID generates a time-ordered identifier.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
