// Package txctx keeps bookkeeping records of active transaction scopes.
package txctx

import (
	"maps"
	"time"

	"github.com/n-r-w/txcmd"
)

// Context describes one level (root or nested) of an active transaction.
type Context struct {
	// ID process-unique identifier.
	ID string
	// Level nesting depth. Root is 1.
	Level int
	// Connection is shared by the root and all its descendants.
	// It is owned by the Connector transaction enclosing the root.
	Connection txcmd.IConnector
	// Options of the physical transaction. Descendants inherit them from the root.
	Options txcmd.TxOptions
	// StartedAt creation time.
	StartedAt time.Time
	// ParentID is empty for roots.
	ParentID string
	// Children ids of live child contexts.
	Children map[string]struct{}
	// Metadata informational values supplied by the caller.
	Metadata map[string]any
}

// IsRoot returns true for the outermost context of a tree.
func (c *Context) IsRoot() bool {
	return c.ParentID == ""
}

// clone returns a copy which doesn't share maps with the registry.
func (c *Context) clone() *Context {
	cp := *c
	cp.Children = maps.Clone(c.Children)
	cp.Metadata = maps.Clone(c.Metadata)
	if cp.Children == nil {
		cp.Children = map[string]struct{}{}
	}
	return &cp
}
