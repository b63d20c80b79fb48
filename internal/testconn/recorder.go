// Package testconn provides an in-memory txcmd.IConnector which records every call.
package testconn

import (
	"context"
	"strings"
	"sync"

	"github.com/n-r-w/txcmd"
)

// Statement recorded statement.
type Statement struct {
	Kind string // "execute" or "query"
	SQL  string
	Args txcmd.Args
	// Conn connector instance which executed the statement.
	Conn *Recorder
}

// ExecuteFunc replaces the default Execute behaviour.
type ExecuteFunc func(ctx context.Context, sql string, args txcmd.Args) error

// QueryFunc replaces the default Query behaviour (no rows).
type QueryFunc func(ctx context.Context, sql string, args txcmd.Args) ([]txcmd.Row, error)

// state is shared by a root Recorder and all transaction-bound recorders created from it.
type state struct {
	mu         sync.Mutex
	statements []Statement
	starts     int
	commits    int
	rollbacks  int
	txOptions  []txcmd.TxOptions
	onExecute  ExecuteFunc
	onQuery    QueryFunc
}

// Recorder implements txcmd.IConnector.
type Recorder struct {
	st    *state
	depth int
}

var _ txcmd.IConnector = (*Recorder)(nil)

// New creates a Recorder outside of any transaction.
func New() *Recorder {
	return &Recorder{st: &state{}}
}

// OnExecute sets a hook for Execute.
func (r *Recorder) OnExecute(f ExecuteFunc) *Recorder {
	r.st.mu.Lock()
	r.st.onExecute = f
	r.st.mu.Unlock()
	return r
}

// OnQuery sets a hook for Query.
func (r *Recorder) OnQuery(f QueryFunc) *Recorder {
	r.st.mu.Lock()
	r.st.onQuery = f
	r.st.mu.Unlock()
	return r
}

// InTransaction returns true for transaction-bound recorders.
func (r *Recorder) InTransaction() bool {
	return r.depth > 0
}

// Execute implements txcmd.IConnector.
func (r *Recorder) Execute(ctx context.Context, sql string, args txcmd.Args) error {
	r.st.mu.Lock()
	r.st.statements = append(r.st.statements, Statement{Kind: "execute", SQL: sql, Args: args, Conn: r})
	f := r.st.onExecute
	r.st.mu.Unlock()

	if f != nil {
		return f(ctx, sql, args)
	}
	return nil
}

// Query implements txcmd.IConnector.
func (r *Recorder) Query(ctx context.Context, sql string, args txcmd.Args) ([]txcmd.Row, error) {
	r.st.mu.Lock()
	r.st.statements = append(r.st.statements, Statement{Kind: "query", SQL: sql, Args: args, Conn: r})
	f := r.st.onQuery
	r.st.mu.Unlock()

	if f != nil {
		return f(ctx, sql, args)
	}
	return nil, nil
}

// Transaction implements txcmd.IConnector. Every call counts as a new physical transaction.
func (r *Recorder) Transaction(ctx context.Context, opts txcmd.TxOptions, f txcmd.TxFunc) (err error) {
	r.st.mu.Lock()
	r.st.starts++
	r.st.txOptions = append(r.st.txOptions, opts)
	r.st.mu.Unlock()

	tx := &Recorder{st: r.st, depth: r.depth + 1}

	defer func() {
		if p := recover(); p != nil {
			r.finish(false)
			panic(p)
		}
	}()

	if err = f(ctx, tx); err != nil {
		r.finish(false)
		return err
	}

	r.finish(true)
	return nil
}

func (r *Recorder) finish(commit bool) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if commit {
		r.st.commits++
	} else {
		r.st.rollbacks++
	}
}

// TransactionStartCount number of physical transactions opened.
func (r *Recorder) TransactionStartCount() int {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return r.st.starts
}

// Commits number of committed transactions.
func (r *Recorder) Commits() int {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return r.st.commits
}

// Rollbacks number of rolled back transactions.
func (r *Recorder) Rollbacks() int {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return r.st.rollbacks
}

// TxOptions options of every opened transaction in call order.
func (r *Recorder) TxOptions() []txcmd.TxOptions {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return append([]txcmd.TxOptions(nil), r.st.txOptions...)
}

// Statements returns all recorded statements.
func (r *Recorder) Statements() []Statement {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return append([]Statement(nil), r.st.statements...)
}

// StatementsWithPrefix returns recorded statements which SQL starts with prefix, e.g. "INSERT".
func (r *Recorder) StatementsWithPrefix(prefix string) []Statement {
	var res []Statement
	for _, s := range r.Statements() {
		if strings.HasPrefix(s.SQL, prefix) {
			res = append(res, s)
		}
	}
	return res
}
