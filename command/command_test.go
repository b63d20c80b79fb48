package command

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/n-r-w/txcmd"
	"github.com/n-r-w/txcmd/internal/testconn"
	"github.com/n-r-w/txcmd/txmgr"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newBufferLogger(t *testing.T) (*txcmd.SlogLogger, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	l, err := txcmd.NewSlogLogger(
		slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), "txcmd")
	require.NoError(t, err)

	return l, &buf
}

func insertLevel(ctx context.Context, tx *Command, level int) error {
	return tx.Create(ctx, "audit", map[string]any{"level": level})
}

func TestCommand_ThreeLevelsOneTransaction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := testconn.New()
	c := New(conn, WithManager(txmgr.New()))

	err := c.Txn(ctx, func(ctx context.Context, tx1 *Command) error {
		require.Equal(t, 1, tx1.CurrentTransactionInfo().Level)
		if err := insertLevel(ctx, tx1, 1); err != nil {
			return err
		}

		return tx1.Txn(ctx, func(ctx context.Context, tx2 *Command) error {
			require.Equal(t, 2, tx2.CurrentTransactionInfo().Level)
			if err := insertLevel(ctx, tx2, 2); err != nil {
				return err
			}

			return tx2.Txn(ctx, func(ctx context.Context, tx3 *Command) error {
				require.Equal(t, 3, tx3.CurrentTransactionInfo().Level)
				require.Equal(t, 3, tx3.Stats().ActiveTransactions)
				return insertLevel(ctx, tx3, 3)
			})
		})
	})
	require.NoError(t, err)

	require.Equal(t, 1, conn.TransactionStartCount())
	require.Equal(t, 1, conn.Commits())

	inserts := conn.StatementsWithPrefix("INSERT")
	require.Len(t, inserts, 3)
	for _, s := range inserts {
		require.Same(t, inserts[0].Conn, s.Conn)
		require.True(t, s.Conn.InTransaction())
	}

	require.Equal(t, 0, c.Stats().ActiveTransactions)
	require.False(t, c.InTransaction())
}

func TestCommand_NestedErrorRollsBackTree(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := testconn.New()
	c := New(conn, WithManager(txmgr.New()))
	boom := errors.New("boom")

	err := c.Txn(ctx, func(ctx context.Context, tx *Command) error {
		if err := insertLevel(ctx, tx, 1); err != nil {
			return err
		}

		if err := tx.Txn(ctx, func(ctx context.Context, tx *Command) error {
			if err := insertLevel(ctx, tx, 2); err != nil {
				return err
			}
			return boom
		}); err != nil {
			return err
		}

		return insertLevel(ctx, tx, 100)
	})

	require.Equal(t, boom, err)
	require.Equal(t, 0, c.Stats().ActiveTransactions)
	require.Equal(t, 1, conn.Rollbacks())
	require.Equal(t, 0, conn.Commits())
	require.Len(t, conn.StatementsWithPrefix("INSERT"), 2)
}

func TestCommand_NestedCallsDoNotTouchConnector(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mc := gomock.NewController(t)

	root := txcmd.NewMockIConnector(mc)
	txConn := txcmd.NewMockIConnector(mc)

	root.EXPECT().Transaction(gomock.Any(), gomock.Any(), gomock.Any()).Times(1).DoAndReturn(
		func(ctx context.Context, _ txcmd.TxOptions, f txcmd.TxFunc) error {
			return f(ctx, txConn)
		})
	txConn.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Times(2).Return(nil)

	c := New(root, WithManager(txmgr.New()))
	err := c.Txn(ctx, func(ctx context.Context, tx *Command) error {
		require.Same(t, txConn, tx.Connector())
		return tx.Txn(ctx, func(ctx context.Context, tx *Command) error {
			require.Same(t, txConn, tx.Connector())
			if err := tx.Exec(ctx, "SELECT 1", nil); err != nil {
				return err
			}
			return tx.Exec(ctx, "SELECT 2", nil)
		})
	})
	require.NoError(t, err)
}

func TestCommand_Legacy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := testconn.New()
	c := New(conn)

	require.Nil(t, c.Manager())
	require.False(t, c.InTransaction())

	err := c.Txn(ctx, func(ctx context.Context, tx1 *Command) error {
		require.Equal(t, 1, tx1.CurrentTransactionInfo().Level)
		return tx1.Txn(ctx, func(ctx context.Context, tx2 *Command) error {
			require.Equal(t, 2, tx2.CurrentTransactionInfo().Level)
			return tx2.Txn(ctx, func(ctx context.Context, tx3 *Command) error {
				require.True(t, tx3.InTransaction())
				require.Equal(t, 0, tx3.Stats().ActiveTransactions)
				return insertLevel(ctx, tx3, 3)
			})
		})
	})
	require.NoError(t, err)

	require.Equal(t, 3, conn.TransactionStartCount())
	require.Equal(t, 3, conn.Commits())
}

func TestCommand_LegacyWarningThreshold(t *testing.T) {
	t.Parallel()

	logger, buf := newBufferLogger(t)
	c := New(testconn.New(), WithLogger(logger))

	err := c.Txn(context.Background(), func(context.Context, *Command) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	}, txmgr.WithWarningThreshold(time.Millisecond), txmgr.WithMetadata(map[string]any{"op": "slow"}))
	require.NoError(t, err)

	require.Contains(t, buf.String(), "level=WARN")
	require.Contains(t, buf.String(), "op:slow")
}

func TestLegacyOptions(t *testing.T) {
	t.Parallel()

	o := legacyOptions(nil)
	require.Equal(t, txmgr.DefaultWarningThreshold, o.WarningThreshold)

	o = legacyOptions([]txmgr.Option{
		txmgr.WithWarningThreshold(time.Second),
		txmgr.WithTransactionLevel(txcmd.TxSerializable),
	})
	require.Equal(t, time.Second, o.WarningThreshold)
	require.Equal(t, txcmd.TxSerializable, o.Level)
}

func TestCommand_TxOptions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := testconn.New()
	c := New(conn, WithManager(txmgr.New()))

	err := c.Txn(ctx, func(ctx context.Context, tx *Command) error {
		require.Equal(t, txcmd.TxSerializable, tx.CurrentTransactionInfo().Options.Level)

		err := tx.Txn(ctx, func(context.Context, *Command) error {
			return nil
		}, txmgr.WithTransactionLevel(txcmd.TxReadCommitted))
		require.ErrorIs(t, err, txcmd.ErrTxOptionsMismatch)

		return nil
	}, txmgr.WithTransactionLevel(txcmd.TxSerializable), txmgr.WithTransactionMode(txcmd.TxReadOnly))
	require.NoError(t, err)

	require.Equal(t, []txcmd.TxOptions{{Level: txcmd.TxSerializable, Mode: txcmd.TxReadOnly}}, conn.TxOptions())

	// legacy mode passes options to every transaction
	conn = testconn.New()
	c = New(conn)
	require.NoError(t, c.Txn(ctx, func(context.Context, *Command) error {
		return nil
	}, txmgr.WithLock()))
	require.Equal(t, []txcmd.TxOptions{{Lock: true}}, conn.TxOptions())
}

func TestTxnValue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := testconn.New()
	conn.OnQuery(func(context.Context, string, txcmd.Args) ([]txcmd.Row, error) {
		return []txcmd.Row{{"count": 42}}, nil
	})
	c := New(conn, WithManager(txmgr.New()))

	v, err := TxnValue(ctx, c, func(ctx context.Context, tx *Command) (int, error) {
		rows, err := tx.Query(ctx, "SELECT count(*) AS count FROM users", nil)
		if err != nil {
			return 0, err
		}
		return rows[0]["count"].(int), nil //nolint:forcetypeassert // test
	})
	require.NoError(t, err)
	require.Equal(t, 42, v)

	boom := errors.New("boom")
	v, err = TxnValue(ctx, c, func(context.Context, *Command) (int, error) {
		return 1, boom
	})
	require.Equal(t, boom, err)
	require.Zero(t, v)
}

func TestCommand_Middlewares(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := testconn.New()

	var (
		order []string
		infos []StatementInfo
	)
	comment := func(name string) IMiddleware {
		return MiddlewareFunc(func(_ context.Context, stmt Statement, info StatementInfo) (Statement, error) {
			order = append(order, name)
			if name == "a" {
				infos = append(infos, info)
			}
			stmt.SQL += " /* " + name + " */"
			return stmt, nil
		})
	}

	c := New(conn, WithManager(txmgr.New()), WithMiddlewares(comment("a")))
	c.Use(comment("b"))

	require.NoError(t, c.Delete(ctx, "users", map[string]any{"id": 1}))
	require.Equal(t, "DELETE FROM `users` WHERE `id` = ? /* a */ /* b */", conn.Statements()[0].SQL)
	require.Equal(t, []string{"a", "b"}, order)
	require.Equal(t, KindExecute, infos[0].Kind)
	require.Equal(t, "users", infos[0].Table)
	require.False(t, infos[0].Tx.IsInTransaction)

	// middlewares are inherited by transaction handles
	err := c.Txn(ctx, func(ctx context.Context, tx *Command) error {
		_, err := tx.Query(ctx, "SELECT 1", nil)
		return err
	})
	require.NoError(t, err)

	st := conn.Statements()
	require.Equal(t, "SELECT 1 /* a */ /* b */", st[len(st)-1].SQL)
	require.Equal(t, KindQuery, infos[1].Kind)
	require.Empty(t, infos[1].Table)
	require.True(t, infos[1].Tx.IsInTransaction)
	require.Equal(t, 1, infos[1].Tx.Level)
}

func TestCommand_MiddlewareError(t *testing.T) {
	t.Parallel()

	conn := testconn.New()
	denied := errors.New("denied")

	logger, buf := newBufferLogger(t)
	pass := MiddlewareFunc(func(_ context.Context, stmt Statement, _ StatementInfo) (Statement, error) {
		return stmt, nil
	})
	deny := MiddlewareFunc(func(context.Context, Statement, StatementInfo) (Statement, error) {
		return Statement{}, denied
	})
	c := New(conn, WithLogger(logger), WithMiddlewares(pass, deny))

	err := c.Exec(context.Background(), "DROP TABLE users", nil)
	require.Equal(t, denied, err)
	require.Empty(t, conn.Statements())
	require.Contains(t, buf.String(), "middleware 1 rejected execute")
	require.Contains(t, buf.String(), "DROP TABLE users")
}

func TestCommand_ErrorLogging(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbErr := errors.New("syntax error")
	conn := testconn.New().OnExecute(func(context.Context, string, txcmd.Args) error {
		return dbErr
	})

	logger, buf := newBufferLogger(t)
	c := New(conn, WithLogger(logger))

	err := c.Exec(ctx, "UPDATE users SET name = ? WHERE id = ?", txcmd.Args{"bob", 7})
	require.Equal(t, dbErr, err)

	out := buf.String()
	require.Contains(t, out, "level=ERROR")
	require.Contains(t, out, "syntax error")
	require.Contains(t, out, "UPDATE users SET name = ? WHERE id = ?")
	require.Contains(t, out, "[bob 7]")
}

func TestCommand_LogQueries(t *testing.T) {
	t.Parallel()

	logger, buf := newBufferLogger(t)
	c := New(testconn.New(), WithLogger(logger), WithLogQueries())

	require.NoError(t, c.Exec(context.Background(), "SELECT 1", nil))
	require.Contains(t, buf.String(), "level=DEBUG")
	require.Contains(t, buf.String(), "execute: SELECT 1")

	buf.Reset()
	c = New(testconn.New(), WithLogger(logger))
	require.NoError(t, c.Exec(context.Background(), "SELECT 1", nil))
	require.Empty(t, buf.String())
}

func TestCommand_ConcurrentTrees(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := testconn.New()
	c := New(conn, WithManager(txmgr.New()))

	const trees = 10

	var wg sync.WaitGroup
	errs := make(chan error, trees)
	for range trees {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Txn(ctx, func(ctx context.Context, tx *Command) error {
				return tx.Txn(ctx, func(ctx context.Context, tx *Command) error {
					return insertLevel(ctx, tx, 2)
				})
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, trees, conn.TransactionStartCount())
	require.Equal(t, 0, c.Stats().ActiveTransactions)
}

func TestNew_NilConnector(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		New(nil)
	})
}

func TestStatementKind_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "execute", KindExecute.String())
	require.Equal(t, "query", KindQuery.String())
}
