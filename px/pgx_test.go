package px

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	sq "github.com/n-r-w/squirrel"
	"github.com/n-r-w/txcmd"
	"github.com/n-r-w/txcmd/command"
	"github.com/n-r-w/txcmd/txmgr"
	"github.com/stretchr/testify/require"
)

func newCommand(conn txcmd.IConnector, opts ...command.Option) *command.Command {
	opts = append([]command.Option{command.WithQuote(`"`), command.WithPlaceholderFormat(sq.Dollar)}, opts...)
	return command.New(conn, opts...)
}

func TestConn_NestedTxnOneTransaction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newFakeDB()
	c := newCommand(NewConn(db), command.WithManager(txmgr.New()))

	err := c.Txn(ctx, func(ctx context.Context, tx *command.Command) error {
		if err := tx.Create(ctx, "audit", map[string]any{"level": 1}); err != nil {
			return err
		}
		return tx.Txn(ctx, func(ctx context.Context, tx *command.Command) error {
			return tx.Create(ctx, "audit", map[string]any{"level": 2})
		})
	}, txmgr.WithTransactionLevel(txcmd.TxSerializable))
	require.NoError(t, err)

	require.Equal(t, []string{
		"begin",
		`exec tx1: INSERT INTO "audit" ("level") VALUES ($1)`,
		`exec tx1: INSERT INTO "audit" ("level") VALUES ($1)`,
		"commit tx1",
	}, db.j.list())
	require.Equal(t, []pgx.TxOptions{{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite}}, db.j.opts)
}

func TestConn_LegacySavepoints(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newFakeDB()
	c := newCommand(NewConn(db))
	boom := errors.New("boom")

	err := c.Txn(ctx, func(ctx context.Context, tx *command.Command) error {
		err := tx.Txn(ctx, func(ctx context.Context, tx *command.Command) error {
			if err := tx.Exec(ctx, "DELETE FROM audit", nil); err != nil {
				return err
			}
			return boom
		})
		require.Equal(t, boom, err)

		return tx.Exec(ctx, "INSERT INTO audit DEFAULT VALUES", nil)
	})
	require.NoError(t, err)

	require.Equal(t, []string{
		"begin",
		"savepoint tx2",
		"exec tx2: DELETE FROM audit",
		"rollback tx2",
		"exec tx1: INSERT INTO audit DEFAULT VALUES",
		"commit tx1",
	}, db.j.list())
}

func TestConn_ExecuteError(t *testing.T) {
	t.Parallel()

	db := newFakeDB()
	db.execErr = errors.New("syntax error")

	err := NewConn(db).Execute(context.Background(), "DELET FROM audit", nil)
	require.ErrorIs(t, err, db.execErr)
	require.Contains(t, err.Error(), "DELET FROM audit")
}

func TestConn_QueryError(t *testing.T) {
	t.Parallel()

	rows, err := NewConn(newFakeDB()).Query(context.Background(), "SELECT 1", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "query is not supported")
	require.Nil(t, rows)

	var dst []int
	require.Error(t, SelectPlain(context.Background(), newFakeDB(), "SELECT 1", &dst, nil))

	var one int
	require.Error(t, SelectOnePlain(context.Background(), newFakeDB(), "SELECT 1", &one, nil))
}

func TestTx_Accessor(t *testing.T) {
	t.Parallel()

	ftx := &fakeTx{j: &journal{}, depth: 1}
	tx := NewTx(ftx)
	require.Same(t, ftx, tx.Tx())

	require.NoError(t, tx.Execute(context.Background(), "SELECT 1", nil))
	require.Equal(t, []string{"exec tx1: SELECT 1"}, ftx.j.list())
}
