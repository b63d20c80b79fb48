package txcmd

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_TruncSQL(t *testing.T) {
	t.Parallel()

	var sqlOK, sqlTrunc string
	for range sqlTruncLen {
		sqlOK += "1"
		sqlTrunc += "1"
	}
	sqlTrunc += "1"

	require.Len(t, TruncSQL(sqlTrunc), sqlTruncLen+3)
	require.Equal(t, sqlOK, TruncSQL(sqlOK))
}

func TestSlogLogger(t *testing.T) {
	t.Parallel()

	_, err := NewSlogLogger(nil, "db")
	require.Error(t, err)

	var buf bytes.Buffer
	l, err := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), "db")
	require.NoError(t, err)

	_, err = NewSlogLogger(slog.Default(), "")
	require.Error(t, err)

	ctx := context.Background()
	l.Debugf(ctx, "debug %d", 1)
	l.Warningf(ctx, "slow transaction %s", "abc")

	out := buf.String()
	require.Contains(t, out, "level=DEBUG")
	require.Contains(t, out, "debug 1")
	require.Contains(t, out, "level=WARN")
	require.Contains(t, out, "slow transaction abc")
}
