package command

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/n-r-w/txcmd"
)

// DefaultSplitSize number of rows in a single INSERT statement of BulkInsert.
const DefaultSplitSize = 500

type bulkOptions struct {
	primaryKey string
	splitSize  int
	suffix     string
}

// BulkOption option for BulkInsert.
type BulkOption func(*bulkOptions)

// WithPrimaryKey declares the primary key column. Rows with the same key are deduplicated, the last one wins.
func WithPrimaryKey(column string) BulkOption {
	return func(o *bulkOptions) {
		o.primaryKey = column
	}
}

// WithSplitSize sets the number of rows in one statement.
func WithSplitSize(size int) BulkOption {
	return func(o *bulkOptions) {
		o.splitSize = size
	}
}

// WithSuffix appends sql to every statement, e.g. a conflict clause.
func WithSuffix(sql string) BulkOption {
	return func(o *bulkOptions) {
		o.suffix = sql
	}
}

// BulkInsert inserts rows using multi-row INSERT statements of at most split size rows each.
// Every row must contain values for columns in the same order.
// If more than one statement is needed, they run in one transaction (joined with the current one, if any).
// Returns the number of inserted rows after deduplication.
// Configuration errors are returned before any statement is executed.
func (c *Command) BulkInsert(ctx context.Context, table string, columns []string, rows []txcmd.Args,
	opts ...BulkOption,
) (int, error) {
	o := bulkOptions{splitSize: DefaultSplitSize}
	for _, opt := range opts {
		opt(&o)
	}

	if err := validateBulk(columns, rows, o); err != nil {
		return 0, fmt.Errorf("command.BulkInsert %s: %w", table, err)
	}

	if len(rows) == 0 {
		return 0, nil
	}

	if o.primaryKey != "" {
		rows = dedupeRows(rows, slices.Index(columns, o.primaryKey))
	}

	statements := make([]Statement, 0, len(rows)/o.splitSize+1)
	quoted := make([]string, 0, len(columns))
	for _, col := range columns {
		quoted = append(quoted, c.quoteIdent(col))
	}

	for chunk := range slices.Chunk(rows, o.splitSize) {
		b := c.builder().Insert(c.quoteIdent(table)).Columns(quoted...)
		for _, row := range chunk {
			b = b.Values(row...)
		}
		if o.suffix != "" {
			b = b.Suffix(o.suffix)
		}

		stmt, err := c.toStatement(b)
		if err != nil {
			return 0, fmt.Errorf("command.BulkInsert %s to sql: %w", table, err)
		}
		statements = append(statements, stmt)
	}

	if len(statements) == 1 {
		if err := c.execute(ctx, table, statements[0]); err != nil {
			return 0, err
		}
		return len(rows), nil
	}

	err := c.Txn(ctx, func(ctx context.Context, tx *Command) error {
		for _, stmt := range statements {
			if err := tx.execute(ctx, table, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(rows), nil
}

func validateBulk(columns []string, rows []txcmd.Args, o bulkOptions) error {
	if len(columns) == 0 {
		return errors.New("columns are not set")
	}

	if o.splitSize <= 0 {
		return errors.New("split size must be greater than zero")
	}

	if o.primaryKey != "" && !slices.Contains(columns, o.primaryKey) {
		return fmt.Errorf("%w: %s", txcmd.ErrPrimaryKeyMissing, o.primaryKey)
	}

	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("%w: row %d has %d values, expected %d",
				txcmd.ErrColumnCountMismatch, i, len(row), len(columns))
		}
	}

	return nil
}

// dedupeRows keeps the last row for every key, in order of the first occurrence of the key.
func dedupeRows(rows []txcmd.Args, keyIdx int) []txcmd.Args {
	positions := make(map[string]int, len(rows))
	res := make([]txcmd.Args, 0, len(rows))

	for _, row := range rows {
		key := fmt.Sprintf("%T:%v", row[keyIdx], row[keyIdx])
		if pos, ok := positions[key]; ok {
			res[pos] = row
			continue
		}

		positions[key] = len(res)
		res = append(res, row)
	}

	return res
}
