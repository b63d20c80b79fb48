package command

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	sq "github.com/n-r-w/squirrel"
	"github.com/n-r-w/txcmd"
)

// Conditions are combined with AND. A nil value is rendered as IS NULL, a slice as IN.

// Create inserts a row.
func (c *Command) Create(ctx context.Context, table string, data map[string]any) error {
	stmt, err := c.toStatement(c.insertBuilder(table, data))
	if err != nil {
		return fmt.Errorf("command.Create %s to sql: %w", table, err)
	}

	return c.execute(ctx, table, stmt)
}

// Update updates rows matching where.
func (c *Command) Update(ctx context.Context, table string, where, data map[string]any) error {
	if len(where) == 0 {
		return fmt.Errorf("command.Update %s: %w", table, txcmd.ErrEmptyCondition)
	}

	stmt, err := c.toStatement(c.updateBuilder(table, where, data))
	if err != nil {
		return fmt.Errorf("command.Update %s to sql: %w", table, err)
	}

	return c.execute(ctx, table, stmt)
}

// Delete deletes rows matching where.
func (c *Command) Delete(ctx context.Context, table string, where map[string]any) error {
	if len(where) == 0 {
		return fmt.Errorf("command.Delete %s: %w", table, txcmd.ErrEmptyCondition)
	}

	stmt, err := c.toStatement(c.builder().Delete(c.quoteIdent(table)).Where(c.eq(where)))
	if err != nil {
		return fmt.Errorf("command.Delete %s to sql: %w", table, err)
	}

	return c.execute(ctx, table, stmt)
}

// Find returns the first row matching where or nil if nothing matches.
func (c *Command) Find(ctx context.Context, table string, where map[string]any) (txcmd.Row, error) {
	stmt, err := c.toStatement(c.selectBuilder(table, where).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("command.Find %s to sql: %w", table, err)
	}

	rows, err := c.query(ctx, table, stmt)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, nil
	}

	return rows[0], nil
}

// FindAll returns all rows matching where.
func (c *Command) FindAll(ctx context.Context, table string, where map[string]any) ([]txcmd.Row, error) {
	stmt, err := c.toStatement(c.selectBuilder(table, where))
	if err != nil {
		return nil, fmt.Errorf("command.FindAll %s to sql: %w", table, err)
	}

	return c.query(ctx, table, stmt)
}

// FindOrCreate returns the row matching where. If there is no such row, data is inserted and the row is read again.
// Returns *txcmd.RecordCreationError if the row is still missing after the insert.
func (c *Command) FindOrCreate(ctx context.Context, table string, where, data map[string]any) (txcmd.Row, error) {
	row, err := c.Find(ctx, table, where)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row, nil
	}

	if err = c.Create(ctx, table, data); err != nil {
		return nil, err
	}

	if row, err = c.Find(ctx, table, where); err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &txcmd.RecordCreationError{Table: table, Where: where}
	}

	return row, nil
}

// UpdateOrCreate updates rows matching where with update, or inserts create if nothing matches.
func (c *Command) UpdateOrCreate(ctx context.Context, table string, where, update, create map[string]any) error {
	row, err := c.Find(ctx, table, where)
	if err != nil {
		return err
	}

	if row == nil {
		return c.Create(ctx, table, create)
	}

	return c.Update(ctx, table, where, update)
}

func (c *Command) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(c.placeholder)
}

func (c *Command) insertBuilder(table string, data map[string]any) sq.InsertBuilder {
	columns := slices.Sorted(maps.Keys(data))

	quoted := make([]string, 0, len(columns))
	values := make([]any, 0, len(columns))
	for _, col := range columns {
		quoted = append(quoted, c.quoteIdent(col))
		values = append(values, data[col])
	}

	return c.builder().Insert(c.quoteIdent(table)).Columns(quoted...).Values(values...)
}

func (c *Command) updateBuilder(table string, where, data map[string]any) sq.UpdateBuilder {
	b := c.builder().Update(c.quoteIdent(table))
	for _, col := range slices.Sorted(maps.Keys(data)) {
		b = b.Set(c.quoteIdent(col), data[col])
	}

	return b.Where(c.eq(where))
}

func (c *Command) selectBuilder(table string, where map[string]any) sq.SelectBuilder {
	b := c.builder().Select("*").From(c.quoteIdent(table))
	if len(where) > 0 {
		b = b.Where(c.eq(where))
	}

	return b
}

// eq converts conditions to squirrel.Eq with quoted column names.
func (c *Command) eq(where map[string]any) sq.Eq {
	eq := make(sq.Eq, len(where))
	for col, v := range where {
		eq[c.quoteIdent(col)] = v
	}
	return eq
}

// quoteIdent quotes every dot-separated part of the identifier.
func (c *Command) quoteIdent(name string) string {
	if c.quote == "" {
		return name
	}

	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p == "*" {
			continue
		}
		parts[i] = c.quote + strings.ReplaceAll(p, c.quote, c.quote+c.quote) + c.quote
	}

	return strings.Join(parts, ".")
}

func (c *Command) toStatement(sqlizer sq.Sqlizer) (Statement, error) {
	sql, args, err := sqlizer.ToSql()
	if err != nil {
		return Statement{}, err
	}

	return Statement{SQL: sql, Args: args}, nil
}
