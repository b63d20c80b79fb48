// Package txcmd contains the shared contracts of the command layer: the Connector
// interface implemented by database adapters, row and argument types, transaction
// options, logging and error helpers.
package txcmd

// Args is a slice of values for binding.
// Used to explicitly separate query parameters from other arguments.
type Args []any

// Row is a single result row keyed by column name.
type Row map[string]any

const sqlTruncLen = 100

// TruncSQL truncates sql to sqlTruncLen characters.
func TruncSQL(sql string) string {
	if len(sql) > sqlTruncLen {
		return sql[0:sqlTruncLen] + "..."
	}

	return sql
}
