// Package sqlutil provides SQL quoting helpers shared by the dialects.
package sqlutil

import "strings"

// QuoteStyle selects how identifiers are delimited.
type QuoteStyle int

const (
	// Backtick quotes like `name` (MySQL).
	Backtick QuoteStyle = iota
	// DoubleQuote quotes like "name" (Postgres, SQLite).
	DoubleQuote
	// Bracket quotes like [name] (SQL Server).
	Bracket
)

// QuoteIdentifier quotes a SQL identifier (table name, column name, etc.)
// and escapes the closing delimiter within it.
func QuoteIdentifier(name string, style QuoteStyle) string {
	switch style {
	case DoubleQuote:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	case Bracket:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
}

// QuoteString quotes a SQL string literal with single quotes and escapes
// any single quotes within the string by doubling them.
func QuoteString(s string) string {
	escaped := strings.ReplaceAll(s, "'", "''")
	return "'" + escaped + "'"
}
