// Package sqlrender renders compiled query plans into dialect-specific SQL.
package sqlrender

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"sqlgraph/internal/catalog"
	"sqlgraph/internal/sqlutil"
)

// Dialect captures the SQL differences between supported databases.
type Dialect struct {
	Name          string
	Placeholder   sq.PlaceholderFormat
	QuoteStyle    sqlutil.QuoteStyle
	FullOuterJoin bool
}

var (
	MySQL     = Dialect{Name: "mysql", Placeholder: sq.Question, QuoteStyle: sqlutil.Backtick}
	Postgres  = Dialect{Name: "postgres", Placeholder: sq.Dollar, QuoteStyle: sqlutil.DoubleQuote, FullOuterJoin: true}
	SQLServer = Dialect{Name: "sqlserver", Placeholder: sq.AtP, QuoteStyle: sqlutil.Bracket, FullOuterJoin: true}
	SQLite    = Dialect{Name: "sqlite", Placeholder: sq.Question, QuoteStyle: sqlutil.DoubleQuote, FullOuterJoin: true}
)

// DialectByName resolves a dialect by its configured driver name.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql", "tidb", "mariadb":
		return MySQL, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlserver", "mssql":
		return SQLServer, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", name)
	}
}

// Quote quotes one identifier.
func (d Dialect) Quote(name string) string {
	return sqlutil.QuoteIdentifier(name, d.QuoteStyle)
}

// Table renders a schema-qualified table reference.
func (d Dialect) Table(t *catalog.Table) string {
	if t.Schema == "" {
		return d.Quote(t.Name)
	}
	return d.Quote(t.Schema) + "." + d.Quote(t.Name)
}

// Column renders alias.column.
func (d Dialect) Column(alias string, col *catalog.Column) string {
	return d.Quote(alias) + "." + d.Quote(col.Name)
}

// UnsupportedError reports a plan feature the dialect cannot express.
type UnsupportedError struct {
	Dialect string
	Feature string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Dialect, e.Feature)
}
