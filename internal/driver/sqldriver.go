package driver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sqlgraph/internal/catalog"
	"sqlgraph/internal/dbexec"
	"sqlgraph/internal/schemafilter"
	"sqlgraph/internal/sqlrender"
)

// Options configures an SQLDriver.
type Options struct {
	// Schema restricts discovery to one database schema. Empty selects the
	// dialect default.
	Schema string
	// QueryTimeout bounds each statement. Zero disables the bound.
	QueryTimeout time.Duration
	// Procedures enables stored procedure discovery.
	Procedures bool
	// Filter hides tables and columns from discovery.
	Filter schemafilter.Config
	Logger *slog.Logger
}

// SQLDriver implements DatabaseDriver on top of database/sql.
type SQLDriver struct {
	exec    dbexec.QueryExecutor
	dialect sqlrender.Dialect
	queries metadataQueries
	opts    Options
	logger  *slog.Logger
}

// NewSQLDriver creates a driver for the given dialect.
func NewSQLDriver(exec dbexec.QueryExecutor, dialect sqlrender.Dialect, opts Options) (*SQLDriver, error) {
	queries, err := metadataFor(dialect)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Schema == "" {
		opts.Schema = queries.defaultSchema
	}
	return &SQLDriver{
		exec:    exec,
		dialect: dialect,
		queries: queries,
		opts:    opts,
		logger:  logger.With(slog.String("dialect", dialect.Name)),
	}, nil
}

func (d *SQLDriver) Dialect() sqlrender.Dialect {
	return d.dialect
}

// PingContext checks connectivity.
func (d *SQLDriver) PingContext(ctx context.Context) error {
	return d.exec.PingContext(ctx)
}

// GetSchema reads column metadata, and procedures when enabled.
func (d *SQLDriver) GetSchema(ctx context.Context) (*Schema, error) {
	columns, err := d.columns(ctx)
	if err != nil {
		return nil, err
	}
	schema := &Schema{Columns: schemafilter.Apply(columns, d.opts.Filter)}
	if d.opts.Procedures && d.queries.procedures != "" {
		procs, err := d.procedures(ctx)
		if err != nil {
			return nil, err
		}
		schema.Procedures = procs
	}
	d.logger.Debug("schema metadata loaded",
		slog.String("schema", d.opts.Schema),
		slog.Int("columns", len(schema.Columns)),
		slog.Int("procedures", len(schema.Procedures)),
	)
	return schema, nil
}

func (d *SQLDriver) columns(ctx context.Context) ([]catalog.ColumnMetadata, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	rows, err := d.exec.QueryContext(ctx, d.queries.columns, d.opts.Schema)
	if err != nil {
		return nil, &ExecutionError{Op: "schema discovery", Err: err}
	}
	defer rows.Close()

	var out []catalog.ColumnMetadata
	seen := make(map[string]bool)
	for rows.Next() {
		var c catalog.ColumnMetadata
		var position int64
		if err := rows.Scan(
			&c.SchemaName, &c.TableName, &c.ColumnNameDatabase, &c.TypeDatabase, &position,
			&c.IsNullable, &c.IsPrimaryKey, &c.IsIdentity, &c.IsForeignKey,
			&c.ForeignKeyTableName, &c.ForeignKeyColumnName,
		); err != nil {
			return nil, &ExecutionError{Op: "schema discovery", Err: err}
		}
		// A column taking part in several constraints is reported once per
		// constraint; the first report wins.
		key := c.SchemaName + "\x00" + c.TableName + "\x00" + c.ColumnNameDatabase
		if seen[key] {
			continue
		}
		seen[key] = true
		c.Position = int(position)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{Op: "schema discovery", Err: err}
	}
	return out, nil
}

func (d *SQLDriver) procedures(ctx context.Context) ([]Procedure, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	rows, err := d.exec.QueryContext(ctx, d.queries.procedures, d.opts.Schema)
	if err != nil {
		return nil, &ExecutionError{Op: "procedure discovery", Err: err}
	}
	defer rows.Close()

	var out []Procedure
	index := make(map[string]int)
	for rows.Next() {
		var schema, name, param, typ string
		var position int64
		if err := rows.Scan(&schema, &name, &param, &typ, &position); err != nil {
			return nil, &ExecutionError{Op: "procedure discovery", Err: err}
		}
		key := schema + "." + name
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, Procedure{Schema: schema, Name: name})
		}
		if param == "" {
			continue
		}
		out[i].Params = append(out[i].Params, ProcedureParam{
			Name:     strings.TrimPrefix(param, "@"),
			Type:     typ,
			Position: int(position),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{Op: "procedure discovery", Err: err}
	}
	return out, nil
}

// ExecuteQuery runs a rendered statement and returns its rows keyed by
// column alias.
func (d *SQLDriver) ExecuteQuery(ctx context.Context, stmt sqlrender.Statement) ([]Row, error) {
	d.logger.DebugContext(ctx, "executing query",
		slog.String("sql", stmt.SQL),
		slog.Int("args", len(stmt.Args)),
	)
	rows, err := d.query(ctx, stmt.SQL, stmt.Args)
	if err != nil {
		return nil, &ExecutionError{Op: "query", Statement: stmt.SQL, Err: err}
	}
	return rows, nil
}

// ExecuteStoredProcedure calls proc with the given named arguments and
// returns the first result set.
func (d *SQLDriver) ExecuteStoredProcedure(ctx context.Context, proc Procedure, args []ProcedureArg) ([]Row, error) {
	query, values, err := callStatement(d.dialect, proc, args)
	if err != nil {
		return nil, &ExecutionError{Op: "procedure " + proc.Name, Err: err}
	}
	d.logger.DebugContext(ctx, "calling procedure",
		slog.String("procedure", proc.Name),
		slog.String("sql", query),
	)
	rows, err := d.query(ctx, query, values)
	if err != nil {
		return nil, &ExecutionError{Op: "procedure " + proc.Name, Statement: query, Err: err}
	}
	return rows, nil
}

func (d *SQLDriver) query(ctx context.Context, query string, args []any) ([]Row, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	rows, err := d.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(columns))
		for i, name := range columns {
			row[name] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *SQLDriver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.opts.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.opts.QueryTimeout)
}

// normalizeValue converts driver byte slices into strings so text and
// decimal columns serialize as GraphQL scalars.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
