// Package driver defines the database boundary: schema discovery, query
// execution and stored procedure calls for one configured connection.
package driver

import (
	"context"
	"errors"
	"fmt"

	"sqlgraph/internal/catalog"
	"sqlgraph/internal/sqlrender"
)

// Row is one result row keyed by result column alias.
type Row map[string]any

// ProcedureParam describes one stored procedure parameter.
type ProcedureParam struct {
	Name     string
	Type     string
	Position int
}

// Procedure describes a stored procedure reported by the database.
type Procedure struct {
	Schema string
	Name   string
	Params []ProcedureParam
}

// ProcedureArg is a named argument passed to a stored procedure call.
type ProcedureArg struct {
	Name  string
	Value any
}

// Schema is the raw metadata a driver reports.
type Schema struct {
	Columns    []catalog.ColumnMetadata
	Procedures []Procedure
}

// DatabaseDriver is implemented by every database backend.
type DatabaseDriver interface {
	Dialect() sqlrender.Dialect
	GetSchema(ctx context.Context) (*Schema, error)
	ExecuteQuery(ctx context.Context, stmt sqlrender.Statement) ([]Row, error)
	ExecuteStoredProcedure(ctx context.Context, proc Procedure, args []ProcedureArg) ([]Row, error)
}

// ExecutionError wraps a database failure with the operation that caused it.
type ExecutionError struct {
	Op        string
	Statement string
	Err       error
}

func (e *ExecutionError) Error() string {
	if e.Statement == "" {
		return fmt.Sprintf("execute %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("execute %s: %v (statement: %s)", e.Op, e.Err, e.Statement)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsExecutionError reports whether err wraps an ExecutionError.
func IsExecutionError(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr)
}

type contextKey struct{}

// WithDriver attaches a driver to the request context.
func WithDriver(ctx context.Context, d DatabaseDriver) context.Context {
	return context.WithValue(ctx, contextKey{}, d)
}

// FromContext returns the driver attached to ctx, if any.
func FromContext(ctx context.Context) (DatabaseDriver, bool) {
	d, ok := ctx.Value(contextKey{}).(DatabaseDriver)
	return d, ok && d != nil
}
