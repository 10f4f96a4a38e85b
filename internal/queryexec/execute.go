// Package queryexec runs compiled plans through a database driver and shapes
// the flat result rows into nested objects.
package queryexec

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sqlgraph/internal/driver"
	"sqlgraph/internal/observability"
	"sqlgraph/internal/planner"
	"sqlgraph/internal/sqlrender"
)

// Execute renders the plan for the driver's dialect, runs it and nests the
// rows. The plan is only read, so concurrent executions may share nothing
// but the catalog it references.
func Execute(ctx context.Context, plan *planner.Plan, drv driver.DatabaseDriver) ([]map[string]any, error) {
	if plan == nil || plan.Root == nil {
		return nil, errors.New("execute: plan is empty")
	}
	if drv == nil {
		return nil, &driver.ExecutionError{Op: "query", Err: errors.New("no database driver configured")}
	}
	dialect := drv.Dialect()

	ctx, span := otel.Tracer("sqlgraph/queryexec").Start(ctx, "sqlgraph.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", dialect.Name),
		attribute.String("sqlgraph.root_table", plan.Root.Table.Name),
	)

	start := time.Now()
	metrics := observability.GraphQLMetricsFromContext(ctx)

	stmt, err := sqlrender.Render(plan, dialect)
	if err != nil {
		var unsupported *sqlrender.UnsupportedError
		if errors.As(err, &unsupported) {
			err = &driver.ExecutionError{Op: "render", Err: err}
		}
		return nil, finish(ctx, span, metrics, start, dialect.Name, 0, 0, err)
	}
	span.SetAttributes(attribute.String("db.statement", stmt.SQL))

	rows, err := drv.ExecuteQuery(ctx, stmt)
	if err != nil {
		return nil, finish(ctx, span, metrics, start, dialect.Name, 0, 0, err)
	}

	result := Nest(plan.Root, rows)
	span.SetAttributes(
		attribute.Int("sqlgraph.rows", len(rows)),
		attribute.Int("sqlgraph.results", len(result)),
	)
	return result, finish(ctx, span, metrics, start, dialect.Name, len(rows), len(result), nil)
}

func finish(ctx context.Context, span trace.Span, metrics *observability.GraphQLMetrics, start time.Time, dialect string, rows, results int, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if metrics != nil {
		metrics.RecordExecution(ctx, time.Since(start), rows, results, dialect, err != nil)
	}
	return err
}
