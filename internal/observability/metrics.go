package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "sqlgraph"

// GraphQLMetrics holds custom metrics for GraphQL requests and the SQL they
// compile to.
type GraphQLMetrics struct {
	requestDuration   metric.Float64Histogram
	requestCounter    metric.Int64Counter
	errorCounter      metric.Int64Counter
	activeRequests    metric.Int64UpDownCounter
	planDepth         metric.Int64Histogram
	planJoins         metric.Int64Histogram
	compileErrors     metric.Int64Counter
	executionDuration metric.Float64Histogram
	resultRows        metric.Int64Histogram
	resultsCount      metric.Int64Histogram
}

// InitGraphQLMetrics initializes GraphQL-specific metrics
func InitGraphQLMetrics() (*GraphQLMetrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"graphql.request.duration",
		metric.WithDescription("Duration of GraphQL requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"graphql.requests.total",
		metric.WithDescription("Total number of GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"graphql.errors.total",
		metric.WithDescription("Total number of GraphQL errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"graphql.requests.active",
		metric.WithDescription("Number of active GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	planDepth, err := meter.Int64Histogram(
		"sqlgraph.plan.depth",
		metric.WithDescription("Nesting depth of compiled query plans"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan depth histogram: %w", err)
	}

	planJoins, err := meter.Int64Histogram(
		"sqlgraph.plan.joins",
		metric.WithDescription("Number of joins in compiled query plans"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan joins histogram: %w", err)
	}

	compileErrors, err := meter.Int64Counter(
		"sqlgraph.plan.compile_errors.total",
		metric.WithDescription("Number of selections rejected by the planner"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compile error counter: %w", err)
	}

	executionDuration, err := meter.Float64Histogram(
		"sqlgraph.execution.duration",
		metric.WithDescription("Duration of plan execution including row nesting in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution duration histogram: %w", err)
	}

	resultRows, err := meter.Int64Histogram(
		"sqlgraph.execution.rows",
		metric.WithDescription("Number of flat rows returned by the database per plan"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create result rows histogram: %w", err)
	}

	resultsCount, err := meter.Int64Histogram(
		"graphql.results.count",
		metric.WithDescription("Number of root objects returned by GraphQL queries"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create results count histogram: %w", err)
	}

	return &GraphQLMetrics{
		requestDuration:   requestDuration,
		requestCounter:    requestCounter,
		errorCounter:      errorCounter,
		activeRequests:    activeRequests,
		planDepth:         planDepth,
		planJoins:         planJoins,
		compileErrors:     compileErrors,
		executionDuration: executionDuration,
		resultRows:        resultRows,
		resultsCount:      resultsCount,
	}, nil
}

// RecordRequest records a GraphQL request with its duration and outcome
func (m *GraphQLMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, connection string) {
	attrs := []attribute.KeyValue{
		attribute.String("connection", connection),
		attribute.Bool("has_errors", hasErrors),
	}

	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if hasErrors {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("connection", connection),
		))
	}
}

// RecordPlan records the shape of a compiled plan.
func (m *GraphQLMetrics) RecordPlan(ctx context.Context, depth, joins int, table string) {
	attrs := metric.WithAttributes(attribute.String("table", table))
	m.planDepth.Record(ctx, int64(depth), attrs)
	m.planJoins.Record(ctx, int64(joins), attrs)
}

// RecordCompileError counts a rejected selection.
func (m *GraphQLMetrics) RecordCompileError(ctx context.Context, table string) {
	m.compileErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("table", table)))
}

// RecordExecution records one executed plan.
func (m *GraphQLMetrics) RecordExecution(ctx context.Context, duration time.Duration, rows, results int, dialect string, failed bool) {
	attrs := metric.WithAttributes(
		attribute.String("dialect", dialect),
		attribute.Bool("has_errors", failed),
	)
	m.executionDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if failed {
		return
	}
	m.resultRows.Record(ctx, int64(rows), metric.WithAttributes(attribute.String("dialect", dialect)))
	m.resultsCount.Record(ctx, int64(results), metric.WithAttributes(attribute.String("dialect", dialect)))
}

// IncrementActiveRequests increments the active requests counter
func (m *GraphQLMetrics) IncrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the active requests counter
func (m *GraphQLMetrics) DecrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, -1)
}

// InitMetrics initializes all custom metrics and returns the GraphQLMetrics instance
func InitMetrics(logger *slog.Logger) (*GraphQLMetrics, error) {
	metrics, err := InitGraphQLMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GraphQL metrics: %w", err)
	}

	logger.Info("custom GraphQL metrics initialized")
	return metrics, nil
}

type graphQLMetricsContextKey struct{}

// ContextWithGraphQLMetrics stores GraphQL metrics in the provided context.
func ContextWithGraphQLMetrics(ctx context.Context, metrics *GraphQLMetrics) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, graphQLMetricsContextKey{}, metrics)
}

// GraphQLMetricsFromContext retrieves GraphQL metrics from the context.
func GraphQLMetricsFromContext(ctx context.Context) *GraphQLMetrics {
	if ctx == nil {
		return nil
	}
	metrics, _ := ctx.Value(graphQLMetricsContextKey{}).(*GraphQLMetrics)
	return metrics
}
