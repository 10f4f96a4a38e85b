package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// QueryInfo summarizes one root field execution.
type QueryInfo struct {
	Connection  string
	Table       string
	Dialect     string
	Fingerprint string
	Depth       int
	Joins       int
}

// QuerySpanAttributes builds canonical span attributes for a root field execution.
func QuerySpanAttributes(info QueryInfo) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 6)
	if info.Connection != "" {
		attrs = append(attrs, attribute.String("sqlgraph.connection", info.Connection))
	}
	if info.Table != "" {
		attrs = append(attrs, attribute.String("sqlgraph.root_table", info.Table))
	}
	if info.Dialect != "" {
		attrs = append(attrs, attribute.String("db.system", info.Dialect))
	}
	if info.Fingerprint != "" {
		attrs = append(attrs, attribute.String("schema.fingerprint", info.Fingerprint))
	}
	attrs = append(attrs,
		attribute.Int("sqlgraph.plan.depth", info.Depth),
		attribute.Int("sqlgraph.plan.joins", info.Joins),
	)
	return attrs
}

// QueryLogFields builds canonical structured log fields for a root field execution.
func QueryLogFields(ctx context.Context, info QueryInfo) []any {
	fields := make([]any, 0, 6)
	if info.Connection != "" {
		fields = append(fields, slog.String("connection", info.Connection))
	}
	if info.Table != "" {
		fields = append(fields, slog.String("root_table", info.Table))
	}
	if info.Fingerprint != "" {
		fields = append(fields, slog.String("schema_fingerprint", info.Fingerprint))
	}
	fields = append(fields, slog.Int("plan_joins", info.Joins))

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		fields = append(fields, slog.String("trace_id", spanCtx.TraceID().String()))
	}
	return fields
}
