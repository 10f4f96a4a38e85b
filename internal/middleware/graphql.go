package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sqlgraph/internal/logging"
	"sqlgraph/internal/observability"
)

const tracerName = "sqlgraph/middleware"

// GraphQLMetricsMiddleware records request counts and durations per
// connection. A response counts as failed when its status is 4xx/5xx or
// when the body carries a non-empty "errors" array.
func GraphQLMetricsMiddleware(metrics *observability.GraphQLMetrics, connection ConnectionFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ctx := observability.ContextWithGraphQLMetrics(r.Context(), metrics)

			metrics.IncrementActiveRequests(ctx)
			defer metrics.DecrementActiveRequests(ctx)

			var body bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&body)
			next.ServeHTTP(ww, r.WithContext(ctx))

			hasErrors := ww.Status() >= http.StatusBadRequest || responseHasGraphQLErrors(body.Bytes())
			metrics.RecordRequest(ctx, time.Since(start), hasErrors, connectionName(connection, r))
		})
	}
}

// GraphQLTracingMiddleware opens a span around each GraphQL request and
// tags it with the operation's shape. Resolver and SQL spans nest under it.
func GraphQLTracingMiddleware(connection ConnectionFunc) func(http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := readGraphQLRequest(r)
			summary, ok := summarizeOperation(req)
			name := connectionName(connection, r)

			attrs := []attribute.KeyValue{
				attribute.String("sqlgraph.connection", name),
			}
			if ok {
				attrs = append(attrs,
					attribute.String("graphql.operation.type", summary.Type),
					attribute.Int("graphql.document.fields", summary.Fields),
					attribute.Int("graphql.document.depth", summary.Depth),
					attribute.Int("graphql.document.variables", summary.Variables),
				)
				if summary.Name != "" {
					attrs = append(attrs, attribute.String("graphql.operation.name", summary.Name))
				}
			}

			ctx, span := tracer.Start(r.Context(), "graphql.request",
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			if ok {
				logging.FromContext(ctx).Log(ctx, slog.LevelDebug, "graphql operation",
					slog.String("connection", name),
					slog.String("operation_type", summary.Type),
					slog.String("operation_name", summary.Name),
					slog.Int("fields", summary.Fields),
					slog.Int("depth", summary.Depth),
				)
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			if status := ww.Status(); status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
		})
	}
}

func connectionName(fn ConnectionFunc, r *http.Request) string {
	if fn == nil {
		return ""
	}
	return fn(r)
}

func responseHasGraphQLErrors(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	var payload struct {
		Errors []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return len(payload.Errors) > 0
}
