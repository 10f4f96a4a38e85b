package serverapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sqlgraph/internal/driver"
	"sqlgraph/internal/logging"
	"sqlgraph/internal/schemarefresh"
)

type managerKey struct{}

// managerContext resolves the {connection} route parameter to its schema
// manager. Unknown names are answered with 404.
func managerContext(registry *schemarefresh.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := chi.URLParam(r, "connection")
			m, err := registry.Get(name)
			if err != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown connection"})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), managerKey{}, m)))
		})
	}
}

func managerFromContext(ctx context.Context) *schemarefresh.Manager {
	m, _ := ctx.Value(managerKey{}).(*schemarefresh.Manager)
	return m
}

func graphqlHandler(w http.ResponseWriter, r *http.Request) {
	managerFromContext(r.Context()).Handler().ServeHTTP(w, r)
}

// schemaHandler serves the SDL of the connection's active snapshot.
func schemaHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := managerFromContext(r.Context()).CurrentSnapshot()
	if snapshot == nil {
		http.Error(w, "schema not ready", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Last-Modified", snapshot.BuiltAt.UTC().Format(http.TimeFormat))
	_, _ = w.Write([]byte(snapshot.Document.SDL()))
}

type connectionHealth struct {
	Database string `json:"database"`
	Schema   string `json:"schema"`
}

type healthResponse struct {
	Status      string                      `json:"status"`
	Connections map[string]connectionHealth `json:"connections"`
}

// healthHandler pings every connection and reports whether each has a
// schema in service. Any failure makes the whole response 503.
func healthHandler(registry *schemarefresh.Registry, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		resp := healthResponse{Status: "healthy", Connections: map[string]connectionHealth{}}
		for _, name := range registry.Names() {
			m, err := registry.Get(name)
			if err != nil {
				continue
			}
			health := connectionHealth{Database: "ok", Schema: "ready"}
			if pinger, ok := m.Driver().(driver.Pinger); ok {
				if err := pinger.PingContext(ctx); err != nil {
					reqLogger.Error("health check failed",
						slog.String("connection", name),
						slog.String("check", "database"),
						slog.String("error", err.Error()),
					)
					health.Database = "failed"
					resp.Status = "unhealthy"
				}
			}
			if m.CurrentSnapshot() == nil {
				health.Schema = "not_ready"
				resp.Status = "unhealthy"
			}
			resp.Connections[name] = health
		}

		status := http.StatusOK
		if resp.Status != "healthy" {
			status = http.StatusServiceUnavailable
		} else {
			reqLogger.Debug("health check passed")
		}
		writeJSON(w, status, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// refreshAll rebuilds every connection and logs each outcome.
func refreshAll(ctx context.Context, registry *schemarefresh.Registry, logger *logging.Logger) error {
	outcomes, err := registry.RefreshAll(ctx)
	for name, outcome := range outcomes {
		logger.Info("schema refresh requested",
			slog.String("connection", name),
			slog.String("outcome", outcome),
		)
	}
	if err != nil {
		return fmt.Errorf("schema refresh failed: %w", err)
	}
	return nil
}
