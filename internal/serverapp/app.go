// Package serverapp wires configured connections, schema managers and the
// HTTP server into one application lifecycle.
package serverapp

import (
	"fmt"
	"net/http"
	"sync"

	"sqlgraph/internal/config"
	"sqlgraph/internal/driver"
	"sqlgraph/internal/logging"
	"sqlgraph/internal/observability"
	"sqlgraph/internal/schemarefresh"
)

// App owns runtime resources for the sqlgraph server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	telemetry *observability.Telemetry

	graphqlMetrics       *observability.GraphQLMetrics
	schemaRefreshMetrics *observability.SchemaRefreshMetrics

	connections []*connection
	registry    *schemarefresh.Registry

	handler    http.Handler
	serverAddr string
	srv        *http.Server

	release releaseSteps

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// connection is one opened database pool and the driver built on it.
type connection struct {
	name   string
	handle *driver.Handle
	driver *driver.SQLDriver
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if len(cfg.Connections) == 0 {
		return nil, fmt.Errorf("at least one connection is required")
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// AttachTelemetry registers the telemetry providers for shutdown cleanup.
// Providers attached before Init are flushed last.
func (a *App) AttachTelemetry(t *observability.Telemetry) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.telemetry = t
}

// Registry returns the schema registry. It is nil before Init.
func (a *App) Registry() *schemarefresh.Registry {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.registry
}

// Handler returns the fully wrapped HTTP handler. It is nil before Init.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}
