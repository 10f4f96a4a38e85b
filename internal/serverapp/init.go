package serverapp

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"sqlgraph/internal/config"
	"sqlgraph/internal/logging"
	"sqlgraph/internal/observability"
	"sqlgraph/internal/planner"
	"sqlgraph/internal/schemarefresh"
)

// Init opens every connection, builds the first schema snapshots and
// prepares the HTTP server. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	var steps releaseSteps
	success := false
	defer func() {
		if !success {
			_ = steps.run(context.Background(), a.logger)
		}
	}()

	if a.telemetry != nil {
		steps.add("telemetry", a.telemetry.Shutdown)
	}

	graphqlMetrics, schemaRefreshMetrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	connections := make([]*connection, len(a.cfg.Connections))
	g, gctx := errgroup.WithContext(ctx)
	for i := range a.cfg.Connections {
		conn := &a.cfg.Connections[i]
		g.Go(func() error {
			c, err := openConnection(gctx, a.cfg, conn, a.logger)
			if err != nil {
				return fmt.Errorf("connection %q: %w", conn.Name, err)
			}
			connections[i] = c
			return nil
		})
	}
	err = g.Wait()
	for _, c := range connections {
		if c == nil {
			continue
		}
		steps.addConnection(c)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	registry, err := buildRegistry(a.cfg, a.logger, connections, schemaRefreshMetrics)
	if err != nil {
		return fmt.Errorf("failed to initialize schema registry: %w", err)
	}
	if err := registry.Init(ctx); err != nil {
		return fmt.Errorf("failed to build schema: %w", err)
	}

	for _, name := range registry.Names() {
		m, err := registry.Get(name)
		if err != nil {
			return err
		}
		steps.addRefreshLoop(m)
	}

	router := buildRouter(a.cfg, a.logger, registry, graphqlMetrics)
	handler := wrapHTTPHandler(a.cfg, a.logger, router)

	serverAddr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	srv := buildServer(a.cfg, handler, serverAddr)
	steps.add("HTTP server", srv.Shutdown)

	a.logger.Info("schema registry ready",
		slog.Any("connections", registry.Names()),
		slog.Bool("graphiql", a.cfg.Server.GraphiQLEnabled),
	)

	a.stateMu.Lock()
	a.graphqlMetrics = graphqlMetrics
	a.schemaRefreshMetrics = schemaRefreshMetrics
	a.connections = connections
	a.registry = registry
	a.handler = handler
	a.serverAddr = serverAddr
	a.srv = srv
	a.release = steps
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}

// buildRegistry creates one schema manager per opened connection.
func buildRegistry(cfg *config.Config, logger *logging.Logger, connections []*connection, metrics *observability.SchemaRefreshMetrics) (*schemarefresh.Registry, error) {
	p := planner.New(buildPlanLimits(cfg))
	managers := make([]*schemarefresh.Manager, 0, len(connections))
	for _, c := range connections {
		m, err := schemarefresh.NewManager(schemarefresh.Config{
			Connection:  c.name,
			Driver:      c.driver,
			Planner:     p,
			Logger:      logger,
			Metrics:     metrics,
			MinInterval: cfg.Server.SchemaRefreshMinInterval,
			MaxInterval: cfg.Server.SchemaRefreshMaxInterval,
			GraphiQL:    cfg.Server.GraphiQLEnabled,
		})
		if err != nil {
			return nil, err
		}
		managers = append(managers, m)
	}
	return schemarefresh.NewRegistry(logger, managers...)
}
