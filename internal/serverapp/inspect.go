package serverapp

import (
	"context"
	"fmt"
	"strings"

	"sqlgraph/internal/config"
	"sqlgraph/internal/logging"
	"sqlgraph/internal/planner"
	"sqlgraph/internal/schemarefresh"
)

// SelectConnection finds a configured connection by name. An empty name
// selects the only connection when exactly one is configured.
func SelectConnection(cfg *config.Config, name string) (*config.ConnectionConfig, error) {
	if name == "" {
		if len(cfg.Connections) == 1 {
			return &cfg.Connections[0], nil
		}
		return nil, fmt.Errorf("--connection is required when %d connections are configured (%s)", len(cfg.Connections), strings.Join(connectionNames(cfg), ", "))
	}
	for i := range cfg.Connections {
		if cfg.Connections[i].Name == name {
			return &cfg.Connections[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", schemarefresh.ErrUnknownConnection, name)
}

func connectionNames(cfg *config.Config) []string {
	names := make([]string, len(cfg.Connections))
	for i, c := range cfg.Connections {
		names[i] = c.Name
	}
	return names
}

// BuildSnapshot opens one connection, builds its schema once and closes the
// connection again. The CLI uses it to inspect a database without serving.
func BuildSnapshot(ctx context.Context, cfg *config.Config, name string, logger *logging.Logger) (*schemarefresh.Snapshot, error) {
	conn, err := SelectConnection(cfg, name)
	if err != nil {
		return nil, err
	}
	c, err := openConnection(ctx, cfg, conn, logger)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", conn.Name, err)
	}
	defer func() { _ = c.handle.Close() }()

	return schemarefresh.Build(ctx, schemarefresh.BuildConfig{
		Connection: c.name,
		Driver:     c.driver,
		Planner:    planner.New(buildPlanLimits(cfg)),
		Logger:     logger.Logger,
	})
}
