package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sqlgraph/internal/logging"
	"sqlgraph/internal/schemarefresh"
)

// releaseStep frees one resource acquired during Init. Steps scoped to a
// database connection carry its name so shutdown logs can be filtered per
// connection.
type releaseStep struct {
	component  string
	connection string
	release    func(context.Context) error
}

// releaseSteps are run newest first, so a connection's refresh loop stops
// before its pool closes and the HTTP server drains before either.
type releaseSteps []releaseStep

func (s *releaseSteps) add(component string, release func(context.Context) error) {
	*s = append(*s, releaseStep{component: component, release: release})
}

// addConnection registers the pool of an opened connection.
func (s *releaseSteps) addConnection(c *connection) {
	*s = append(*s, releaseStep{
		component:  "database pool",
		connection: c.name,
		release: func(context.Context) error {
			return c.handle.Close()
		},
	})
}

// addRefreshLoop starts a manager's polling loop and registers its stop.
func (s *releaseSteps) addRefreshLoop(m *schemarefresh.Manager) {
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	*s = append(*s, releaseStep{
		component:  "schema refresh",
		connection: m.Connection(),
		release: func(shutdownCtx context.Context) error {
			cancel()
			return m.Wait(shutdownCtx)
		},
	})
}

// run releases every step and joins the failures. A failing step does not
// stop the ones after it.
func (s releaseSteps) run(ctx context.Context, logger *logging.Logger) error {
	var errs []error
	for i := len(s) - 1; i >= 0; i-- {
		step := s[i]
		attrs := []any{slog.String("component", step.component)}
		if step.connection != "" {
			attrs = append(attrs, slog.String("connection", step.connection))
		}
		if logger != nil {
			logger.Info("releasing", attrs...)
		}
		if err := step.release(ctx); err != nil {
			if logger != nil {
				logger.Warn("release failed", append(attrs, slog.String("error", err.Error()))...)
			}
			if step.connection != "" {
				err = fmt.Errorf("%s for connection %q: %w", step.component, step.connection, err)
			} else {
				err = fmt.Errorf("%s: %w", step.component, err)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shutdown releases everything Init acquired. Only the first call does work;
// later calls return nil.
func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	a.shutdownOnce.Do(func() {
		a.stateMu.Lock()
		steps := a.release
		a.started = false
		a.stateMu.Unlock()

		err = steps.run(ctx, a.logger)
	})
	return err
}
