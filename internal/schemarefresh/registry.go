package schemarefresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"sqlgraph/internal/logging"
)

// Registry holds one manager per configured connection.
type Registry struct {
	managers map[string]*Manager
	order    []string
	logger   *logging.Logger
}

// NewRegistry wraps managers; connection names must be unique.
func NewRegistry(logger *logging.Logger, managers ...*Manager) (*Registry, error) {
	if logger == nil {
		logger = &logging.Logger{Logger: slog.Default()}
	}
	r := &Registry{managers: make(map[string]*Manager, len(managers)), logger: logger}
	for _, m := range managers {
		if _, dup := r.managers[m.Connection()]; dup {
			return nil, fmt.Errorf("duplicate connection name %q", m.Connection())
		}
		r.managers[m.Connection()] = m
		r.order = append(r.order, m.Connection())
	}
	sort.Strings(r.order)
	return r, nil
}

// Names lists the connection names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Get returns the manager for a connection.
func (r *Registry) Get(name string) (*Manager, error) {
	m, ok := r.managers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConnection, name)
	}
	return m, nil
}

// Init builds every connection's first snapshot concurrently. A connection
// that fails keeps serving "schema not ready" until a later refresh
// succeeds; Init only fails when no connection could be built.
func (r *Registry) Init(ctx context.Context) error {
	errs := make([]error, len(r.order))
	var g errgroup.Group
	for i, name := range r.order {
		m := r.managers[name]
		g.Go(func() error {
			errs[i] = m.Init(ctx)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed > 0 && failed == len(r.order) {
		return errors.Join(errs...)
	}
	if failed > 0 {
		r.logger.Warn("some connections started without a schema", slog.Int("failed", failed), slog.Int("total", len(r.order)))
	}
	return nil
}

// RefreshAll rebuilds every connection concurrently and reports each
// outcome. Failures are joined into the returned error.
func (r *Registry) RefreshAll(ctx context.Context) (map[string]string, error) {
	outcomes := make([]string, len(r.order))
	errs := make([]error, len(r.order))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range r.order {
		m := r.managers[name]
		g.Go(func() error {
			outcomes[i], errs[i] = m.RefreshNow(gctx)
			return nil
		})
	}
	_ = g.Wait()

	result := make(map[string]string, len(r.order))
	for i, name := range r.order {
		result[name] = outcomes[i]
	}
	return result, errors.Join(errs...)
}
