// Package schemarefresh builds schema snapshots per connection and swaps
// them atomically when the database schema changes.
package schemarefresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"sqlgraph/internal/driver"
	"sqlgraph/internal/logging"
	"sqlgraph/internal/observability"
	"sqlgraph/internal/planner"
)

// Refresh outcomes.
const (
	OutcomeSwapped   = "swapped"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
)

// Config controls schema refresh behavior for one connection.
type Config struct {
	Connection  string
	Driver      driver.DatabaseDriver
	Planner     *planner.Planner
	Logger      *logging.Logger
	Metrics     *observability.SchemaRefreshMetrics
	MinInterval time.Duration
	MaxInterval time.Duration
	GraphiQL    bool
}

// Manager maintains and refreshes the schema snapshot of one connection.
type Manager struct {
	connection  string
	driver      driver.DatabaseDriver
	planner     *planner.Planner
	logger      *logging.Logger
	metrics     *observability.SchemaRefreshMetrics
	minInterval time.Duration
	maxInterval time.Duration
	graphiQL    bool

	active atomic.Pointer[Snapshot]
	// refreshMu serializes rebuilds; readers never take it.
	refreshMu sync.Mutex
	wg        sync.WaitGroup
}

// NewManager validates the configuration. No snapshot exists until Init or
// RefreshNow succeeds.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Driver == nil {
		return nil, fmt.Errorf("schema refresh manager for %q requires a database driver", cfg.Connection)
	}
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}
	if cfg.Planner == nil {
		cfg.Planner = planner.New(planner.PlanLimits{})
	}

	minInterval := cfg.MinInterval
	maxInterval := cfg.MaxInterval
	if maxInterval < minInterval {
		maxInterval = minInterval
	}

	return &Manager{
		connection:  cfg.Connection,
		driver:      cfg.Driver,
		planner:     cfg.Planner,
		logger:      cfg.Logger.WithFields(slog.String("component", "schema_refresh"), slog.String("connection", cfg.Connection)),
		metrics:     cfg.Metrics,
		minInterval: minInterval,
		maxInterval: maxInterval,
		graphiQL:    cfg.GraphiQL,
	}, nil
}

// Connection returns the connection name.
func (m *Manager) Connection() string {
	return m.connection
}

// Driver returns the connection's database driver.
func (m *Manager) Driver() driver.DatabaseDriver {
	return m.driver
}

// Init builds the first snapshot.
func (m *Manager) Init(ctx context.Context) error {
	_, err := m.refresh(ctx, "startup")
	return err
}

// RefreshNow rebuilds the schema and swaps it in when the fingerprint
// changed. On failure the previous snapshot stays in service.
func (m *Manager) RefreshNow(ctx context.Context) (string, error) {
	return m.refresh(ctx, "manual")
}

// CurrentSnapshot returns the active schema snapshot, or nil before the
// first successful build.
func (m *Manager) CurrentSnapshot() *Snapshot {
	return m.active.Load()
}

// Handler serves the current snapshot. The snapshot is resolved per request
// so a swap never affects a request already being served.
func (m *Manager) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snapshot := m.CurrentSnapshot()
		if snapshot == nil || snapshot.Handler == nil {
			http.Error(w, "schema not ready", http.StatusServiceUnavailable)
			return
		}
		snapshot.Handler.ServeHTTP(w, r.WithContext(driver.WithDriver(r.Context(), m.driver)))
	})
}

// Start begins the background refresh loop. A zero minimum interval
// disables polling.
func (m *Manager) Start(ctx context.Context) {
	if m.minInterval <= 0 {
		m.logger.Info("schema polling disabled")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.refreshLoop(ctx)
	}()
}

// Wait blocks until the refresh loop exits or the context is canceled.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) refreshLoop(ctx context.Context) {
	interval := m.minInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("schema refresh stopped")
			return
		case <-timer.C:
			outcome, err := m.refresh(ctx, "poll")
			switch {
			case err != nil:
				interval = m.minInterval
			case outcome == OutcomeUnchanged:
				interval = nextInterval(interval, m.minInterval, m.maxInterval)
			default:
				interval = m.minInterval
			}
			timer.Reset(interval)
		}
	}
}

func (m *Manager) refresh(ctx context.Context, trigger string) (string, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	start := time.Now()
	cat, procs, err := LoadCatalog(ctx, m.driver, m.logger.Logger)
	if err != nil {
		return m.fail(ctx, trigger, start, err)
	}

	current := m.active.Load()
	if current != nil && current.Fingerprint == cat.Fingerprint() {
		m.record(ctx, trigger, OutcomeUnchanged, start)
		m.logger.Debug("schema unchanged", slog.String("trigger", trigger))
		return OutcomeUnchanged, nil
	}

	if current != nil {
		m.logger.Info("schema change detected, rebuilding",
			slog.String("trigger", trigger),
			slog.String("previous_fingerprint", current.Fingerprint),
			slog.String("fingerprint", cat.Fingerprint()),
		)
	}

	snapshot, err := BuildSnapshot(cat, procs, BuildConfig{
		Connection: m.connection,
		Driver:     m.driver,
		Planner:    m.planner,
		GraphiQL:   m.graphiQL,
		Logger:     m.logger.Logger,
	})
	if err != nil {
		return m.fail(ctx, trigger, start, err)
	}

	m.active.Store(snapshot)
	m.record(ctx, trigger, OutcomeSwapped, start)
	m.logger.Info("schema snapshot installed",
		slog.String("trigger", trigger),
		slog.String("fingerprint", snapshot.Fingerprint),
		slog.Int("tables", len(cat.Tables())),
		slog.Int("degraded_foreign_keys", len(cat.Degraded())),
		slog.Int("procedures", len(procs)),
		slog.Duration("duration", time.Since(start)),
	)
	return OutcomeSwapped, nil
}

func (m *Manager) fail(ctx context.Context, trigger string, start time.Time, err error) (string, error) {
	m.record(ctx, trigger, OutcomeFailed, start)
	attrs := []any{slog.String("trigger", trigger), slog.String("error", err.Error())}
	if m.active.Load() != nil {
		attrs = append(attrs, slog.Bool("previous_snapshot_kept", true))
	}
	m.logger.Error("schema refresh failed", attrs...)
	return OutcomeFailed, fmt.Errorf("schema refresh for %q: %w", m.connection, err)
}

func (m *Manager) record(ctx context.Context, trigger, outcome string, start time.Time) {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordRefresh(ctx, m.connection, trigger, outcome, time.Since(start))
}

func nextInterval(current, minInterval, maxInterval time.Duration) time.Duration {
	if current <= 0 {
		return minInterval
	}
	next := current * 2
	if next > maxInterval {
		return maxInterval
	}
	return next
}

// ErrUnknownConnection is returned for a connection name the registry does
// not serve.
var ErrUnknownConnection = errors.New("unknown connection")
