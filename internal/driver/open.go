package driver

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	_ "modernc.org/sqlite"

	"sqlgraph/internal/sqlrender"
)

// PoolOptions configures the database/sql connection pool.
type PoolOptions struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

// OpenOptions describes how to open one connection pool.
type OpenOptions struct {
	Dialect      sqlrender.Dialect
	DSN          string
	Tracing      bool
	Metrics      bool
	SQLCommenter bool
	Pool         PoolOptions
}

// Handle is an open pool plus the instrumentation registered for it.
type Handle struct {
	DB         *sql.DB
	statsReg   interface{ Unregister() error }
	driverName string
}

// Close unregisters pool metrics and closes the pool.
func (h *Handle) Close() error {
	if h == nil || h.DB == nil {
		return nil
	}
	if h.statsReg != nil {
		_ = h.statsReg.Unregister()
	}
	return h.DB.Close()
}

// DriverName returns the database/sql driver the pool was opened with.
func (h *Handle) DriverName() string {
	return h.driverName
}

// sqlDriverName maps a dialect to its registered database/sql driver.
func sqlDriverName(d sqlrender.Dialect) (string, attribute.KeyValue, error) {
	switch d.Name {
	case sqlrender.MySQL.Name:
		return "mysql", semconv.DBSystemMySQL, nil
	case sqlrender.Postgres.Name:
		return "pgx", semconv.DBSystemPostgreSQL, nil
	case sqlrender.SQLServer.Name:
		return "sqlserver", semconv.DBSystemMSSQL, nil
	case sqlrender.SQLite.Name:
		return "sqlite", semconv.DBSystemSqlite, nil
	default:
		return "", attribute.KeyValue{}, fmt.Errorf("unsupported dialect %q", d.Name)
	}
}

// Open opens a connection pool, instrumented with otelsql when tracing or
// metrics are enabled.
func Open(opts OpenOptions, logger *slog.Logger) (*Handle, error) {
	name, system, err := sqlDriverName(opts.Dialect)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handle{driverName: name}
	if opts.Tracing || opts.Metrics {
		otelOpts := []otelsql.Option{otelsql.WithAttributes(system)}
		if opts.Tracing {
			otelOpts = append(otelOpts, otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}))
			if opts.SQLCommenter {
				otelOpts = append(otelOpts, otelsql.WithSQLCommenter(true))
			}
		} else if opts.SQLCommenter {
			logger.Warn("SQLCommenter requires tracing to be enabled - skipping SQLCommenter")
		}
		h.DB, err = otelsql.Open(name, opts.DSN, otelOpts...)
		if err != nil {
			return nil, err
		}
		if opts.Metrics {
			h.statsReg, err = otelsql.RegisterDBStatsMetrics(h.DB, otelsql.WithAttributes(system))
			if err != nil {
				logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
			}
		}
	} else {
		h.DB, err = sql.Open(name, opts.DSN)
		if err != nil {
			return nil, err
		}
	}

	if opts.Pool.MaxOpen > 0 {
		h.DB.SetMaxOpenConns(opts.Pool.MaxOpen)
	}
	if opts.Pool.MaxIdle > 0 {
		h.DB.SetMaxIdleConns(opts.Pool.MaxIdle)
	}
	if opts.Pool.MaxLifetime > 0 {
		h.DB.SetConnMaxLifetime(opts.Pool.MaxLifetime)
	}
	return h, nil
}

// Pinger is satisfied by *sql.DB and *SQLDriver.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// WaitForDatabase pings until the database answers or timeout elapses. A zero
// timeout tries once.
func WaitForDatabase(ctx context.Context, db Pinger, timeout, interval time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout == 0 {
		return db.PingContext(ctx)
	}
	if interval <= 0 {
		interval = time.Second
	}

	deadline := time.Now().Add(timeout)
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempt++
		err := db.PingContext(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not available after %v: %w", timeout, err)
		}

		logger.Warn("database not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		// Exponential backoff, capped at 30s
		interval = min(interval*2, 30*time.Second)
	}
}
