package serverapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"sqlgraph/internal/config"
	"sqlgraph/internal/dbexec"
	"sqlgraph/internal/driver"
	"sqlgraph/internal/logging"
	"sqlgraph/internal/middleware"
	"sqlgraph/internal/observability"
	"sqlgraph/internal/planner"
	"sqlgraph/internal/schemarefresh"
)

// InitTelemetry installs the configured OpenTelemetry providers and returns
// the process logger, bridged to OTLP when log export is enabled.
func InitTelemetry(ctx context.Context, cfg *config.Config) (*logging.Logger, *observability.Telemetry, error) {
	loggerCfg := logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	telemetry, err := observability.Setup(ctx, telemetryConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	if provider := telemetry.LoggerProvider(); provider != nil {
		logsConfig := cfg.Observability.GetLogsConfig()
		loggerCfg.LoggerProvider = provider
		logger = logging.NewLogger(loggerCfg)
		slog.SetDefault(logger.Logger)
		logger.Info("OpenTelemetry logging initialized",
			slog.String("otlp_endpoint", logsConfig.Endpoint),
			slog.String("otlp_protocol", logsConfig.Protocol),
		)
	}

	logger.Info("telemetry initialized",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
		slog.Bool("metrics", cfg.Observability.MetricsEnabled),
		slog.Bool("tracing", cfg.Observability.TracingEnabled),
	)
	return logger, telemetry, nil
}

func telemetryConfig(cfg *config.Config) observability.Config {
	out := observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		Metrics:          cfg.Observability.MetricsEnabled,
	}
	if cfg.Observability.TracingEnabled {
		out.Traces = exporterConfig(cfg.Observability.GetTracesConfig())
	}
	if cfg.Observability.Logging.ExportsEnabled {
		out.Logs = exporterConfig(cfg.Observability.GetLogsConfig())
	}
	return out
}

func exporterConfig(c config.OTLPConfig) *observability.OTLPExporterConfig {
	return &observability.OTLPExporterConfig{
		Endpoint:          c.Endpoint,
		Protocol:          c.Protocol,
		Insecure:          c.Insecure,
		TLSCertFile:       c.TLSCertFile,
		TLSClientCertFile: c.TLSClientCertFile,
		TLSClientKeyFile:  c.TLSClientKeyFile,
		Headers:           c.Headers,
		Timeout:           c.Timeout,
		Compression:       c.Compression,
		RetryEnabled:      c.RetryEnabled,
		RetryMaxAttempts:  c.RetryMaxAttempts,
	}
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.GraphQLMetrics, *observability.SchemaRefreshMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil
	}
	graphqlMetrics, err := observability.InitMetrics(logger.Logger)
	if err != nil {
		return nil, nil, err
	}
	schemaRefreshMetrics, err := observability.InitSchemaRefreshMetrics(logger.Logger)
	if err != nil {
		return nil, nil, err
	}
	return graphqlMetrics, schemaRefreshMetrics, nil
}

// openConnection opens the pool for one configured connection, waits for
// the database to answer and builds its driver.
func openConnection(ctx context.Context, cfg *config.Config, conn *config.ConnectionConfig, logger *logging.Logger) (*connection, error) {
	dialect, err := conn.Dialect()
	if err != nil {
		return nil, err
	}
	dsn, err := conn.BuildDSN()
	if err != nil {
		return nil, err
	}

	connLogger := logger.WithFields(slog.String("connection", conn.Name))
	connLogger.Info("connecting to database",
		slog.String("driver", dialect.Name),
		slog.String("dsn", conn.Redacted()),
	)

	handle, err := driver.Open(driver.OpenOptions{
		Dialect:      dialect,
		DSN:          dsn,
		Tracing:      cfg.Observability.TracingEnabled,
		Metrics:      cfg.Observability.MetricsEnabled,
		SQLCommenter: cfg.Observability.SQLCommenterEnabled,
		Pool: driver.PoolOptions{
			MaxOpen:     conn.Pool.MaxOpen,
			MaxIdle:     conn.Pool.MaxIdle,
			MaxLifetime: conn.Pool.MaxLifetime,
		},
	}, connLogger.Logger)
	if err != nil {
		return nil, err
	}

	drv, err := driver.NewSQLDriver(dbexec.NewStandardExecutor(handle.DB), dialect, driver.Options{
		Schema:       conn.Schema,
		QueryTimeout: conn.QueryTimeout,
		Procedures:   conn.Procedures,
		Filter:       conn.Filter,
		Logger:       connLogger.Logger,
	})
	if err != nil {
		_ = handle.Close()
		return nil, err
	}

	if err := driver.WaitForDatabase(ctx, drv, conn.ConnectionTimeout, conn.ConnectionRetryInterval, connLogger.Logger); err != nil {
		_ = handle.Close()
		return nil, err
	}

	connLogger.Info("connected to database",
		slog.String("sql_driver", handle.DriverName()),
		slog.Int("pool_max_open", conn.Pool.MaxOpen),
		slog.Int("pool_max_idle", conn.Pool.MaxIdle),
		slog.Duration("pool_max_lifetime", conn.Pool.MaxLifetime),
	)
	return &connection{name: conn.Name, handle: handle, driver: drv}, nil
}

func buildPlanLimits(cfg *config.Config) planner.PlanLimits {
	return planner.PlanLimits{
		MaxDepth: cfg.Server.GraphQLMaxDepth,
		MaxJoins: cfg.Server.GraphQLMaxJoins,
	}
}

func buildRouter(cfg *config.Config, logger *logging.Logger, registry *schemarefresh.Registry, metrics *observability.GraphQLMetrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.LoggingMiddleware(logger))

	r.Get("/health", healthHandler(registry, cfg.Server.HealthCheckTimeout))
	if cfg.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", "/metrics"))
	}

	r.Route("/graphql/{connection}", func(r chi.Router) {
		r.Use(managerContext(registry))
		r.Get("/schema.graphql", schemaHandler)

		graphql := r.With(
			middleware.GraphQLTracingMiddleware(connectionParam),
			middleware.GraphQLMetricsMiddleware(metrics, connectionParam),
		)
		graphql.Get("/", graphqlHandler)
		graphql.Post("/", graphqlHandler)
	})

	return r
}

func connectionParam(r *http.Request) string {
	return chi.URLParam(r, "connection")
}

func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
		)
		logger.Info("HTTP instrumentation enabled")
	}
	return handler
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}

	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}

	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

// normalizeHTTPSpanRoute collapses connection names so span names stay low
// cardinality.
func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/health", "/metrics":
		return rawPath
	}
	rest, ok := strings.CutPrefix(rawPath, "/graphql/")
	if !ok || rest == "" {
		return "/*"
	}
	name, tail, _ := strings.Cut(rest, "/")
	if name == "" {
		return "/*"
	}
	switch tail {
	case "":
		return "/graphql/{connection}"
	case "schema.graphql":
		return "/graphql/{connection}/schema.graphql"
	default:
		return "/*"
	}
}

func buildServer(cfg *config.Config, handler http.Handler, serverAddr string) *http.Server {
	return &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, connections []string) chan error {
	serverErrors := make(chan error, 1)
	go func() {
		logAttrs := []any{
			slog.String("address", srv.Addr),
			slog.String("graphql_endpoint", "/graphql/{connection}"),
			slog.String("health_endpoint", "/health"),
			slog.Any("connections", connections),
			slog.Int("graphql_max_depth", cfg.Server.GraphQLMaxDepth),
			slog.String("log_level", cfg.Observability.Logging.Level),
			slog.String("log_format", cfg.Observability.Logging.Format),
		}
		if cfg.Observability.MetricsEnabled {
			logAttrs = append(logAttrs, slog.String("metrics_endpoint", "/metrics"))
		}
		logger.Info("server starting", logAttrs...)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}
