package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"sqlgraph/internal/config"
	"sqlgraph/internal/logging"
	"sqlgraph/internal/schemarefresh"
	"sqlgraph/internal/serverapp"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("sqlgraph error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sqlgraph",
		Short: "Serve a read-only GraphQL API generated from relational database schemas",
		Long: `sqlgraph introspects one or more relational databases and serves a GraphQL
endpoint per connection at /graphql/{connection}. Without a subcommand it runs
the server.`,
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	config.DefineFlags(root.PersistentFlags())

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the GraphQL server (default)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	})
	root.AddCommand(newSchemaCmd())
	root.AddCommand(newCatalogCmd())
	return root
}

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the generated GraphQL SDL for a connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snapshot, err := inspect(cmd)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), snapshot.Document.SDL())
			return err
		},
	}
	cmd.Flags().String("connection", "", "Connection name (optional with a single connection)")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Summarize the tables, relationships and procedures of a connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snapshot, err := inspect(cmd)
			if err != nil {
				return err
			}
			renderCatalog(cmd.OutOrStdout(), snapshot)
			return nil
		},
	}
	cmd.Flags().String("connection", "", "Connection name (optional with a single connection)")
	return cmd
}

// loadConfig loads and validates configuration, logging warnings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = Version
	}

	validationResult := cfg.Validate()
	for _, warn := range validationResult.Warnings {
		slog.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
			slog.String("hint", warn.Hint),
		)
	}
	if validationResult.HasErrors() {
		for _, err := range validationResult.Errors {
			slog.Error("configuration error",
				slog.String("field", err.Field),
				slog.String("message", err.Message),
				slog.String("hint", err.Hint),
			)
		}
		return nil, fmt.Errorf("configuration validation failed")
	}
	return cfg, nil
}

func inspect(cmd *cobra.Command) (*schemarefresh.Snapshot, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	name, _ := cmd.Flags().GetString("connection")
	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	return serverapp.BuildSnapshot(cmd.Context(), cfg, name, logger)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, telemetry, err := serverapp.InitTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	app, err := serverapp.New(cfg, logger)
	if err != nil {
		_ = telemetry.Shutdown(context.Background())
		return err
	}
	app.AttachTelemetry(telemetry)

	if err := app.Init(ctx); err != nil {
		return err
	}

	serverErrors, err := app.Start()
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = app.Shutdown(shutdownCtx)
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(stop)

	_, waitErr := app.WaitForStop(stop, serverErrors)

	logger.Info("shutting down server gracefully")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	shutdownErr := app.Shutdown(shutdownCtx)
	shutdownCancel()

	if waitErr != nil {
		return waitErr
	}
	if shutdownErr != nil {
		return shutdownErr
	}

	logger.Info("server stopped gracefully")
	return nil
}

func renderCatalog(w io.Writer, snapshot *schemarefresh.Snapshot) {
	cat := snapshot.Catalog

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("%s: %d tables", snapshot.Connection, len(cat.Tables())))
	t.AppendHeader(table.Row{"Table", "Field", "Columns", "Primary key", "References", "Referenced by"})
	for _, tbl := range cat.Tables() {
		var pk []string
		for _, c := range tbl.PrimaryKey() {
			pk = append(pk, c.Name)
		}
		var refs []string
		for _, c := range tbl.Columns {
			if c.ForeignKey != nil {
				refs = append(refs, fmt.Sprintf("%s -> %s.%s", c.Name, c.ForeignKey.Table.Name, c.ForeignKey.Column.Name))
			}
		}
		t.AppendRow(table.Row{
			qualifiedName(tbl.Schema, tbl.Name),
			tbl.ID,
			len(tbl.Columns),
			strings.Join(pk, ", "),
			strings.Join(refs, "\n"),
			len(cat.Graph().Incoming(tbl.ID)),
		})
	}
	t.Render()

	if degraded := cat.Degraded(); len(degraded) > 0 {
		d := table.NewWriter()
		d.SetOutputMirror(w)
		d.SetStyle(table.StyleLight)
		d.SetTitle("Unresolved foreign keys")
		d.AppendHeader(table.Row{"Table", "Column", "Target"})
		for _, fk := range degraded {
			d.AppendRow(table.Row{fk.Table, fk.Column, fk.TargetTable + "." + fk.TargetColumn})
		}
		d.Render()
	}

	if len(snapshot.Procedures) > 0 {
		p := table.NewWriter()
		p.SetOutputMirror(w)
		p.SetStyle(table.StyleLight)
		p.SetTitle("Stored procedures")
		p.AppendHeader(table.Row{"Procedure", "Parameters"})
		for _, proc := range snapshot.Procedures {
			var params []string
			for _, param := range proc.Params {
				params = append(params, param.Name+" "+param.Type)
			}
			p.AppendRow(table.Row{qualifiedName(proc.Schema, proc.Name), strings.Join(params, ", ")})
		}
		p.Render()
	}
}

func qualifiedName(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}
