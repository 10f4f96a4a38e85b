package schemarefresh

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"

	"sqlgraph/internal/catalog"
	"sqlgraph/internal/driver"
	"sqlgraph/internal/planner"
	"sqlgraph/internal/resolver"
	"sqlgraph/internal/schemagen"
)

// Snapshot is an immutable schema build for one connection. Plans compiled
// against a snapshot keep its catalog even after a newer snapshot replaces it.
type Snapshot struct {
	Connection  string
	Catalog     *catalog.Catalog
	Document    *schemagen.Document
	Schema      *graphql.Schema
	Handler     http.Handler
	Procedures  []driver.Procedure
	BuiltAt     time.Time
	Fingerprint string
}

// BuildConfig defines inputs for shared schema assembly.
type BuildConfig struct {
	Connection string
	Driver     driver.DatabaseDriver
	Planner    *planner.Planner
	GraphiQL   bool
	Logger     *slog.Logger
}

// LoadCatalog reads metadata through the driver and builds the catalog.
func LoadCatalog(ctx context.Context, drv driver.DatabaseDriver, logger *slog.Logger) (*catalog.Catalog, []driver.Procedure, error) {
	if drv == nil {
		return nil, nil, fmt.Errorf("schema builder requires a database driver")
	}
	schema, err := drv.GetSchema(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read database metadata: %w", err)
	}
	cat, err := catalog.New(catalog.GroupColumns(schema.Columns), logger)
	if err != nil {
		return nil, nil, err
	}
	return cat, schema.Procedures, nil
}

// BuildSnapshot synthesizes the document and executable schema for a catalog.
func BuildSnapshot(cat *catalog.Catalog, procs []driver.Procedure, cfg BuildConfig) (*Snapshot, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	doc, err := schemagen.NewSynthesizer(logger).Build(cat)
	if err != nil {
		return nil, err
	}
	schema, err := resolver.NewSchema(doc, cat, resolver.Options{
		Planner:     cfg.Planner,
		Driver:      cfg.Driver,
		Connection:  cfg.Connection,
		Fingerprint: cat.Fingerprint(),
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build GraphQL schema: %w", err)
	}

	return &Snapshot{
		Connection: cfg.Connection,
		Catalog:    cat,
		Document:   doc,
		Schema:     &schema,
		Handler: handler.New(&handler.Config{
			Schema:     &schema,
			Pretty:     true,
			GraphiQL:   cfg.GraphiQL,
			Playground: false,
		}),
		Procedures:  procs,
		BuiltAt:     time.Now(),
		Fingerprint: cat.Fingerprint(),
	}, nil
}

// Build runs the whole pipeline: metadata, catalog, document, schema.
func Build(ctx context.Context, cfg BuildConfig) (*Snapshot, error) {
	cat, procs, err := LoadCatalog(ctx, cfg.Driver, cfg.Logger)
	if err != nil {
		return nil, err
	}
	return BuildSnapshot(cat, procs, cfg)
}
