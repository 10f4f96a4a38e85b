// Package catalog holds the normalized, read-only table metadata for one
// database connection and the foreign-key graph derived from it.
//
// A Catalog is built once per schema snapshot and never mutated afterwards;
// the synthesizer and the planner receive it explicitly.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"sqlgraph/internal/naming"
	"sqlgraph/internal/sqltype"
)

// ColumnMetadata is one column row as reported by a driver.
type ColumnMetadata struct {
	SchemaName           string
	TableName            string
	ColumnNameDatabase   string
	ColumnNameEntity     string
	TypeDatabase         string
	TypeEntity           string
	Position             int
	IsNullable           bool
	IsPrimaryKey         bool
	IsIdentity           bool
	IsForeignKey         bool
	ForeignKeyTableName  string
	ForeignKeyColumnName string
}

// TableMetadata is an ordered group of columns sharing a table.
type TableMetadata struct {
	SchemaName string
	TableName  string
	Columns    []ColumnMetadata
}

// Column is a resolved column inside a catalog table.
type Column struct {
	Name        string // database spelling
	Entity      string // GraphQL field name
	NativeType  string
	EntityType  string
	GraphQLType sqltype.GraphQLType
	Position    int
	Nullable    bool
	PrimaryKey  bool
	Identity    bool
	// ForeignKey is nil for ordinary columns and for foreign keys whose
	// target could not be resolved.
	ForeignKey *ForeignKeyRef
}

// ForeignKeyRef names the column an FK column references.
type ForeignKeyRef struct {
	Table  *Table
	Column *Column
}

// Table is a catalog table.
type Table struct {
	ID      string // camelCase identifier used for root fields and type names
	Name    string
	Schema  string
	Columns []*Column

	byEntity map[string]*Column
	byName   map[string]*Column
}

// Column looks a column up by its entity (GraphQL) name.
func (t *Table) Column(entity string) *Column {
	return t.byEntity[entity]
}

// ColumnByName looks a column up by its database name.
func (t *Table) ColumnByName(name string) *Column {
	return t.byName[name]
}

// PrimaryKey returns the primary key columns in column order.
func (t *Table) PrimaryKey() []*Column {
	var pk []*Column
	for _, col := range t.Columns {
		if col.PrimaryKey {
			pk = append(pk, col)
		}
	}
	return pk
}

// DegradedForeignKey records an FK column whose declared target is absent.
type DegradedForeignKey struct {
	Table        string
	Column       string
	TargetTable  string
	TargetColumn string
}

// Catalog maps table identifiers to tables in insertion order.
type Catalog struct {
	tables      []*Table
	byID        map[string]*Table
	graph       *Graph
	degraded    []DegradedForeignKey
	fingerprint string
}

// GroupColumns groups flat column rows into tables in first-seen order.
func GroupColumns(rows []ColumnMetadata) []TableMetadata {
	var tables []TableMetadata
	index := make(map[string]int)
	for _, row := range rows {
		key := row.SchemaName + "\x00" + row.TableName
		i, ok := index[key]
		if !ok {
			i = len(tables)
			index[key] = i
			tables = append(tables, TableMetadata{SchemaName: row.SchemaName, TableName: row.TableName})
		}
		tables[i].Columns = append(tables[i].Columns, row)
	}
	return tables
}

// New builds a catalog. Empty tables, duplicate columns and identifier
// collisions are rejected with a *CatalogError. Foreign keys whose target
// table or column is missing degrade to plain columns and are logged.
func New(tables []TableMetadata, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Catalog{byID: make(map[string]*Table, len(tables))}
	hash := sha256.New()

	for _, meta := range tables {
		table, err := newTable(meta)
		if err != nil {
			return nil, err
		}
		if existing, ok := c.byID[table.ID]; ok {
			return nil, &CatalogError{
				Table:  meta.TableName,
				Reason: fmt.Sprintf("identifier %q collides with table %q", table.ID, qualified(existing.Schema, existing.Name)),
			}
		}
		c.tables = append(c.tables, table)
		c.byID[table.ID] = table
		writeFingerprint(hash, meta)
	}

	for i, meta := range tables {
		c.resolveForeignKeys(c.tables[i], meta, logger)
	}
	c.graph = buildGraph(c.tables)
	c.fingerprint = hex.EncodeToString(hash.Sum(nil))
	return c, nil
}

func newTable(meta TableMetadata) (*Table, error) {
	if strings.TrimSpace(meta.TableName) == "" {
		return nil, &CatalogError{Reason: "table name is empty"}
	}
	if len(meta.Columns) == 0 {
		return nil, &CatalogError{Table: meta.TableName, Reason: "table has no columns"}
	}

	ordered := make([]ColumnMetadata, len(meta.Columns))
	copy(ordered, meta.Columns)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})

	table := &Table{
		ID:       naming.TableIdentifier(meta.TableName),
		Name:     meta.TableName,
		Schema:   meta.SchemaName,
		Columns:  make([]*Column, 0, len(ordered)),
		byEntity: make(map[string]*Column, len(ordered)),
		byName:   make(map[string]*Column, len(ordered)),
	}
	if table.ID == "" {
		return nil, &CatalogError{Table: meta.TableName, Reason: "table name yields an empty identifier"}
	}

	for _, cm := range ordered {
		if strings.TrimSpace(cm.ColumnNameDatabase) == "" {
			return nil, &CatalogError{Table: meta.TableName, Reason: "column name is empty"}
		}
		entity := naming.Sanitize(strings.TrimSpace(cm.ColumnNameEntity))
		if entity == "" {
			entity = naming.EntityName(cm.ColumnNameDatabase)
		}
		col := &Column{
			Name:        cm.ColumnNameDatabase,
			Entity:      entity,
			NativeType:  cm.TypeDatabase,
			EntityType:  cm.TypeEntity,
			GraphQLType: sqltype.Map(cm.TypeEntity, cm.TypeDatabase),
			Position:    cm.Position,
			Nullable:    cm.IsNullable,
			PrimaryKey:  cm.IsPrimaryKey,
			Identity:    cm.IsIdentity,
		}
		if _, dup := table.byName[col.Name]; dup {
			return nil, &CatalogError{Table: meta.TableName, Column: col.Name, Reason: "duplicate column"}
		}
		if _, dup := table.byEntity[col.Entity]; dup {
			return nil, &CatalogError{Table: meta.TableName, Column: col.Name, Reason: fmt.Sprintf("duplicate field name %q", col.Entity)}
		}
		table.Columns = append(table.Columns, col)
		table.byName[col.Name] = col
		table.byEntity[col.Entity] = col
	}
	return table, nil
}

func (c *Catalog) resolveForeignKeys(table *Table, meta TableMetadata, logger *slog.Logger) {
	for _, cm := range meta.Columns {
		if !cm.IsForeignKey {
			continue
		}
		col := table.ColumnByName(cm.ColumnNameDatabase)
		target := c.lookupByName(meta.SchemaName, cm.ForeignKeyTableName)
		var targetCol *Column
		if target != nil {
			targetCol = target.ColumnByName(cm.ForeignKeyColumnName)
		}
		if target == nil || targetCol == nil {
			c.degraded = append(c.degraded, DegradedForeignKey{
				Table:        table.Name,
				Column:       col.Name,
				TargetTable:  cm.ForeignKeyTableName,
				TargetColumn: cm.ForeignKeyColumnName,
			})
			logger.Warn("foreign key target not found, treating column as scalar",
				slog.String("table", qualified(table.Schema, table.Name)),
				slog.String("column", col.Name),
				slog.String("target_table", cm.ForeignKeyTableName),
				slog.String("target_column", cm.ForeignKeyColumnName),
			)
			continue
		}
		col.ForeignKey = &ForeignKeyRef{Table: target, Column: targetCol}
	}
}

// lookupByName finds a table by database name within a schema.
func (c *Catalog) lookupByName(schema, name string) *Table {
	for _, t := range c.tables {
		if t.Schema == schema && t.Name == name {
			return t
		}
	}
	return nil
}

// Tables returns the tables in insertion order.
func (c *Catalog) Tables() []*Table {
	return c.tables
}

// Table looks a table up by identifier.
func (c *Catalog) Table(id string) *Table {
	return c.byID[id]
}

// Graph returns the foreign-key graph.
func (c *Catalog) Graph() *Graph {
	return c.graph
}

// Degraded lists foreign keys that were downgraded to scalar columns.
func (c *Catalog) Degraded() []DegradedForeignKey {
	return c.degraded
}

// Fingerprint is a stable hash of the metadata the catalog was built from.
func (c *Catalog) Fingerprint() string {
	return c.fingerprint
}

func writeFingerprint(w io.Writer, meta TableMetadata) {
	fmt.Fprintf(w, "T|%s|%s\n", meta.SchemaName, meta.TableName)
	for _, cm := range meta.Columns {
		fmt.Fprintf(w, "C|%s|%s|%s|%s|%d|%t|%t|%t|%t|%s|%s\n",
			cm.ColumnNameDatabase, cm.ColumnNameEntity, cm.TypeDatabase, cm.TypeEntity,
			cm.Position, cm.IsNullable, cm.IsPrimaryKey, cm.IsIdentity, cm.IsForeignKey,
			cm.ForeignKeyTableName, cm.ForeignKeyColumnName)
	}
}

func qualified(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}
