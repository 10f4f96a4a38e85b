package schemagen

import (
	"fmt"
	"log/slog"

	"sqlgraph/internal/catalog"
	"sqlgraph/internal/naming"
)

// Synthesizer turns a catalog into a schema document.
type Synthesizer struct {
	logger *slog.Logger
}

// NewSynthesizer creates a synthesizer. A nil logger uses slog.Default.
func NewSynthesizer(logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{logger: logger}
}

// BuildSchema synthesizes the document for a catalog using the default logger.
func BuildSchema(cat *catalog.Catalog) (*Document, error) {
	return NewSynthesizer(nil).Build(cat)
}

// Build synthesizes the document for a catalog.
func (s *Synthesizer) Build(cat *catalog.Catalog) (*Document, error) {
	if cat == nil || len(cat.Tables()) == 0 {
		return nil, &catalog.CatalogError{Reason: "catalog has no tables"}
	}

	fragments := vocabulary()
	roots := make([]RootField, 0, len(cat.Tables()))
	for _, table := range cat.Tables() {
		fragments = append(fragments, s.tableFragments(cat.Graph(), table)...)
		fragments = append(fragments, Definition{
			Kind:   KindObject,
			Name:   QueryTypeName,
			Fields: []Field{rootField(table)},
		})
		roots = append(roots, RootField{Name: table.ID, TableID: table.ID})
	}

	defs, err := Merge(fragments)
	if err != nil {
		return nil, fmt.Errorf("failed to merge schema fragments: %w", err)
	}
	doc := &Document{Definitions: defs, RootFields: roots, byName: make(map[string]int, len(defs))}
	for i, def := range defs {
		doc.byName[def.Name] = i
	}
	return doc, nil
}

func rootField(table *catalog.Table) Field {
	return Field{
		Name: table.ID,
		Type: ListOf(naming.TypeName(table.ID, naming.RoleType)),
		Args: filterArgs(table.ID),
	}
}

// filterArgs are the where/orderBy/groupBy arguments reading a table.
func filterArgs(tableID string) []Argument {
	return []Argument{
		{Name: "where", Type: Named(naming.TypeName(tableID, naming.RoleWhere))},
		{Name: "orderBy", Type: ListOf(naming.TypeName(tableID, naming.RoleOrder))},
		{Name: "groupBy", Type: Named(naming.TypeName(tableID, naming.RoleGroupBy))},
	}
}

func joinField(name, parentID, targetID string) Field {
	args := append([]Argument{
		{Name: "join", Type: Named(naming.PairTypeName(parentID, targetID, naming.RoleJoin))},
	}, filterArgs(targetID)...)
	return Field{
		Name: name,
		Type: ListOf(naming.TypeName(targetID, naming.RoleType)),
		Args: args,
	}
}

func (s *Synthesizer) tableFragments(graph *catalog.Graph, table *catalog.Table) []Definition {
	var frags []Definition
	reachable := graph.Reachable(table.ID)

	for _, other := range reachable {
		if other != table {
			frags = append(frags, tableDefinitions(other, linkedColumns(graph, table, other), true)...)
		}
	}
	for _, other := range reachable {
		frags = append(frags, pairDefinitions(graph, table, other)...)
	}

	for _, col := range table.Columns {
		if isConnective(col.Entity) {
			s.logger.Warn("column name collides with a where connective, not filterable",
				slog.String("table", table.Name),
				slog.String("column", col.Name),
			)
		}
	}
	own := tableDefinitions(table, table.Columns, false)
	own[0] = s.objectType(graph, table, reachable)
	return append(frags, own...)
}

const (
	connectiveAnd = "and"
	connectiveOr  = "or"
)

// isConnective reports whether a column name is taken by the boolean
// connectives of where inputs. Such columns stay selectable and orderable.
func isConnective(name string) bool {
	return name == connectiveAnd || name == connectiveOr
}

// tableDefinitions emits the object, column-equality, where, order, column
// enum and group-by declarations for a table, restricted to columns. The
// object declaration is always first.
func tableDefinitions(table *catalog.Table, columns []*catalog.Column, placeholder bool) []Definition {
	id := table.ID
	object := Definition{Kind: KindObject, Name: naming.TypeName(id, naming.RoleType), Placeholder: placeholder}
	equality := Definition{Kind: KindInput, Name: naming.TypeName(id, naming.RoleColumnEquality), Placeholder: placeholder}
	where := Definition{Kind: KindInput, Name: naming.TypeName(id, naming.RoleWhere), Placeholder: placeholder}
	order := Definition{Kind: KindInput, Name: naming.TypeName(id, naming.RoleOrder), Placeholder: placeholder}
	enum := Definition{Kind: KindEnum, Name: naming.TypeName(id, naming.RoleColumnEnum), Placeholder: placeholder}

	for _, col := range columns {
		object.Fields = append(object.Fields, Field{Name: col.Entity, Type: Named(col.GraphQLType.String())})
		if !isConnective(col.Entity) {
			equality.Fields = append(equality.Fields, Field{Name: col.Entity, Type: Named(InputEquality)})
			where.Fields = append(where.Fields, Field{Name: col.Entity, Type: Named(InputEquality)})
		}
		order.Fields = append(order.Fields, Field{Name: col.Entity, Type: Named(EnumOrderBy)})
		enum.Values = append(enum.Values, col.Entity)
	}
	if !placeholder {
		nested := ListOf(naming.TypeName(id, naming.RoleColumnEquality))
		for _, def := range []*Definition{&equality, &where} {
			def.Fields = append(def.Fields, Field{Name: connectiveAnd, Type: nested}, Field{Name: connectiveOr, Type: nested})
		}
	}

	groupBy := Definition{Kind: KindInput, Name: naming.TypeName(id, naming.RoleGroupBy), Placeholder: placeholder, Fields: []Field{
		{Name: "columns", Type: TypeRef{Name: enum.Name, List: true, ElemNonNull: true, NonNull: true}},
		{Name: "having", Type: Named(where.Name)},
	}}
	return []Definition{object, equality, where, order, enum, groupBy}
}

// linkedColumns returns the columns of other that participate in an edge
// with table, in column order.
func linkedColumns(graph *catalog.Graph, table, other *catalog.Table) []*catalog.Column {
	linked := make(map[*catalog.Column]bool)
	for _, e := range graph.EdgesBetween(other.ID, table.ID) {
		linked[e.SourceColumn] = true
	}
	for _, e := range graph.EdgesBetween(table.ID, other.ID) {
		linked[e.TargetColumn] = true
	}
	var cols []*catalog.Column
	for _, col := range other.Columns {
		if linked[col] {
			cols = append(cols, col)
		}
	}
	return cols
}

// pairDefinitions emits the linking enum and join input for (table, other),
// plus the reverse-named join input as a placeholder.
func pairDefinitions(graph *catalog.Graph, table, other *catalog.Table) []Definition {
	var defs []Definition
	join := Definition{Kind: KindInput, Name: naming.PairTypeName(table.ID, other.ID, naming.RoleJoin), Fields: []Field{
		{Name: "type", Type: Named(EnumJoin)},
		{Name: "whereMode", Type: Named(EnumWhereMode)},
	}}

	if links := graph.EdgesBetween(other.ID, table.ID); len(links) > 0 {
		enum := Definition{Kind: KindEnum, Name: naming.PairTypeName(table.ID, other.ID, naming.RoleLinkingEnum)}
		for _, e := range links {
			enum.Values = append(enum.Values, e.SourceColumn.Entity)
		}
		defs = append(defs, enum)
		join.Fields = append(join.Fields, Field{Name: "from", Type: Named(enum.Name)})
	}
	defs = append(defs, join)

	if other != table {
		defs = append(defs, Definition{
			Kind:        KindInput,
			Name:        naming.PairTypeName(other.ID, table.ID, naming.RoleJoin),
			Placeholder: true,
			Fields: []Field{
				{Name: "type", Type: Named(EnumJoin)},
				{Name: "whereMode", Type: Named(EnumWhereMode)},
			},
		})
	}
	return defs
}

// objectType builds the full object type: each column, a join field after
// every FK column, then one reverse join field per referencing table.
func (s *Synthesizer) objectType(graph *catalog.Graph, table *catalog.Table, reachable []*catalog.Table) Definition {
	def := Definition{Kind: KindObject, Name: naming.TypeName(table.ID, naming.RoleType)}
	taken := make(map[string]bool, len(table.Columns))
	for _, col := range table.Columns {
		taken[col.Entity] = true
	}

	add := func(f Field) {
		if taken[f.Name] {
			s.logger.Warn("join field name already in use, skipping",
				slog.String("type", def.Name),
				slog.String("field", f.Name),
			)
			return
		}
		taken[f.Name] = true
		def.Fields = append(def.Fields, f)
	}

	for _, col := range table.Columns {
		def.Fields = append(def.Fields, Field{Name: col.Entity, Type: Named(col.GraphQLType.String())})
		if col.ForeignKey != nil {
			add(joinField(naming.ForeignKeyField(col.Entity), table.ID, col.ForeignKey.Table.ID))
		}
	}
	for _, other := range reachable {
		if len(graph.EdgesBetween(other.ID, table.ID)) > 0 {
			add(joinField(naming.ReverseField(other.ID), table.ID, other.ID))
		}
	}
	return def
}
