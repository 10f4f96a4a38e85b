package planner

import (
	"fmt"

	"sqlgraph/internal/catalog"
	"sqlgraph/internal/naming"
)

// Plan is a compiled query. It keeps the catalog snapshot it was built
// against so a concurrent schema refresh cannot change its meaning.
type Plan struct {
	Root    *Node
	Catalog *catalog.Catalog
}

// Node is one level of the plan tree, corresponding to one field selection.
type Node struct {
	Table   *catalog.Table
	Alias   string
	Field   string // response key in the parent row
	Columns []SelectedColumn
	Filter  Predicate
	OrderBy []OrderTerm
	GroupBy *GroupBy
	Joins   []*Join
}

// SelectedColumn is a column read by a node. Hidden columns are needed for
// correlation or row identity and are not returned.
type SelectedColumn struct {
	Column *catalog.Column
	Key    string // result column alias
	Hidden bool
}

// Join attaches a child node to its parent.
type Join struct {
	Kind      JoinKind
	WhereMode WhereMode
	Edge      catalog.Edge
	// Reverse is set when the child table holds the foreign key.
	Reverse bool
	Child   *Node
}

// ParentColumn is the parent-side correlation column.
func (j *Join) ParentColumn() *catalog.Column {
	if j.Reverse {
		return j.Edge.TargetColumn
	}
	return j.Edge.SourceColumn
}

// ChildColumn is the child-side correlation column.
func (j *Join) ChildColumn() *catalog.Column {
	if j.Reverse {
		return j.Edge.SourceColumn
	}
	return j.Edge.TargetColumn
}

// Key returns the result key of a selected column, or "" if the node does
// not read it.
func (n *Node) Key(col *catalog.Column) string {
	for _, sc := range n.Columns {
		if sc.Column == col {
			return sc.Key
		}
	}
	return ""
}

// Walk visits the node and its descendants depth-first.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, j := range n.Joins {
		j.Child.Walk(fn)
	}
}

// Planner compiles selections into plans.
type Planner struct {
	limits PlanLimits
}

// New creates a planner enforcing the given limits.
func New(limits PlanLimits) *Planner {
	return &Planner{limits: limits}
}

// PlanQuery compiles a root selection without limits.
func PlanQuery(sel *Selection, cat *catalog.Catalog) (*Plan, error) {
	return New(PlanLimits{}).Plan(sel, cat)
}

// Plan compiles a root selection against a catalog. The root table is named
// by the selection's field name.
func (p *Planner) Plan(sel *Selection, cat *catalog.Catalog) (*Plan, error) {
	if sel == nil || cat == nil {
		return nil, fmt.Errorf("planner: selection and catalog are required")
	}
	table := cat.Table(sel.Name)
	if table == nil {
		return nil, &CompileError{Reason: fmt.Sprintf("unknown root field %q", sel.Name)}
	}
	if err := p.limits.check(sel); err != nil {
		return nil, err
	}

	b := &builder{graph: cat.Graph()}
	root, err := b.node(table, sel, nil)
	if err != nil {
		return nil, err
	}
	return &Plan{Root: root, Catalog: cat}, nil
}

type builder struct {
	graph   *catalog.Graph
	aliases int
}

func (b *builder) nextAlias() string {
	alias := fmt.Sprintf("t%d", b.aliases)
	b.aliases++
	return alias
}

var rootArgs = map[string]bool{"where": true, "orderBy": true, "groupBy": true}
var joinFieldArgs = map[string]bool{"join": true, "where": true, "orderBy": true, "groupBy": true}

// node compiles one selection level. link is the child-side correlation
// column of the join that reaches this node, nil for the root.
func (b *builder) node(table *catalog.Table, sel *Selection, link *catalog.Column) (*Node, error) {
	root := link == nil
	allowed := rootArgs
	if !root {
		allowed = joinFieldArgs
	}
	for name := range sel.Args {
		if !allowed[name] {
			return nil, &CompileError{Table: table.Name, Argument: name, Reason: "unknown argument"}
		}
	}

	n := &Node{Table: table, Alias: b.nextAlias(), Field: sel.ResponseKey()}
	var err error
	if n.Filter, err = (compiler{table: table, argument: "where"}).where(sel.Args["where"]); err != nil {
		return nil, err
	}
	if n.OrderBy, err = (compiler{table: table, argument: "orderBy"}).orderBy(sel.Args["orderBy"]); err != nil {
		return nil, err
	}
	if n.GroupBy, err = (compiler{table: table, argument: "groupBy"}).groupBy(sel.Args["groupBy"]); err != nil {
		return nil, err
	}
	if n.GroupBy != nil && !root {
		return nil, &CompileError{Table: table.Name, Argument: "groupBy", Reason: "groupBy is only supported on root fields"}
	}

	requested := make(map[*catalog.Column]bool)
	for _, field := range sel.Fields {
		if field.Name == "__typename" {
			continue
		}
		if col := table.Column(field.Name); col != nil {
			if !requested[col] {
				requested[col] = true
				n.Columns = append(n.Columns, SelectedColumn{Column: col})
			}
			continue
		}
		join, err := b.join(table, field)
		if err != nil {
			return nil, err
		}
		n.Joins = append(n.Joins, join)
	}

	if n.GroupBy != nil {
		if err := checkGrouped(n, requested); err != nil {
			return nil, err
		}
	} else if !root || len(n.Joins) > 0 {
		// Row identity when nesting: two rows with equal requested values
		// are still distinct records.
		for _, col := range table.PrimaryKey() {
			n.addHidden(col)
		}
	}
	if link != nil {
		n.addHidden(link)
	}
	for _, j := range n.Joins {
		n.addHidden(j.ParentColumn())
	}
	for i := range n.Columns {
		n.Columns[i].Key = fmt.Sprintf("%s_%d", n.Alias, i)
	}
	return n, nil
}

func (n *Node) addHidden(col *catalog.Column) {
	for _, sc := range n.Columns {
		if sc.Column == col {
			return
		}
	}
	n.Columns = append(n.Columns, SelectedColumn{Column: col, Hidden: true})
}

// checkGrouped requires every requested column of a grouped node to be a
// grouping column.
func checkGrouped(n *Node, requested map[*catalog.Column]bool) error {
	grouped := make(map[*catalog.Column]bool, len(n.GroupBy.Columns))
	for _, col := range n.GroupBy.Columns {
		grouped[col] = true
	}
	for _, sc := range n.Columns {
		if requested[sc.Column] && !grouped[sc.Column] {
			return &CompileError{
				Table:    n.Table.Name,
				Column:   sc.Column.Name,
				Argument: "groupBy",
				Reason:   "selected column is not listed in groupBy columns",
			}
		}
	}
	return nil
}

// join resolves a `<column>_table` or `<table>_table` field into a join.
func (b *builder) join(parent *catalog.Table, sel *Selection) (*Join, error) {
	if !naming.IsJoinField(sel.Name) {
		return nil, &CompileError{Table: parent.Name, Column: sel.Name, Reason: "unknown column"}
	}

	ja, err := (compiler{table: parent, argument: "join"}).join(sel.Args["join"])
	if err != nil {
		return nil, err
	}

	j := &Join{Kind: ja.Kind, WhereMode: ja.WhereMode}
	if edge, ok := b.outgoingEdge(parent, sel.Name); ok {
		j.Edge = edge
	} else if edge, ok, err := b.incomingEdge(parent, sel.Name, ja.From); err != nil {
		return nil, err
	} else if ok {
		j.Edge = edge
		j.Reverse = true
	} else {
		return nil, &CompileError{Table: parent.Name, Column: sel.Name, Reason: "no foreign key corresponds to this join field"}
	}

	childTable := j.Edge.Target
	if j.Reverse {
		childTable = j.Edge.Source
	}
	child, err := b.node(childTable, sel, j.ChildColumn())
	if err != nil {
		return nil, err
	}
	j.Child = child

	if child.Filter != nil {
		if j.Kind.Outer() && j.WhereMode == WhereGlobal {
			return nil, &CompileError{Table: childTable.Name, Argument: "join", Reason: fmt.Sprintf("whereMode global would discard unmatched rows of a %s join; use specific", j.Kind)}
		}
		if j.Kind == JoinCross && j.WhereMode == WhereSpecific {
			return nil, &CompileError{Table: childTable.Name, Argument: "join", Reason: "cross joins have no ON clause; use whereMode global"}
		}
	}
	return j, nil
}

func (b *builder) outgoingEdge(parent *catalog.Table, field string) (catalog.Edge, bool) {
	for _, e := range b.graph.Outgoing(parent.ID) {
		if naming.ForeignKeyField(e.SourceColumn.Entity) == field {
			return e, true
		}
	}
	return catalog.Edge{}, false
}

// incomingEdge finds the edge behind a reverse join field. With several
// foreign keys from the same table, from selects one; otherwise the first
// in column order is used.
func (b *builder) incomingEdge(parent *catalog.Table, field, from string) (catalog.Edge, bool, error) {
	var candidates []catalog.Edge
	for _, e := range b.graph.Incoming(parent.ID) {
		if naming.ReverseField(e.Source.ID) == field {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return catalog.Edge{}, false, nil
	}
	if from == "" {
		return candidates[0], true, nil
	}
	for _, e := range candidates {
		if e.SourceColumn.Entity == from {
			return e, true, nil
		}
	}
	return catalog.Edge{}, false, &CompileError{
		Table:    candidates[0].Source.Name,
		Column:   from,
		Argument: "join",
		Reason:   fmt.Sprintf("not a foreign key linking to %s", parent.Name),
	}
}
