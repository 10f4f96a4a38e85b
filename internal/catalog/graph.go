package catalog

// Edge is a foreign key from Source.SourceColumn to Target.TargetColumn.
type Edge struct {
	Source       *Table
	SourceColumn *Column
	Target       *Table
	TargetColumn *Column
}

// IsSelf reports whether the edge references its own table.
func (e Edge) IsSelf() bool {
	return e.Source == e.Target
}

// Graph indexes foreign-key edges by source and by target table.
type Graph struct {
	order    []*Table
	outgoing map[string][]Edge
	incoming map[string][]Edge
}

func buildGraph(tables []*Table) *Graph {
	g := &Graph{
		order:    tables,
		outgoing: make(map[string][]Edge),
		incoming: make(map[string][]Edge),
	}
	for _, table := range tables {
		for _, col := range table.Columns {
			if col.ForeignKey == nil {
				continue
			}
			edge := Edge{
				Source:       table,
				SourceColumn: col,
				Target:       col.ForeignKey.Table,
				TargetColumn: col.ForeignKey.Column,
			}
			g.outgoing[table.ID] = append(g.outgoing[table.ID], edge)
			g.incoming[edge.Target.ID] = append(g.incoming[edge.Target.ID], edge)
		}
	}
	return g
}

// Outgoing returns edges whose source is the table, in column order.
func (g *Graph) Outgoing(tableID string) []Edge {
	return g.outgoing[tableID]
}

// Incoming returns edges whose target is the table, in catalog order.
func (g *Graph) Incoming(tableID string) []Edge {
	return g.incoming[tableID]
}

// EdgesBetween returns the edges from source to target.
func (g *Graph) EdgesBetween(sourceID, targetID string) []Edge {
	var edges []Edge
	for _, e := range g.outgoing[sourceID] {
		if e.Target.ID == targetID {
			edges = append(edges, e)
		}
	}
	return edges
}

// Reachable returns the tables one FK hop away from the table in either
// direction, in catalog order. The table itself is included only when it
// has a self-referencing edge.
func (g *Graph) Reachable(tableID string) []*Table {
	linked := make(map[string]bool)
	for _, e := range g.outgoing[tableID] {
		linked[e.Target.ID] = true
	}
	for _, e := range g.incoming[tableID] {
		linked[e.Source.ID] = true
	}
	var out []*Table
	for _, t := range g.order {
		if linked[t.ID] {
			out = append(out, t)
		}
	}
	return out
}
