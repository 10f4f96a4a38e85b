package queryexec

import (
	"fmt"
	"strings"

	"sqlgraph/internal/driver"
	"sqlgraph/internal/planner"
)

// Nest groups flat join rows into the nested shape of the plan. Each level
// is one pass over its rows: rows are grouped by the node's selected values
// in first-seen order, and each group's rows feed the node's joins. Child
// nodes always select their primary key and correlation column, so distinct
// records with equal requested values stay distinct.
func Nest(root *planner.Node, rows []driver.Row) []map[string]any {
	return nestLevel(root, nil, rows)
}

// nestLevel nests rows for n. via is the join that reaches n, nil at the root.
func nestLevel(n *planner.Node, via *planner.Join, rows []driver.Row) []map[string]any {
	out := make([]map[string]any, 0)
	// Root rows are only merged when joins can multiply them.
	dedupe := via != nil || len(n.Joins) > 0

	index := make(map[string]int)
	var members [][]driver.Row
	for _, row := range rows {
		if via != nil && unmatched(via, row) {
			continue
		}
		i := len(out)
		if dedupe {
			key := identity(n, row)
			if existing, ok := index[key]; ok {
				members[existing] = append(members[existing], row)
				continue
			}
			index[key] = i
		}
		out = append(out, project(n, row))
		members = append(members, []driver.Row{row})
	}

	for i, obj := range out {
		for _, j := range n.Joins {
			obj[j.Child.Field] = nestLevel(j.Child, j, members[i])
		}
	}
	return out
}

// unmatched reports whether an outer join produced no child row. A matched
// row always carries a non-NULL correlation value, whatever the requested
// columns hold. Cross joins have no correlation and always match.
func unmatched(j *planner.Join, row driver.Row) bool {
	if j.Kind == planner.JoinCross {
		return false
	}
	key := j.Child.Key(j.ChildColumn())
	if key == "" {
		return false
	}
	return row[key] == nil
}

func identity(n *planner.Node, row driver.Row) string {
	var b strings.Builder
	for _, sc := range n.Columns {
		fmt.Fprintf(&b, "%T:%v\x00", row[sc.Key], row[sc.Key])
	}
	return b.String()
}

// project copies the visible columns, keyed by entity name.
func project(n *planner.Node, row driver.Row) map[string]any {
	obj := make(map[string]any, len(n.Columns)+len(n.Joins))
	for _, sc := range n.Columns {
		if sc.Hidden {
			continue
		}
		obj[sc.Column.Entity] = row[sc.Key]
	}
	return obj
}
