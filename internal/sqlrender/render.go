package sqlrender

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"sqlgraph/internal/planner"
)

// Statement is a rendered query. Columns lists the result column aliases in
// select order.
type Statement struct {
	SQL     string
	Args    []any
	Columns []string
}

type renderer struct {
	d          Dialect
	subqueries int
}

// Render turns a plan into one SELECT statement. Join predicates in
// specific mode go into the join's ON clause; global ones into WHERE.
func Render(plan *planner.Plan, d Dialect) (Statement, error) {
	if plan == nil || plan.Root == nil {
		return Statement{}, fmt.Errorf("render: plan is empty")
	}
	r := &renderer{d: d}
	root := plan.Root

	var (
		columns []string
		keys    []string
		where   []sq.Sqlizer
		orderBy []string
	)
	root.Walk(func(n *planner.Node) {
		for _, sc := range n.Columns {
			columns = append(columns, fmt.Sprintf("%s AS %s", d.Column(n.Alias, sc.Column), d.Quote(sc.Key)))
			keys = append(keys, sc.Key)
		}
		for _, term := range n.OrderBy {
			dir := "ASC"
			if term.Desc {
				dir = "DESC"
			}
			orderBy = append(orderBy, d.Column(n.Alias, term.Column)+" "+dir)
		}
	})

	sb := sq.StatementBuilder.PlaceholderFormat(d.Placeholder).
		Select(columns...).
		From(d.Table(root.Table) + " AS " + d.Quote(root.Alias))

	if root.Filter != nil {
		p, err := r.predicate(root.Filter, root.Alias)
		if err != nil {
			return Statement{}, err
		}
		where = append(where, p)
	}

	var err error
	sb, where, err = r.joins(sb, root, where)
	if err != nil {
		return Statement{}, err
	}
	switch len(where) {
	case 0:
	case 1:
		sb = sb.Where(where[0])
	default:
		sb = sb.Where(sq.And(where))
	}

	if gb := root.GroupBy; gb != nil {
		sb = sb.GroupBy(r.groupColumns(root)...)
		if gb.Having != nil {
			having, err := r.predicate(gb.Having, root.Alias)
			if err != nil {
				return Statement{}, err
			}
			sb = sb.Having(having)
		}
	}
	if len(orderBy) > 0 {
		sb = sb.OrderBy(orderBy...)
	}

	sql, args, err := sb.ToSql()
	if err != nil {
		return Statement{}, fmt.Errorf("render: %w", err)
	}
	return Statement{SQL: sql, Args: args, Columns: keys}, nil
}

func (r *renderer) joins(sb sq.SelectBuilder, n *planner.Node, where []sq.Sqlizer) (sq.SelectBuilder, []sq.Sqlizer, error) {
	for _, j := range n.Joins {
		child := j.Child
		keyword, err := r.joinKeyword(j.Kind)
		if err != nil {
			return sb, nil, err
		}
		target := r.d.Table(child.Table) + " AS " + r.d.Quote(child.Alias)

		var filter sq.Sqlizer
		if child.Filter != nil {
			if filter, err = r.predicate(child.Filter, child.Alias); err != nil {
				return sb, nil, err
			}
		}

		switch {
		case j.Kind == planner.JoinCross:
			sb = sb.JoinClause(keyword + " " + target)
			if filter != nil {
				where = append(where, filter)
			}
		case filter != nil && j.WhereMode == planner.WhereSpecific:
			on, args, err := sq.And{sq.Expr(r.correlation(n, j)), filter}.ToSql()
			if err != nil {
				return sb, nil, err
			}
			sb = sb.JoinClause(keyword+" "+target+" ON "+on, args...)
		default:
			sb = sb.JoinClause(keyword + " " + target + " ON " + r.correlation(n, j))
			if filter != nil {
				where = append(where, filter)
			}
		}

		if sb, where, err = r.joins(sb, child, where); err != nil {
			return sb, nil, err
		}
	}
	return sb, where, nil
}

func (r *renderer) correlation(parent *planner.Node, j *planner.Join) string {
	return r.d.Column(parent.Alias, j.ParentColumn()) + " = " + r.d.Column(j.Child.Alias, j.ChildColumn())
}

func (r *renderer) joinKeyword(kind planner.JoinKind) (string, error) {
	switch kind {
	case planner.JoinInner:
		return "INNER JOIN", nil
	case planner.JoinLeft, planner.JoinLeftOuter:
		return "LEFT OUTER JOIN", nil
	case planner.JoinRight, planner.JoinRightOuter:
		return "RIGHT OUTER JOIN", nil
	case planner.JoinFullOuter:
		if !r.d.FullOuterJoin {
			return "", &UnsupportedError{Dialect: r.d.Name, Feature: "FULL OUTER JOIN"}
		}
		return "FULL OUTER JOIN", nil
	case planner.JoinCross:
		return "CROSS JOIN", nil
	default:
		return "", fmt.Errorf("render: unknown join kind %q", kind)
	}
}

// groupColumns lists the grouping keys of a grouped root: its groupBy
// columns, its hidden correlation columns, and every joined column.
func (r *renderer) groupColumns(root *planner.Node) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(expr string) {
		if !seen[expr] {
			seen[expr] = true
			out = append(out, expr)
		}
	}
	for _, col := range root.GroupBy.Columns {
		add(r.d.Column(root.Alias, col))
	}
	for _, sc := range root.Columns {
		if sc.Hidden {
			add(r.d.Column(root.Alias, sc.Column))
		}
	}
	for _, j := range root.Joins {
		j.Child.Walk(func(n *planner.Node) {
			for _, sc := range n.Columns {
				add(r.d.Column(n.Alias, sc.Column))
			}
		})
	}
	return out
}
