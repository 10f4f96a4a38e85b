package sqlrender

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"sqlgraph/internal/planner"
)

// predicate converts a compiled predicate into a squirrel expression with
// column references qualified by alias. Operands are always bound
// parameters.
func (r *renderer) predicate(p planner.Predicate, alias string) (sq.Sqlizer, error) {
	switch p := p.(type) {
	case planner.And:
		out := make(sq.And, 0, len(p))
		for _, child := range p {
			s, err := r.predicate(child, alias)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	case planner.Or:
		out := make(sq.Or, 0, len(p))
		for _, child := range p {
			s, err := r.predicate(child, alias)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	case planner.Always:
		return sq.Expr("1=1"), nil
	case planner.Comparison:
		return r.comparison(p, alias)
	default:
		return nil, fmt.Errorf("render: unsupported predicate %T", p)
	}
}

func (r *renderer) comparison(c planner.Comparison, alias string) (sq.Sqlizer, error) {
	col := r.d.Column(alias, c.Column)
	switch c.Op {
	case planner.OpEq, planner.OpIn:
		return sq.Eq{col: c.Operand}, nil
	case planner.OpNotEq, planner.OpNotIn:
		return sq.NotEq{col: c.Operand}, nil
	case planner.OpLike:
		return sq.Like{col: c.Operand}, nil
	case planner.OpNotLike:
		return sq.NotLike{col: c.Operand}, nil
	case planner.OpGt:
		return sq.Gt{col: c.Operand}, nil
	case planner.OpGte:
		return sq.GtOrEq{col: c.Operand}, nil
	case planner.OpLt:
		return sq.Lt{col: c.Operand}, nil
	case planner.OpLte:
		return sq.LtOrEq{col: c.Operand}, nil
	case planner.OpNotGt:
		return not(sq.Gt{col: c.Operand})
	case planner.OpNotGte:
		return not(sq.GtOrEq{col: c.Operand})
	case planner.OpNotLt:
		return not(sq.Lt{col: c.Operand})
	case planner.OpNotLte:
		return not(sq.LtOrEq{col: c.Operand})
	case planner.OpIsNull, planner.OpIsNotNull:
		if c.Operand.(bool) == (c.Op == planner.OpIsNull) {
			return sq.Eq{col: nil}, nil
		}
		return sq.NotEq{col: nil}, nil
	case planner.OpExists, planner.OpNotExists:
		return r.exists(c, col)
	case planner.OpBetween, planner.OpNotBetween:
		rng := c.Operand.(planner.Range)
		keyword := " BETWEEN ? AND ?"
		if c.Op == planner.OpNotBetween {
			keyword = " NOT BETWEEN ? AND ?"
		}
		return sq.Expr(col+keyword, rng.Start, rng.End), nil
	default:
		return nil, fmt.Errorf("render: unsupported operator %q", c.Op)
	}
}

// exists tests for the row referenced by an FK column.
func (r *renderer) exists(c planner.Comparison, col string) (sq.Sqlizer, error) {
	ref := c.Column.ForeignKey
	alias := fmt.Sprintf("x%d", r.subqueries)
	r.subqueries++
	expr := fmt.Sprintf("EXISTS (SELECT 1 FROM %s AS %s WHERE %s = %s)",
		r.d.Table(ref.Table), r.d.Quote(alias), r.d.Column(alias, ref.Column), col)
	if c.Operand.(bool) != (c.Op == planner.OpExists) {
		expr = "NOT " + expr
	}
	return sq.Expr(expr), nil
}

func not(s sq.Sqlizer) (sq.Sqlizer, error) {
	sql, args, err := s.ToSql()
	if err != nil {
		return nil, err
	}
	return sq.Expr("NOT ("+sql+")", args...), nil
}
