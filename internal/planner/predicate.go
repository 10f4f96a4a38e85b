package planner

import (
	"fmt"
	"strings"

	"sqlgraph/internal/catalog"
	"sqlgraph/internal/sqlutil"
)

// Operator is a comparison operator accepted in where and having inputs.
type Operator string

const (
	OpEq         Operator = "eq"
	OpNotEq      Operator = "notEq"
	OpLike       Operator = "like"
	OpNotLike    Operator = "notLike"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpNotGt      Operator = "notGt"
	OpNotGte     Operator = "notGte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpNotLt      Operator = "notLt"
	OpNotLte     Operator = "notLte"
	OpIn         Operator = "in"
	OpNotIn      Operator = "notIn"
	OpIsNull     Operator = "isNull"
	OpIsNotNull  Operator = "isNotNull"
	OpExists     Operator = "exists"
	OpNotExists  Operator = "notExists"
	OpBetween    Operator = "between"
	OpNotBetween Operator = "notBetween"
)

// operators is the fixed operator set in declaration order.
var operators = []Operator{
	OpEq, OpNotEq, OpLike, OpNotLike,
	OpGt, OpGte, OpNotGt, OpNotGte,
	OpLt, OpLte, OpNotLt, OpNotLte,
	OpIn, OpNotIn,
	OpIsNull, OpIsNotNull, OpExists, OpNotExists,
	OpBetween, OpNotBetween,
}

// Predicate is a node of a compiled filter tree.
type Predicate interface {
	String() string
	// Columns lists the columns the predicate references.
	Columns() []*catalog.Column
}

// And is satisfied when every child is.
type And []Predicate

// Or is satisfied when any child is.
type Or []Predicate

// Always is the always-true predicate produced by empty and/or arrays.
type Always struct{}

// Range is the operand of between and notBetween.
type Range struct {
	Start any
	End   any
}

// Comparison applies an operator to one column.
type Comparison struct {
	Column  *catalog.Column
	Op      Operator
	Operand any
}

func (p And) String() string { return joinPredicates(p, " AND ") }

func (p Or) String() string { return joinPredicates(p, " OR ") }

func (p And) Columns() []*catalog.Column { return collectColumns(p) }

func (p Or) Columns() []*catalog.Column { return collectColumns(p) }

func (Always) String() string { return "TRUE" }

func (Always) Columns() []*catalog.Column { return nil }

func (c Comparison) Columns() []*catalog.Column { return []*catalog.Column{c.Column} }

func (c Comparison) String() string {
	name := c.Column.Name
	switch c.Op {
	case OpEq:
		if c.Operand == nil {
			return name + " IS NULL"
		}
		return fmt.Sprintf("%s = %s", name, formatOperand(c.Operand))
	case OpNotEq:
		if c.Operand == nil {
			return name + " IS NOT NULL"
		}
		return fmt.Sprintf("%s <> %s", name, formatOperand(c.Operand))
	case OpLike:
		return fmt.Sprintf("%s LIKE %s", name, formatOperand(c.Operand))
	case OpNotLike:
		return fmt.Sprintf("%s NOT LIKE %s", name, formatOperand(c.Operand))
	case OpGt, OpGte, OpLt, OpLte:
		return fmt.Sprintf("%s %s %s", name, comparisonSymbol(c.Op), formatOperand(c.Operand))
	case OpNotGt, OpNotGte, OpNotLt, OpNotLte:
		return fmt.Sprintf("NOT (%s %s %s)", name, comparisonSymbol(c.Op), formatOperand(c.Operand))
	case OpIn:
		return fmt.Sprintf("%s IN %s", name, formatOperand(c.Operand))
	case OpNotIn:
		return fmt.Sprintf("%s NOT IN %s", name, formatOperand(c.Operand))
	case OpIsNull, OpIsNotNull:
		if c.Operand.(bool) == (c.Op == OpIsNull) {
			return name + " IS NULL"
		}
		return name + " IS NOT NULL"
	case OpExists, OpNotExists:
		ref := c.Column.ForeignKey
		s := fmt.Sprintf("EXISTS (%s.%s = %s)", ref.Table.Name, ref.Column.Name, name)
		if c.Operand.(bool) != (c.Op == OpExists) {
			s = "NOT " + s
		}
		return s
	case OpBetween, OpNotBetween:
		r := c.Operand.(Range)
		not := ""
		if c.Op == OpNotBetween {
			not = "NOT "
		}
		return fmt.Sprintf("%s %sBETWEEN %s AND %s", name, not, formatOperand(r.Start), formatOperand(r.End))
	default:
		return fmt.Sprintf("%s %s %v", name, c.Op, c.Operand)
	}
}

// comparisonSymbol returns the SQL symbol for an ordering comparison,
// including the negated forms.
func comparisonSymbol(op Operator) string {
	switch op {
	case OpGt, OpNotGt:
		return ">"
	case OpGte, OpNotGte:
		return ">="
	case OpLt, OpNotLt:
		return "<"
	default:
		return "<="
	}
}

func joinPredicates(children []Predicate, sep string) string {
	parts := make([]string, 0, len(children))
	for _, c := range children {
		parts = append(parts, "("+c.String()+")")
	}
	return strings.Join(parts, sep)
}

func collectColumns(children []Predicate) []*catalog.Column {
	var cols []*catalog.Column
	for _, c := range children {
		cols = append(cols, c.Columns()...)
	}
	return cols
}

func formatOperand(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return sqlutil.QuoteString(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, formatOperand(item))
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprint(val)
	}
}
