package planner

import (
	"fmt"
	"reflect"
	"sort"

	"sqlgraph/internal/catalog"
)

// OrderTerm is one orderBy entry.
type OrderTerm struct {
	Column *catalog.Column
	Desc   bool
}

// GroupBy is a compiled groupBy argument.
type GroupBy struct {
	Columns []*catalog.Column
	Having  Predicate
}

// JoinKind is the SQL join kind of a join field.
type JoinKind string

const (
	JoinInner      JoinKind = "inner"
	JoinLeft       JoinKind = "left"
	JoinLeftOuter  JoinKind = "leftOuter"
	JoinRight      JoinKind = "right"
	JoinRightOuter JoinKind = "rightOuter"
	JoinFullOuter  JoinKind = "fullOuter"
	JoinCross      JoinKind = "cross"
)

// Outer reports whether the join preserves unmatched rows.
func (k JoinKind) Outer() bool {
	switch k {
	case JoinLeft, JoinLeftOuter, JoinRight, JoinRightOuter, JoinFullOuter:
		return true
	}
	return false
}

// WhereMode scopes a join's where predicate.
type WhereMode string

const (
	// WhereGlobal folds the predicate into the statement-wide filter.
	WhereGlobal WhereMode = "global"
	// WhereSpecific confines the predicate to the join's ON clause.
	WhereSpecific WhereMode = "specific"
)

// joinArgs is the decoded join input before edge resolution.
type joinArgs struct {
	Kind      JoinKind
	WhereMode WhereMode
	explicit  bool
	From      string
}

// compiler compiles arguments against one table.
type compiler struct {
	table    *catalog.Table
	argument string
}

func (c compiler) errorf(column, format string, args ...any) *CompileError {
	return &CompileError{Table: c.table.Name, Column: column, Argument: c.argument, Reason: fmt.Sprintf(format, args...)}
}

// where compiles a where/having input. A nil or empty input yields nil.
func (c compiler) where(raw any) (Predicate, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, c.errorf("", "expected an input object, got %T", raw)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return c.predicate(m)
}

func (c compiler) predicate(m map[string]any) (Predicate, error) {
	for key := range m {
		if key != "and" && key != "or" && c.table.Column(key) == nil {
			return nil, c.errorf(key, "unknown column")
		}
	}

	var parts []Predicate
	for _, col := range c.table.Columns {
		if col.Entity == "and" || col.Entity == "or" {
			// Always read as connectives.
			continue
		}
		raw, ok := m[col.Entity]
		if !ok || raw == nil {
			continue
		}
		comparisons, err := c.comparisons(col, raw)
		if err != nil {
			return nil, err
		}
		parts = append(parts, comparisons...)
	}
	for _, key := range []string{"and", "or"} {
		raw, ok := m[key]
		if !ok || raw == nil {
			continue
		}
		p, err := c.connective(key, raw)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}

	switch len(parts) {
	case 0:
		return Always{}, nil
	case 1:
		return parts[0], nil
	default:
		return And(parts), nil
	}
}

// connective compiles an and/or array. An empty array is always true.
func (c compiler) connective(key string, raw any) (Predicate, error) {
	items, ok := toList(raw)
	if !ok {
		return nil, c.errorf("", "%s expects a list", key)
	}
	if len(items) == 0 {
		return Always{}, nil
	}
	children := make([]Predicate, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, c.errorf("", "%s items must be input objects, got %T", key, item)
		}
		p, err := c.predicate(m)
		if err != nil {
			return nil, err
		}
		children = append(children, p)
	}
	if key == "and" {
		return And(children), nil
	}
	return Or(children), nil
}

func (c compiler) comparisons(col *catalog.Column, raw any) ([]Predicate, error) {
	ops, ok := raw.(map[string]any)
	if !ok {
		return nil, c.errorf(col.Name, "expected operator object, got %T", raw)
	}
	for key := range ops {
		if !isOperator(key) {
			return nil, c.errorf(col.Name, "unknown operator %q", key)
		}
	}

	var out []Predicate
	for _, op := range operators {
		operand, ok := ops[string(op)]
		if !ok {
			continue
		}
		value, err := c.operand(col, op, operand)
		if err != nil {
			return nil, err
		}
		out = append(out, Comparison{Column: col, Op: op, Operand: value})
	}
	return out, nil
}

func (c compiler) operand(col *catalog.Column, op Operator, raw any) (any, error) {
	switch op {
	case OpEq, OpNotEq:
		if raw == nil {
			return nil, nil
		}
		return c.scalar(col, op, raw)
	case OpIn, OpNotIn:
		items, ok := toList(raw)
		if !ok {
			return nil, c.errorf(col.Name, "%s expects a list", op)
		}
		return items, nil
	case OpIsNull, OpIsNotNull, OpExists, OpNotExists:
		b, ok := raw.(bool)
		if !ok {
			return nil, c.errorf(col.Name, "%s expects a boolean", op)
		}
		if (op == OpExists || op == OpNotExists) && col.ForeignKey == nil {
			return nil, c.errorf(col.Name, "%s requires a foreign key column", op)
		}
		return b, nil
	case OpBetween, OpNotBetween:
		m, ok := raw.(map[string]any)
		if !ok || m["start"] == nil || m["end"] == nil {
			return nil, c.errorf(col.Name, "%s expects {start, end}", op)
		}
		return Range{Start: m["start"], End: m["end"]}, nil
	default:
		return c.scalar(col, op, raw)
	}
}

func (c compiler) scalar(col *catalog.Column, op Operator, raw any) (any, error) {
	if raw == nil {
		return nil, c.errorf(col.Name, "%s operand is null", op)
	}
	if _, isList := toList(raw); isList {
		return nil, c.errorf(col.Name, "%s expects a single value", op)
	}
	if _, isMap := raw.(map[string]any); isMap {
		return nil, c.errorf(col.Name, "%s expects a single value", op)
	}
	return raw, nil
}

// orderBy compiles a list of single-key {column: direction} objects.
func (c compiler) orderBy(raw any) ([]OrderTerm, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := toList(raw)
	if !ok {
		items = []any{raw}
	}
	terms := make([]OrderTerm, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, c.errorf("", "orderBy entries must be input objects, got %T", item)
		}
		if len(m) != 1 {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			return nil, c.errorf("", "orderBy entries must name exactly one column, got %v", keys)
		}
		for key, dir := range m {
			col := c.table.Column(key)
			if col == nil {
				return nil, c.errorf(key, "unknown column")
			}
			switch dir {
			case "asc":
				terms = append(terms, OrderTerm{Column: col})
			case "desc":
				terms = append(terms, OrderTerm{Column: col, Desc: true})
			default:
				return nil, c.errorf(key, "unknown order direction %v", dir)
			}
		}
	}
	return terms, nil
}

// groupBy compiles {columns, having}. Every column referenced by having must
// be listed in columns.
func (c compiler) groupBy(raw any) (*GroupBy, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, c.errorf("", "expected an input object, got %T", raw)
	}
	for key := range m {
		if key != "columns" && key != "having" {
			return nil, c.errorf("", "unknown groupBy field %q", key)
		}
	}
	names, ok := toList(m["columns"])
	if !ok || len(names) == 0 {
		return nil, c.errorf("", "groupBy columns must be a non-empty list")
	}

	gb := &GroupBy{}
	listed := make(map[*catalog.Column]bool)
	for _, n := range names {
		name, _ := n.(string)
		col := c.table.Column(name)
		if col == nil {
			return nil, c.errorf(fmt.Sprint(n), "unknown column")
		}
		if !listed[col] {
			listed[col] = true
			gb.Columns = append(gb.Columns, col)
		}
	}

	having, err := compiler{table: c.table, argument: "having"}.where(m["having"])
	if err != nil {
		return nil, err
	}
	if having != nil {
		for _, col := range having.Columns() {
			if !listed[col] {
				return nil, &CompileError{
					Table:    c.table.Name,
					Column:   col.Name,
					Argument: "having",
					Reason:   "column is not listed in groupBy columns",
				}
			}
		}
	}
	gb.Having = having
	return gb, nil
}

// join decodes the join input. Cross joins default to global where-mode,
// everything else to specific.
func (c compiler) join(raw any) (joinArgs, error) {
	ja := joinArgs{Kind: JoinInner}
	if raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return ja, c.errorf("", "expected an input object, got %T", raw)
		}
		for key, v := range m {
			if v == nil {
				continue
			}
			s, ok := v.(string)
			if !ok {
				return ja, c.errorf("", "join %s must be an enum value", key)
			}
			switch key {
			case "type":
				ja.Kind = JoinKind(s)
				if !validJoinKind(ja.Kind) {
					return ja, c.errorf("", "unknown join type %q", s)
				}
			case "whereMode":
				ja.WhereMode = WhereMode(s)
				if ja.WhereMode != WhereGlobal && ja.WhereMode != WhereSpecific {
					return ja, c.errorf("", "unknown whereMode %q", s)
				}
				ja.explicit = true
			case "from":
				ja.From = s
			default:
				return ja, c.errorf("", "unknown join field %q", key)
			}
		}
	}
	if !ja.explicit {
		ja.WhereMode = WhereSpecific
		if ja.Kind == JoinCross {
			ja.WhereMode = WhereGlobal
		}
	}
	return ja, nil
}

func validJoinKind(k JoinKind) bool {
	switch k {
	case JoinInner, JoinLeft, JoinLeftOuter, JoinRight, JoinRightOuter, JoinFullOuter, JoinCross:
		return true
	}
	return false
}

func isOperator(key string) bool {
	for _, op := range operators {
		if string(op) == key {
			return true
		}
	}
	return false
}

// toList accepts any slice value, as produced by either literal or variable
// coercion.
func toList(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
