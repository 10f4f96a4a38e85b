package planner

import "fmt"

// PlanLimits bounds the shape of a query before it is compiled. Zero
// values disable a limit.
type PlanLimits struct {
	MaxDepth int
	MaxJoins int
}

// PlanCost captures the measured shape of a selection.
type PlanCost struct {
	Depth int
	Joins int
}

// EstimateCost measures join depth and join count of a selection tree.
// Column fields do not count; the root is depth 1.
func EstimateCost(sel *Selection) PlanCost {
	if sel == nil {
		return PlanCost{}
	}
	cost := PlanCost{Depth: 1}
	for _, field := range sel.Fields {
		if len(field.Fields) == 0 {
			continue
		}
		child := EstimateCost(field)
		cost.Joins += 1 + child.Joins
		cost.Depth = max(cost.Depth, child.Depth+1)
	}
	return cost
}

func (l PlanLimits) check(sel *Selection) error {
	cost := EstimateCost(sel)
	if l.MaxDepth > 0 && cost.Depth > l.MaxDepth {
		return &CompileError{Table: sel.Name, Reason: fmt.Sprintf("query exceeds maximum depth of %d (depth: %d)", l.MaxDepth, cost.Depth)}
	}
	if l.MaxJoins > 0 && cost.Joins > l.MaxJoins {
		return &CompileError{Table: sel.Name, Reason: fmt.Sprintf("query exceeds maximum join count of %d (joins: %d)", l.MaxJoins, cost.Joins)}
	}
	return nil
}
