package planner

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlgraph/internal/testutil"
)

func field(name string, children ...*Selection) *Selection {
	return &Selection{Name: name, Fields: children}
}

func withArgs(sel *Selection, args map[string]any) *Selection {
	sel.Args = args
	return sel
}

func requireCompileError(t *testing.T, err error) *CompileError {
	t.Helper()
	require.Error(t, err)
	var compileErr *CompileError
	require.True(t, errors.As(err, &compileErr), "expected CompileError, got %T: %v", err, err)
	return compileErr
}

func columnNames(n *Node, hidden bool) []string {
	var names []string
	for _, sc := range n.Columns {
		if sc.Hidden == hidden {
			names = append(names, sc.Column.Name)
		}
	}
	return names
}

func TestPlanQuery_OrdersWithCustomerJoin(t *testing.T) {
	cat := testutil.Catalog(t, testutil.ShopColumns())
	sel := withArgs(field("orders",
		field("id"),
		withArgs(field("customer_id_table", field("name")), map[string]any{
			"join": map[string]any{"type": "inner"},
		}),
	), map[string]any{
		"where": map[string]any{"total": map[string]any{"gt": 100}},
	})

	plan, err := PlanQuery(sel, cat)
	require.NoError(t, err)
	assert.Same(t, cat, plan.Catalog)

	root := plan.Root
	assert.Equal(t, "orders", root.Table.Name)
	assert.Equal(t, "t0", root.Alias)
	assert.Equal(t, "total > 100", root.Filter.String())
	assert.Equal(t, []string{"id"}, columnNames(root, false))
	assert.Equal(t, []string{"customer_id"}, columnNames(root, true))

	require.Len(t, root.Joins, 1)
	join := root.Joins[0]
	assert.Equal(t, JoinInner, join.Kind)
	assert.Equal(t, WhereSpecific, join.WhereMode)
	assert.False(t, join.Reverse)
	assert.Equal(t, "customer_id", join.ParentColumn().Name)
	assert.Equal(t, "id", join.ChildColumn().Name)

	child := join.Child
	assert.Equal(t, "customers", child.Table.Name)
	assert.Equal(t, "t1", child.Alias)
	assert.Equal(t, "customer_id_table", child.Field)
	assert.Equal(t, []string{"name"}, columnNames(child, false))
	assert.Equal(t, []string{"id"}, columnNames(child, true))
	assert.Equal(t, "t0_0", root.Key(root.Table.Column("id")))
}

func TestPlanQuery_DefaultJoinIsInner(t *testing.T) {
	cat := testutil.Catalog(t, testutil.ShopColumns())
	plan, err := PlanQuery(field("orders", field("customer_id_table", field("name"))), cat)
	require.NoError(t, err)
	assert.Equal(t, JoinInner, plan.Root.Joins[0].Kind)
}

func TestPlanQuery_ReverseJoin(t *testing.T) {
	cat := testutil.Catalog(t, testutil.ShopColumns())
	plan, err := PlanQuery(field("customers", field("name"), field("orders_table", field("total"))), cat)
	require.NoError(t, err)

	join := plan.Root.Joins[0]
	assert.True(t, join.Reverse)
	assert.Equal(t, "id", join.ParentColumn().Name)
	assert.Equal(t, "customer_id", join.ChildColumn().Name)
	assert.Equal(t, "orders", join.Child.Table.Name)
	// Leaf children still carry their key and correlation column.
	assert.Equal(t, []string{"id", "customer_id"}, columnNames(join.Child, true))
}

func TestPlanQuery_SelfReferenceAliasesDistinctly(t *testing.T) {
	cat := testutil.Catalog(t, testutil.EmployeeColumns())
	sel := field("employee",
		field("name"),
		field("manager_id_table", field("name")),
		field("employee_table", field("name")),
	)
	plan, err := PlanQuery(sel, cat)
	require.NoError(t, err)

	root := plan.Root
	require.Len(t, root.Joins, 2)
	manager, reports := root.Joins[0], root.Joins[1]
	assert.Same(t, root.Table, manager.Child.Table)
	assert.NotEqual(t, root.Alias, manager.Child.Alias)
	assert.NotEqual(t, manager.Child.Alias, reports.Child.Alias)
	assert.False(t, manager.Reverse)
	assert.True(t, reports.Reverse)
	assert.Equal(t, "manager_id", reports.ChildColumn().Name)
}

func TestPlanQuery_ReverseJoinFrom(t *testing.T) {
	cat := testutil.Catalog(t, testutil.MessagingColumns())

	plan, err := PlanQuery(field("users",
		withArgs(field("messages_table", field("body")), map[string]any{
			"join": map[string]any{"from": "recipient_id"},
		}),
	), cat)
	require.NoError(t, err)
	assert.Equal(t, "recipient_id", plan.Root.Joins[0].ChildColumn().Name)

	plan, err = PlanQuery(field("users", field("messages_table", field("body"))), cat)
	require.NoError(t, err)
	assert.Equal(t, "sender_id", plan.Root.Joins[0].ChildColumn().Name)

	_, err = PlanQuery(field("users",
		withArgs(field("messages_table", field("body")), map[string]any{
			"join": map[string]any{"from": "body"},
		}),
	), cat)
	ce := requireCompileError(t, err)
	assert.Equal(t, "body", ce.Column)
}

func TestPlanQuery_CompileErrors(t *testing.T) {
	cat := testutil.Catalog(t, testutil.ShopColumns())

	tests := []struct {
		name   string
		sel    *Selection
		table  string
		column string
	}{
		{
			name:   "unknown selected column",
			sel:    field("orders", field("missing")),
			table:  "orders",
			column: "missing",
		},
		{
			name: "unknown where column",
			sel: withArgs(field("orders", field("id")), map[string]any{
				"where": map[string]any{"discount": map[string]any{"eq": 1}},
			}),
			table:  "orders",
			column: "discount",
		},
		{
			name: "unknown nested where column",
			sel: withArgs(field("orders", field("id")), map[string]any{
				"where": map[string]any{"or": []any{map[string]any{"nope": map[string]any{"eq": 1}}}},
			}),
			table:  "orders",
			column: "nope",
		},
		{
			name: "unknown orderBy column",
			sel: withArgs(field("orders", field("id")), map[string]any{
				"orderBy": []any{map[string]any{"nope": "asc"}},
			}),
			table:  "orders",
			column: "nope",
		},
		{
			name:   "join field without foreign key",
			sel:    field("orders", field("total_table", field("id"))),
			table:  "orders",
			column: "total_table",
		},
		{
			name: "unknown column in join where",
			sel: field("orders", withArgs(field("customer_id_table", field("name")), map[string]any{
				"where": map[string]any{"email": map[string]any{"eq": "x"}},
			})),
			table:  "customers",
			column: "email",
		},
		{
			name: "having column not grouped",
			sel: withArgs(field("orders", field("customer_id")), map[string]any{
				"groupBy": map[string]any{
					"columns": []any{"customer_id"},
					"having":  map[string]any{"total": map[string]any{"gt": 10}},
				},
			}),
			table:  "orders",
			column: "total",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlanQuery(tt.sel, cat)
			ce := requireCompileError(t, err)
			assert.Equal(t, tt.table, ce.Table)
			assert.Equal(t, tt.column, ce.Column)
		})
	}
}

func TestPlanQuery_UnknownRootField(t *testing.T) {
	cat := testutil.Catalog(t, testutil.ShopColumns())
	_, err := PlanQuery(field("invoices", field("id")), cat)
	ce := requireCompileError(t, err)
	assert.Contains(t, ce.Error(), `unknown root field "invoices"`)
}

func TestPlanQuery_WhereModeRules(t *testing.T) {
	cat := testutil.Catalog(t, testutil.ShopColumns())
	childWhere := map[string]any{"name": map[string]any{"like": "A%"}}

	_, err := PlanQuery(field("orders", withArgs(field("customer_id_table", field("name")), map[string]any{
		"join":  map[string]any{"type": "left", "whereMode": "global"},
		"where": childWhere,
	})), cat)
	requireCompileError(t, err)

	_, err = PlanQuery(field("orders", withArgs(field("customer_id_table", field("name")), map[string]any{
		"join":  map[string]any{"type": "cross", "whereMode": "specific"},
		"where": childWhere,
	})), cat)
	requireCompileError(t, err)

	plan, err := PlanQuery(field("orders", withArgs(field("customer_id_table", field("name")), map[string]any{
		"join":  map[string]any{"type": "inner", "whereMode": "global"},
		"where": childWhere,
	})), cat)
	require.NoError(t, err)
	assert.Equal(t, WhereGlobal, plan.Root.Joins[0].WhereMode)

	plan, err = PlanQuery(field("orders", withArgs(field("customer_id_table", field("name")), map[string]any{
		"join": map[string]any{"type": "cross"},
	})), cat)
	require.NoError(t, err)
	assert.Equal(t, WhereGlobal, plan.Root.Joins[0].WhereMode)
}

func TestPlanQuery_GroupBy(t *testing.T) {
	cat := testutil.Catalog(t, testutil.ShopColumns())
	plan, err := PlanQuery(withArgs(field("orders", field("customer_id")), map[string]any{
		"groupBy": map[string]any{
			"columns": []any{"customer_id"},
			"having":  map[string]any{"customer_id": map[string]any{"gt": 1}},
		},
	}), cat)
	require.NoError(t, err)

	gb := plan.Root.GroupBy
	require.NotNil(t, gb)
	require.Len(t, gb.Columns, 1)
	assert.Equal(t, "customer_id > 1", gb.Having.String())
	assert.Empty(t, columnNames(plan.Root, true), "grouped nodes do not add primary keys")

	_, err = PlanQuery(withArgs(field("orders", field("total")), map[string]any{
		"groupBy": map[string]any{"columns": []any{"customer_id"}},
	}), cat)
	ce := requireCompileError(t, err)
	assert.Equal(t, "total", ce.Column)

	_, err = PlanQuery(field("customers", withArgs(field("orders_table", field("customer_id")), map[string]any{
		"groupBy": map[string]any{"columns": []any{"customer_id"}},
	})), cat)
	requireCompileError(t, err)
}

func TestPlanQuery_OrderByPreservesListOrder(t *testing.T) {
	cat := testutil.Catalog(t, testutil.ShopColumns())
	plan, err := PlanQuery(withArgs(field("orders", field("id")), map[string]any{
		"orderBy": []any{
			map[string]any{"total": "desc"},
			map[string]any{"id": "asc"},
		},
	}), cat)
	require.NoError(t, err)

	terms := plan.Root.OrderBy
	require.Len(t, terms, 2)
	assert.Equal(t, "total", terms[0].Column.Name)
	assert.True(t, terms[0].Desc)
	assert.Equal(t, "id", terms[1].Column.Name)
	assert.False(t, terms[1].Desc)
}

func TestPlanQuery_Limits(t *testing.T) {
	cat := testutil.Catalog(t, testutil.EmployeeColumns())
	sel := field("employee", field("manager_id_table", field("manager_id_table", field("name"))))

	cost := EstimateCost(sel)
	assert.Equal(t, PlanCost{Depth: 3, Joins: 2}, cost)

	_, err := New(PlanLimits{MaxDepth: 2}).Plan(sel, cat)
	requireCompileError(t, err)

	_, err = New(PlanLimits{MaxJoins: 1}).Plan(sel, cat)
	requireCompileError(t, err)

	_, err = New(PlanLimits{MaxDepth: 3, MaxJoins: 2}).Plan(sel, cat)
	require.NoError(t, err)
}

func TestNodeWalk(t *testing.T) {
	cat := testutil.Catalog(t, testutil.EmployeeColumns())
	plan, err := PlanQuery(field("employee", field("manager_id_table", field("employee_table", field("id")))), cat)
	require.NoError(t, err)

	var aliases []string
	plan.Root.Walk(func(n *Node) { aliases = append(aliases, n.Alias) })
	assert.Equal(t, []string{"t0", "t1", "t2"}, aliases)
}

func TestPlanQuery_UnknownArgument(t *testing.T) {
	cat := testutil.Catalog(t, testutil.ShopColumns())
	_, err := PlanQuery(withArgs(field("orders", field("id")), map[string]any{"limit": 10}), cat)
	ce := requireCompileError(t, err)
	assert.Equal(t, "limit", ce.Argument)
}
