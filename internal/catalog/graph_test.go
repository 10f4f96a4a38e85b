package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlgraph/internal/catalog"
	"sqlgraph/internal/testutil"
)

func tableIDs(tables []*catalog.Table) []string {
	ids := make([]string, 0, len(tables))
	for _, t := range tables {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestGraph_BothDirections(t *testing.T) {
	cat := testutil.Catalog(t, testutil.ShopColumns())
	g := cat.Graph()

	out := g.Outgoing("orders")
	require.Len(t, out, 1)
	assert.Equal(t, "customer_id", out[0].SourceColumn.Name)
	assert.Equal(t, "customers", out[0].Target.ID)

	in := g.Incoming("customers")
	require.Len(t, in, 1)
	assert.Equal(t, "orders", in[0].Source.ID)

	assert.Equal(t, []string{"customers"}, tableIDs(g.Reachable("orders")))
	assert.Equal(t, []string{"orders"}, tableIDs(g.Reachable("customers")))
}

func TestGraph_SelfReference(t *testing.T) {
	cat := testutil.Catalog(t, testutil.EmployeeColumns())
	g := cat.Graph()

	edges := g.EdgesBetween("employee", "employee")
	require.Len(t, edges, 1)
	assert.True(t, edges[0].IsSelf())
	assert.Equal(t, []string{"employee"}, tableIDs(g.Reachable("employee")))
}

func TestGraph_ReachableIsOneHop(t *testing.T) {
	rows := append(testutil.ShopColumns(),
		testutil.PK(testutil.Col("shipments", "id", "int", 1)),
		testutil.FK(testutil.Col("shipments", "order_id", "int", 2), "orders", "id"),
	)
	cat := testutil.Catalog(t, rows)
	g := cat.Graph()

	assert.Equal(t, []string{"customers", "shipments"}, tableIDs(g.Reachable("orders")))
	assert.Equal(t, []string{"orders"}, tableIDs(g.Reachable("shipments")))
	assert.Equal(t, []string{"orders"}, tableIDs(g.Reachable("customers")))
}

func TestGraph_MultipleEdgesBetweenPair(t *testing.T) {
	cat := testutil.Catalog(t, testutil.MessagingColumns())
	edges := cat.Graph().EdgesBetween("messages", "users")
	require.Len(t, edges, 2)
	assert.Equal(t, "sender_id", edges[0].SourceColumn.Name)
	assert.Equal(t, "recipient_id", edges[1].SourceColumn.Name)
	assert.Len(t, cat.Graph().Incoming("users"), 2)
}
