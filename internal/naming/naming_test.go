package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"orders", "orders"},
		{"order_items", "orderItems"},
		{"Customers", "customers"},
		{"api_v2_endpoints", "apiV2Endpoints"},
		{"line-items", "lineItems"},
		{"2024_sales", "_2024Sales"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, TableIdentifier(tt.input))
		})
	}
}

func TestTypeNames(t *testing.T) {
	assert.Equal(t, "OrdersType", TypeName("orders", RoleType))
	assert.Equal(t, "OrderItemsWhereType", TypeName("orderItems", RoleWhere))
	assert.Equal(t, "OrdersCustomersJoinType", PairTypeName("orders", "customers", RoleJoin))
	assert.Equal(t, "EmployeeEmployeeLinkingEnum", PairTypeName("employee", "employee", RoleLinkingEnum))
}

func TestJoinFieldNames(t *testing.T) {
	assert.Equal(t, "customer_id_table", ForeignKeyField("customer_id"))
	assert.Equal(t, "orders_table", ReverseField("orders"))
	assert.True(t, IsJoinField("orders_table"))
	assert.False(t, IsJoinField("_table"))
	assert.False(t, IsJoinField("total"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "first_name", Sanitize("first_name"))
	assert.Equal(t, "unit_price", Sanitize("unit price"))
	assert.Equal(t, "_1st", Sanitize("1st"))
	assert.Equal(t, "_typename", Sanitize("__typename"))
	assert.Equal(t, "caf_", Sanitize("café"))
}

func TestEntityNameKeepsDatabaseSpelling(t *testing.T) {
	assert.Equal(t, "customer_id", EntityName("customer_id"))
	assert.Equal(t, "CustomerID", EntityName(" CustomerID "))
}
