package schemagen

import (
	"errors"
	"strings"
	"testing"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlgraph/internal/catalog"
	"sqlgraph/internal/testutil"
)

func build(t *testing.T, rows []catalog.ColumnMetadata) *Document {
	t.Helper()
	doc, err := NewSynthesizer(testutil.DiscardLogger()).Build(testutil.Catalog(t, rows))
	require.NoError(t, err)
	return doc
}

func mustDefinition(t *testing.T, doc *Document, name string) Definition {
	t.Helper()
	def, ok := doc.Definition(name)
	require.True(t, ok, "definition %s not found", name)
	return def
}

func fieldNames(def Definition) []string {
	names := make([]string, 0, len(def.Fields))
	for _, f := range def.Fields {
		names = append(names, f.Name)
	}
	return names
}

func argType(t *testing.T, f Field, name string) string {
	t.Helper()
	for _, a := range f.Args {
		if a.Name == name {
			return a.Type.String()
		}
	}
	t.Fatalf("argument %s not found on %s", name, f.Name)
	return ""
}

func TestBuildSchema_ForeignKeyJoinFields(t *testing.T) {
	doc := build(t, testutil.ShopColumns())

	orders := mustDefinition(t, doc, "OrdersType")
	assert.Equal(t, []string{"id", "customer_id", "customer_id_table", "total"}, fieldNames(orders))
	joinField, ok := orders.Field("customer_id_table")
	require.True(t, ok)
	assert.Equal(t, "OrdersCustomersJoinType", argType(t, joinField, "join"))
	assert.Equal(t, "CustomersWhereType", argType(t, joinField, "where"))
	assert.Equal(t, "[CustomersOrderType]", argType(t, joinField, "orderBy"))
	assert.Equal(t, "CustomersGroupByType", argType(t, joinField, "groupBy"))
	assert.Equal(t, "[CustomersType]", joinField.Type.String())

	customers := mustDefinition(t, doc, "CustomersType")
	assert.Equal(t, []string{"id", "name", "orders_table"}, fieldNames(customers))
	reverse, _ := customers.Field("orders_table")
	assert.Equal(t, "CustomersOrdersJoinType", argType(t, reverse, "join"))
	assert.Equal(t, "[OrdersType]", reverse.Type.String())
}

func TestBuildSchema_NoDuplicateFieldNames(t *testing.T) {
	for name, rows := range map[string][]catalog.ColumnMetadata{
		"shop":      testutil.ShopColumns(),
		"employee":  testutil.EmployeeColumns(),
		"messaging": testutil.MessagingColumns(),
	} {
		t.Run(name, func(t *testing.T) {
			doc := build(t, rows)
			for _, def := range doc.Definitions {
				seen := make(map[string]bool)
				for _, f := range def.Fields {
					assert.False(t, seen[f.Name], "%s.%s declared twice", def.Name, f.Name)
					seen[f.Name] = true
				}
			}
		})
	}
}

func TestBuildSchema_Deterministic(t *testing.T) {
	first := build(t, testutil.MessagingColumns()).SDL()
	second := build(t, testutil.MessagingColumns()).SDL()
	assert.Equal(t, first, second)
}

func TestBuildSchema_PairTypes(t *testing.T) {
	doc := build(t, testutil.ShopColumns())

	linking := mustDefinition(t, doc, "CustomersOrdersLinkingEnum")
	assert.Equal(t, []string{"customer_id"}, linking.Values)

	customersOrders := mustDefinition(t, doc, "CustomersOrdersJoinType")
	assert.Equal(t, []string{"type", "whereMode", "from"}, fieldNames(customersOrders))

	ordersCustomers := mustDefinition(t, doc, "OrdersCustomersJoinType")
	assert.Equal(t, []string{"type", "whereMode"}, fieldNames(ordersCustomers))

	_, ok := doc.Definition("OrdersCustomersLinkingEnum")
	assert.False(t, ok)
}

func TestBuildSchema_SelfReference(t *testing.T) {
	doc := build(t, testutil.EmployeeColumns())

	linking := mustDefinition(t, doc, "EmployeeEmployeeLinkingEnum")
	assert.Equal(t, []string{"manager_id"}, linking.Values)

	employee := mustDefinition(t, doc, "EmployeeType")
	assert.Equal(t, []string{"id", "name", "manager_id", "manager_id_table", "employee_table"}, fieldNames(employee))

	join := mustDefinition(t, doc, "EmployeeEmployeeJoinType")
	assert.Equal(t, []string{"type", "whereMode", "from"}, fieldNames(join))
}

func TestBuildSchema_MultipleForeignKeysToSameTable(t *testing.T) {
	doc := build(t, testutil.MessagingColumns())

	linking := mustDefinition(t, doc, "UsersMessagesLinkingEnum")
	assert.Equal(t, []string{"sender_id", "recipient_id"}, linking.Values)

	users := mustDefinition(t, doc, "UsersType")
	assert.Equal(t, []string{"id", "email", "messages_table"}, fieldNames(users))

	messages := mustDefinition(t, doc, "MessagesType")
	assert.Equal(t, []string{"id", "sender_id", "sender_id_table", "recipient_id", "recipient_id_table", "body"}, fieldNames(messages))
}

func TestBuildSchema_DegradedForeignKeyIsScalar(t *testing.T) {
	rows := []catalog.ColumnMetadata{
		testutil.PK(testutil.Col("orders", "id", "int", 1)),
		testutil.FK(testutil.Col("orders", "warehouse_id", "int", 2), "warehouses", "id"),
	}
	doc := build(t, rows)
	orders := mustDefinition(t, doc, "OrdersType")
	assert.Equal(t, []string{"id", "warehouse_id"}, fieldNames(orders))
}

func TestBuildSchema_JoinFieldCollidingWithColumnIsSkipped(t *testing.T) {
	rows := append(testutil.ShopColumns(), testutil.Col("customers", "orders_table", "int", 3))
	doc := build(t, rows)
	customers := mustDefinition(t, doc, "CustomersType")
	assert.Equal(t, []string{"id", "name", "orders_table"}, fieldNames(customers))
	f, _ := customers.Field("orders_table")
	assert.Empty(t, f.Args)
}

func TestBuildSchema_ConnectiveColumnNamesStillBuild(t *testing.T) {
	rows := []catalog.ColumnMetadata{
		testutil.PK(testutil.Col("flags", "id", "int", 1)),
		testutil.Col("flags", "or", "varchar(10)", 2),
		testutil.PK(testutil.Col("rules", "id", "int", 1)),
		testutil.FK(testutil.Col("rules", "flag_id", "int", 2), "flags", "id"),
		testutil.Col("rules", "and", "int", 3),
	}
	doc := build(t, rows)

	flags := mustDefinition(t, doc, "FlagsType")
	assert.Equal(t, []string{"id", "or", "rules_table"}, fieldNames(flags))
	assert.Equal(t, []string{"id", "or"}, mustDefinition(t, doc, "FlagsColumnEnum").Values)

	where := mustDefinition(t, doc, "FlagsWhereType")
	assert.Equal(t, []string{"id", "and", "or"}, fieldNames(where))
	or, _ := where.Field("or")
	assert.Equal(t, "[FlagsColumnEqualityType]", or.Type.String())

	rulesWhere := mustDefinition(t, doc, "RulesWhereType")
	assert.Equal(t, []string{"id", "flag_id", "and", "or"}, fieldNames(rulesWhere))

	_, err := parser.Parse(parser.ParseParams{Source: doc.SDL()})
	require.NoError(t, err)
}

func TestBuildSchema_InputsAndEnums(t *testing.T) {
	doc := build(t, testutil.ShopColumns())

	where := mustDefinition(t, doc, "OrdersWhereType")
	assert.Equal(t, []string{"id", "customer_id", "total", "and", "or"}, fieldNames(where))
	and, _ := where.Field("and")
	assert.Equal(t, "[OrdersColumnEqualityType]", and.Type.String())

	groupBy := mustDefinition(t, doc, "OrdersGroupByType")
	columns, _ := groupBy.Field("columns")
	assert.Equal(t, "[OrdersColumnEnum!]!", columns.Type.String())

	enum := mustDefinition(t, doc, "OrdersColumnEnum")
	assert.Equal(t, []string{"id", "customer_id", "total"}, enum.Values)

	equality := mustDefinition(t, doc, InputEquality)
	assert.Len(t, equality.Fields, 20)
}

func TestBuildSchema_RootFields(t *testing.T) {
	doc := build(t, testutil.ShopColumns())
	assert.Equal(t, []RootField{{Name: "customers", TableID: "customers"}, {Name: "orders", TableID: "orders"}}, doc.RootFields)

	query := mustDefinition(t, doc, QueryTypeName)
	assert.Equal(t, []string{"customers", "orders"}, fieldNames(query))
	assert.Equal(t, QueryTypeName, doc.Definitions[len(doc.Definitions)-1].Name)

	sdl := doc.SDL()
	assert.Contains(t, sdl, "  orders(where: OrdersWhereType, orderBy: [OrdersOrderType], groupBy: OrdersGroupByType): [OrdersType]\n")
	assert.Contains(t, sdl, "  customer_id_table(join: OrdersCustomersJoinType, where: CustomersWhereType, orderBy: [CustomersOrderType], groupBy: CustomersGroupByType): [CustomersType]\n")
	assert.True(t, strings.HasPrefix(sdl, "scalar Any\n"))
}

func TestBuildSchema_SDLParses(t *testing.T) {
	doc := build(t, testutil.MessagingColumns())
	parsed, err := parser.Parse(parser.ParseParams{Source: doc.SDL()})
	require.NoError(t, err)
	assert.Len(t, parsed.Definitions, len(doc.Definitions))

	var objects int
	for _, def := range parsed.Definitions {
		if _, ok := def.(*ast.ObjectDefinition); ok {
			objects++
		}
	}
	assert.Equal(t, 3, objects)
}

func TestDocument_ASTMatchesDefinitions(t *testing.T) {
	doc := build(t, testutil.ShopColumns())
	node := doc.AST()
	require.Len(t, node.Definitions, len(doc.Definitions))

	object, ok := node.Definitions[len(node.Definitions)-1].(*ast.ObjectDefinition)
	require.True(t, ok)
	assert.Equal(t, QueryTypeName, object.Name.Value)
	require.Len(t, object.Fields, 2)
	assert.Equal(t, "orders", object.Fields[1].Name.Value)
	list, ok := object.Fields[1].Type.(*ast.List)
	require.True(t, ok)
	assert.Equal(t, "OrdersType", list.Type.(*ast.Named).Name.Value)
}

func TestBuildSchema_EmptyCatalog(t *testing.T) {
	cat, err := catalog.New(nil, testutil.DiscardLogger())
	require.NoError(t, err)
	_, err = BuildSchema(cat)
	var catErr *catalog.CatalogError
	assert.True(t, errors.As(err, &catErr))
}
