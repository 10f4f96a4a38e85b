package scalars

import (
	"testing"
	"time"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
)

func TestAnyScalarSerialize(t *testing.T) {
	scalar := Any()

	assert.Equal(t, "Any", scalar.Name())
	assert.Equal(t, "abc", scalar.Serialize([]byte("abc")))
	assert.Equal(t, int64(7), scalar.Serialize(int64(7)))
	assert.Equal(t, "2024-01-15T10:30:00Z", scalar.Serialize(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)))
	assert.Equal(t, []interface{}{1, 2}, scalar.ParseValue([]interface{}{1, 2}))
}

func TestAnyScalarParseLiteral(t *testing.T) {
	scalar := Any()

	assert.Equal(t, 42, scalar.ParseLiteral(&ast.IntValue{Value: "42"}))
	assert.Equal(t, 1.5, scalar.ParseLiteral(&ast.FloatValue{Value: "1.5"}))
	assert.Equal(t, "x", scalar.ParseLiteral(&ast.StringValue{Value: "x"}))
	assert.Equal(t, true, scalar.ParseLiteral(&ast.BooleanValue{Value: true}))
	assert.Equal(t, []interface{}{1, "b"}, scalar.ParseLiteral(&ast.ListValue{Values: []ast.Value{
		&ast.IntValue{Value: "1"},
		&ast.StringValue{Value: "b"},
	}}))
}

func TestValueFromAST(t *testing.T) {
	vars := map[string]interface{}{"min": float64(10)}

	value := ValueFromAST(&ast.ObjectValue{Fields: []*ast.ObjectField{
		{Name: &ast.Name{Value: "total"}, Value: &ast.ObjectValue{Fields: []*ast.ObjectField{
			{Name: &ast.Name{Value: "gt"}, Value: &ast.Variable{Name: &ast.Name{Value: "min"}}},
		}}},
		{Name: &ast.Name{Value: "direction"}, Value: &ast.EnumValue{Value: "desc"}},
	}}, vars)

	assert.Equal(t, map[string]interface{}{
		"total":     map[string]interface{}{"gt": float64(10)},
		"direction": "desc",
	}, value)
}

func TestValueFromAST_LargeIntegers(t *testing.T) {
	assert.Equal(t, 1e20, ValueFromAST(&ast.IntValue{Value: "100000000000000000000"}, nil))
	assert.Nil(t, ValueFromAST(&ast.Variable{Name: &ast.Name{Value: "missing"}}, nil))
}
