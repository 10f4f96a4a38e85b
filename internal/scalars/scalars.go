// Package scalars provides the custom GraphQL scalars of generated schemas
// and the literal conversion shared by argument decoding.
package scalars

import (
	"strconv"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// Any returns the scalar used for operands whose type depends on the column
// they are compared against.
func Any() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Any",
		Description: "A column operand: string, number, boolean, null or a list of those.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case []byte:
				return string(v)
			case time.Time:
				return v.Format(time.RFC3339Nano)
			default:
				return v
			}
		},
		ParseValue: func(value interface{}) interface{} {
			return value
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			return ValueFromAST(valueAST, nil)
		},
	})
}

// ValueFromAST converts a literal into plain Go values. Variables resolve
// against vars; enum values become their names. Integers that do not fit an
// int fall back to int64, then float64.
func ValueFromAST(value ast.Value, vars map[string]interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case *ast.Variable:
		if v.Name == nil || vars == nil {
			return nil
		}
		return vars[v.Name.Value]
	case *ast.IntValue:
		if n, err := strconv.Atoi(v.Value); err == nil {
			return n
		}
		if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(v.Value, 64); err == nil {
			return f
		}
		return nil
	case *ast.FloatValue:
		f, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return nil
		}
		return f
	case *ast.StringValue:
		return v.Value
	case *ast.BooleanValue:
		return v.Value
	case *ast.EnumValue:
		return v.Value
	case *ast.ListValue:
		out := make([]interface{}, 0, len(v.Values))
		for _, item := range v.Values {
			out = append(out, ValueFromAST(item, vars))
		}
		return out
	case *ast.ObjectValue:
		out := make(map[string]interface{}, len(v.Fields))
		for _, f := range v.Fields {
			if f.Name == nil {
				continue
			}
			out[f.Name.Value] = ValueFromAST(f.Value, vars)
		}
		return out
	default:
		return nil
	}
}
