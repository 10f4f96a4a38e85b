// Package sqltype provides a shared mapping from column types to GraphQL scalar types.
// The schema synthesizer and the query planner both consult it so a column is
// typed identically wherever it appears.
package sqltype

import "strings"

// GraphQLType represents the category of GraphQL scalar type for a SQL column.
type GraphQLType int

const (
	// TypeString is the default type for text, dates, and unknown SQL types.
	TypeString GraphQLType = iota
	// TypeInt represents integer numeric types.
	TypeInt
	// TypeFloat represents floating-point and fixed-point numeric types.
	TypeFloat
	// TypeBoolean represents boolean types.
	TypeBoolean
)

// Map resolves the GraphQL type for a column. A recognised entity type wins;
// otherwise the native database type is used.
func Map(entityType, nativeType string) GraphQLType {
	if t, ok := mapEntity(entityType); ok {
		return t
	}
	return MapNative(nativeType)
}

func mapEntity(entityType string) (GraphQLType, bool) {
	switch strings.ToLower(strings.TrimSpace(entityType)) {
	case "number", "float", "double", "decimal":
		return TypeFloat, true
	case "int", "integer", "bigint":
		return TypeInt, true
	case "string", "date", "datetime", "time":
		return TypeString, true
	case "bool", "boolean":
		return TypeBoolean, true
	default:
		return TypeString, false
	}
}

// MapNative converts a native SQL data type to its GraphQL type category.
// The input is case-insensitive. Size specifiers like (10,2) or (255) and
// modifiers like "unsigned" are stripped before matching.
func MapNative(sqlType string) GraphQLType {
	switch normalize(sqlType) {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint",
		"int2", "int4", "int8", "serial", "smallserial", "bigserial":
		return TypeInt
	case "float", "double", "double precision", "real", "float4", "float8",
		"decimal", "numeric", "money", "smallmoney":
		return TypeFloat
	case "bool", "boolean", "bit":
		return TypeBoolean
	default:
		// Text, binary, date/time, uuid, json and unknown types.
		return TypeString
	}
}

func normalize(sqlType string) string {
	s := strings.ToLower(strings.TrimSpace(sqlType))
	if idx := strings.Index(s, "("); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), " unsigned")
	s = strings.TrimSuffix(s, " zerofill")
	return strings.TrimSpace(s)
}

// String returns the GraphQL scalar type name for schema generation.
func (t GraphQLType) String() string {
	switch t {
	case TypeInt:
		return "Int"
	case TypeFloat:
		return "Float"
	case TypeBoolean:
		return "Boolean"
	default:
		return "String"
	}
}
