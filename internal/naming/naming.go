// Package naming derives GraphQL names from table and column identifiers.
// Every name is a pure function of its inputs so independently synthesized
// schema fragments for the same table and role always agree.
package naming

import (
	"strings"
	"unicode"
)

// Role suffixes appended to a Pascal-cased table identifier.
const (
	RoleType           = "Type"
	RoleWhere          = "WhereType"
	RoleOrder          = "OrderType"
	RoleColumnEnum     = "ColumnEnum"
	RoleGroupBy        = "GroupByType"
	RoleColumnEquality = "ColumnEqualityType"
	RoleLinkingEnum    = "LinkingEnum"
	RoleJoin           = "JoinType"
)

// JoinFieldSuffix marks object fields that traverse a foreign key.
const JoinFieldSuffix = "_table"

// TableIdentifier converts a database table name to its camelCase identifier.
// Example: "order_items" -> "orderItems", "Customers" -> "customers"
func TableIdentifier(tableName string) string {
	parts := splitWords(tableName)
	for i, part := range parts {
		if i == 0 {
			parts[i] = lowerFirst(part)
			continue
		}
		parts[i] = upperFirst(part)
	}
	return Sanitize(strings.Join(parts, ""))
}

// Pascal upper-cases the first letter of an identifier.
func Pascal(identifier string) string {
	return upperFirst(identifier)
}

// EntityName returns the GraphQL field name for a database column when the
// driver supplied no entity name. The database spelling is kept.
func EntityName(columnName string) string {
	return Sanitize(strings.TrimSpace(columnName))
}

// TypeName builds "<Table><Role>", e.g. TypeName("orders", RoleWhere) -> "OrdersWhereType".
func TypeName(tableID, role string) string {
	return Pascal(tableID) + role
}

// PairTypeName builds "<Parent><Other><Role>" for types describing a table pair.
func PairTypeName(parentID, otherID, role string) string {
	return Pascal(parentID) + Pascal(otherID) + role
}

// ForeignKeyField is the join field emitted next to an FK column.
func ForeignKeyField(columnEntity string) string {
	return columnEntity + JoinFieldSuffix
}

// ReverseField is the join field emitted on a table referenced by tableID.
func ReverseField(tableID string) string {
	return tableID + JoinFieldSuffix
}

// IsJoinField reports whether a field name carries the join suffix.
func IsJoinField(name string) bool {
	return strings.HasSuffix(name, JoinFieldSuffix) && len(name) > len(JoinFieldSuffix)
}

// Sanitize rewrites a name so it matches the GraphQL name grammar
// /[_A-Za-z][_0-9A-Za-z]*/ and does not use the reserved "__" prefix.
func Sanitize(name string) string {
	if name == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		if r < unicode.MaxASCII && (r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	out := b.String()
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	for strings.HasPrefix(out, "__") {
		out = out[1:]
	}
	return out
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
