package schemagen

// Shared vocabulary names.
const (
	ScalarAny     = "Any"
	EnumOrderBy   = "OrderByOptions"
	InputBetween  = "BetweenObject"
	EnumJoin      = "JoinOptions"
	EnumWhereMode = "WhereMode"
	InputEquality = "EqualityTypes"
	QueryTypeName = "Query"
)

// Comparison operators accepted on every column of a where input, in
// declaration order.
var (
	ScalarOperators = []string{
		"eq", "notEq", "like", "notLike",
		"gt", "gte", "notGt", "notGte",
		"lt", "lte", "notLt", "notLte",
		"in", "notIn",
	}
	BooleanOperators = []string{"isNull", "isNotNull", "exists", "notExists"}
	RangeOperators   = []string{"between", "notBetween"}

	OrderDirections = []string{"asc", "desc"}
	JoinKinds       = []string{"inner", "left", "leftOuter", "right", "rightOuter", "fullOuter", "cross"}
	WhereModes      = []string{"global", "specific"}
)

func vocabulary() []Definition {
	equality := Definition{Kind: KindInput, Name: InputEquality}
	for _, op := range ScalarOperators {
		equality.Fields = append(equality.Fields, Field{Name: op, Type: Named(ScalarAny)})
	}
	for _, op := range BooleanOperators {
		t := "Boolean"
		if op == "exists" || op == "notExists" {
			t = ScalarAny
		}
		equality.Fields = append(equality.Fields, Field{Name: op, Type: Named(t)})
	}
	for _, op := range RangeOperators {
		equality.Fields = append(equality.Fields, Field{Name: op, Type: Named(InputBetween)})
	}

	return []Definition{
		{Kind: KindScalar, Name: ScalarAny},
		{Kind: KindEnum, Name: EnumOrderBy, Values: OrderDirections},
		{Kind: KindInput, Name: InputBetween, Fields: []Field{
			{Name: "start", Type: TypeRef{Name: ScalarAny, NonNull: true}},
			{Name: "end", Type: TypeRef{Name: ScalarAny, NonNull: true}},
		}},
		{Kind: KindEnum, Name: EnumJoin, Values: JoinKinds},
		{Kind: KindEnum, Name: EnumWhereMode, Values: WhereModes},
		equality,
	}
}
