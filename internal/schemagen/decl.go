// Package schemagen synthesizes a GraphQL schema document from a catalog.
//
// Synthesis is a pure function of the catalog: per-table fragments are
// assembled as immutable declarations, merged by name, sorted, and rendered
// in a single pass. Two builds over the same catalog are byte-identical.
package schemagen

import "strings"

// Kind is the declaration kind of a definition.
type Kind int

const (
	KindScalar Kind = iota
	KindEnum
	KindInput
	KindObject
)

func (k Kind) keyword() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindEnum:
		return "enum"
	case KindInput:
		return "input"
	default:
		return "type"
	}
}

func (k Kind) String() string {
	return k.keyword()
}

// TypeRef references a named type, optionally wrapped in a list and
// non-null markers.
type TypeRef struct {
	Name        string
	List        bool
	NonNull     bool
	ElemNonNull bool
}

// Named returns a nullable reference to a named type.
func Named(name string) TypeRef { return TypeRef{Name: name} }

// ListOf returns a nullable list of nullable elements.
func ListOf(name string) TypeRef { return TypeRef{Name: name, List: true} }

func (t TypeRef) String() string {
	s := t.Name
	if t.List {
		if t.ElemNonNull {
			s += "!"
		}
		s = "[" + s + "]"
	}
	if t.NonNull {
		s += "!"
	}
	return s
}

// Argument is a field argument.
type Argument struct {
	Name string
	Type TypeRef
}

// Field is an object or input field.
type Field struct {
	Name string
	Type TypeRef
	Args []Argument
}

func (f Field) signature() string {
	var b strings.Builder
	b.WriteString(f.Type.String())
	for _, a := range f.Args {
		b.WriteString("|")
		b.WriteString(a.Name)
		b.WriteString(":")
		b.WriteString(a.Type.String())
	}
	return b.String()
}

// Definition is one named declaration. Placeholder definitions stand in for
// a table's full declaration so cross-table references type-check before
// merging; they never decide field order.
type Definition struct {
	Kind        Kind
	Name        string
	Fields      []Field
	Values      []string
	Placeholder bool
}

// Field returns the named field.
func (d Definition) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RootField maps a root query field to the table it reads.
type RootField struct {
	Name    string
	TableID string
}

// Document is a merged, ordered schema.
type Document struct {
	Definitions []Definition
	RootFields  []RootField

	byName map[string]int
}

// Definition looks a definition up by name.
func (d *Document) Definition(name string) (Definition, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Definition{}, false
	}
	return d.Definitions[i], true
}
