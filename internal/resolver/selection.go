package resolver

import (
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"sqlgraph/internal/planner"
	"sqlgraph/internal/scalars"
	"sqlgraph/internal/schemagen"
)

// rootSelection converts the resolved root field and everything below it.
// Root arguments come already coerced by graphql-go; nested arguments are
// decoded from the AST and coerced against the document's input types.
func (b *schemaBuilder) rootSelection(p graphql.ResolveParams, typeName string) *planner.Selection {
	sel := &planner.Selection{Name: p.Info.FieldName, Args: p.Args}
	if len(p.Info.FieldASTs) == 0 {
		return sel
	}
	field := p.Info.FieldASTs[0]
	if field.Alias != nil {
		sel.Alias = field.Alias.Value
	}
	w := selectionWalker{b: b, fragments: p.Info.Fragments, vars: p.Info.VariableValues}
	for _, f := range p.Info.FieldASTs {
		if f.SelectionSet != nil {
			sel.Fields = w.merge(sel.Fields, w.collect(f.SelectionSet.Selections, typeName))
		}
	}
	return sel
}

type selectionWalker struct {
	b         *schemaBuilder
	fragments map[string]ast.Definition
	vars      map[string]interface{}
}

func (w selectionWalker) collect(selections []ast.Selection, typeName string) []*planner.Selection {
	def, _ := w.b.doc.Definition(typeName)
	var out []*planner.Selection
	for _, selection := range selections {
		switch s := selection.(type) {
		case *ast.Field:
			if s.Name == nil || !w.included(s.Directives) {
				continue
			}
			name := s.Name.Value
			if len(name) > 1 && name[:2] == "__" {
				continue
			}
			child := &planner.Selection{Name: name}
			if s.Alias != nil {
				child.Alias = s.Alias.Value
			}
			field, known := def.Field(name)
			if len(s.Arguments) > 0 {
				child.Args = make(map[string]any, len(s.Arguments))
				for _, arg := range s.Arguments {
					if arg.Name == nil {
						continue
					}
					value := scalars.ValueFromAST(arg.Value, w.vars)
					if known {
						for _, a := range field.Args {
							if a.Name == arg.Name.Value {
								value = w.b.coerce(value, a.Type)
							}
						}
					}
					child.Args[arg.Name.Value] = value
				}
			}
			if s.SelectionSet != nil {
				childType := ""
				if known {
					childType = field.Type.Name
				}
				child.Fields = w.collect(s.SelectionSet.Selections, childType)
			}
			out = w.merge(out, []*planner.Selection{child})
		case *ast.InlineFragment:
			if s.SelectionSet != nil && w.included(s.Directives) {
				out = w.merge(out, w.collect(s.SelectionSet.Selections, typeName))
			}
		case *ast.FragmentSpread:
			if w.fragments == nil || s.Name == nil || !w.included(s.Directives) {
				continue
			}
			fragment, ok := w.fragments[s.Name.Value].(*ast.FragmentDefinition)
			if !ok || fragment.SelectionSet == nil {
				continue
			}
			out = w.merge(out, w.collect(fragment.SelectionSet.Selections, typeName))
		}
	}
	return out
}

// merge appends fields, folding repeats of the same response key together
// the way GraphQL field collection does.
func (w selectionWalker) merge(into, fields []*planner.Selection) []*planner.Selection {
	for _, f := range fields {
		var existing *planner.Selection
		for _, e := range into {
			if e.ResponseKey() == f.ResponseKey() && e.Name == f.Name {
				existing = e
				break
			}
		}
		if existing == nil {
			into = append(into, f)
			continue
		}
		existing.Fields = w.merge(existing.Fields, f.Fields)
	}
	return into
}

// included evaluates @skip and @include.
func (w selectionWalker) included(directives []*ast.Directive) bool {
	for _, d := range directives {
		if d.Name == nil {
			continue
		}
		var cond interface{}
		for _, arg := range d.Arguments {
			if arg.Name != nil && arg.Name.Value == "if" {
				cond = scalars.ValueFromAST(arg.Value, w.vars)
			}
		}
		flag, _ := cond.(bool)
		switch d.Name.Value {
		case "skip":
			if flag {
				return false
			}
		case "include":
			if !flag {
				return false
			}
		}
	}
	return true
}

// coerce applies input coercion for nested literals: a single value given
// for a list type becomes a one-element list, recursively through input
// objects.
func (b *schemaBuilder) coerce(value interface{}, ref schemagen.TypeRef) interface{} {
	if value == nil {
		return nil
	}
	if ref.List {
		items, ok := value.([]interface{})
		if !ok {
			items = []interface{}{value}
		}
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = b.coerceNamed(item, ref.Name)
		}
		return out
	}
	return b.coerceNamed(value, ref.Name)
}

func (b *schemaBuilder) coerceNamed(value interface{}, name string) interface{} {
	m, ok := value.(map[string]interface{})
	if !ok {
		return value
	}
	def, ok := b.doc.Definition(name)
	if !ok || def.Kind != schemagen.KindInput {
		return value
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if f, ok := def.Field(k); ok {
			out[k] = b.coerce(v, f.Type)
			continue
		}
		out[k] = v
	}
	return out
}
