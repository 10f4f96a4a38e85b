package schemagen

import (
	"fmt"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

// AST converts the merged declarations into a graphql-go document node.
func (d *Document) AST() *ast.Document {
	definitions := make([]ast.Node, 0, len(d.Definitions))
	for _, def := range d.Definitions {
		definitions = append(definitions, definitionNode(def))
	}
	return ast.NewDocument(&ast.Document{Definitions: definitions})
}

// SDL renders the document as schema definition language text.
func (d *Document) SDL() string {
	printed := printer.Print(d.AST())
	if sdl, ok := printed.(string); ok {
		return sdl
	}
	return fmt.Sprint(printed)
}

func definitionNode(def Definition) ast.Node {
	name := astName(def.Name)
	switch def.Kind {
	case KindScalar:
		return ast.NewScalarDefinition(&ast.ScalarDefinition{Name: name})
	case KindEnum:
		values := make([]*ast.EnumValueDefinition, 0, len(def.Values))
		for _, v := range def.Values {
			values = append(values, ast.NewEnumValueDefinition(&ast.EnumValueDefinition{Name: astName(v)}))
		}
		return ast.NewEnumDefinition(&ast.EnumDefinition{Name: name, Values: values})
	case KindInput:
		fields := make([]*ast.InputValueDefinition, 0, len(def.Fields))
		for _, f := range def.Fields {
			fields = append(fields, inputValue(f.Name, f.Type))
		}
		return ast.NewInputObjectDefinition(&ast.InputObjectDefinition{Name: name, Fields: fields})
	default:
		fields := make([]*ast.FieldDefinition, 0, len(def.Fields))
		for _, f := range def.Fields {
			args := make([]*ast.InputValueDefinition, 0, len(f.Args))
			for _, a := range f.Args {
				args = append(args, inputValue(a.Name, a.Type))
			}
			fields = append(fields, ast.NewFieldDefinition(&ast.FieldDefinition{
				Name:      astName(f.Name),
				Arguments: args,
				Type:      typeNode(f.Type),
			}))
		}
		return ast.NewObjectDefinition(&ast.ObjectDefinition{Name: name, Fields: fields})
	}
}

func inputValue(name string, t TypeRef) *ast.InputValueDefinition {
	return ast.NewInputValueDefinition(&ast.InputValueDefinition{Name: astName(name), Type: typeNode(t)})
}

func typeNode(t TypeRef) ast.Type {
	var node ast.Type = ast.NewNamed(&ast.Named{Name: astName(t.Name)})
	if t.List {
		if t.ElemNonNull {
			node = ast.NewNonNull(&ast.NonNull{Type: node})
		}
		node = ast.NewList(&ast.List{Type: node})
	}
	if t.NonNull {
		node = ast.NewNonNull(&ast.NonNull{Type: node})
	}
	return node
}

func astName(value string) *ast.Name {
	return ast.NewName(&ast.Name{Value: value})
}
