// Package resolver turns a synthesized schema document into an executable
// graphql-go schema. Root fields compile their whole selection into one plan
// and execute it; nested join fields read the already nested result.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/graphql-go/graphql"

	"sqlgraph/internal/catalog"
	"sqlgraph/internal/driver"
	"sqlgraph/internal/observability"
	"sqlgraph/internal/planner"
	"sqlgraph/internal/queryexec"
	"sqlgraph/internal/scalars"
	"sqlgraph/internal/schemagen"
)

// Options configures schema construction.
type Options struct {
	// Planner compiles root selections. Nil uses an unlimited planner.
	Planner *planner.Planner
	// Driver executes plans when the request context carries none.
	Driver      driver.DatabaseDriver
	Connection  string
	Fingerprint string
	Logger      *slog.Logger
}

type schemaBuilder struct {
	doc     *schemagen.Document
	cat     *catalog.Catalog
	opts    Options
	logger  *slog.Logger
	outputs map[string]graphql.Output
	inputs  map[string]graphql.Input
}

// NewSchema builds the executable schema for a document and the catalog it
// was synthesized from.
func NewSchema(doc *schemagen.Document, cat *catalog.Catalog, opts Options) (graphql.Schema, error) {
	if doc == nil || cat == nil {
		return graphql.Schema{}, errors.New("resolver: document and catalog are required")
	}
	if opts.Planner == nil {
		opts.Planner = planner.New(planner.PlanLimits{})
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &schemaBuilder{
		doc:    doc,
		cat:    cat,
		opts:   opts,
		logger: logger.With(slog.String("component", "resolver")),
		outputs: map[string]graphql.Output{
			"String":  graphql.String,
			"Int":     graphql.Int,
			"Float":   graphql.Float,
			"Boolean": graphql.Boolean,
		},
		inputs: map[string]graphql.Input{
			"String":  graphql.String,
			"Int":     graphql.Int,
			"Float":   graphql.Float,
			"Boolean": graphql.Boolean,
		},
	}

	// Register every named type first; field maps are thunks so definitions
	// may reference each other in any order.
	for _, def := range doc.Definitions {
		if def.Name == schemagen.QueryTypeName {
			continue
		}
		if err := b.register(def); err != nil {
			return graphql.Schema{}, err
		}
	}

	query, err := b.queryType()
	if err != nil {
		return graphql.Schema{}, err
	}
	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}

func (b *schemaBuilder) register(def schemagen.Definition) error {
	switch def.Kind {
	case schemagen.KindScalar:
		if def.Name != schemagen.ScalarAny {
			return fmt.Errorf("resolver: unsupported scalar %q", def.Name)
		}
		scalar := scalars.Any()
		b.outputs[def.Name] = scalar
		b.inputs[def.Name] = scalar
	case schemagen.KindEnum:
		values := make(graphql.EnumValueConfigMap, len(def.Values))
		for _, v := range def.Values {
			values[v] = &graphql.EnumValueConfig{Value: v}
		}
		enum := graphql.NewEnum(graphql.EnumConfig{Name: def.Name, Values: values})
		b.outputs[def.Name] = enum
		b.inputs[def.Name] = enum
	case schemagen.KindInput:
		b.inputs[def.Name] = graphql.NewInputObject(graphql.InputObjectConfig{
			Name: def.Name,
			Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
				fields := make(graphql.InputObjectConfigFieldMap, len(def.Fields))
				for _, f := range def.Fields {
					fields[f.Name] = &graphql.InputObjectFieldConfig{Type: b.inputType(f.Type)}
				}
				return fields
			}),
		})
	case schemagen.KindObject:
		b.outputs[def.Name] = graphql.NewObject(graphql.ObjectConfig{
			Name: def.Name,
			Fields: graphql.FieldsThunk(func() graphql.Fields {
				fields := make(graphql.Fields, len(def.Fields))
				for _, f := range def.Fields {
					fields[f.Name] = b.objectField(f)
				}
				return fields
			}),
		})
	default:
		return fmt.Errorf("resolver: unsupported definition kind %s for %q", def.Kind, def.Name)
	}
	return nil
}

func (b *schemaBuilder) objectField(f schemagen.Field) *graphql.Field {
	field := &graphql.Field{Type: b.outputType(f.Type), Args: b.arguments(f.Args)}
	if f.Type.List {
		field.Resolve = resolveNested
	}
	return field
}

func (b *schemaBuilder) arguments(args []schemagen.Argument) graphql.FieldConfigArgument {
	if len(args) == 0 {
		return nil
	}
	out := make(graphql.FieldConfigArgument, len(args))
	for _, a := range args {
		out[a.Name] = &graphql.ArgumentConfig{Type: b.inputType(a.Type)}
	}
	return out
}

func (b *schemaBuilder) queryType() (*graphql.Object, error) {
	def, ok := b.doc.Definition(schemagen.QueryTypeName)
	if !ok {
		return nil, errors.New("resolver: document has no Query type")
	}
	roots := make(map[string]schemagen.RootField, len(b.doc.RootFields))
	for _, rf := range b.doc.RootFields {
		roots[rf.Name] = rf
	}

	fields := make(graphql.Fields, len(def.Fields))
	for _, f := range def.Fields {
		rf, ok := roots[f.Name]
		if !ok {
			return nil, fmt.Errorf("resolver: query field %q has no root table", f.Name)
		}
		fields[f.Name] = &graphql.Field{
			Type:    b.outputType(f.Type),
			Args:    b.arguments(f.Args),
			Resolve: b.resolveRoot(rf, f.Type.Name),
		}
	}
	return graphql.NewObject(graphql.ObjectConfig{Name: schemagen.QueryTypeName, Fields: fields}), nil
}

func (b *schemaBuilder) outputType(ref schemagen.TypeRef) graphql.Output {
	var t graphql.Output = b.outputs[ref.Name]
	if ref.List {
		if ref.ElemNonNull {
			t = graphql.NewNonNull(t)
		}
		t = graphql.NewList(t)
	}
	if ref.NonNull {
		t = graphql.NewNonNull(t)
	}
	return t
}

func (b *schemaBuilder) inputType(ref schemagen.TypeRef) graphql.Input {
	var t graphql.Input = b.inputs[ref.Name]
	if ref.List {
		if ref.ElemNonNull {
			t = graphql.NewNonNull(t)
		}
		t = graphql.NewList(t)
	}
	if ref.NonNull {
		t = graphql.NewNonNull(t)
	}
	return t
}

// resolveRoot compiles the root field's full selection tree into one plan
// and executes it against the catalog snapshot the schema was built from.
func (b *schemaBuilder) resolveRoot(rf schemagen.RootField, typeName string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		ctx := p.Context
		if ctx == nil {
			ctx = context.Background()
		}

		sel := b.rootSelection(p, typeName)
		sel.Name = rf.TableID
		cost := planner.EstimateCost(sel)
		info := observability.QueryInfo{
			Connection:  b.opts.Connection,
			Table:       rf.TableID,
			Fingerprint: b.opts.Fingerprint,
			Depth:       cost.Depth,
			Joins:       cost.Joins,
		}

		drv, ok := driver.FromContext(ctx)
		if !ok {
			drv = b.opts.Driver
		}
		if drv != nil {
			info.Dialect = drv.Dialect().Name
		}

		ctx, span := startResolverSpan(ctx, "graphql.resolve.root", observability.QuerySpanAttributes(info)...)
		metrics := observability.GraphQLMetricsFromContext(ctx)

		plan, err := b.opts.Planner.Plan(sel, b.cat)
		if err != nil {
			if metrics != nil {
				metrics.RecordCompileError(ctx, rf.TableID)
			}
			finishResolverSpan(span, err, "compile_error")
			return nil, err
		}
		if metrics != nil {
			metrics.RecordPlan(ctx, cost.Depth, cost.Joins, rf.TableID)
		}

		rows, err := queryexec.Execute(ctx, plan, drv)
		finishResolverSpan(span, err, "")
		if err != nil {
			b.logger.ErrorContext(ctx, "query execution failed",
				append(observability.QueryLogFields(ctx, info), slog.String("error", err.Error()))...)
			return nil, err
		}
		b.logger.DebugContext(ctx, "query executed",
			append(observability.QueryLogFields(ctx, info), slog.Int("results", len(rows)))...)
		return rows, nil
	}
}

// resolveNested returns a join field's rows, placed under the field's
// response key when the root result was nested.
func resolveNested(p graphql.ResolveParams) (interface{}, error) {
	source, ok := p.Source.(map[string]interface{})
	if !ok || p.Info.Path == nil {
		return nil, nil
	}
	key, ok := p.Info.Path.Key.(string)
	if !ok {
		return nil, nil
	}
	return source[key], nil
}
