// Package model builds lazy node descriptors (creators) from schemas.
//
// The Factory dispatches on schema kind: STRUCT schemas get a StructProjection
// and a managed-model initializer, COLLECTION schemas get a SetProjection and a
// managed-set initializer. Construction is pure; allocation and initializer
// execution are deferred until the graph realizes the node.
package model

import (
	"fmt"
	"log/slog"

	"github.com/roach88/modelcore/internal/ir"
	"github.com/roach88/modelcore/internal/metrics"
	"github.com/roach88/modelcore/internal/proxy"
)

// SchemaLookup resolves schemas for nested properties and set elements.
// *schema.Store implements it.
type SchemaLookup interface {
	SchemaFor(t ir.TypeRef) (*ir.Schema, error)
}

// Factory builds creators.
type Factory struct {
	schemas SchemaLookup
	proxies *proxy.Factory
	metrics *metrics.Recorder
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithProxyFactory shares a proxy factory (and its field-table cache).
func WithProxyFactory(p *proxy.Factory) FactoryOption {
	return func(f *Factory) {
		f.proxies = p
	}
}

// WithMetrics records constructed creators.
func WithMetrics(m *metrics.Recorder) FactoryOption {
	return func(f *Factory) {
		f.metrics = m
	}
}

// NewFactory creates a creator factory backed by the given schema lookup.
func NewFactory(schemas SchemaLookup, opts ...FactoryOption) *Factory {
	f := &Factory{schemas: schemas}
	for _, opt := range opts {
		opt(f)
	}
	if f.proxies == nil {
		f.proxies = proxy.NewFactory()
	}
	return f
}

// Creator builds a creator without an initializer.
func (f *Factory) Creator(desc RuleDescriptor, path ir.Path, schema *ir.Schema) (*Creator, error) {
	return f.build(desc, path, schema, nil)
}

// CreatorWithAction builds a creator whose initializer is a zero-input action
// bound to the node's own reference.
func (f *Factory) CreatorWithAction(desc RuleDescriptor, path ir.Path, schema *ir.Schema, fn func(any) error) (*Creator, error) {
	if schema == nil {
		return nil, fmt.Errorf("creator for %s: nil schema", path)
	}
	if fn == nil {
		return nil, fmt.Errorf("creator for %s: nil initializer", path)
	}
	action := NewModelAction(desc, ir.Of(path, schema.Type), nil, func(subject any, _ Inputs) error {
		return fn(subject)
	})
	return f.build(desc, path, schema, action)
}

// CreatorWithInputs builds a creator whose initializer receives the realized
// inputs in declared order.
func (f *Factory) CreatorWithInputs(desc RuleDescriptor, path ir.Path, schema *ir.Schema, inputs []ir.ModelReference, fn func(any, Inputs) error) (*Creator, error) {
	if schema == nil {
		return nil, fmt.Errorf("creator for %s: nil schema", path)
	}
	if fn == nil {
		return nil, fmt.Errorf("creator for %s: nil initializer", path)
	}
	action := NewModelAction(desc, ir.Of(path, schema.Type), inputs, fn)
	return f.build(desc, path, schema, action)
}

func (f *Factory) build(desc RuleDescriptor, path ir.Path, schema *ir.Schema, init *ModelAction) (*Creator, error) {
	if schema == nil {
		return nil, fmt.Errorf("creator for %s: nil schema", path)
	}

	c := &Creator{
		Reference:   ir.Of(path, schema.Type),
		Initializer: init,
		Descriptor:  desc,
		Kind:        schema.Kind,
	}
	switch schema.Kind {
	case ir.KindCollection:
		if len(schema.Type.Params) == 0 {
			return nil, fmt.Errorf("creator for %s: collection type %s has no element type",
				path, schema.Type.DisplayName())
		}
		c.Projection = SetProjection{CollectionType: schema.Type, ElementType: schema.Type.Params[0]}
		c.allocate = func(Realizer) (any, error) {
			return f.newSet(schema)
		}
	case ir.KindStruct:
		c.Projection = StructProjection{Type: schema.Type}
		c.allocate = func(r Realizer) (any, error) {
			return f.allocateModel(desc, path, schema, r)
		}
	default:
		return nil, &UnsupportedSchemaKindError{Type: schema.Type, Kind: schema.Kind}
	}

	f.metrics.CreatorBuilt(string(schema.Kind))
	slog.Debug("creator built",
		"path", path,
		"type", schema.Type.DisplayName(),
		"kind", schema.Kind,
		"inputs", len(c.Inputs()))
	return c, nil
}

// allocateModel allocates a struct instance for a graph node. Nested managed
// properties become nodes at child paths; paths already registered are reused.
func (f *Factory) allocateModel(desc RuleDescriptor, path ir.Path, schema *ir.Schema, r Realizer) (*proxy.Instance, error) {
	if r == nil {
		return f.Allocate(schema)
	}
	inst, err := f.proxies.New(schema)
	if err != nil {
		return nil, err
	}
	for _, p := range schema.Properties {
		if ir.IsScalar(p.Type) {
			continue
		}
		childPath := path.Child(p.Name)
		if !r.Has(childPath) {
			childSchema, err := f.schemas.SchemaFor(p.Type)
			if err != nil {
				return nil, fmt.Errorf("allocate %s property %q: %w", schema.Type.DisplayName(), p.Name, err)
			}
			child, err := f.Creator(desc.Nested(p.Name), childPath, childSchema)
			if err != nil {
				return nil, fmt.Errorf("allocate %s property %q: %w", schema.Type.DisplayName(), p.Name, err)
			}
			if err := r.Register(child); err != nil {
				return nil, err
			}
		}
		value, err := r.Realize(childPath)
		if err != nil {
			return nil, fmt.Errorf("allocate %s property %q: %w", schema.Type.DisplayName(), p.Name, err)
		}
		if err := inst.Bind(p.Name, value); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// Allocate allocates a fully populated struct instance outside the graph.
// Nested structs are allocated recursively and nested collections start empty.
// It is also the allocator for managed set elements.
func (f *Factory) Allocate(schema *ir.Schema) (*proxy.Instance, error) {
	inst, err := f.proxies.New(schema)
	if err != nil {
		return nil, err
	}
	for _, p := range schema.Properties {
		if ir.IsScalar(p.Type) {
			continue
		}
		childSchema, err := f.schemas.SchemaFor(p.Type)
		if err != nil {
			return nil, fmt.Errorf("allocate %s property %q: %w", schema.Type.DisplayName(), p.Name, err)
		}

		var child any
		switch childSchema.Kind {
		case ir.KindStruct:
			child, err = f.Allocate(childSchema)
		case ir.KindCollection:
			child, err = f.newSet(childSchema)
		default:
			err = &UnsupportedSchemaKindError{Type: childSchema.Type, Kind: childSchema.Kind}
		}
		if err != nil {
			return nil, fmt.Errorf("allocate %s property %q: %w", schema.Type.DisplayName(), p.Name, err)
		}
		if err := inst.Bind(p.Name, child); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// newSet creates the empty managed set for a collection schema.
func (f *Factory) newSet(schema *ir.Schema) (*proxy.Set, error) {
	if len(schema.Type.Params) == 0 {
		return nil, fmt.Errorf("allocate %s: collection has no element type", schema.Type.DisplayName())
	}
	elem, err := f.schemas.SchemaFor(schema.Type.Params[0])
	if err != nil {
		return nil, fmt.Errorf("allocate %s: %w", schema.Type.DisplayName(), err)
	}
	return proxy.NewSet(schema, elem, f.Allocate)
}
