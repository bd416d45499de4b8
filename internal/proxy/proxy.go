// Package proxy provides the managed proxy factory.
//
// Given a struct schema, the factory produces a live Instance that exposes the
// schema's declared properties as Get/Set operations backed by a field table.
// No implementation type is written per configurable type: one field table is
// built per schema and cached, and every Instance of that schema shares it.
//
// Property values are either scalar ir.Values (string, int, bool, list, map)
// or bound managed children (*Instance for nested structs, *Set for
// collections). Managed children are bound once by the model initializer and
// cannot be reassigned through Set.
package proxy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/modelcore/internal/ir"
)

// Managed is the capability interface shared by instances and their views.
type Managed interface {
	// Type returns the declared type of the managed object.
	Type() ir.TypeRef
	// Get returns the property value, or nil if the property is unset.
	Get(name string) (any, error)
	// Set assigns a scalar property value. ir.Null (or nil) unsets it.
	Set(name string, value any) error
}

// PropertyError reports an invalid property access on a managed object.
type PropertyError struct {
	Type     ir.TypeRef
	Property string
	Reason   string
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Type.DisplayName(), e.Property, e.Reason)
}

// IsPropertyError returns true if err is a PropertyError.
func IsPropertyError(err error) bool {
	var pe *PropertyError
	return errors.As(err, &pe)
}

// fieldTable maps property names to slots for one schema.
type fieldTable struct {
	schema *ir.Schema
	index  map[string]int
}

func (t *fieldTable) slot(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return 0, &PropertyError{Type: t.schema.Type, Property: name, Reason: "no such property"}
	}
	return i, nil
}

// Factory allocates managed instances.
//
// Thread-safety: New is safe for concurrent use; Instances are not.
type Factory struct {
	mu     sync.Mutex
	tables map[string]*fieldTable
}

// NewFactory creates a proxy factory with an empty field-table cache.
func NewFactory() *Factory {
	return &Factory{tables: make(map[string]*fieldTable)}
}

// table returns the cached field table for the schema, building it once.
func (f *Factory) table(schema *ir.Schema) *fieldTable {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := schema.Type.DisplayName()
	if t, ok := f.tables[key]; ok && t.schema == schema {
		return t
	}
	t := &fieldTable{schema: schema, index: make(map[string]int, len(schema.Properties))}
	for i, p := range schema.Properties {
		t.index[p.Name] = i
	}
	f.tables[key] = t
	return t
}

// New allocates a fresh instance of a struct schema with every property unset.
func (f *Factory) New(schema *ir.Schema) (*Instance, error) {
	if schema == nil {
		return nil, fmt.Errorf("proxy: nil schema")
	}
	if schema.Kind != ir.KindStruct {
		return nil, fmt.Errorf("proxy: cannot allocate %s schema %s as a managed struct",
			schema.Kind, schema.Type.DisplayName())
	}
	t := f.table(schema)
	return &Instance{table: t, values: make([]any, len(schema.Properties))}, nil
}

// Instance is a schema-managed struct object.
type Instance struct {
	table  *fieldTable
	values []any
}

// Type implements Managed.
func (i *Instance) Type() ir.TypeRef {
	return i.table.schema.Type
}

// Schema returns the schema the instance was allocated from.
func (i *Instance) Schema() *ir.Schema {
	return i.table.schema
}

// Get implements Managed.
func (i *Instance) Get(name string) (any, error) {
	slot, err := i.table.slot(name)
	if err != nil {
		return nil, err
	}
	return i.values[slot], nil
}

// IsSet reports whether the property currently holds a value.
// Unknown properties report false.
func (i *Instance) IsSet(name string) bool {
	slot, err := i.table.slot(name)
	if err != nil {
		return false
	}
	return i.values[slot] != nil
}

// Set implements Managed.
// Only scalar properties are assignable; the value must match the declared
// scalar type. Go values are converted with ir.FromAny.
func (i *Instance) Set(name string, value any) error {
	slot, err := i.table.slot(name)
	if err != nil {
		return err
	}
	p := i.table.schema.Properties[slot]
	if !ir.IsScalar(p.Type) {
		return &PropertyError{Type: i.Type(), Property: name, Reason: "managed property cannot be reassigned"}
	}

	v, err := ir.FromAny(value)
	if err != nil {
		return &PropertyError{Type: i.Type(), Property: name, Reason: err.Error()}
	}
	if _, isNull := v.(ir.Null); isNull {
		i.values[slot] = nil
		return nil
	}
	if got := ir.TypeName(v); got != p.Type.Name {
		return &PropertyError{
			Type:     i.Type(),
			Property: name,
			Reason:   fmt.Sprintf("cannot assign %s value to %s property", got, p.Type.Name),
		}
	}
	i.values[slot] = v
	return nil
}

// Bind attaches a managed child to a non-scalar property.
// A property can be bound once; the child's type must match the declared type.
func (i *Instance) Bind(name string, child any) error {
	slot, err := i.table.slot(name)
	if err != nil {
		return err
	}
	p := i.table.schema.Properties[slot]
	if ir.IsScalar(p.Type) {
		return &PropertyError{Type: i.Type(), Property: name, Reason: "scalar property cannot be bound"}
	}
	if i.values[slot] != nil {
		return &PropertyError{Type: i.Type(), Property: name, Reason: "property already bound"}
	}

	var childType ir.TypeRef
	switch c := child.(type) {
	case *Instance:
		childType = c.Type()
	case *Set:
		childType = c.Type()
	default:
		return &PropertyError{Type: i.Type(), Property: name, Reason: fmt.Sprintf("cannot bind %T", child)}
	}
	if !childType.Equal(p.Type) {
		return &PropertyError{
			Type:     i.Type(),
			Property: name,
			Reason:   fmt.Sprintf("cannot bind %s to %s property", childType.DisplayName(), p.Type.DisplayName()),
		}
	}
	i.values[slot] = child
	return nil
}

// Snapshot returns the instance's set values as an ir.Object.
// Unset properties are omitted; nested instances become objects and sets
// become lists of element snapshots.
func (i *Instance) Snapshot() ir.Object {
	obj := make(ir.Object)
	for slot, p := range i.table.schema.Properties {
		switch v := i.values[slot].(type) {
		case nil:
		case ir.Value:
			obj[p.Name] = v
		case *Instance:
			obj[p.Name] = v.Snapshot()
		case *Set:
			obj[p.Name] = v.Snapshot()
		}
	}
	return obj
}

// ValueOf reads a scalar property as a concrete ir.Value type.
// ok is false when the property is unset.
//
// Example:
//
//	name, ok, err := proxy.ValueOf[ir.String](inst, "name")
func ValueOf[V ir.Value](m Managed, name string) (v V, ok bool, err error) {
	raw, err := m.Get(name)
	if err != nil || raw == nil {
		return v, false, err
	}
	v, ok = raw.(V)
	if !ok {
		return v, false, &PropertyError{
			Type:     m.Type(),
			Property: name,
			Reason:   fmt.Sprintf("holds %T, not %T", raw, v),
		}
	}
	return v, true, nil
}
