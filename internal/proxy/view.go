package proxy

import (
	"github.com/roach88/modelcore/internal/ir"
)

// ReadOnly returns a view of the instance that rejects Set.
// Nested managed values read through the view are read-only as well.
func ReadOnly(i *Instance) Managed {
	return readOnlyView{inst: i}
}

type readOnlyView struct {
	inst *Instance
}

func (v readOnlyView) Type() ir.TypeRef {
	return v.inst.Type()
}

func (v readOnlyView) Get(name string) (any, error) {
	raw, err := v.inst.Get(name)
	if err != nil {
		return nil, err
	}
	switch c := raw.(type) {
	case *Instance:
		return ReadOnly(c), nil
	case *Set:
		return ReadOnlySet(c), nil
	case ir.Value:
		return ir.Clone(c), nil
	}
	return raw, nil
}

func (v readOnlyView) Set(name string, _ any) error {
	if _, err := v.inst.table.slot(name); err != nil {
		return err
	}
	return &PropertyError{Type: v.Type(), Property: name, Reason: "read-only view"}
}

// SetView is a read-only view of a managed set.
type SetView struct {
	set *Set
}

// ReadOnlySet returns a read-only view of the set.
func ReadOnlySet(s *Set) *SetView {
	return &SetView{set: s}
}

// Type returns the collection type.
func (v *SetView) Type() ir.TypeRef {
	return v.set.Type()
}

// ElementType returns the declared element type.
func (v *SetView) ElementType() ir.TypeRef {
	return v.set.ElementType()
}

// Len returns the number of elements.
func (v *SetView) Len() int {
	return v.set.Len()
}

// Elements returns read-only views of the elements in creation order.
func (v *SetView) Elements() []Managed {
	elems := v.set.Elements()
	out := make([]Managed, len(elems))
	for i, e := range elems {
		out[i] = ReadOnly(e)
	}
	return out
}
