package proxy

import (
	"fmt"

	"github.com/roach88/modelcore/internal/ir"
)

// Allocator builds a fully allocated element instance for a set.
// The model layer supplies one that also allocates nested managed properties.
type Allocator func(elem *ir.Schema) (*Instance, error)

// Set is a named, typed collection of managed elements.
// Elements keep creation order.
type Set struct {
	typ      ir.TypeRef
	elem     *ir.Schema
	alloc    Allocator
	elements []*Instance
}

// NewSet creates an empty managed set for a collection schema.
// elem must be the struct schema of the collection's element type.
func NewSet(collection, elem *ir.Schema, alloc Allocator) (*Set, error) {
	if collection == nil || collection.Kind != ir.KindCollection || collection.ElementType == nil {
		return nil, fmt.Errorf("proxy: NewSet requires a collection schema")
	}
	if elem == nil || !elem.Type.Equal(*collection.ElementType) {
		return nil, fmt.Errorf("proxy: element schema does not match %s", collection.Type.DisplayName())
	}
	if alloc == nil {
		return nil, fmt.Errorf("proxy: NewSet requires an allocator")
	}
	return &Set{typ: collection.Type, elem: elem, alloc: alloc}, nil
}

// Type returns the collection type, e.g. ManagedSet<Book>.
func (s *Set) Type() ir.TypeRef {
	return s.typ
}

// ElementType returns the declared element type.
func (s *Set) ElementType() ir.TypeRef {
	return s.elem.Type
}

// Create allocates a new element, runs init against it, and appends it.
// The element is not added if init fails.
func (s *Set) Create(init func(*Instance) error) (*Instance, error) {
	inst, err := s.alloc(s.elem)
	if err != nil {
		return nil, fmt.Errorf("create %s element: %w", s.elem.Type.DisplayName(), err)
	}
	if !inst.Type().Equal(s.elem.Type) {
		return nil, fmt.Errorf("create %s element: allocator returned %s",
			s.elem.Type.DisplayName(), inst.Type().DisplayName())
	}
	if init != nil {
		if err := init(inst); err != nil {
			return nil, err
		}
	}
	s.elements = append(s.elements, inst)
	return inst, nil
}

// Len returns the number of elements.
func (s *Set) Len() int {
	return len(s.elements)
}

// Elements returns the elements in creation order.
// The returned slice is a copy; the instances are shared.
func (s *Set) Elements() []*Instance {
	out := make([]*Instance, len(s.elements))
	copy(out, s.elements)
	return out
}

// Snapshot returns element snapshots in creation order.
func (s *Set) Snapshot() ir.List {
	list := make(ir.List, len(s.elements))
	for i, e := range s.elements {
		list[i] = e.Snapshot()
	}
	return list
}
