package model

import (
	"fmt"

	"github.com/roach88/modelcore/internal/ir"
	"github.com/roach88/modelcore/internal/proxy"
)

// Projection presents a node's backing object as typed views.
//
// This is a sealed interface: only StructProjection and SetProjection
// implement it.
type Projection interface {
	projection() // sealed marker

	// CanBeViewedAs reports whether the node can be viewed as t.
	CanBeViewedAs(t ir.TypeRef) bool
	// View returns a mutable or read-only view of backing as t.
	View(backing any, t ir.TypeRef, mutable bool) (any, error)
	// String describes the projection for fingerprints and diagnostics.
	String() string
}

// StructProjection wraps exactly one managed instance of Type.
type StructProjection struct {
	Type ir.TypeRef
}

func (StructProjection) projection() {}

// CanBeViewedAs implements Projection.
func (p StructProjection) CanBeViewedAs(t ir.TypeRef) bool {
	return p.Type.Equal(t)
}

// View implements Projection.
// A mutable view is the *proxy.Instance itself; a read-only view is a proxy.Managed.
func (p StructProjection) View(backing any, t ir.TypeRef, mutable bool) (any, error) {
	if !p.CanBeViewedAs(t) {
		return nil, &ViewError{Projection: p.String(), Type: t, Reason: "type mismatch"}
	}
	inst, ok := backing.(*proxy.Instance)
	if !ok {
		return nil, &ViewError{Projection: p.String(), Type: t, Reason: fmt.Sprintf("backing value is %T", backing)}
	}
	if mutable {
		return inst, nil
	}
	return proxy.ReadOnly(inst), nil
}

func (p StructProjection) String() string {
	return "struct(" + p.Type.DisplayName() + ")"
}

// SetProjection wraps a managed set whose members are instances of ElementType.
// ElementType is always the collection type's first type parameter.
type SetProjection struct {
	CollectionType ir.TypeRef
	ElementType    ir.TypeRef
}

func (SetProjection) projection() {}

// CanBeViewedAs implements Projection.
func (p SetProjection) CanBeViewedAs(t ir.TypeRef) bool {
	return p.CollectionType.Equal(t)
}

// View implements Projection.
// A mutable view is the *proxy.Set; a read-only view is a *proxy.SetView.
func (p SetProjection) View(backing any, t ir.TypeRef, mutable bool) (any, error) {
	if !p.CanBeViewedAs(t) {
		return nil, &ViewError{Projection: p.String(), Type: t, Reason: "type mismatch"}
	}
	set, ok := backing.(*proxy.Set)
	if !ok {
		return nil, &ViewError{Projection: p.String(), Type: t, Reason: fmt.Sprintf("backing value is %T", backing)}
	}
	if mutable {
		return set, nil
	}
	return proxy.ReadOnlySet(set), nil
}

func (p SetProjection) String() string {
	return "set(" + p.CollectionType.Name + ", " + p.ElementType.DisplayName() + ")"
}
