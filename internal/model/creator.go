package model

import (
	"github.com/roach88/modelcore/internal/ir"
)

// Realizer is the graph realization mechanism a creator uses to register and
// realize nested nodes. The graph package implements it.
type Realizer interface {
	Has(path ir.Path) bool
	Register(c *Creator) error
	Realize(path ir.Path) (any, error)
}

// Creator is a lazy node descriptor: a reference, a typed projection, and an
// optional initializer that runs when the node is first realized.
//
// A Creator holds no backing state. Two creators built for the same path and
// schema have the same fingerprint, and each Create allocates a fresh object.
type Creator struct {
	Reference   ir.ModelReference
	Projection  Projection
	Initializer *ModelAction
	Descriptor  RuleDescriptor
	Kind        ir.Kind

	allocate func(r Realizer) (any, error)
}

// Inputs returns the initializer's declared inputs, or nil without one.
func (c *Creator) Inputs() []ir.ModelReference {
	if c.Initializer == nil {
		return nil
	}
	return c.Initializer.Inputs
}

// Create allocates the backing object and runs the initializer against it.
// r may be nil, in which case nested managed properties are allocated inline
// instead of as graph nodes.
//
// Callers (normally the graph) guarantee Create runs at most once per node and
// that inputs were realized in declared order.
func (c *Creator) Create(r Realizer, inputs Inputs) (any, error) {
	backing, err := c.allocate(r)
	if err != nil {
		return nil, err
	}
	if c.Initializer != nil {
		if err := c.Initializer.Execute(backing, inputs); err != nil {
			return nil, err
		}
	}
	return backing, nil
}

// Fingerprint returns a stable content hash of the creator's structure.
func (c *Creator) Fingerprint() (string, error) {
	inputs := make(ir.List, 0, len(c.Inputs()))
	for _, in := range c.Inputs() {
		inputs = append(inputs, ir.String(in.String()))
	}
	desc := ir.NewObject(
		ir.O("path", ir.String(c.Reference.Path)),
		ir.O("type", ir.String(c.Reference.Type.DisplayName())),
		ir.O("kind", ir.String(c.Kind)),
		ir.O("projection", ir.String(c.Projection.String())),
		ir.O("descriptor", ir.String(c.Descriptor)),
		ir.O("inputs", inputs),
		ir.O("initialized", ir.Bool(c.Initializer != nil)),
	)
	return ir.CreatorFingerprint(desc)
}
