package model

import (
	"fmt"
	"reflect"

	"github.com/roach88/modelcore/internal/ir"
)

// RuleDescriptor is an opaque provenance tag attached to every creator.
// It is used only for diagnostics and error attribution.
type RuleDescriptor string

// Nested returns the descriptor for a rule derived from d for a nested property.
func (d RuleDescriptor) Nested(property string) RuleDescriptor {
	return RuleDescriptor(string(d) + " > " + property)
}

func (d RuleDescriptor) String() string {
	return string(d)
}

// Inputs are realized input values, in the order the inputs were declared.
type Inputs []any

// InputAs returns input i as T.
func InputAs[T any](in Inputs, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(in) {
		return zero, fmt.Errorf("input %d out of range (have %d)", i, len(in))
	}
	v, ok := in[i].(T)
	if !ok {
		return zero, &SubjectTypeError{Want: reflect.TypeFor[T]().String(), Got: fmt.Sprintf("%T", in[i])}
	}
	return v, nil
}

// ModelAction is deferred work bound to a subject reference and zero or more
// declared inputs. The graph invokes it at most once per node.
type ModelAction struct {
	Subject    ir.ModelReference
	Inputs     []ir.ModelReference
	Descriptor RuleDescriptor

	body func(subject any, inputs Inputs) error
}

// NewModelAction creates an action with declared inputs.
func NewModelAction(desc RuleDescriptor, subject ir.ModelReference, inputs []ir.ModelReference, body func(any, Inputs) error) *ModelAction {
	return &ModelAction{
		Subject:    subject,
		Inputs:     append([]ir.ModelReference(nil), inputs...),
		Descriptor: desc,
		body:       body,
	}
}

// Execute runs the action body.
// inputs must hold one realized value per declared input, in declared order.
func (a *ModelAction) Execute(subject any, inputs Inputs) error {
	if len(inputs) != len(a.Inputs) {
		return fmt.Errorf("action %s on %s: expected %d inputs, got %d",
			a.Descriptor, a.Subject, len(a.Inputs), len(inputs))
	}
	if a.body == nil {
		return nil
	}
	if err := a.body(subject, inputs); err != nil {
		return fmt.Errorf("action %s on %s: %w", a.Descriptor, a.Subject, err)
	}
	return nil
}

// Action adapts a typed function to an initializer.
//
// Example:
//
//	f.CreatorWithAction(desc, "library", schema, model.Action(func(lib *proxy.Instance) error {
//		return lib.Set("name", "Central")
//	}))
func Action[T any](fn func(T) error) func(any) error {
	return func(subject any) error {
		v, ok := subject.(T)
		if !ok {
			return &SubjectTypeError{Want: reflect.TypeFor[T]().String(), Got: fmt.Sprintf("%T", subject)}
		}
		return fn(v)
	}
}

// BiAction adapts a typed function that also receives realized inputs.
func BiAction[T any](fn func(T, Inputs) error) func(any, Inputs) error {
	return func(subject any, inputs Inputs) error {
		v, ok := subject.(T)
		if !ok {
			return &SubjectTypeError{Want: reflect.TypeFor[T]().String(), Got: fmt.Sprintf("%T", subject)}
		}
		return fn(v, inputs)
	}
}
