// Package convention applies software-type conventions to the properties a
// plugin declares.
//
// A software type is registered as an Implementation carrying an ordered list
// of conventions. ActionHandler.Apply walks a plugin's properties with a
// PropertyWalker, realizes each software-type property once, and invokes the
// implementation's action conventions against the realized value. Problems
// found during the walk are aggregated into one validation failure.
package convention

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/modelcore/internal/ir"
)

// Convention is a convention registered on a software type.
//
// This is a sealed interface: only *ActionConvention and *ModelRuleConvention
// implement it. ActionHandler applies action conventions and skips the rest.
type Convention interface {
	convention() // sealed marker

	// Name identifies the convention in logs and errors.
	Name() string
}

// ActionConvention mutates a realized model value.
type ActionConvention struct {
	name     string
	receiver string
	apply    func(any) (bool, error)
}

func (*ActionConvention) convention() {}

// Name implements Convention.
func (c *ActionConvention) Name() string { return c.name }

// Receiver returns the expected receiver type, e.g. "*proxy.Instance".
func (c *ActionConvention) Receiver() string { return c.receiver }

// Apply invokes the convention with value cast to its receiver type.
// A cast failure returns *ReceiverMismatchError.
func (c *ActionConvention) Apply(value any) error {
	ok, err := c.apply(value)
	if !ok {
		return &ReceiverMismatchError{Convention: c.name, Want: c.receiver, Got: fmt.Sprintf("%T", value)}
	}
	return err
}

// NewAction creates an action convention whose receiver type is T.
//
// Example:
//
//	convention.NewAction("name-default", func(lib *proxy.Instance) error {
//		return lib.Set("name", "main")
//	})
func NewAction[T any](name string, fn func(T) error) *ActionConvention {
	return &ActionConvention{
		name:     name,
		receiver: reflect.TypeFor[T]().String(),
		apply: func(value any) (bool, error) {
			v, ok := value.(T)
			if !ok {
				return false, nil
			}
			return true, fn(v)
		},
	}
}

// ModelRuleConvention is applied by the model-rule mechanism, not by
// ActionHandler.
type ModelRuleConvention struct {
	ConventionName string
	Rule           string
}

func (*ModelRuleConvention) convention() {}

// Name implements Convention.
func (c *ModelRuleConvention) Name() string { return c.ConventionName }

// Implementation is a registered software type.
type Implementation struct {
	Name            string
	ModelPublicType ir.TypeRef
	Conventions     []Convention
}

// ActionConventions returns the action conventions in declared order.
func (i *Implementation) ActionConventions() []*ActionConvention {
	var out []*ActionConvention
	for _, c := range i.Conventions {
		switch conv := c.(type) {
		case *ActionConvention:
			out = append(out, conv)
		case *ModelRuleConvention:
			// Applied by the model-rule mechanism.
		}
	}
	return out
}

// UnknownSoftwareTypeError reports a software type name with no registered
// implementation.
type UnknownSoftwareTypeError struct {
	Name  string
	Known []string
}

func (e *UnknownSoftwareTypeError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("unknown software type %q: no software types are registered", e.Name)
	}
	return fmt.Sprintf("unknown software type %q (registered: %v)", e.Name, e.Known)
}

// ReceiverMismatchError reports a convention whose receiver type does not
// match the realized value. It is an authoring error and is never aggregated
// into validation problems.
type ReceiverMismatchError struct {
	SoftwareType string
	Convention   string // empty when the model type itself does not match
	Want         string
	Got          string
}

func (e *ReceiverMismatchError) Error() string {
	if e.Convention == "" {
		return fmt.Sprintf("software type %q expects a %s model, got %s", e.SoftwareType, e.Want, e.Got)
	}
	return fmt.Sprintf("convention %q expects a %s receiver, got %s", e.Convention, e.Want, e.Got)
}

// IsUnknownSoftwareType returns true if err is an UnknownSoftwareTypeError.
func IsUnknownSoftwareType(err error) bool {
	var ue *UnknownSoftwareTypeError
	return errors.As(err, &ue)
}

// IsReceiverMismatch returns true if err is a ReceiverMismatchError.
func IsReceiverMismatch(err error) bool {
	var re *ReceiverMismatchError
	return errors.As(err, &re)
}
