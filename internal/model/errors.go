package model

import (
	"errors"
	"fmt"

	"github.com/roach88/modelcore/internal/ir"
)

// UnsupportedSchemaKindError reports a schema kind the factory cannot map to a
// projection. It is a programmer error: no creator is returned.
type UnsupportedSchemaKindError struct {
	Type ir.TypeRef
	Kind ir.Kind
}

func (e *UnsupportedSchemaKindError) Error() string {
	return fmt.Sprintf("don't know how to create model element from schema for %s (kind %q)",
		e.Type.DisplayName(), e.Kind)
}

// IsUnsupportedSchemaKind returns true if err is an UnsupportedSchemaKindError.
func IsUnsupportedSchemaKind(err error) bool {
	var ue *UnsupportedSchemaKindError
	return errors.As(err, &ue)
}

// SubjectTypeError reports that a typed action received a value of another type.
type SubjectTypeError struct {
	Want string
	Got  string
}

func (e *SubjectTypeError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Want, e.Got)
}

// ViewError reports a projection that cannot present its backing value as the
// requested type.
type ViewError struct {
	Projection string
	Type       ir.TypeRef
	Reason     string
}

func (e *ViewError) Error() string {
	return fmt.Sprintf("%s cannot be viewed as %s: %s", e.Projection, e.Type.DisplayName(), e.Reason)
}

// IsViewError returns true if err is a ViewError.
func IsViewError(err error) bool {
	var ve *ViewError
	return errors.As(err, &ve)
}
