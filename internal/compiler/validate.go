package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/modelcore/internal/ir"
	"github.com/roach88/modelcore/internal/schema"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// Schema errors (E101-E106)
	ErrInvalidTypeName    = "E101" // type name missing or malformed
	ErrInvalidKind        = "E102" // kind must be struct or collection
	ErrInvalidElementType = "E103" // collection element missing or mismatched
	ErrInvalidFieldType   = "E104" // invalid property name or type
	ErrDuplicateName      = "E105" // duplicate property name
	ErrFloatTypeForbidden = "E106" // float types not allowed

	// SoftwareTypeSpec errors (E107-E108)
	ErrInvalidSoftwareType = "E107" // missing name, model type or duplicate name
	ErrInvalidConvention   = "E108" // unknown convention kind or missing payload

	// Bundle errors (E109)
	ErrUnresolvedType = "E109" // referenced type has no schema or is declared twice
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against schema rules.
// Returns all errors found (does not fail-fast).
// Supports Schema and SoftwareTypeSpec types.
func Validate(v any) []ValidationError {
	switch x := v.(type) {
	case *ir.Schema:
		return validateSchema(x)
	case ir.Schema:
		return validateSchema(&x)
	case *ir.SoftwareTypeSpec:
		return validateSoftwareType(x)
	case ir.SoftwareTypeSpec:
		return validateSoftwareType(&x)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// identPattern matches type and property names.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

func validateSchema(s *ir.Schema) []ValidationError {
	var errs []ValidationError

	// E101
	if !identPattern.MatchString(s.Type.Name) {
		errs = append(errs, ValidationError{
			Field:   "type",
			Message: fmt.Sprintf("invalid type name %q", s.Type.Name),
			Code:    ErrInvalidTypeName,
		})
	}

	switch s.Kind {
	case ir.KindStruct:
		if s.ElementType != nil {
			errs = append(errs, ValidationError{
				Field:   "element",
				Message: "struct types must not declare an element type",
				Code:    ErrInvalidElementType,
			})
		}
	case ir.KindCollection:
		// E103
		if s.ElementType == nil || len(s.Type.Params) == 0 || !s.Type.Params[0].Equal(*s.ElementType) {
			errs = append(errs, ValidationError{
				Field:   "element",
				Message: fmt.Sprintf("collection %s must declare its element as the first type parameter", s.Type.DisplayName()),
				Code:    ErrInvalidElementType,
			})
		} else {
			errs = append(errs, validateTypeRef(*s.ElementType, "element")...)
		}
		if len(s.Properties) > 0 {
			errs = append(errs, ValidationError{
				Field:   "properties",
				Message: "collection types cannot declare properties",
				Code:    ErrInvalidKind,
			})
		}
	default:
		// E102
		errs = append(errs, ValidationError{
			Field:   "kind",
			Message: fmt.Sprintf("invalid kind %q, must be \"struct\" or \"collection\"", s.Kind),
			Code:    ErrInvalidKind,
		})
	}

	seen := make(map[string]bool, len(s.Properties))
	for i, p := range s.Properties {
		field := fmt.Sprintf("properties[%d]", i)
		if !identPattern.MatchString(p.Name) || strings.Contains(p.Name, ir.PathSeparator) {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("invalid property name %q", p.Name),
				Code:    ErrInvalidFieldType,
			})
		}
		// E105
		if seen[p.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate property name: %q", p.Name),
				Code:    ErrDuplicateName,
			})
		}
		seen[p.Name] = true

		errs = append(errs, validateTypeRef(p.Type, field+".type")...)
	}
	return errs
}

// validateTypeRef checks every name in a (possibly parameterized) type.
func validateTypeRef(t ir.TypeRef, field string) []ValidationError {
	var errs []ValidationError

	// E106: explicit float check before the generic name check
	if isFloatType(t.Name) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("float type %q forbidden, use int instead", t.Name),
			Code:    ErrFloatTypeForbidden,
		})
	} else if !identPattern.MatchString(t.Name) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid type %q", t.DisplayName()),
			Code:    ErrInvalidFieldType,
		})
	}
	if ir.ScalarTypes[t.Name] && len(t.Params) > 0 {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("scalar type %q takes no type parameters", t.Name),
			Code:    ErrInvalidFieldType,
		})
	}
	for i, p := range t.Params {
		errs = append(errs, validateTypeRef(p, fmt.Sprintf("%s<%d>", field, i))...)
	}
	return errs
}

func validateSoftwareType(spec *ir.SoftwareTypeSpec) []ValidationError {
	var errs []ValidationError

	// E107
	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "software type name is required",
			Code:    ErrInvalidSoftwareType,
		})
	}
	if spec.Model.IsZero() {
		errs = append(errs, ValidationError{
			Field:   "model",
			Message: "model type is required",
			Code:    ErrInvalidSoftwareType,
		})
	} else if ir.IsScalar(spec.Model) {
		errs = append(errs, ValidationError{
			Field:   "model",
			Message: fmt.Sprintf("model type %q is a scalar; software types configure managed models", spec.Model.Name),
			Code:    ErrInvalidSoftwareType,
		})
	} else {
		errs = append(errs, validateTypeRef(spec.Model, "model")...)
	}

	// E108
	for i, c := range spec.Conventions {
		field := fmt.Sprintf("conventions[%d]", i)
		switch c.Kind {
		case ir.ConventionDefaults:
			if c.Values == nil {
				errs = append(errs, ValidationError{
					Field:   field + ".values",
					Message: "defaults require values",
					Code:    ErrInvalidConvention,
				})
			}
		case ir.ConventionModelRule:
			if strings.TrimSpace(c.Rule) == "" {
				errs = append(errs, ValidationError{
					Field:   field + ".rule",
					Message: "model rules require a rule string",
					Code:    ErrInvalidConvention,
				})
			}
		default:
			errs = append(errs, ValidationError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("unknown convention kind %q, must be \"defaults\" or \"model_rule\"", c.Kind),
				Code:    ErrInvalidConvention,
			})
		}
	}
	return errs
}

// isFloatType checks if a type string represents a float type.
func isFloatType(t string) bool {
	floatTypes := map[string]bool{
		"float":   true,
		"float32": true,
		"float64": true,
		"number":  true,
		"double":  true,
	}
	return floatTypes[t]
}

// CheckBundle validates every declaration in b and then checks that the
// bundle is self-contained: type names are unique, software type names are
// unique and every managed type referenced by a property or model resolves.
// Fields are prefixed with the declaration, e.g. "type.Library.properties[0].type".
func CheckBundle(b *Bundle) []ValidationError {
	var errs []ValidationError
	prefix := func(decl string, verrs []ValidationError) {
		for _, ve := range verrs {
			ve.Field = decl + "." + ve.Field
			errs = append(errs, ve)
		}
	}

	store := schema.NewStore()
	var registered []*ir.Schema
	for _, s := range b.Schemas {
		decl := "type." + s.Type.Name
		verrs := Validate(s)
		if len(verrs) > 0 {
			prefix(decl, verrs)
			continue
		}
		if err := store.Register(s); err != nil {
			errs = append(errs, ValidationError{Field: decl, Message: err.Error(), Code: ErrUnresolvedType})
			continue
		}
		registered = append(registered, s)
	}

	seen := make(map[string]bool, len(b.SoftwareTypes))
	for _, st := range b.SoftwareTypes {
		decl := "software_type." + st.Name
		prefix(decl, Validate(st))
		if seen[st.Name] {
			errs = append(errs, ValidationError{
				Field:   decl,
				Message: fmt.Sprintf("software type %q declared more than once", st.Name),
				Code:    ErrInvalidSoftwareType,
			})
		}
		seen[st.Name] = true
	}

	// References are only checked once every declaration is known.
	for _, s := range registered {
		for i, p := range s.Properties {
			if ir.IsScalar(p.Type) {
				continue
			}
			if _, err := store.SchemaFor(p.Type); err != nil {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("type.%s.properties[%d].type", s.Type.Name, i),
					Message: err.Error(),
					Code:    ErrUnresolvedType,
				})
			}
		}
	}
	for _, st := range b.SoftwareTypes {
		if st.Model.IsZero() || ir.IsScalar(st.Model) {
			continue
		}
		if _, err := store.SchemaFor(st.Model); err != nil {
			errs = append(errs, ValidationError{
				Field:   "software_type." + st.Name + ".model",
				Message: err.Error(),
				Code:    ErrUnresolvedType,
			})
		}
	}
	return errs
}
