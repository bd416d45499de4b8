package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/hashicorp/hcl/v2"

	"github.com/roach88/modelcore/internal/ir"
)

// Bundle is the compiled content of one or more schema files.
type Bundle struct {
	Schemas       []*ir.Schema
	SoftwareTypes []*ir.SoftwareTypeSpec
}

// Merge appends other's declarations to b.
func (b *Bundle) Merge(other *Bundle) {
	if other == nil {
		return
	}
	b.Schemas = append(b.Schemas, other.Schemas...)
	b.SoftwareTypes = append(b.SoftwareTypes, other.SoftwareTypes...)
}

// CompileType parses a CUE value into a Schema.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the type struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`type: Library: { kind: "struct", properties: { name: "string" } }`)
//	schema, err := CompileType(v.LookupPath(cue.ParsePath("type.Library")))
func CompileType(v cue.Value) (*ir.Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	name := lastLabel(v)

	kind := ir.KindStruct
	if kindVal := v.LookupPath(cue.ParsePath("kind")); kindVal.Exists() {
		s, err := kindVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		kind = ir.Kind(s)
	}

	switch kind {
	case ir.KindStruct:
		props, err := parseProperties(v)
		if err != nil {
			return nil, err
		}
		return ir.NewStructSchema(ir.T(name), props...), nil

	case ir.KindCollection:
		elemVal := v.LookupPath(cue.ParsePath("element"))
		if !elemVal.Exists() {
			return nil, &CompileError{
				Field:   "element",
				Message: "collection types require an element type",
				Pos:     v.Pos(),
			}
		}
		elem, err := parseTypeRef(elemVal, "element")
		if err != nil {
			return nil, err
		}
		if v.LookupPath(cue.ParsePath("properties")).Exists() {
			return nil, &CompileError{
				Field:   "properties",
				Message: "collection types cannot declare properties",
				Pos:     v.Pos(),
			}
		}
		return ir.NewCollectionSchema(ir.T(name, elem))

	default:
		return nil, &CompileError{
			Field:   "kind",
			Message: fmt.Sprintf("unknown kind %q: must be struct or collection", kind),
			Pos:     v.LookupPath(cue.ParsePath("kind")).Pos(),
		}
	}
}

// parseProperties extracts properties in declaration order.
func parseProperties(v cue.Value) ([]ir.PropertySchema, error) {
	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if !propsVal.Exists() {
		return nil, nil // a struct may declare no properties
	}

	iter, err := propsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var props []ir.PropertySchema
	for iter.Next() {
		name := iter.Label()
		t, err := parseTypeRef(iter.Value(), "properties."+name)
		if err != nil {
			return nil, err
		}
		props = append(props, ir.PropertySchema{Name: name, Type: t})
	}
	return props, nil
}

// parseTypeRef reads a type reference string such as "ManagedSet<Book>".
func parseTypeRef(v cue.Value, field string) (ir.TypeRef, error) {
	s, err := v.String()
	if err != nil {
		return ir.TypeRef{}, &CompileError{
			Field:   field,
			Message: "type must be a string such as \"string\" or \"ManagedSet<Book>\"",
			Pos:     v.Pos(),
		}
	}
	t, err := ir.ParseTypeRef(s)
	if err != nil {
		return ir.TypeRef{}, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return t, nil
}

// CompileSoftwareType parses a CUE value into a SoftwareTypeSpec.
//
//	software_type: library: {
//		model: "Library"
//		conventions: [{kind: "defaults", values: {name: "main"}}]
//	}
func CompileSoftwareType(v cue.Value) (*ir.SoftwareTypeSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	spec := &ir.SoftwareTypeSpec{Name: lastLabel(v)}

	modelVal := v.LookupPath(cue.ParsePath("model"))
	if !modelVal.Exists() {
		return nil, &CompileError{
			Field:   "model",
			Message: "model is required",
			Pos:     v.Pos(),
		}
	}
	model, err := parseTypeRef(modelVal, "model")
	if err != nil {
		return nil, err
	}
	spec.Model = model

	convVal := v.LookupPath(cue.ParsePath("conventions"))
	if !convVal.Exists() {
		return spec, nil
	}
	iter, err := convVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		cs, err := parseConvention(iter.Value(), i)
		if err != nil {
			return nil, err
		}
		spec.Conventions = append(spec.Conventions, cs)
	}
	return spec, nil
}

func parseConvention(v cue.Value, i int) (ir.ConventionSpec, error) {
	var cs ir.ConventionSpec
	field := fmt.Sprintf("conventions[%d]", i)

	kind, err := v.LookupPath(cue.ParsePath("kind")).String()
	if err != nil {
		return cs, &CompileError{Field: field + ".kind", Message: "convention kind is required", Pos: v.Pos()}
	}
	cs.Kind = kind

	switch kind {
	case ir.ConventionDefaults:
		valuesVal := v.LookupPath(cue.ParsePath("values"))
		if !valuesVal.Exists() {
			return cs, &CompileError{Field: field + ".values", Message: "defaults require values", Pos: v.Pos()}
		}
		value, err := cueToValue(valuesVal, field+".values")
		if err != nil {
			return cs, err
		}
		obj, ok := value.(ir.Object)
		if !ok {
			return cs, &CompileError{Field: field + ".values", Message: "values must be a struct", Pos: valuesVal.Pos()}
		}
		cs.Values = obj
	case ir.ConventionModelRule:
		rule, err := v.LookupPath(cue.ParsePath("rule")).String()
		if err != nil {
			return cs, &CompileError{Field: field + ".rule", Message: "model rules require a rule string", Pos: v.Pos()}
		}
		cs.Rule = rule
	default:
		return cs, &CompileError{
			Field:   field + ".kind",
			Message: fmt.Sprintf("unknown convention kind %q", kind),
			Pos:     v.LookupPath(cue.ParsePath("kind")).Pos(),
		}
	}
	return cs, nil
}

// cueToValue converts a concrete CUE value to an ir.Value.
// Floats are forbidden.
func cueToValue(v cue.Value, field string) (ir.Value, error) {
	switch v.IncompleteKind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		list := ir.List{}
		for i := 0; iter.Next(); i++ {
			elem, err := cueToValue(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			list = append(list, elem)
		}
		return list, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.Object{}
		for iter.Next() {
			key := iter.Label()
			elem, err := cueToValue(iter.Value(), field+"."+key)
			if err != nil {
				return nil, err
			}
			obj[key] = elem
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   field,
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported value kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileCUE compiles every type and software_type declared in a CUE value.
// All compile errors are returned; the bundle holds what did compile.
func CompileCUE(v cue.Value) (*Bundle, []error) {
	b := &Bundle{}
	var errs []error

	if typesVal := v.LookupPath(cue.ParsePath("type")); typesVal.Exists() {
		iter, err := typesVal.Fields()
		if err != nil {
			return b, []error{formatCUEError(err)}
		}
		for iter.Next() {
			schema, err := CompileType(iter.Value())
			if err != nil {
				errs = append(errs, fmt.Errorf("type.%s: %w", iter.Label(), err))
				continue
			}
			b.Schemas = append(b.Schemas, schema)
		}
	}

	if stVal := v.LookupPath(cue.ParsePath("software_type")); stVal.Exists() {
		iter, err := stVal.Fields()
		if err != nil {
			return b, append(errs, formatCUEError(err))
		}
		for iter.Next() {
			spec, err := CompileSoftwareType(iter.Value())
			if err != nil {
				errs = append(errs, fmt.Errorf("software_type.%s: %w", iter.Label(), err))
				continue
			}
			b.SoftwareTypes = append(b.SoftwareTypes, spec)
		}
	}
	return b, errs
}

func lastLabel(v cue.Value) string {
	sels := v.Path().Selectors()
	if len(sels) == 0 {
		return ""
	}
	return sels[len(sels)-1].String()
}

// CompileError represents a compilation error with source position.
// CUE errors carry Pos; HCL errors carry Range.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
	Range   *hcl.Range
}

func (e *CompileError) Error() string {
	if loc := e.Location(); loc != "" {
		return fmt.Sprintf("%s: %s: %s", loc, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Location returns "file:line:col", or "" when no position is known.
func (e *CompileError) Location() string {
	if e.Range != nil {
		return fmt.Sprintf("%s:%d:%d", e.Range.Filename, e.Range.Start.Line, e.Range.Start.Column)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	return ""
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
