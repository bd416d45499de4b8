package compiler

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/roach88/modelcore/internal/ir"
)

// HCL form of the schema language:
//
//	type "Library" {
//	  property "name" { type = "string" }
//	  property "books" { type = "ManagedSet<Book>" }
//	}
//
//	type "Shelf" {
//	  kind    = "collection"
//	  element = "Book"
//	}
//
//	software_type "library" {
//	  model = "Library"
//	  convention "defaults" {
//	    values = { name = "main" }
//	  }
//	}
type hclFile struct {
	Types         []*hclType         `hcl:"type,block"`
	SoftwareTypes []*hclSoftwareType `hcl:"software_type,block"`
}

type hclType struct {
	Name       string         `hcl:"name,label"`
	Kind       string         `hcl:"kind,optional"`
	Element    string         `hcl:"element,optional"`
	Properties []*hclProperty `hcl:"property,block"`
	Body       hcl.Body       `hcl:",remain"`
}

type hclProperty struct {
	Name string         `hcl:"name,label"`
	Type hcl.Expression `hcl:"type"`
}

type hclSoftwareType struct {
	Name        string           `hcl:"name,label"`
	Model       hcl.Expression   `hcl:"model"`
	Conventions []*hclConvention `hcl:"convention,block"`
}

type hclConvention struct {
	Kind   string         `hcl:"kind,label"`
	Values hcl.Expression `hcl:"values,optional"`
	Rule   string         `hcl:"rule,optional"`
	Body   hcl.Body       `hcl:",remain"`
}

// CompileHCL compiles the type and software_type blocks of one HCL file.
// Parse and decode diagnostics are returned as a single error; semantic
// errors are collected per block.
func CompileHCL(filename string, src []byte) (*Bundle, []error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return &Bundle{}, []error{diags}
	}

	var decoded hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &decoded); diags.HasErrors() {
		return &Bundle{}, []error{diags}
	}

	b := &Bundle{}
	var errs []error
	for _, t := range decoded.Types {
		schema, err := compileHCLType(t)
		if err != nil {
			errs = append(errs, fmt.Errorf("type.%s: %w", t.Name, err))
			continue
		}
		b.Schemas = append(b.Schemas, schema)
	}
	for _, st := range decoded.SoftwareTypes {
		spec, err := compileHCLSoftwareType(st)
		if err != nil {
			errs = append(errs, fmt.Errorf("software_type.%s: %w", st.Name, err))
			continue
		}
		b.SoftwareTypes = append(b.SoftwareTypes, spec)
	}
	return b, errs
}

func compileHCLType(t *hclType) (*ir.Schema, error) {
	rng := t.Body.MissingItemRange()

	switch ir.Kind(t.Kind) {
	case "", ir.KindStruct:
		props := make([]ir.PropertySchema, 0, len(t.Properties))
		for _, p := range t.Properties {
			ref, err := hclTypeRef(p.Type, "properties."+p.Name)
			if err != nil {
				return nil, err
			}
			props = append(props, ir.PropertySchema{Name: p.Name, Type: ref})
		}
		return ir.NewStructSchema(ir.T(t.Name), props...), nil

	case ir.KindCollection:
		if t.Element == "" {
			return nil, &CompileError{Field: "element", Message: "collection types require an element type", Range: &rng}
		}
		if len(t.Properties) > 0 {
			return nil, &CompileError{Field: "properties", Message: "collection types cannot declare properties", Range: &rng}
		}
		elem, err := ir.ParseTypeRef(t.Element)
		if err != nil {
			return nil, &CompileError{Field: "element", Message: err.Error(), Range: &rng}
		}
		return ir.NewCollectionSchema(ir.T(t.Name, elem))

	default:
		return nil, &CompileError{
			Field:   "kind",
			Message: fmt.Sprintf("unknown kind %q: must be struct or collection", t.Kind),
			Range:   &rng,
		}
	}
}

func compileHCLSoftwareType(st *hclSoftwareType) (*ir.SoftwareTypeSpec, error) {
	model, err := hclTypeRef(st.Model, "model")
	if err != nil {
		return nil, err
	}
	spec := &ir.SoftwareTypeSpec{Name: st.Name, Model: model}

	for i, c := range st.Conventions {
		field := fmt.Sprintf("conventions[%d]", i)
		rng := c.Body.MissingItemRange()
		cs := ir.ConventionSpec{Kind: c.Kind}

		switch c.Kind {
		case ir.ConventionDefaults:
			val, diags := c.Values.Value(nil)
			if diags.HasErrors() {
				return nil, diags
			}
			if val.IsNull() {
				return nil, &CompileError{Field: field + ".values", Message: "defaults require values", Range: &rng}
			}
			value, err := ctyToValue(val, field+".values", c.Values.Range())
			if err != nil {
				return nil, err
			}
			obj, ok := value.(ir.Object)
			if !ok {
				r := c.Values.Range()
				return nil, &CompileError{Field: field + ".values", Message: "values must be a struct", Range: &r}
			}
			cs.Values = obj
		case ir.ConventionModelRule:
			if c.Rule == "" {
				return nil, &CompileError{Field: field + ".rule", Message: "model rules require a rule string", Range: &rng}
			}
			cs.Rule = c.Rule
		default:
			return nil, &CompileError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("unknown convention kind %q", c.Kind),
				Range:   &rng,
			}
		}
		spec.Conventions = append(spec.Conventions, cs)
	}
	return spec, nil
}

// hclTypeRef evaluates a type reference attribute. Type references are
// plain strings; no variables or functions are in scope.
func hclTypeRef(expr hcl.Expression, field string) (ir.TypeRef, error) {
	rng := expr.Range()
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return ir.TypeRef{}, diags
	}
	if val.IsNull() || !val.IsKnown() || val.Type() != cty.String {
		return ir.TypeRef{}, &CompileError{
			Field:   field,
			Message: "type must be a string such as \"string\" or \"ManagedSet<Book>\"",
			Range:   &rng,
		}
	}
	t, err := ir.ParseTypeRef(val.AsString())
	if err != nil {
		return ir.TypeRef{}, &CompileError{Field: field, Message: err.Error(), Range: &rng}
	}
	return t, nil
}

// ctyToValue converts a cty.Value to an ir.Value. Numbers must be integral.
func ctyToValue(val cty.Value, field string, rng hcl.Range) (ir.Value, error) {
	if val.IsNull() {
		return ir.Null{}, nil
	}
	if !val.IsKnown() {
		return nil, &CompileError{Field: field, Message: "value is not known", Range: &rng}
	}

	ty := val.Type()
	switch {
	case ty == cty.String:
		return ir.String(val.AsString()), nil
	case ty == cty.Bool:
		return ir.Bool(val.True()), nil
	case ty == cty.Number:
		bf := val.AsBigFloat()
		if !bf.IsInt() {
			return nil, &CompileError{Field: field, Message: "float values are forbidden - use int instead", Range: &rng}
		}
		n, acc := bf.Int64()
		if acc != big.Exact {
			return nil, &CompileError{Field: field, Message: "integer out of range", Range: &rng}
		}
		return ir.Int(n), nil
	case ty.IsObjectType() || ty.IsMapType():
		obj := ir.Object{}
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			key := k.AsString()
			elem, err := ctyToValue(v, field+"."+key, rng)
			if err != nil {
				return nil, err
			}
			obj[key] = elem
		}
		return obj, nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		list := ir.List{}
		i := 0
		for it := val.ElementIterator(); it.Next(); i++ {
			_, v := it.Element()
			elem, err := ctyToValue(v, fmt.Sprintf("%s[%d]", field, i), rng)
			if err != nil {
				return nil, err
			}
			list = append(list, elem)
		}
		return list, nil
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported value type: %s", ty.FriendlyName()),
			Range:   &rng,
		}
	}
}
