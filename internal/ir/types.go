package ir

import (
	"fmt"
	"strings"
)

// TypeRef names a configurable type, optionally parameterized.
// Example: ManagedSet<Book> is TypeRef{Name: "ManagedSet", Params: [{Name: "Book"}]}.
type TypeRef struct {
	Name   string    `json:"name"`
	Params []TypeRef `json:"params,omitempty"`
}

// T is a shorthand for constructing a TypeRef.
// Example: T("ManagedSet", T("Book"))
func T(name string, params ...TypeRef) TypeRef {
	return TypeRef{Name: name, Params: params}
}

// IsZero reports whether the reference names no type.
func (t TypeRef) IsZero() bool {
	return t.Name == "" && len(t.Params) == 0
}

// Equal reports structural equality, including type parameters.
func (t TypeRef) Equal(other TypeRef) bool {
	if t.Name != other.Name || len(t.Params) != len(other.Params) {
		return false
	}
	for i := range t.Params {
		if !t.Params[i].Equal(other.Params[i]) {
			return false
		}
	}
	return true
}

// DisplayName renders the type for user-facing messages, e.g. "ManagedSet<Book>".
func (t TypeRef) DisplayName() string {
	if len(t.Params) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.DisplayName()
	}
	return t.Name + "<" + strings.Join(parts, ", ") + ">"
}

// String implements fmt.Stringer.
func (t TypeRef) String() string {
	return t.DisplayName()
}

// ParseTypeRef parses the DisplayName form back into a TypeRef.
// Whitespace around names and separators is ignored.
func ParseTypeRef(s string) (TypeRef, error) {
	p := &typeParser{src: s}
	ref, err := p.parse()
	if err != nil {
		return TypeRef{}, fmt.Errorf("invalid type %q: %w", s, err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return TypeRef{}, fmt.Errorf("invalid type %q: unexpected %q at offset %d", s, p.src[p.pos:], p.pos)
	}
	return ref, nil
}

// MustParseTypeRef is like ParseTypeRef but panics on error.
// Use only in tests or for literals known to be valid.
func MustParseTypeRef(s string) TypeRef {
	ref, err := ParseTypeRef(s)
	if err != nil {
		panic(err)
	}
	return ref
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) parse() (TypeRef, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && isTypeNameByte(p.src[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		return TypeRef{}, fmt.Errorf("expected type name at offset %d", start)
	}
	ref := TypeRef{Name: p.src[start:p.pos]}

	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != '<' {
		return ref, nil
	}
	p.pos++ // '<'

	for {
		param, err := p.parse()
		if err != nil {
			return TypeRef{}, err
		}
		ref.Params = append(ref.Params, param)

		p.skipSpace()
		if p.pos >= len(p.src) {
			return TypeRef{}, fmt.Errorf("unterminated type parameters")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case '>':
			p.pos++
			return ref, nil
		default:
			return TypeRef{}, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos], p.pos)
		}
	}
}

func isTypeNameByte(b byte) bool {
	return b == '_' || b == '.' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// Kind classifies how a schema is realized.
type Kind string

const (
	// KindStruct is a single managed object with named properties.
	KindStruct Kind = "struct"
	// KindCollection is a named, typed group of managed elements.
	KindCollection Kind = "collection"
	// KindValue is a scalar property type (string, int, bool, list, map).
	// Scalars are stored on a managed struct; they are never graph nodes.
	KindValue Kind = "value"
)

// Scalar type names understood by managed proxies.
const (
	ScalarString = "string"
	ScalarInt    = "int"
	ScalarBool   = "bool"
	ScalarList   = "list"
	ScalarMap    = "map"
)

// ScalarTypes is the closed set of scalar property type names.
// NO "float" - floats are forbidden in model values.
var ScalarTypes = map[string]bool{
	ScalarString: true,
	ScalarInt:    true,
	ScalarBool:   true,
	ScalarList:   true,
	ScalarMap:    true,
}

// IsScalar reports whether the type names a scalar property type.
func IsScalar(t TypeRef) bool {
	return len(t.Params) == 0 && ScalarTypes[t.Name]
}

// PropertySchema describes one declared property of a struct schema.
type PropertySchema struct {
	Name string  `json:"name"`
	Type TypeRef `json:"type"`
}

// Schema describes a configurable type.
//
// INVARIANT: ElementType is non-nil iff Kind == KindCollection, and then it
// equals Type.Params[0].
//
// A Schema is immutable once constructed. The schema store hands out shared
// pointers; callers must not mutate them.
type Schema struct {
	Type        TypeRef          `json:"type"`
	Kind        Kind             `json:"kind"`
	ElementType *TypeRef         `json:"element_type,omitempty"`
	Properties  []PropertySchema `json:"properties,omitempty"` // declaration order
}

// NewStructSchema creates a struct schema with properties in declaration order.
func NewStructSchema(t TypeRef, props ...PropertySchema) *Schema {
	return &Schema{Type: t, Kind: KindStruct, Properties: props}
}

// NewCollectionSchema creates a collection schema for a parameterized type.
// The element type is the first type parameter.
func NewCollectionSchema(t TypeRef) (*Schema, error) {
	if len(t.Params) == 0 {
		return nil, fmt.Errorf("collection type %s has no element type parameter", t.DisplayName())
	}
	elem := t.Params[0]
	return &Schema{Type: t, Kind: KindCollection, ElementType: &elem}, nil
}

// NewValueSchema creates a schema for a scalar type.
func NewValueSchema(t TypeRef) *Schema {
	return &Schema{Type: t, Kind: KindValue}
}

// Property returns the named property and whether it exists.
func (s *Schema) Property(name string) (PropertySchema, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertySchema{}, false
}

// Validate checks the structural invariants of the schema.
// Returns all violations (not fail-fast).
func (s *Schema) Validate() []error {
	var errs []error
	if s.Type.Name == "" {
		errs = append(errs, fmt.Errorf("schema type name is required"))
	}
	switch s.Kind {
	case KindCollection:
		if s.ElementType == nil {
			errs = append(errs, fmt.Errorf("collection schema %s has no element type", s.Type.DisplayName()))
		} else if len(s.Type.Params) == 0 || !s.Type.Params[0].Equal(*s.ElementType) {
			errs = append(errs, fmt.Errorf("collection schema %s element type %s is not its first type parameter",
				s.Type.DisplayName(), s.ElementType.DisplayName()))
		}
		if len(s.Properties) > 0 {
			errs = append(errs, fmt.Errorf("collection schema %s cannot declare properties", s.Type.DisplayName()))
		}
	default:
		if s.ElementType != nil {
			errs = append(errs, fmt.Errorf("%s schema %s must not have an element type", s.Kind, s.Type.DisplayName()))
		}
	}

	seen := make(map[string]bool, len(s.Properties))
	for _, p := range s.Properties {
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("schema %s declares property %q twice", s.Type.DisplayName(), p.Name))
		}
		seen[p.Name] = true
	}
	return errs
}

// Path addresses a node in the configuration graph, e.g. "library.books".
type Path string

// PathSeparator separates path segments.
const PathSeparator = "."

// Child returns the path of a named child node.
func (p Path) Child(name string) Path {
	if p == "" {
		return Path(name)
	}
	return Path(string(p) + PathSeparator + name)
}

// Parent returns the enclosing path, or "" for a root path.
func (p Path) Parent() Path {
	i := strings.LastIndex(string(p), PathSeparator)
	if i < 0 {
		return ""
	}
	return p[:i]
}

// Name returns the last path segment.
func (p Path) Name() string {
	i := strings.LastIndex(string(p), PathSeparator)
	return string(p[i+1:])
}

// String implements fmt.Stringer.
func (p Path) String() string {
	return string(p)
}

// ModelReference addresses a node by location and expected type.
// A zero Type means "any type".
type ModelReference struct {
	Path Path    `json:"path"`
	Type TypeRef `json:"type"`
}

// Of creates a ModelReference.
func Of(path Path, t TypeRef) ModelReference {
	return ModelReference{Path: path, Type: t}
}

// String implements fmt.Stringer.
func (r ModelReference) String() string {
	if r.Type.IsZero() {
		return string(r.Path)
	}
	return fmt.Sprintf("%s (%s)", r.Path, r.Type.DisplayName())
}

// ConventionSpec is a convention declared in a schema file.
type ConventionSpec struct {
	Kind   string `json:"kind"`             // "defaults" or "model_rule"
	Values Object `json:"values,omitempty"` // defaults only
	Rule   string `json:"rule,omitempty"`   // model_rule only
}

// Convention kinds understood by the schema compilers.
const (
	ConventionDefaults  = "defaults"
	ConventionModelRule = "model_rule"
)

// SoftwareTypeSpec is a software type declared in a schema file.
type SoftwareTypeSpec struct {
	Name        string           `json:"name"`
	Model       TypeRef          `json:"model"`
	Conventions []ConventionSpec `json:"conventions,omitempty"`
}
