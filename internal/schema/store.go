// Package schema provides the schema store: a deterministic, cached mapping
// from type references to immutable schemas.
//
// Struct schemas are registered explicitly (usually from compiled CUE or HCL
// schema files). Scalar types and parameterized collection types are derived
// on demand and cached on first lookup.
package schema

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/modelcore/internal/ir"
)

// DefaultCollectionTypes are the generic type names realized as managed collections.
var DefaultCollectionTypes = []string{"ManagedSet", "ModelSet", "NamedDomainObjectSet"}

// UnrepresentableTypeError reports that a type cannot be described as a
// STRUCT or COLLECTION schema (or a scalar value).
type UnrepresentableTypeError struct {
	Type   ir.TypeRef
	Reason string
}

func (e *UnrepresentableTypeError) Error() string {
	return fmt.Sprintf("type %s cannot be represented as a model schema: %s", e.Type.DisplayName(), e.Reason)
}

// IsUnrepresentable returns true if err is an UnrepresentableTypeError.
// Uses errors.As to handle wrapped errors.
func IsUnrepresentable(err error) bool {
	var ue *UnrepresentableTypeError
	return errors.As(err, &ue)
}

// Store caches schemas by type display name.
//
// Thread-safety: lookups and registrations are safe for concurrent use.
// Returned schemas are shared and must not be mutated.
type Store struct {
	mu              sync.Mutex
	declared        map[string]*ir.Schema // struct schemas by type name
	cache           map[string]*ir.Schema // all resolved schemas by display name
	collectionTypes map[string]bool
}

// Option configures a Store.
type Option func(*Store)

// WithCollectionTypes replaces the generic type names treated as collections.
func WithCollectionTypes(names ...string) Option {
	return func(s *Store) {
		s.collectionTypes = make(map[string]bool, len(names))
		for _, n := range names {
			s.collectionTypes[n] = true
		}
	}
}

// NewStore creates an empty schema store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		declared: make(map[string]*ir.Schema),
		cache:    make(map[string]*ir.Schema),
	}
	WithCollectionTypes(DefaultCollectionTypes...)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a declared schema.
//
// A struct schema declares a struct type. A collection schema such as
// Shelf<Book> declares Shelf as an additional generic collection type name;
// its element type only serves as the declared example.
// Returns an error if the schema is invalid or its type name is taken.
func (s *Store) Register(schema *ir.Schema) error {
	if schema == nil {
		return fmt.Errorf("register schema: nil schema")
	}
	if errs := schema.Validate(); len(errs) > 0 {
		return fmt.Errorf("register schema %s: %w", schema.Type.DisplayName(), errors.Join(errs...))
	}
	switch schema.Kind {
	case ir.KindStruct:
	case ir.KindCollection:
		return s.registerCollection(schema)
	default:
		return fmt.Errorf("register schema %s: only struct and collection schemas can be declared, got %s",
			schema.Type.DisplayName(), schema.Kind)
	}
	if len(schema.Type.Params) > 0 {
		return fmt.Errorf("register schema %s: struct types cannot be parameterized", schema.Type.DisplayName())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := schema.Type.Name
	if ir.IsScalar(schema.Type) || s.collectionTypes[name] {
		return fmt.Errorf("register schema %s: name is reserved", name)
	}
	if _, exists := s.declared[name]; exists {
		return fmt.Errorf("register schema %s: already registered", name)
	}

	// Copy so later mutation of the caller's value cannot leak into the store.
	cp := *schema
	cp.Properties = slices.Clone(schema.Properties)
	s.declared[name] = &cp

	slog.Debug("schema registered", "type", name, "properties", len(cp.Properties))
	return nil
}

func (s *Store) registerCollection(schema *ir.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := schema.Type.Name
	if ir.IsScalar(ir.T(name)) || s.collectionTypes[name] {
		return fmt.Errorf("register schema %s: name is reserved", name)
	}
	if _, exists := s.declared[name]; exists {
		return fmt.Errorf("register schema %s: already registered as a struct", name)
	}
	s.collectionTypes[name] = true

	slog.Debug("collection type registered", "type", name)
	return nil
}

// MustRegister is like Register but panics on error.
// Use only in tests or for schemas known to be valid.
func (s *Store) MustRegister(schemas ...*ir.Schema) *Store {
	for _, schema := range schemas {
		if err := s.Register(schema); err != nil {
			panic(err)
		}
	}
	return s
}

// SchemaFor returns the schema for a type.
// The result is deterministic and cached: repeated calls return the same pointer.
// Returns *UnrepresentableTypeError if the type cannot be described.
func (s *Store) SchemaFor(t ir.TypeRef) (*ir.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schemaFor(t, nil)
}

// schemaFor resolves a schema; visiting tracks struct types on the current
// resolution stack. Caller must hold s.mu.
func (s *Store) schemaFor(t ir.TypeRef, visiting map[string]bool) (*ir.Schema, error) {
	key := t.DisplayName()
	if cached, ok := s.cache[key]; ok {
		return cached, nil
	}

	var (
		schema *ir.Schema
		err    error
	)
	switch {
	case t.Name == "":
		return nil, &UnrepresentableTypeError{Type: t, Reason: "type name is empty"}
	case ir.IsScalar(t):
		schema = ir.NewValueSchema(t)
	case s.collectionTypes[t.Name]:
		schema, err = s.collectionSchema(t, visiting)
	default:
		schema, err = s.structSchema(t, visiting)
	}
	if err != nil {
		return nil, err
	}

	s.cache[key] = schema
	return schema, nil
}

func (s *Store) collectionSchema(t ir.TypeRef, visiting map[string]bool) (*ir.Schema, error) {
	if len(t.Params) != 1 {
		return nil, &UnrepresentableTypeError{
			Type:   t,
			Reason: fmt.Sprintf("collection type %s requires exactly one element type parameter", t.Name),
		}
	}
	elem, err := s.schemaFor(t.Params[0], visiting)
	if err != nil {
		return nil, &UnrepresentableTypeError{Type: t, Reason: "element type: " + err.Error()}
	}
	if elem.Kind != ir.KindStruct {
		return nil, &UnrepresentableTypeError{
			Type:   t,
			Reason: fmt.Sprintf("element type %s is not a managed struct", t.Params[0].DisplayName()),
		}
	}
	return ir.NewCollectionSchema(t)
}

func (s *Store) structSchema(t ir.TypeRef, visiting map[string]bool) (*ir.Schema, error) {
	if len(t.Params) > 0 {
		return nil, &UnrepresentableTypeError{Type: t, Reason: "only collection types may be parameterized"}
	}
	declared, ok := s.declared[t.Name]
	if !ok {
		return nil, &UnrepresentableTypeError{Type: t, Reason: "no schema declared for type"}
	}

	// A struct may reference itself only through a collection; a direct
	// property cycle would require an infinite instance.
	if visiting[t.Name] {
		return nil, &UnrepresentableTypeError{Type: t, Reason: "type contains itself"}
	}
	if visiting == nil {
		visiting = make(map[string]bool)
	}
	visiting[t.Name] = true
	defer delete(visiting, t.Name)

	for _, p := range declared.Properties {
		if s.collectionTypes[p.Type.Name] {
			// Collection element types are resolved lazily when the set is realized.
			if len(p.Type.Params) != 1 {
				return nil, &UnrepresentableTypeError{
					Type:   t,
					Reason: fmt.Sprintf("property %q: collection type %s requires exactly one element type parameter", p.Name, p.Type.DisplayName()),
				}
			}
			continue
		}
		if _, err := s.schemaFor(p.Type, visiting); err != nil {
			return nil, &UnrepresentableTypeError{
				Type:   t,
				Reason: fmt.Sprintf("property %q: %v", p.Name, err),
			}
		}
	}
	return declared, nil
}

// Types returns the declared struct type names in sorted order.
func (s *Store) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.declared))
	for name := range s.declared {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
