package convention

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/modelcore/internal/ir"
	"github.com/roach88/modelcore/internal/validation"
)

// Plugin is a plugin instance whose properties can be walked.
type Plugin interface {
	// DeclaredType is the plugin's public type, used for attribution.
	DeclaredType() ir.TypeRef
}

// SoftwareTypeTag names the software type a property belongs to.
type SoftwareTypeTag string

// LazyValue defers retrieval of a property value until Call.
// The underlying function runs at most once; later calls return the memoized
// result. A panic in the function is memoized as an error.
type LazyValue struct {
	once  sync.Once
	fn    func() (any, error)
	value any
	err   error
}

// NewLazyValue wraps fn.
func NewLazyValue(fn func() (any, error)) *LazyValue {
	return &LazyValue{fn: fn}
}

// Call returns the value, computing it on first use.
func (l *LazyValue) Call() (any, error) {
	l.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				l.value, l.err = nil, fmt.Errorf("property value panicked: %v", r)
			}
		}()
		l.value, l.err = l.fn()
	})
	return l.value, l.err
}

// PropertyVisitor receives one callback per declared property.
type PropertyVisitor interface {
	VisitProperty(name string, declaredType ir.TypeRef)
	VisitSoftwareTypeProperty(name string, value *LazyValue, declaredType ir.TypeRef, tag SoftwareTypeTag)
}

// PropertyWalker enumerates a plugin's declared properties.
type PropertyWalker interface {
	VisitProperties(plugin Plugin, ctx *validation.Context, visitor PropertyVisitor)
}

// PropertyDescriptor is one row of a plugin type's property table.
type PropertyDescriptor struct {
	Name string
	Type ir.TypeRef
	// SoftwareType tags the property as belonging to a software type.
	// Empty for ordinary properties.
	SoftwareType string
	// Value retrieves the property value from a plugin instance. It may
	// realize a graph node.
	Value func(plugin Plugin) (any, error)
}

// SchemaLookup is the optional type check applied to described properties.
type SchemaLookup interface {
	SchemaFor(t ir.TypeRef) (*ir.Schema, error)
}

// StaticWalker walks plugins using property tables registered per plugin type.
// Tables are keyed by the plugin's declared type display name.
type StaticWalker struct {
	mu      sync.RWMutex
	tables  map[string][]PropertyDescriptor
	schemas SchemaLookup
}

// WalkerOption configures a StaticWalker.
type WalkerOption func(*StaticWalker)

// WithSchemaCheck reports software-type properties whose declared type the
// lookup cannot represent.
func WithSchemaCheck(schemas SchemaLookup) WalkerOption {
	return func(w *StaticWalker) {
		w.schemas = schemas
	}
}

// NewStaticWalker creates a walker with no tables.
func NewStaticWalker(opts ...WalkerOption) *StaticWalker {
	w := &StaticWalker{tables: make(map[string][]PropertyDescriptor)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Describe appends property descriptors to the table for pluginType.
// Descriptors are visited in the order they are described. Inconsistent
// tables are reported as problems during the walk, not here.
func (w *StaticWalker) Describe(pluginType ir.TypeRef, props ...PropertyDescriptor) {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := pluginType.DisplayName()
	w.tables[key] = append(w.tables[key], props...)
}

// VisitProperties implements PropertyWalker.
func (w *StaticWalker) VisitProperties(plugin Plugin, ctx *validation.Context, visitor PropertyVisitor) {
	declared := plugin.DeclaredType()

	w.mu.RLock()
	table, ok := w.tables[declared.DisplayName()]
	w.mu.RUnlock()
	if !ok {
		ctx.Add(validation.Problem{Type: declared, Message: "is not described by any property table"})
		return
	}

	seen := make(map[string]bool, len(table))
	for _, p := range table {
		if seen[p.Name] {
			ctx.Addf(p.Name, "is described more than once")
			continue
		}
		seen[p.Name] = true

		if p.SoftwareType == "" {
			visitor.VisitProperty(p.Name, p.Type)
			continue
		}
		if p.Value == nil {
			ctx.Addf(p.Name, "has no value accessor")
			continue
		}
		if w.schemas != nil {
			if _, err := w.schemas.SchemaFor(p.Type); err != nil {
				ctx.Add(validation.Problem{
					Property: p.Name,
					Message:  fmt.Sprintf("has type %s which cannot be represented as a model", p.Type.DisplayName()),
					Cause:    err,
				})
				continue
			}
		}

		accessor := p.Value
		value := NewLazyValue(func() (any, error) {
			return accessor(plugin)
		})
		slog.Debug("software type property", "plugin", declared.DisplayName(), "property", p.Name, "software_type", p.SoftwareType)
		visitor.VisitSoftwareTypeProperty(p.Name, value, p.Type, SoftwareTypeTag(p.SoftwareType))
	}
}
