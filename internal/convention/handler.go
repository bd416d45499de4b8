package convention

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/modelcore/internal/ir"
	"github.com/roach88/modelcore/internal/metrics"
	"github.com/roach88/modelcore/internal/validation"
)

// Failure reasons recorded in metrics.
const (
	ReasonUnknownSoftwareType = "unknown_software_type"
	ReasonValidation          = "validation"
	ReasonError               = "error"
)

// SoftwareTypeRegistry resolves software types by name. *Registry implements it.
type SoftwareTypeRegistry interface {
	ImplementationsByName() map[string]*Implementation
}

// ActionHandler applies a software type's action conventions to the
// software-type properties of a plugin.
type ActionHandler struct {
	registry SoftwareTypeRegistry
	walker   PropertyWalker
	metrics  *metrics.Recorder
}

// HandlerOption configures an ActionHandler.
type HandlerOption func(*ActionHandler)

// WithMetrics records applied conventions and failed applications.
func WithMetrics(m *metrics.Recorder) HandlerOption {
	return func(h *ActionHandler) {
		h.metrics = m
	}
}

// NewActionHandler creates a handler.
func NewActionHandler(registry SoftwareTypeRegistry, walker PropertyWalker, opts ...HandlerOption) *ActionHandler {
	h := &ActionHandler{registry: registry, walker: walker}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Apply applies the conventions of softwareTypeName to every software-type
// property of plugin. target identifies what the plugin is applied to and is
// used for logging only.
//
// Errors:
//   - *UnknownSoftwareTypeError before any property is visited
//   - *ReceiverMismatchError, a property value error, or a convention error,
//     returned as soon as it happens
//   - *validation.MultiCauseError when the walk recorded problems
//
// Conventions already applied are not rolled back.
func (h *ActionHandler) Apply(target any, softwareTypeName string, plugin Plugin) error {
	impl, ok := h.registry.ImplementationsByName()[softwareTypeName]
	if !ok {
		h.metrics.ApplicationFailed(softwareTypeName, ReasonUnknownSoftwareType)
		return &UnknownSoftwareTypeError{Name: softwareTypeName, Known: registeredNames(h.registry)}
	}

	declared := plugin.DeclaredType()
	ctx := validation.NewContext(declared)
	v := &applyVisitor{
		impl:        impl,
		conventions: impl.ActionConventions(),
		metrics:     h.metrics,
	}
	h.walker.VisitProperties(plugin, ctx, v)

	if v.err != nil {
		h.metrics.ApplicationFailed(softwareTypeName, ReasonError)
		return fmt.Errorf("apply software type %q to %s: %w", softwareTypeName, declared.DisplayName(), v.err)
	}
	if err := ctx.Err(declared.DisplayName()); err != nil {
		h.metrics.ApplicationFailed(softwareTypeName, ReasonValidation)
		slog.Info("convention application failed",
			"target", fmt.Sprint(target),
			"plugin", declared.DisplayName(),
			"software_type", softwareTypeName,
			"problems", ctx.Len())
		return err
	}

	slog.Info("conventions applied",
		"target", fmt.Sprint(target),
		"plugin", declared.DisplayName(),
		"software_type", softwareTypeName,
		"properties", v.properties,
		"invocations", v.invocations)
	return nil
}

func registeredNames(r SoftwareTypeRegistry) []string {
	if reg, ok := r.(*Registry); ok {
		return reg.Names()
	}
	return nil
}

// applyVisitor invokes conventions per software-type property. The first
// error stops further work; later callbacks are ignored.
type applyVisitor struct {
	impl        *Implementation
	conventions []*ActionConvention
	metrics     *metrics.Recorder

	err         error
	properties  int
	invocations int
}

func (v *applyVisitor) VisitProperty(string, ir.TypeRef) {}

func (v *applyVisitor) VisitSoftwareTypeProperty(name string, value *LazyValue, declaredType ir.TypeRef, tag SoftwareTypeTag) {
	if v.err != nil {
		return
	}
	v.properties++

	realized, err := value.Call()
	if err != nil {
		v.err = fmt.Errorf("property %q: %w", name, err)
		return
	}
	if typed, ok := realized.(interface{ Type() ir.TypeRef }); ok {
		if got := typed.Type(); !got.Equal(v.impl.ModelPublicType) {
			v.err = &ReceiverMismatchError{
				SoftwareType: v.impl.Name,
				Want:         v.impl.ModelPublicType.DisplayName(),
				Got:          got.DisplayName(),
			}
			return
		}
	}

	for _, c := range v.conventions {
		if err := c.Apply(realized); err != nil {
			var rm *ReceiverMismatchError
			if errors.As(err, &rm) {
				rm.SoftwareType = v.impl.Name
			}
			v.err = fmt.Errorf("property %q: %w", name, err)
			return
		}
		v.invocations++
		v.metrics.ConventionApplied(v.impl.Name)
		slog.Debug("convention applied",
			"property", name,
			"type", declaredType.DisplayName(),
			"tag", string(tag),
			"convention", c.Name())
	}
}
