package convention

import (
	"fmt"

	"github.com/roach88/modelcore/internal/ir"
	"github.com/roach88/modelcore/internal/proxy"
)

// Defaults returns an action convention that fills unset properties of a
// managed instance from values.
//
// Scalar properties are set only when unset. Object values recurse into nested
// managed instances. List values seed a managed set with one element per
// object, and only when the set is still empty.
func Defaults(values ir.Object) *ActionConvention {
	return NewAction("defaults", func(inst *proxy.Instance) error {
		return valueWriter{fill: true, noun: "default"}.apply(inst, values)
	})
}

// Assign writes values onto a managed instance, replacing scalars that are
// already set and appending one set element per listed object. Initializers
// use it to apply explicitly configured values.
func Assign(inst *proxy.Instance, values ir.Object) error {
	return valueWriter{noun: "value"}.apply(inst, values)
}

// Inherit copies scalar properties that are still unset on inst from the
// read-only inputs, first input first. Values whose type does not match the
// declared property type are skipped.
func Inherit(inst *proxy.Instance, inputs ...proxy.Managed) error {
	for _, p := range inst.Schema().Properties {
		if !ir.IsScalar(p.Type) {
			continue
		}
		for _, in := range inputs {
			if inst.IsSet(p.Name) {
				break
			}
			raw, err := in.Get(p.Name)
			if err != nil {
				continue
			}
			v, ok := raw.(ir.Value)
			if !ok || ir.TypeName(v) != p.Type.Name {
				continue
			}
			if err := inst.Set(p.Name, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// valueWriter walks an object of values onto a managed instance. In fill
// mode it leaves set scalars and non-empty sets alone.
type valueWriter struct {
	fill bool
	noun string
}

func (w valueWriter) apply(inst *proxy.Instance, values ir.Object) error {
	schema := inst.Schema()
	for _, key := range values.SortedKeys() {
		p, ok := schema.Property(key)
		if !ok {
			return &proxy.PropertyError{Type: inst.Type(), Property: key, Reason: "no such property"}
		}
		value := values[key]

		if ir.IsScalar(p.Type) {
			if w.fill && inst.IsSet(key) {
				continue
			}
			if err := inst.Set(key, value); err != nil {
				return err
			}
			continue
		}

		current, err := inst.Get(key)
		if err != nil {
			return err
		}
		switch child := current.(type) {
		case *proxy.Instance:
			obj, ok := value.(ir.Object)
			if !ok {
				return w.shapeError(inst, key, "map", value)
			}
			if err := w.apply(child, obj); err != nil {
				return err
			}
		case *proxy.Set:
			list, ok := value.(ir.List)
			if !ok {
				return w.shapeError(inst, key, "list", value)
			}
			if w.fill && child.Len() > 0 {
				continue
			}
			for i, elem := range list {
				obj, ok := elem.(ir.Object)
				if !ok {
					return w.shapeError(inst, fmt.Sprintf("%s[%d]", key, i), "map", elem)
				}
				if _, err := child.Create(func(e *proxy.Instance) error {
					return w.apply(e, obj)
				}); err != nil {
					return err
				}
			}
		default:
			return &proxy.PropertyError{Type: inst.Type(), Property: key, Reason: "managed property is not allocated"}
		}
	}
	return nil
}

func (w valueWriter) shapeError(inst *proxy.Instance, property, want string, got ir.Value) error {
	return &proxy.PropertyError{
		Type:     inst.Type(),
		Property: property,
		Reason:   fmt.Sprintf("%s must be a %s, got %s", w.noun, want, ir.TypeName(got)),
	}
}
