package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/modelcore/internal/compiler"
	"github.com/roach88/modelcore/internal/convention"
	"github.com/roach88/modelcore/internal/graph"
	"github.com/roach88/modelcore/internal/ir"
	"github.com/roach88/modelcore/internal/metrics"
	"github.com/roach88/modelcore/internal/model"
	"github.com/roach88/modelcore/internal/proxy"
	"github.com/roach88/modelcore/internal/schema"
	"github.com/roach88/modelcore/internal/store"
	"github.com/roach88/modelcore/internal/validation"
)

// Options configures Run.
type Options struct {
	// Metrics records creator, realization and convention counters. May be nil.
	Metrics *metrics.Recorder

	// Store, when set, receives one application record per plugin.
	Store *store.Store

	// IDs generates application record IDs. Defaults to UUIDv7Generator.
	IDs store.IDGenerator
}

// PluginResult is the outcome of applying a plugin's software type.
type PluginResult struct {
	PluginType   string
	SoftwareType string
	// Snapshot maps property names to their realized values. Properties whose
	// node failed or was never registered are absent.
	Snapshot ir.Object
	Err      error
}

// Outcome returns ir.OutcomeApplied or ir.OutcomeFailed.
func (r PluginResult) Outcome() string {
	if r.Err != nil {
		return ir.OutcomeFailed
	}
	return ir.OutcomeApplied
}

// Message returns the failure headline, or "" on success.
func (r PluginResult) Message() string {
	if r.Err == nil {
		return ""
	}
	if mce, ok := validation.AsMultiCause(r.Err); ok {
		return mce.Message
	}
	return r.Err.Error()
}

// Problems returns the rendered validation problems of a failed application.
func (r PluginResult) Problems() []string {
	if mce, ok := validation.AsMultiCause(r.Err); ok {
		return mce.CauseTexts()
	}
	return nil
}

// Run compiles the project's schemas, registers a graph node per managed
// plugin property and applies each plugin's software type in declaration
// order.
//
// An error is returned only when the project cannot be set up (schema
// compilation, validation, registration). Per-plugin failures are reported in
// the results.
func Run(ctx context.Context, p *Project, opts Options) ([]PluginResult, error) {
	if opts.IDs == nil {
		opts.IDs = store.UUIDv7Generator{}
	}

	schemas, registry, err := compileSchemas(p)
	if err != nil {
		return nil, err
	}

	factory := model.NewFactory(schemas, model.WithMetrics(opts.Metrics))
	g := graph.New(graph.WithMetrics(opts.Metrics))
	walker := convention.NewStaticWalker(convention.WithSchemaCheck(schemas))
	handler := convention.NewActionHandler(registry, walker, convention.WithMetrics(opts.Metrics))

	// All nodes are registered before any plugin is applied so that inputs
	// may point at other plugins' properties.
	nodes := make([]map[string]bool, len(p.Plugins))
	for i := range p.Plugins {
		pl := &p.Plugins[i]
		registered, err := registerPlugin(pl, schemas, factory, g, walker)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", pl.Type, err)
		}
		nodes[i] = registered
	}

	results := make([]PluginResult, 0, len(p.Plugins))
	for i := range p.Plugins {
		pl := &p.Plugins[i]
		err := handler.Apply(p.Name, pl.SoftwareType, pl)
		snapshot, serr := snapshotPlugin(pl, g, nodes[i])
		if err == nil {
			err = serr
		}
		result := PluginResult{
			PluginType:   pl.typ.DisplayName(),
			SoftwareType: pl.SoftwareType,
			Snapshot:     snapshot,
			Err:          err,
		}
		results = append(results, result)

		if opts.Store != nil {
			if err := record(ctx, opts.Store, opts.IDs, p.Name, result); err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

// compileSchemas loads every schema directory into a schema store and a
// software type registry.
func compileSchemas(p *Project) (*schema.Store, *convention.Registry, error) {
	bundle := &compiler.Bundle{}
	for _, dir := range p.Schemas {
		b, errs := compiler.LoadDir(dir)
		if len(errs) > 0 {
			return nil, nil, fmt.Errorf("compile %s: %w", dir, errors.Join(errs...))
		}
		bundle.Merge(b)
	}

	if verrs := compiler.CheckBundle(bundle); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, ve := range verrs {
			errs[i] = ve
		}
		return nil, nil, fmt.Errorf("validate schemas: %w", errors.Join(errs...))
	}

	schemas := schema.NewStore()
	for _, s := range bundle.Schemas {
		if err := schemas.Register(s); err != nil {
			return nil, nil, err
		}
	}

	registry := convention.NewRegistry()
	for _, st := range bundle.SoftwareTypes {
		impl, err := convention.FromSpec(st)
		if err != nil {
			return nil, nil, err
		}
		if err := registry.Register(impl); err != nil {
			return nil, nil, err
		}
	}

	slog.Debug("schemas compiled", "types", len(bundle.Schemas), "software_types", len(bundle.SoftwareTypes))
	return schemas, registry, nil
}

// registerPlugin describes the plugin to the walker and registers a creator
// for every representable managed property. It returns the properties that
// have graph nodes.
func registerPlugin(pl *PluginSpec, schemas *schema.Store, factory *model.Factory, g *graph.Graph, walker *convention.StaticWalker) (map[string]bool, error) {
	registered := make(map[string]bool)
	descriptors := make([]convention.PropertyDescriptor, 0, len(pl.Properties))

	for j := range pl.Properties {
		prop := &pl.Properties[j]
		d := convention.PropertyDescriptor{
			Name:         prop.Name,
			Type:         prop.typ,
			SoftwareType: prop.SoftwareType,
		}

		if ir.IsScalar(prop.typ) {
			value := prop.value
			d.Value = func(convention.Plugin) (any, error) {
				return value, nil
			}
			descriptors = append(descriptors, d)
			continue
		}

		path := pl.Path(prop.Name)
		s, err := schemas.SchemaFor(prop.typ)
		if err != nil {
			// Left to the walker's schema check to report for tagged
			// properties.
			d.Value = func(convention.Plugin) (any, error) {
				return nil, err
			}
			descriptors = append(descriptors, d)
			continue
		}

		c, err := newCreator(pl, prop, path, s, factory)
		if err != nil {
			return nil, err
		}
		if err := g.Register(c); err != nil {
			return nil, err
		}
		registered[prop.Name] = true
		d.Value = func(convention.Plugin) (any, error) {
			return g.Realize(path)
		}
		descriptors = append(descriptors, d)
	}

	walker.Describe(pl.typ, descriptors...)
	return registered, nil
}

func newCreator(pl *PluginSpec, prop *PropertySpec, path ir.Path, s *ir.Schema, factory *model.Factory) (*model.Creator, error) {
	desc := model.RuleDescriptor(fmt.Sprintf("%s.properties.%s", pl.typ.DisplayName(), prop.Name))
	refs := make([]ir.ModelReference, len(prop.Inputs))
	for k, in := range prop.Inputs {
		refs[k] = ir.Of(ir.Path(in), ir.TypeRef{})
	}
	value := prop.value

	return factory.CreatorWithInputs(desc, path, s, refs, func(subject any, inputs model.Inputs) error {
		switch backing := subject.(type) {
		case *proxy.Instance:
			if value != nil {
				obj, ok := value.(ir.Object)
				if !ok {
					return fmt.Errorf("values for %s must be a map, got %s", s.Type.DisplayName(), ir.TypeName(value))
				}
				if err := convention.Assign(backing, obj); err != nil {
					return err
				}
			}
			var views []proxy.Managed
			for _, in := range inputs {
				if m, ok := in.(proxy.Managed); ok {
					views = append(views, m)
				}
			}
			return convention.Inherit(backing, views...)
		case *proxy.Set:
			if value == nil {
				return nil
			}
			list, ok := value.(ir.List)
			if !ok {
				return fmt.Errorf("values for %s must be a list, got %s", s.Type.DisplayName(), ir.TypeName(value))
			}
			for k, elem := range list {
				obj, ok := elem.(ir.Object)
				if !ok {
					return fmt.Errorf("values[%d] for %s must be a map, got %s", k, s.Type.DisplayName(), ir.TypeName(elem))
				}
				if _, err := backing.Create(func(e *proxy.Instance) error {
					return convention.Assign(e, obj)
				}); err != nil {
					return err
				}
			}
			return nil
		default:
			return fmt.Errorf("unexpected backing %T for %s", subject, path)
		}
	})
}

// snapshotPlugin captures scalar values and realized nodes. Nodes not yet
// realized (untagged properties) are realized here.
func snapshotPlugin(pl *PluginSpec, g *graph.Graph, nodes map[string]bool) (ir.Object, error) {
	snapshot := ir.Object{}
	var firstErr error
	for j := range pl.Properties {
		prop := &pl.Properties[j]
		if ir.IsScalar(prop.typ) {
			if prop.value != nil {
				if _, isNull := prop.value.(ir.Null); !isNull {
					snapshot[prop.Name] = prop.value
				}
			}
			continue
		}
		if !nodes[prop.Name] {
			continue
		}
		backing, err := g.Realize(pl.Path(prop.Name))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		switch b := backing.(type) {
		case *proxy.Instance:
			snapshot[prop.Name] = b.Snapshot()
		case *proxy.Set:
			snapshot[prop.Name] = b.Snapshot()
		}
	}
	return snapshot, firstErr
}

// record writes one application record.
func record(ctx context.Context, s *store.Store, ids store.IDGenerator, projectName string, r PluginResult) error {
	seq, err := s.NextSeq(ctx)
	if err != nil {
		return err
	}
	hash, err := ir.SnapshotHash(r.Snapshot)
	if err != nil {
		return fmt.Errorf("record %s: %w", r.PluginType, err)
	}
	app := ir.Application{
		ID:            ids.Generate(),
		Seq:           seq,
		Project:       projectName,
		PluginType:    r.PluginType,
		SoftwareType:  r.SoftwareType,
		Outcome:       r.Outcome(),
		Message:       r.Message(),
		Problems:      r.Problems(),
		Snapshot:      r.Snapshot,
		SnapshotHash:  hash,
		EngineVersion: ir.EngineVersion,
	}
	if err := s.WriteApplication(ctx, app); err != nil {
		return err
	}
	slog.Debug("application recorded", "id", app.ID, "seq", seq, "plugin", r.PluginType, "outcome", app.Outcome)
	return nil
}
