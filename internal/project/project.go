// Package project loads YAML project files and runs convention application
// for every plugin they declare.
//
// A project names the schema directories to compile and lists plugins. Each
// plugin property becomes a graph node (managed types) or a plain value
// (scalars); the plugin's software type is then applied through the
// convention handler and the realized models are captured as snapshots.
package project

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/modelcore/internal/ir"
)

// Project is a parsed project file.
type Project struct {
	// Name identifies the project in application history.
	Name string `yaml:"name"`

	// Schemas lists directories of .cue and .hcl schema files.
	// Relative paths are resolved against the project file location.
	Schemas []string `yaml:"schemas"`

	// Plugins are configured in declaration order.
	Plugins []PluginSpec `yaml:"plugins"`
}

// PluginSpec declares one plugin instance.
type PluginSpec struct {
	// Type is the plugin's public type, e.g. "LibraryPlugin". Unique per project.
	Type string `yaml:"type"`

	// SoftwareType is the software type applied to the plugin.
	SoftwareType string `yaml:"software_type"`

	Properties []PropertySpec `yaml:"properties"`

	typ ir.TypeRef
}

// PropertySpec declares one plugin property.
type PropertySpec struct {
	Name string `yaml:"name"`

	// Type is a type reference such as "string" or "ManagedSet<Book>".
	Type string `yaml:"type"`

	// SoftwareType tags the property as belonging to a software type.
	SoftwareType string `yaml:"software_type,omitempty"`

	// Inputs are node paths realized before this property, e.g.
	// "CatalogPlugin.catalog". Unset scalars are inherited from them.
	Inputs []string `yaml:"inputs,omitempty"`

	// Values configures the property: a map for struct types, a list of maps
	// for collections, a plain value for scalars.
	Values any `yaml:"values,omitempty"`

	typ   ir.TypeRef
	value ir.Value
}

// DeclaredType returns the parsed plugin type.
func (p *PluginSpec) DeclaredType() ir.TypeRef {
	return p.typ
}

// Path returns the graph path of a plugin property.
func (p *PluginSpec) Path(property string) ir.Path {
	return ir.Path(p.typ.DisplayName()).Child(property)
}

// Load reads and parses a project YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Schema directories are resolved relative to the file.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i, dir := range p.Schemas {
		if !filepath.IsAbs(dir) {
			p.Schemas[i] = filepath.Join(base, dir)
		}
	}
	return p, nil
}

// Parse parses project YAML. Schema directories are left as written.
func Parse(data []byte) (*Project, error) {
	var p Project
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateProject(&p); err != nil {
		return nil, fmt.Errorf("invalid project: %w", err)
	}
	return &p, nil
}

// validateProject checks required fields and resolves types and values.
func validateProject(p *Project) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Schemas) == 0 {
		return fmt.Errorf("schemas list is required and must be non-empty")
	}
	if len(p.Plugins) == 0 {
		return fmt.Errorf("plugins list is required and must be non-empty")
	}

	seenPlugins := make(map[string]bool, len(p.Plugins))
	for i := range p.Plugins {
		pl := &p.Plugins[i]
		if pl.Type == "" {
			return fmt.Errorf("plugins[%d]: type is required", i)
		}
		t, err := ir.ParseTypeRef(pl.Type)
		if err != nil {
			return fmt.Errorf("plugins[%d]: %w", i, err)
		}
		pl.typ = t
		if seenPlugins[t.DisplayName()] {
			return fmt.Errorf("plugins[%d]: duplicate plugin type %q", i, pl.Type)
		}
		seenPlugins[t.DisplayName()] = true

		if pl.SoftwareType == "" {
			return fmt.Errorf("plugins[%d]: software_type is required", i)
		}

		seenProps := make(map[string]bool, len(pl.Properties))
		for j := range pl.Properties {
			if err := validateProperty(&pl.Properties[j], seenProps); err != nil {
				return fmt.Errorf("plugins[%d].properties[%d]: %w", i, j, err)
			}
		}
	}
	return nil
}

func validateProperty(prop *PropertySpec, seen map[string]bool) error {
	if prop.Name == "" {
		return fmt.Errorf("name is required")
	}
	if seen[prop.Name] {
		return fmt.Errorf("duplicate property %q", prop.Name)
	}
	seen[prop.Name] = true

	if prop.Type == "" {
		return fmt.Errorf("type is required")
	}
	t, err := ir.ParseTypeRef(prop.Type)
	if err != nil {
		return err
	}
	prop.typ = t

	for k, in := range prop.Inputs {
		if in == "" {
			return fmt.Errorf("inputs[%d]: path is required", k)
		}
	}

	if prop.Values != nil {
		v, err := ir.FromAny(prop.Values)
		if err != nil {
			return fmt.Errorf("values: %w", err)
		}
		prop.value = v
	}
	return nil
}
