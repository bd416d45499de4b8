package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/modelcore/internal/ir"
)

const libraryCUE = `
	type: Library: {
		kind: "struct"
		properties: {
			name:  "string"
			open:  "bool"
			books: "ManagedSet<Book>"
		}
	}
	type: Book: {
		properties: {
			title: "string"
			pages: "int"
		}
	}
	type: Shelf: {
		kind:    "collection"
		element: "Book"
	}
	software_type: library: {
		model: "Library"
		conventions: [
			{kind: "defaults", values: {name: "main", open: true, books: [{title: "Dune", pages: 412}]}},
			{kind: "model_rule", rule: "library.books"},
		]
	}
`

func compileString(t *testing.T, src string) cue.Value {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return v
}

// =============================================================================
// Types
// =============================================================================

func TestCompileTypeStruct(t *testing.T) {
	v := compileString(t, libraryCUE)

	schema, err := CompileType(v.LookupPath(cue.ParsePath("type.Library")))
	require.NoError(t, err)

	assert.Equal(t, ir.T("Library"), schema.Type)
	assert.Equal(t, ir.KindStruct, schema.Kind)
	require.Len(t, schema.Properties, 3)
	assert.Equal(t, "name", schema.Properties[0].Name)
	assert.Equal(t, "open", schema.Properties[1].Name)
	assert.Equal(t, ir.T("ManagedSet", ir.T("Book")), schema.Properties[2].Type)
}

func TestCompileTypeDefaultsToStruct(t *testing.T) {
	v := compileString(t, libraryCUE)

	schema, err := CompileType(v.LookupPath(cue.ParsePath("type.Book")))
	require.NoError(t, err)
	assert.Equal(t, ir.KindStruct, schema.Kind)
	assert.Len(t, schema.Properties, 2)
}

func TestCompileTypeCollection(t *testing.T) {
	v := compileString(t, libraryCUE)

	schema, err := CompileType(v.LookupPath(cue.ParsePath("type.Shelf")))
	require.NoError(t, err)
	assert.Equal(t, ir.KindCollection, schema.Kind)
	assert.Equal(t, ir.T("Shelf", ir.T("Book")), schema.Type)
	require.NotNil(t, schema.ElementType)
	assert.Equal(t, ir.T("Book"), *schema.ElementType)
}

func TestCompileTypeErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"collection without element", `type: X: {kind: "collection"}`, "element"},
		{"collection with properties", `type: X: {kind: "collection", element: "Book", properties: {a: "int"}}`, "properties"},
		{"unknown kind", `type: X: {kind: "enum"}`, "kind"},
		{"non-string property type", `type: X: {properties: {a: 1}}`, "properties.a"},
		{"malformed property type", `type: X: {properties: {a: "Set<"}}`, "properties.a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := compileString(t, tt.src)
			_, err := CompileType(v.LookupPath(cue.ParsePath("type.X")))
			require.Error(t, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompileTypeErrorPosition(t *testing.T) {
	v := cuecontext.New().CompileString(`type: X: {
	kind: "enum"
}`, cue.Filename("schema.cue"))
	require.NoError(t, v.Err())

	_, err := CompileType(v.LookupPath(cue.ParsePath("type.X")))
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, err.Error(), "schema.cue:2:")
}

// =============================================================================
// Software types
// =============================================================================

func TestCompileSoftwareType(t *testing.T) {
	v := compileString(t, libraryCUE)

	spec, err := CompileSoftwareType(v.LookupPath(cue.ParsePath("software_type.library")))
	require.NoError(t, err)

	assert.Equal(t, "library", spec.Name)
	assert.Equal(t, ir.T("Library"), spec.Model)
	require.Len(t, spec.Conventions, 2)

	defaults := spec.Conventions[0]
	assert.Equal(t, ir.ConventionDefaults, defaults.Kind)
	assert.Equal(t, ir.NewObject(
		ir.O("name", ir.String("main")),
		ir.O("open", ir.Bool(true)),
		ir.O("books", ir.List{ir.NewObject(
			ir.O("title", ir.String("Dune")),
			ir.O("pages", ir.Int(412)),
		)}),
	), defaults.Values)

	assert.Equal(t, ir.ConventionModelRule, spec.Conventions[1].Kind)
	assert.Equal(t, "library.books", spec.Conventions[1].Rule)
}

func TestCompileSoftwareTypeErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
		msg   string
	}{
		{"missing model", `software_type: x: {}`, "model", "required"},
		{"float default", `software_type: x: {model: "X", conventions: [{kind: "defaults", values: {size: 1.5}}]}`,
			"conventions[0].values.size", "float"},
		{"defaults not a struct", `software_type: x: {model: "X", conventions: [{kind: "defaults", values: [1]}]}`,
			"conventions[0].values", "struct"},
		{"defaults without values", `software_type: x: {model: "X", conventions: [{kind: "defaults"}]}`,
			"conventions[0].values", "require values"},
		{"rule without text", `software_type: x: {model: "X", conventions: [{kind: "model_rule"}]}`,
			"conventions[0].rule", "rule string"},
		{"unknown convention", `software_type: x: {model: "X", conventions: [{kind: "script"}]}`,
			"conventions[0].kind", `"script"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := compileString(t, tt.src)
			_, err := CompileSoftwareType(v.LookupPath(cue.ParsePath("software_type.x")))
			require.Error(t, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, ce.Message, tt.msg)
		})
	}
}

// =============================================================================
// Whole files
// =============================================================================

func TestCompileCUE(t *testing.T) {
	b, errs := CompileCUE(compileString(t, libraryCUE))
	require.Empty(t, errs)
	assert.Len(t, b.Schemas, 3)
	require.Len(t, b.SoftwareTypes, 1)
	assert.Equal(t, "library", b.SoftwareTypes[0].Name)
}

func TestCompileCUECollectsErrors(t *testing.T) {
	b, errs := CompileCUE(compileString(t, `
		type: Good: {properties: {a: "int"}}
		type: Bad: {kind: "enum"}
		software_type: broken: {}
	`))
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "type.Bad")
	assert.Contains(t, errs[1].Error(), "software_type.broken")
	assert.Len(t, b.Schemas, 1)
	assert.Empty(t, b.SoftwareTypes)
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "kind", Message: "bad"}
	assert.Equal(t, "kind: bad", err.Error())
}

func TestBundleMerge(t *testing.T) {
	a := &Bundle{Schemas: []*ir.Schema{ir.NewStructSchema(ir.T("A"))}}
	a.Merge(&Bundle{
		Schemas:       []*ir.Schema{ir.NewStructSchema(ir.T("B"))},
		SoftwareTypes: []*ir.SoftwareTypeSpec{{Name: "b", Model: ir.T("B")}},
	})
	a.Merge(nil)

	assert.Len(t, a.Schemas, 2)
	assert.Len(t, a.SoftwareTypes, 1)
}
