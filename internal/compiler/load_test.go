package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/modelcore/internal/ir"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadDirMixedSources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "library.cue", `package schemas

type: Library: {
	properties: {
		name:  "string"
		books: "ManagedSet<Book>"
	}
}
`)
	writeFile(t, dir, "book.hcl", `
type "Book" {
  property "title" { type = "string" }
}

software_type "library" {
  model = "Library"
  convention "defaults" {
    values = { name = "main" }
  }
}
`)
	writeFile(t, dir, "README.md", "not a schema")

	files, err := FindSchemaFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, files.Len())

	b, errs := LoadDir(dir)
	require.Empty(t, errs)
	require.Len(t, b.Schemas, 2)
	assert.Equal(t, ir.T("Library"), b.Schemas[0].Type)
	assert.Equal(t, ir.T("Book"), b.Schemas[1].Type)
	require.Len(t, b.SoftwareTypes, 1)
	assert.Equal(t, ir.T("Library"), b.SoftwareTypes[0].Model)
}

func TestLoadDirHCLOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.hcl", `type "A" {}`)
	writeFile(t, dir, "b.hcl", `type "B" {}`)

	b, errs := LoadDir(dir)
	require.Empty(t, errs)
	require.Len(t, b.Schemas, 2)
	assert.Equal(t, "A", b.Schemas[0].Type.Name)
	assert.Equal(t, "B", b.Schemas[1].Type.Name)
}

func TestLoadDirCollectsErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.hcl", `type "A" {}`)
	writeFile(t, dir, "bad.hcl", `type "B" { kind = "enum" }`)

	b, errs := LoadDir(dir)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "type.B")
	assert.Len(t, b.Schemas, 1)
}

func TestLoadDirCUESyntaxError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.cue", "package schemas\n\ntype: X: {kind: \"struct\"\n")

	_, errs := LoadDir(dir)
	require.Len(t, errs, 1)

	var se *SourceError
	require.ErrorAs(t, errs[0], &se)
	assert.Equal(t, StageLoad, se.Stage)
}

func TestLoadDirMissing(t *testing.T) {
	_, errs := LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.Len(t, errs, 1)

	var se *SourceError
	require.ErrorAs(t, errs[0], &se)
	assert.Equal(t, StageScan, se.Stage)
}
