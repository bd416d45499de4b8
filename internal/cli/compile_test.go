package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/modelcore/internal/ir"
	"github.com/roach88/modelcore/internal/testutil"
)

func TestCompileValidSchemas(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{librarySchemas})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "✓ Compiled 3 type(s), 2 software type(s)")
	assert.Contains(t, output, "  Catalog: 2 property(ies)")
	assert.Contains(t, output, "  library: Library, 1 convention(s)")
}

func TestCompileValidSchemasJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{librarySchemas})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Types, 3)
	// CUE declarations are compiled before HCL files.
	assert.Equal(t, ir.T("Catalog"), resp.Data.Types[0].Type)
	require.Len(t, resp.Data.SoftwareTypes, 2)
	assert.Equal(t, "catalog", resp.Data.SoftwareTypes[0].Name)
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{librarySchemas, "--output", outputFile})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Wrote IR to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.Types, 3)
	assert.Len(t, result.SoftwareTypes, 2)
}

func TestCompileCollectsAllErrors(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"a.hcl": `type "X" { kind = "enum" }`,
		"b.hcl": `software_type "s" {
  model = "X"
  convention "script" {}
}`,
	})

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   []CLIError `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "E102", resp.Data[0].Code)
	assert.Equal(t, "E108", resp.Data[1].Code)
	assert.Equal(t, resp.Data[0], *resp.Error)
}

func TestCompileMissingDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "E005: schema directory not found")
}
