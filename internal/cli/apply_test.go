package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/modelcore/internal/store"
	"github.com/roach88/modelcore/internal/testutil"
)

var libraryProject = filepath.Join("..", "project", "testdata", "library", "project.yaml")

// writeProject writes a project that only uses plugins expected to apply.
func writeProject(t *testing.T) string {
	t.Helper()
	schemas, err := filepath.Abs(librarySchemas)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`name: shop
schemas:
  - `+schemas+`
plugins:
  - type: CatalogPlugin
    software_type: catalog
    properties:
      - name: catalog
        type: Catalog
        software_type: catalog
`), 0644))
	return path
}

func executeApply(t *testing.T, opts *ApplyOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newApplyCommand(opts)
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestApplySuccess(t *testing.T) {
	opts := &ApplyOptions{RootOptions: &RootOptions{Format: "text"}}
	output, err := executeApply(t, opts, writeProject(t))
	require.NoError(t, err)
	assert.Equal(t, "project: shop\nCatalogPlugin (catalog): applied\n  catalog = {\"open\":false}\n", output)
}

func TestApplyFailuresExitOne(t *testing.T) {
	opts := &ApplyOptions{RootOptions: &RootOptions{Format: "text"}}
	output, err := executeApply(t, opts, libraryProject)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 of 4 plugin(s) failed")
	assert.Contains(t, output, "MismatchPlugin (library): failed")
}

func TestApplyJSON(t *testing.T) {
	opts := &ApplyOptions{RootOptions: &RootOptions{Format: "json"}}
	output, err := executeApply(t, opts, libraryProject)
	require.Error(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Project string `json:"project"`
			Plugins []struct {
				PluginType string `json:"plugin_type"`
				Outcome    string `json:"outcome"`
			} `json:"plugins"`
		} `json:"data"`
		Error *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "demo", resp.Data.Project)
	require.Len(t, resp.Data.Plugins, 4)
	assert.Equal(t, "applied", resp.Data.Plugins[1].Outcome)
	assert.Equal(t, "failed", resp.Data.Plugins[3].Outcome)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeApplyFailed, resp.Error.Code)
}

func TestApplyRecordsHistoryAndMetrics(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "history.db")
	prom := filepath.Join(dir, "modelcore.prom")

	opts := &ApplyOptions{
		RootOptions: &RootOptions{Format: "text"},
		IDs:         testutil.NewSequentialIDs("a"),
	}
	_, err := executeApply(t, opts, "--db", db, "--metrics-file", prom, libraryProject)
	require.Error(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	apps, err := st.ReadApplications(t.Context(), store.Filter{})
	require.NoError(t, err)
	require.Len(t, apps, 4)
	assert.Equal(t, "a1", apps[0].ID)

	metrics, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `modelcore_conventions_applied_total{software_type="catalog"} 1`)
}

func TestApplyInvalidProject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\n"), 0644))

	opts := &ApplyOptions{RootOptions: &RootOptions{Format: "text"}}
	output, err := executeApply(t, opts, path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, ErrCodeProject)
}
