package cli

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/modelcore/internal/ir"
	"github.com/roach88/modelcore/internal/testutil"
)

// seedHistory applies the library project into a fresh database.
func seedHistory(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "history.db")
	opts := &ApplyOptions{
		RootOptions: &RootOptions{Format: "text"},
		IDs:         testutil.NewSequentialIDs("a"),
	}
	_, err := executeApply(t, opts, "--db", db, libraryProject)
	require.Error(t, err) // two plugins fail by design of the fixture
	return db
}

func executeHistory(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewHistoryCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestHistoryText(t *testing.T) {
	db := seedHistory(t)

	output, err := executeHistory(t, "text", "--db", db, "--outcome", "failed")
	require.NoError(t, err)
	assert.Contains(t, output, "#3 a3 demo/MismatchPlugin (library): failed")
	assert.Contains(t, output, "#4 a4 demo/InvalidPlugin (library): failed")
	assert.Contains(t, output, "    - Type 'InvalidPlugin' property 'gadget'")
	assert.NotContains(t, output, "CatalogPlugin")
}

func TestHistoryJSONFilters(t *testing.T) {
	db := seedHistory(t)

	output, err := executeHistory(t, "json", "--db", db, "--plugin", "LibraryPlugin")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Applications, 1)
	app := resp.Data.Applications[0]
	assert.Equal(t, "a2", app.ID)
	assert.Equal(t, ir.OutcomeApplied, app.Outcome)
	assert.Equal(t, ir.String("main"), app.Snapshot["label"])
}

func TestHistoryVerify(t *testing.T) {
	db := seedHistory(t)

	output, err := executeHistory(t, "text", "--db", db, "--verify", "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, output, "✓ 2 snapshot(s) verified")

	raw, err := sql.Open("sqlite3", db)
	require.NoError(t, err)
	_, err = raw.Exec(`UPDATE applications SET snapshot_hash = 'tampered' WHERE id = 'a1'`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	output, err = executeHistory(t, "text", "--db", db, "--verify")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "✗ 1 snapshot(s) mismatched:\n  a1\n")
}

func TestHistoryEmpty(t *testing.T) {
	db := seedHistory(t)

	output, err := executeHistory(t, "text", "--db", db, "--project", "other")
	require.NoError(t, err)
	assert.Equal(t, "No applications recorded\n", output)
}

func TestHistoryErrors(t *testing.T) {
	output, err := executeHistory(t, "text", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, ErrCodeNotFound)

	empty := filepath.Join(t.TempDir(), "empty.db")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	output, err = executeHistory(t, "text", "--db", empty)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, ErrCodeStore)
	assert.Contains(t, output, "is not a modelcore history database")

	_, err = executeHistory(t, "text", "--db", seedHistory(t), "--outcome", "skipped")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid outcome "skipped"`)
}
