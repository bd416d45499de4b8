package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/modelcore/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// pragma reads a pragma value from the store's connection.
func pragma(t *testing.T, s *Store, name string) string {
	t.Helper()
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		t.Fatalf("query %s: %v", name, err)
	}
	return value
}

// createTestApplication creates an applied record with minimal required fields.
func createTestApplication(id, pluginType string, seq int64) ir.Application {
	return ir.Application{
		ID:            id,
		Seq:           seq,
		Project:       "demo",
		PluginType:    pluginType,
		SoftwareType:  "library",
		Outcome:       ir.OutcomeApplied,
		Snapshot:      ir.Object{},
		SnapshotHash:  "test-hash",
		EngineVersion: ir.EngineVersion,
	}
}
