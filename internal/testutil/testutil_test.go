package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/modelcore/internal/store"
)

var _ store.IDGenerator = (*SequentialIDs)(nil)

func TestSequentialIDs(t *testing.T) {
	ids := NewSequentialIDs("app-")
	assert.Equal(t, "app-1", ids.Generate())
	assert.Equal(t, "app-2", ids.Generate())

	ids.Reset()
	assert.Equal(t, "app-1", ids.Generate())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	ids := NewSequentialIDs("x")

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := ids.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000)
	assert.Equal(t, "x1001", ids.Generate())
}

func TestWriteFiles(t *testing.T) {
	dir := WriteFiles(t, map[string]string{
		"project.yaml":        "name: x\n",
		"schemas/library.hcl": `type "Library" {}`,
	})

	data, err := os.ReadFile(filepath.Join(dir, "project.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "name: x\n", string(data))
	assert.FileExists(t, filepath.Join(dir, "schemas", "library.hcl"))
}
