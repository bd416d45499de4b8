package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunExitCodes(t *testing.T) {
	schemas := filepath.Join("..", "..", "internal", "project", "testdata", "library", "schemas")

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"validate", schemas}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "All schemas valid")

	stdout.Reset()
	assert.Equal(t, 2, run([]string{"validate", filepath.Join(t.TempDir(), "missing")}, &stdout, &stderr))

	stderr.Reset()
	assert.Equal(t, 1, run([]string{"--format", "xml", "validate", schemas}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), `invalid format "xml"`)
}
