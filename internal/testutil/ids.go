// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates prefix1, prefix2, ... for application records.
//
// Unlike store.FixedGenerator it never runs out, and it can be reset so the
// same scenario produces identical IDs on every run.
//
// Thread-safety: All methods are safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. The first call to Generate returns
// prefix + "1".
func NewSequentialIDs(prefix string) *SequentialIDs {
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next ID. Implements store.IDGenerator.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s%d", g.prefix, g.n)
}

// Reset starts the sequence over.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
