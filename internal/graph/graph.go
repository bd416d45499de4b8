// Package graph is the host realization mechanism for model creators.
//
// Nodes are registered by path and realized on demand. Realization is memoized
// per node: the creator's initializer runs at most once, and a failed
// realization stays failed. Declared inputs are realized first, in declared
// order, and handed to the initializer as read-only views.
//
// Nested managed properties are registered when their parent is realized, so
// a path such as "library.curator" resolves by realizing "library" first.
package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/modelcore/internal/ir"
	"github.com/roach88/modelcore/internal/metrics"
	"github.com/roach88/modelcore/internal/model"
)

// State is the lifecycle state of a node.
type State int

const (
	StateDeclared State = iota
	StateRealized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDeclared:
		return "declared"
	case StateRealized:
		return "realized"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DuplicatePathError reports a second registration at the same path.
type DuplicatePathError struct {
	Path     ir.Path
	Existing model.RuleDescriptor
}

func (e *DuplicatePathError) Error() string {
	return fmt.Sprintf("path %s is already registered by %q", e.Path, e.Existing)
}

// UnknownPathError reports a path with no registered node.
type UnknownPathError struct {
	Path ir.Path
}

func (e *UnknownPathError) Error() string {
	return fmt.Sprintf("no node registered at path %s", e.Path)
}

// CycleError reports re-entrant realization of a node that is in progress.
type CycleError struct {
	Path  ir.Path
	Chain []ir.Path
}

func (e *CycleError) Error() string {
	parts := make([]string, 0, len(e.Chain)+1)
	for _, p := range e.Chain {
		parts = append(parts, string(p))
	}
	parts = append(parts, string(e.Path))
	return "cycle detected while realizing: " + strings.Join(parts, " -> ")
}

// InputTypeError reports a declared input whose node cannot be viewed as the
// declared type.
type InputTypeError struct {
	Subject ir.Path
	Input   ir.ModelReference
	Actual  string
}

func (e *InputTypeError) Error() string {
	return fmt.Sprintf("input %s of %s cannot be viewed as %s (node is %s)",
		e.Input.Path, e.Subject, e.Input.Type.DisplayName(), e.Actual)
}

// IsCycle returns true if err is a CycleError.
func IsCycle(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}

// IsUnknownPath returns true if err is an UnknownPathError.
func IsUnknownPath(err error) bool {
	var ue *UnknownPathError
	return errors.As(err, &ue)
}

type node struct {
	creator   *model.Creator
	state     State
	value     any
	err       error
	realizing bool
}

// Graph holds nodes by path.
//
// Thread-safety: all methods are safe for concurrent use; realization is
// serialized by one mutex per graph.
type Graph struct {
	mu      sync.Mutex
	nodes   map[ir.Path]*node
	stack   []ir.Path
	metrics *metrics.Recorder
}

// Option configures a Graph.
type Option func(*Graph)

// WithMetrics records realization outcomes.
func WithMetrics(m *metrics.Recorder) Option {
	return func(g *Graph) {
		g.metrics = m
	}
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{nodes: make(map[ir.Path]*node)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register adds a declared node for the creator's path.
func (g *Graph) Register(c *model.Creator) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.register(c)
}

func (g *Graph) register(c *model.Creator) error {
	if c == nil {
		return fmt.Errorf("register: nil creator")
	}
	path := c.Reference.Path
	if existing, ok := g.nodes[path]; ok {
		return &DuplicatePathError{Path: path, Existing: existing.creator.Descriptor}
	}
	g.nodes[path] = &node{creator: c, state: StateDeclared}
	slog.Debug("node registered", "path", path, "type", c.Reference.Type.DisplayName(), "kind", c.Kind)
	return nil
}

// Has reports whether a node is registered at path.
func (g *Graph) Has(path ir.Path) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.nodes[path]
	return ok
}

// Paths returns the registered paths in sorted order.
func (g *Graph) Paths() []ir.Path {
	g.mu.Lock()
	defer g.mu.Unlock()

	paths := make([]ir.Path, 0, len(g.nodes))
	for p := range g.nodes {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Creator returns the creator registered at path.
func (g *Graph) Creator(path ir.Path) (*model.Creator, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[path]
	if !ok {
		return nil, false
	}
	return n.creator, true
}

// State returns the lifecycle state of the node at path.
func (g *Graph) State(path ir.Path) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[path]
	if !ok {
		return StateDeclared, &UnknownPathError{Path: path}
	}
	return n.state, nil
}

// Realize returns the node's backing object, creating it on first call.
func (g *Graph) Realize(path ir.Path) (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.realize(path)
}

// View realizes the node and returns its projection as t.
func (g *Graph) View(path ir.Path, t ir.TypeRef, mutable bool) (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	value, err := g.realize(path)
	if err != nil {
		return nil, err
	}
	return g.nodes[path].creator.Projection.View(value, t, mutable)
}

// realize does the work of Realize. Caller must hold g.mu.
func (g *Graph) realize(path ir.Path) (any, error) {
	n, err := g.lookup(path)
	if err != nil {
		return nil, err
	}
	switch n.state {
	case StateRealized:
		return n.value, nil
	case StateFailed:
		return nil, n.err
	}
	if n.realizing {
		return nil, &CycleError{Path: path, Chain: slices.Clone(g.stack)}
	}

	n.realizing = true
	g.stack = append(g.stack, path)
	defer func() {
		n.realizing = false
		g.stack = g.stack[:len(g.stack)-1]
	}()

	value, err := g.create(path, n.creator)
	if err != nil {
		n.state = StateFailed
		n.err = fmt.Errorf("realize %s: %w", path, err)
		g.metrics.NodeRealized(metrics.OutcomeFailed)
		slog.Debug("node realization failed", "path", path, "error", err)
		return nil, n.err
	}

	n.state = StateRealized
	n.value = value
	g.metrics.NodeRealized(metrics.OutcomeRealized)
	slog.Debug("node realized", "path", path, "type", n.creator.Reference.Type.DisplayName())
	return value, nil
}

// lookup returns the node at path. An unregistered path is resolved by
// realizing its nearest registered ancestor, which registers nested nodes.
// Caller must hold g.mu.
func (g *Graph) lookup(path ir.Path) (*node, error) {
	for {
		if n, ok := g.nodes[path]; ok {
			return n, nil
		}
		ancestor := path.Parent()
		for ancestor != "" {
			if _, ok := g.nodes[ancestor]; ok {
				break
			}
			ancestor = ancestor.Parent()
		}
		if ancestor == "" {
			return nil, &UnknownPathError{Path: path}
		}
		if g.nodes[ancestor].state == StateRealized {
			// Realized without registering path, so nothing will.
			return nil, &UnknownPathError{Path: path}
		}
		if _, err := g.realize(ancestor); err != nil {
			return nil, err
		}
	}
}

// create realizes declared inputs in order and runs the creator.
// Caller must hold g.mu.
func (g *Graph) create(path ir.Path, c *model.Creator) (any, error) {
	refs := c.Inputs()
	inputs := make(model.Inputs, 0, len(refs))
	for _, ref := range refs {
		value, err := g.realize(ref.Path)
		if err != nil {
			return nil, err
		}
		in := g.nodes[ref.Path].creator
		want := ref.Type
		if want.IsZero() {
			want = in.Reference.Type
		}
		if !in.Projection.CanBeViewedAs(want) {
			return nil, &InputTypeError{Subject: path, Input: ref, Actual: in.Projection.String()}
		}
		view, err := in.Projection.View(value, want, false)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, view)
	}
	return c.Create(lockedRealizer{g}, inputs)
}

// lockedRealizer exposes the graph to creators during realization, when g.mu
// is already held.
type lockedRealizer struct {
	g *Graph
}

func (r lockedRealizer) Has(path ir.Path) bool {
	_, ok := r.g.nodes[path]
	return ok
}

func (r lockedRealizer) Register(c *model.Creator) error {
	return r.g.register(c)
}

func (r lockedRealizer) Realize(path ir.Path) (any, error) {
	return r.g.realize(path)
}
