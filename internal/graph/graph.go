// Package graph builds the dependency graph over accepted atoms and
// partitions it into executable waves.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/fission/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the atom graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// CycleError reports a dependency cycle with its full path. It unwraps to
// ErrCycleDetected so callers can match without inspecting the path.
type CycleError struct {
	// Path lists the atoms forming the cycle, starting at the lexically
	// smallest member. The closing edge back to Path[0] is implied.
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return ErrCycleDetected.Error()
	}
	return fmt.Sprintf("circular dependency detected: %s -> %s", strings.Join(e.Path, " -> "), e.Path[0])
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// DependencyGraph is the product of a successful Build: atoms, the unioned
// dependency edges, and the wave partition. A built graph is read-only and
// safe for concurrent use; completion tracking during execution belongs to
// the executor, not the graph.
type DependencyGraph struct {
	// atoms maps atom ID to the atom itself.
	atoms map[string]*models.AtomicUnit
	// edges is the deduplicated union of all edge strategies.
	edges []models.DependencyEdge
	// deps maps atom ID to the sorted IDs it depends on.
	deps map[string][]string
	// dependents maps atom ID to the sorted IDs that depend on it.
	dependents map[string][]string
	// waves is the longest-path layering, IDs sorted within each wave.
	waves [][]string
}

// Builder constructs dependency graphs from accepted atoms.
type Builder struct {
	rules    []PatternRule
	debugLog func(format string, args ...interface{})
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithPatternRules replaces the default operation-sequencing rules.
func WithPatternRules(rules []PatternRule) BuilderOption {
	return func(b *Builder) {
		b.rules = rules
	}
}

// WithDebugLog sets the debug logging function.
func WithDebugLog(fn func(format string, args ...interface{})) BuilderOption {
	return func(b *Builder) {
		if fn != nil {
			b.debugLog = fn
		}
	}
}

// NewBuilder creates a Builder with the default pattern rules.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		rules:    DefaultPatternRules(),
		debugLog: func(format string, args ...interface{}) {},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build registers every atom, unions the three edge strategies, rejects
// cycles, and partitions the result into waves. A *CycleError return means
// the atom set must not reach scheduling.
func (b *Builder) Build(atoms []*models.AtomicUnit) (*DependencyGraph, error) {
	g := &DependencyGraph{
		atoms:      make(map[string]*models.AtomicUnit, len(atoms)),
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
	}

	b.debugLog("[graph.Build] building graph from %d atoms", len(atoms))

	ids := make([]string, 0, len(atoms))
	for _, atom := range atoms {
		if atom == nil {
			return nil, fmt.Errorf("graph: nil atom")
		}
		if _, dup := g.atoms[atom.ID]; dup {
			return nil, fmt.Errorf("graph: duplicate atom ID %s", atom.ID)
		}
		g.atoms[atom.ID] = atom
		ids = append(ids, atom.ID)
	}

	edges, err := b.inferEdges(atoms, g.atoms)
	if err != nil {
		return nil, err
	}
	g.edges = edges
	for _, edge := range edges {
		g.deps[edge.To] = append(g.deps[edge.To], edge.From)
		g.dependents[edge.From] = append(g.dependents[edge.From], edge.To)
	}
	for id := range g.deps {
		sort.Strings(g.deps[id])
	}
	for id := range g.dependents {
		sort.Strings(g.dependents[id])
	}

	if cycle := findCycle(ids, g.deps); cycle != nil {
		b.debugLog("[graph.Build] cycle detected: %v", cycle)
		return nil, &CycleError{Path: cycle}
	}

	g.waves = partitionWaves(ids, g.deps)
	b.debugLog("[graph.Build] graph built: %d atoms, %d edges, %d waves",
		len(g.atoms), len(g.edges), len(g.waves))
	return g, nil
}

// Waves returns the wave partition. Wave 0 holds the atoms with no
// dependencies; every later wave depends only on earlier ones.
func (g *DependencyGraph) Waves() [][]string {
	waves := make([][]string, len(g.waves))
	for i, wave := range g.waves {
		waves[i] = append([]string(nil), wave...)
	}
	return waves
}

// Edges returns every dependency edge in the graph.
func (g *DependencyGraph) Edges() []models.DependencyEdge {
	return append([]models.DependencyEdge(nil), g.edges...)
}

// Atom returns the atom for a given ID, or nil if not found.
func (g *DependencyGraph) Atom(id string) *models.AtomicUnit {
	return g.atoms[id]
}

// Dependencies returns the sorted IDs of atoms the given atom depends on.
func (g *DependencyGraph) Dependencies(id string) []string {
	return append([]string(nil), g.deps[id]...)
}

// Dependents returns the sorted IDs of atoms that directly depend on the
// given atom.
func (g *DependencyGraph) Dependents(id string) []string {
	return append([]string(nil), g.dependents[id]...)
}

// TransitiveDependents returns every atom reachable by following dependent
// edges from the given atom, sorted. The atom itself is not included.
func (g *DependencyGraph) TransitiveDependents(id string) []string {
	seen := make(map[string]bool)
	var visit func(cur string)
	visit = func(cur string) {
		for _, next := range g.dependents[cur] {
			if !seen[next] {
				seen[next] = true
				visit(next)
			}
		}
	}
	visit(id)

	out := make([]string, 0, len(seen))
	for dependent := range seen {
		out = append(out, dependent)
	}
	sort.Strings(out)
	return out
}

// Size returns the number of atoms in the graph.
func (g *DependencyGraph) Size() int {
	return len(g.atoms)
}
