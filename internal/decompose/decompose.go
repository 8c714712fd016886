// Package decompose splits work units into minimal, independently
// executable atoms and scores them against the atomicity rubric.
package decompose

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ShayCichocki/fission/internal/inject"
	"github.com/ShayCichocki/fission/pkg/models"
)

// DefaultMaxDepth bounds how many cut levels the worklist may descend.
const DefaultMaxDepth = 10

// ErrDepthExceeded reports that a unit sits at the decomposition depth
// bound and cannot be cut further. Decompose degrades to a forced-atomic
// emit instead of returning it; Recut returns it wrapped.
var ErrDepthExceeded = errors.New("decomposition depth exceeded")

// Decomposer cuts work units into atoms over an explicit worklist.
type Decomposer struct {
	maxDepth      int
	maxComplexity float64
	maxSize       int
	debugLog      func(format string, args ...interface{})
}

// Option configures a Decomposer.
type Option func(*Decomposer)

// WithMaxDepth overrides the decomposition depth bound.
func WithMaxDepth(depth int) Option {
	return func(d *Decomposer) {
		if depth > 0 {
			d.maxDepth = depth
		}
	}
}

// WithThresholds overrides the cheap atomicity thresholds. A unit whose
// complexity and size sit at or below them is emitted without cutting.
func WithThresholds(maxComplexity float64, maxSize int) Option {
	return func(d *Decomposer) {
		if maxComplexity > 0 {
			d.maxComplexity = maxComplexity
		}
		if maxSize > 0 {
			d.maxSize = maxSize
		}
	}
}

// WithDebugLog sets the debug logging function.
func WithDebugLog(fn func(format string, args ...interface{})) Option {
	return func(d *Decomposer) {
		if fn != nil {
			d.debugLog = fn
		}
	}
}

// New creates a Decomposer with default depth and thresholds.
func New(opts ...Option) *Decomposer {
	d := &Decomposer{
		maxDepth:      DefaultMaxDepth,
		maxComplexity: defaultMaxComplexity,
		maxSize:       defaultMaxSize,
		debugLog:      func(string, ...interface{}) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// workItem is one pending node on the decomposition stack.
type workItem struct {
	id       string
	parentID string
	level    int
	fragment string
	groups   []int // group tokens this node's sink atoms register to
	waits    []int // group tokens whose atoms become dependencies
}

// decomposeRun carries the worklist state for one Decompose call.
type decomposeRun struct {
	d          *Decomposer
	unit       *models.AtomicUnit
	atoms      []*models.AtomicUnit
	byID       map[string]*models.AtomicUnit
	groupAtoms map[int][]string
	nextGroup  int
}

// Decompose cuts unit into atoms. Results come back in deterministic emit
// order; DependencyIDs reference only other returned atoms. Fragments that
// cannot be cut below the thresholds within the depth bound are emitted
// with ForcedAtomic set, never dropped.
func (d *Decomposer) Decompose(unit *models.AtomicUnit) ([]*models.AtomicUnit, error) {
	if unit == nil {
		return nil, fmt.Errorf("decompose: nil unit")
	}
	if strings.TrimSpace(unit.SourceFragment) == "" {
		return nil, fmt.Errorf("decompose: unit %q has an empty source fragment", unit.ID)
	}

	rootID := unit.ID
	if rootID == "" {
		rootID = uuid.New().String()
	}

	run := &decomposeRun{
		d:          d,
		unit:       unit,
		byID:       make(map[string]*models.AtomicUnit),
		groupAtoms: make(map[int][]string),
	}

	stack := []workItem{{
		id:       rootID,
		parentID: unit.ParentID,
		level:    unit.Level,
		fragment: strings.TrimSpace(unit.SourceFragment),
	}}

	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if d.isAtomic(item.fragment) {
			run.emit(item, false)
			continue
		}

		if item.level >= d.maxDepth {
			d.debugLog("[decompose] %v: node %s at level %d, emitting as-is", ErrDepthExceeded, item.id, item.level)
			run.emit(item, true)
			continue
		}

		children := cutChildren(item.fragment, nil)
		if len(children) < 2 {
			d.debugLog("[decompose] no applicable cut for node %s at level %d, emitting as-is", item.id, item.level)
			run.emit(item, true)
			continue
		}

		// Push in reverse so siblings pop in order; a sibling's whole
		// subtree settles before anything that waits on it pops.
		items := run.schedule(item, children)
		for i := len(items) - 1; i >= 0; i-- {
			stack = append(stack, items[i])
		}
	}

	return run.atoms, nil
}

// isAtomic is the cheap subset of the atomicity rubric used during
// decomposition: straight-line code within the single-purpose thresholds
// and free of non-deterministic primitives.
func (d *Decomposer) isAtomic(fragment string) bool {
	lines := splitLines(fragment)
	for _, st := range scanStatements(lines) {
		if st.kind == stmtBranch || st.kind == stmtLoop {
			return false
		}
	}
	return EstimateComplexity(fragment) <= d.maxComplexity &&
		CountLines(fragment) <= d.maxSize &&
		len(nondeterministicCalls(fragment)) == 0
}

// cutChildren applies the highest-priority cut that actually divides the
// fragment, optionally reordering candidates to address failed criteria.
func cutChildren(fragment string, failedCriteria []string) []childSpec {
	cuts := FindCutPoints(fragment)
	reorderCuts(cuts, failedCriteria)
	for _, cut := range cuts {
		if children := applyCut(fragment, cut); len(children) > 1 {
			return children
		}
	}
	return nil
}

// schedule converts cut children into stacked work items, assigning each
// child a fresh dependency group and turning sibling indexes into group
// tokens. Children nothing else depends on are the construct's sinks; they
// also register to the parent's groups so outer dependents wait on them.
func (r *decomposeRun) schedule(item workItem, children []childSpec) []workItem {
	groups := make([]int, len(children))
	for i := range children {
		groups[i] = r.nextGroup
		r.nextGroup++
	}

	dependedOn := make([]bool, len(children))
	for _, child := range children {
		for _, dep := range child.dependsOn {
			dependedOn[dep] = true
		}
	}

	items := make([]workItem, len(children))
	for i, child := range children {
		w := workItem{
			id:       uuid.New().String(),
			parentID: item.id,
			level:    item.level + 1,
			fragment: child.fragment,
			groups:   []int{groups[i]},
		}
		for _, dep := range child.dependsOn {
			w.waits = append(w.waits, groups[dep])
		}
		// Roots of the child graph inherit the parent's dependencies;
		// everything else reaches them transitively.
		if len(child.dependsOn) == 0 {
			w.waits = append(w.waits, item.waits...)
		}
		if !dependedOn[i] {
			w.groups = append(w.groups, item.groups...)
		}
		items[i] = w
	}
	return items
}

// emit materializes a leaf work item as an atom and registers it with its
// dependency groups.
func (r *decomposeRun) emit(item workItem, forced bool) {
	atom := &models.AtomicUnit{
		ID:                  item.id,
		SourceFragment:      item.fragment,
		ParentID:            item.parentID,
		Level:               item.level,
		EstimatedComplexity: EstimateComplexity(item.fragment),
		IsPure:              r.unit.IsPure,
		IsDeterministic:     r.unit.IsDeterministic,
		ForcedAtomic:        forced,
		DependencyIDs:       r.dependencySet(item.waits),
	}

	if item.id == r.unit.ID {
		atom.DeclaredInputs = copyDecls(r.unit.DeclaredInputs)
		atom.DeclaredOutputs = copyDecls(r.unit.DeclaredOutputs)
	} else {
		atom.DeclaredInputs, atom.DeclaredOutputs = deriveIO(item.fragment, r.unit, r.upstream(atom.DependencyIDs))
	}

	r.byID[atom.ID] = atom
	r.atoms = append(r.atoms, atom)
	for _, g := range item.groups {
		r.groupAtoms[g] = append(r.groupAtoms[g], atom.ID)
	}
}

// dependencySet resolves wait groups into a sorted, deduplicated list of
// atom IDs. Stack order guarantees every waited-on group is fully emitted
// before the waiting item pops.
func (r *decomposeRun) dependencySet(waits []int) []string {
	if len(waits) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var ids []string
	for _, g := range waits {
		for _, id := range r.groupAtoms[g] {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

func (r *decomposeRun) upstream(ids []string) []*models.AtomicUnit {
	if len(ids) == 0 {
		return nil
	}
	atoms := make([]*models.AtomicUnit, 0, len(ids))
	for _, id := range ids {
		if atom, ok := r.byID[id]; ok {
			atoms = append(atoms, atom)
		}
	}
	return atoms
}

// Recut re-cuts a rejected atom one level deeper, preferring cut kinds
// that address the named failed criteria. It returns the children in
// deterministic order plus the IDs of the sink children, so callers can
// rewire anything that depended on the rejected atom onto the sinks.
func (d *Decomposer) Recut(atom *models.AtomicUnit, failedCriteria []string) ([]*models.AtomicUnit, []string, error) {
	if atom == nil {
		return nil, nil, fmt.Errorf("recut: nil atom")
	}
	if atom.Level >= d.maxDepth {
		return nil, nil, fmt.Errorf("recut atom %s at level %d: %w", atom.ID, atom.Level, ErrDepthExceeded)
	}

	children := cutChildren(atom.SourceFragment, failedCriteria)
	if len(children) < 2 {
		return nil, nil, fmt.Errorf("recut atom %s: no applicable cut point", atom.ID)
	}

	dependedOn := make([]bool, len(children))
	for _, child := range children {
		for _, dep := range child.dependsOn {
			dependedOn[dep] = true
		}
	}

	atoms := make([]*models.AtomicUnit, len(children))
	for i, child := range children {
		next := &models.AtomicUnit{
			ID:                  uuid.New().String(),
			SourceFragment:      child.fragment,
			ParentID:            atom.ID,
			Level:               atom.Level + 1,
			EstimatedComplexity: EstimateComplexity(child.fragment),
			IsPure:              atom.IsPure,
			IsDeterministic:     atom.IsDeterministic,
		}

		var upstream []*models.AtomicUnit
		for _, dep := range child.dependsOn {
			next.DependencyIDs = append(next.DependencyIDs, atoms[dep].ID)
			upstream = append(upstream, atoms[dep])
		}
		if len(child.dependsOn) == 0 {
			next.DependencyIDs = append(next.DependencyIDs, atom.DependencyIDs...)
		}
		sort.Strings(next.DependencyIDs)

		next.DeclaredInputs, next.DeclaredOutputs = deriveIO(child.fragment, atom, upstream)
		atoms[i] = next
	}

	var sinks []string
	for i := range children {
		if !dependedOn[i] {
			sinks = append(sinks, atoms[i].ID)
		}
	}
	return atoms, sinks, nil
}

// reorderCuts stably moves cut kinds that address the failed criteria to
// the front. With no recognized criteria the (priority, start) order from
// FindCutPoints stands.
func reorderCuts(cuts []models.CutPoint, failedCriteria []string) {
	rank := make(map[models.CutKind]int)
	next := 0
	for _, criterion := range failedCriteria {
		for _, kind := range recutPreferences[criterion] {
			if _, ok := rank[kind]; !ok {
				rank[kind] = next
				next++
			}
		}
	}
	if next == 0 {
		return
	}
	sort.SliceStable(cuts, func(i, j int) bool {
		ri, iok := rank[cuts[i].Kind]
		rj, jok := rank[cuts[j].Kind]
		if iok && jok {
			return ri < rj
		}
		return iok && !jok
	})
}

// recutPreferences maps a failed criterion to the cut kinds most likely to
// address it.
var recutPreferences = map[string][]models.CutKind{
	CriterionSinglePurpose: {models.CutKindBranch, models.CutKindLoop, models.CutKindAssignment, models.CutKindCall},
	CriterionIndependence:  {models.CutKindAssignment, models.CutKindCall, models.CutKindBranch, models.CutKindLoop},
	CriterionDeterminism:   {models.CutKindCall, models.CutKindAssignment, models.CutKindBranch, models.CutKindLoop},
	CriterionIdempotency:   {models.CutKindCall, models.CutKindAssignment, models.CutKindBranch, models.CutKindLoop},
}

// deriveIO derives a child's declared inputs and outputs from its
// fragment. Free identifiers become inputs when the parent declares them
// or an upstream sibling produces them; everything else is left for
// context injection to resolve. Assigned identifiers become outputs, as do
// mutation targets the parent already declares as effects.
func deriveIO(fragment string, parent *models.AtomicUnit, upstream []*models.AtomicUnit) (map[string]string, map[string]string) {
	inputs := make(map[string]string)
	outputs := make(map[string]string)

	for _, name := range inject.AssignedIdentifiers(fragment) {
		outputs[name] = declaredType(name, parent)
	}
	for _, root := range mutatedRoots(fragment) {
		if t, ok := parent.DeclaredOutputs[root]; ok {
			outputs[root] = t
		}
	}

	for _, name := range inject.FreeIdentifiers(fragment) {
		if t, ok := parent.DeclaredInputs[name]; ok {
			inputs[name] = t
			continue
		}
		for _, up := range upstream {
			if t, ok := up.DeclaredOutputs[name]; ok {
				inputs[name] = t
				break
			}
		}
	}

	if len(inputs) == 0 {
		inputs = nil
	}
	if len(outputs) == 0 {
		outputs = nil
	}
	return inputs, outputs
}

// declaredType looks a name up in the parent's declarations, defaulting to
// "any" when the decomposition cannot tell.
func declaredType(name string, parent *models.AtomicUnit) string {
	if t, ok := parent.DeclaredInputs[name]; ok {
		return t
	}
	if t, ok := parent.DeclaredOutputs[name]; ok {
		return t
	}
	return "any"
}

func copyDecls(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
