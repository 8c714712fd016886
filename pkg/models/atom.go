package models

// AtomStatus represents the terminal or in-flight state of an atom.
type AtomStatus string

const (
	// AtomStatusPending indicates the atom has not started.
	AtomStatusPending AtomStatus = "pending"
	// AtomStatusRunning indicates the atom is being executed.
	AtomStatusRunning AtomStatus = "running"
	// AtomStatusSucceeded indicates generation and validation passed.
	AtomStatusSucceeded AtomStatus = "succeeded"
	// AtomStatusFailed indicates the retry budget was exhausted.
	AtomStatusFailed AtomStatus = "failed"
	// AtomStatusSkipped indicates a transitive dependency failed, so the
	// atom was never attempted.
	AtomStatusSkipped AtomStatus = "skipped"
	// AtomStatusAborted indicates the run was cancelled while the atom was
	// in flight or before it started. Distinct from failed.
	AtomStatusAborted AtomStatus = "aborted"
)

// Valid returns true if the status is a known value.
func (s AtomStatus) Valid() bool {
	switch s {
	case AtomStatusPending, AtomStatusRunning, AtomStatusSucceeded,
		AtomStatusFailed, AtomStatusSkipped, AtomStatusAborted:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a final state.
func (s AtomStatus) Terminal() bool {
	switch s {
	case AtomStatusSucceeded, AtomStatusFailed, AtomStatusSkipped, AtomStatusAborted:
		return true
	default:
		return false
	}
}

// AtomicUnit is the smallest unit of generation work: self-contained and
// independently schedulable. Created by the decomposer, enriched by the
// context injector, scored by the atomicity scorer, and consumed read-only
// by the graph builder and the wave executor. Never mutated after it enters
// a wave.
type AtomicUnit struct {
	// ID is the unique identifier for this atom.
	ID string `json:"id"`
	// SourceFragment is the raw content this atom represents.
	SourceFragment string `json:"source_fragment"`
	// ParentID is the ID of the owning decomposition node. Empty for the
	// root unit.
	ParentID string `json:"parent_id,omitempty"`
	// Level is the decomposition depth, 0 for the whole unit.
	Level int `json:"level"`
	// DeclaredInputs maps input names to their types.
	DeclaredInputs map[string]string `json:"declared_inputs,omitempty"`
	// DeclaredOutputs maps output names to their types.
	DeclaredOutputs map[string]string `json:"declared_outputs,omitempty"`
	// Context is the fully resolved, self-sufficient bundle attached
	// before scheduling.
	Context Context `json:"context"`
	// EstimatedComplexity is the structural complexity score.
	EstimatedComplexity float64 `json:"estimated_complexity"`
	// IsPure indicates the fragment has no declared side effects.
	IsPure bool `json:"is_pure"`
	// IsDeterministic indicates repeated runs produce identical output.
	IsDeterministic bool `json:"is_deterministic"`
	// DependencyIDs lists atom IDs that must complete before this one.
	DependencyIDs []string `json:"dependency_ids,omitempty"`
	// ForcedAtomic is set when the atom was emitted despite failing the
	// atomicity heuristic because no further cut was possible.
	ForcedAtomic bool `json:"forced_atomic,omitempty"`
}

// Clone returns a deep copy of the atom. Maps and slices are copied so the
// original is safe against mutation through the returned value.
func (a *AtomicUnit) Clone() *AtomicUnit {
	if a == nil {
		return nil
	}
	out := *a
	out.DeclaredInputs = cloneStringMap(a.DeclaredInputs)
	out.DeclaredOutputs = cloneStringMap(a.DeclaredOutputs)
	out.DependencyIDs = append([]string(nil), a.DependencyIDs...)
	out.Context = a.Context.Clone()
	return &out
}

// Context is the complete bundle attached to an atom before scheduling.
// Every free identifier referenced by the atom's source fragment must
// resolve to an entry in Data or Environment.
type Context struct {
	// Data holds schemas, types, constants, and example values.
	Data map[string]string `json:"data,omitempty"`
	// Behavior holds pre/post-conditions, invariants, and edge cases.
	Behavior map[string]string `json:"behavior,omitempty"`
	// Environment holds the target runtime, resolved imports, and
	// conventions.
	Environment map[string]string `json:"environment,omitempty"`
	// Testing holds generated test cases and assertions.
	Testing map[string]string `json:"testing,omitempty"`
	// Documentation holds the human-readable purpose.
	Documentation map[string]string `json:"documentation,omitempty"`
}

// Complete returns true if all five context sections are present and
// non-empty.
func (c Context) Complete() bool {
	return len(c.Data) > 0 && len(c.Behavior) > 0 && len(c.Environment) > 0 &&
		len(c.Testing) > 0 && len(c.Documentation) > 0
}

// Resolves returns true if the identifier has an entry in Data or
// Environment, the two sections that define self-containment.
func (c Context) Resolves(identifier string) bool {
	if _, ok := c.Data[identifier]; ok {
		return true
	}
	_, ok := c.Environment[identifier]
	return ok
}

// Clone returns a deep copy of the context.
func (c Context) Clone() Context {
	return Context{
		Data:          cloneStringMap(c.Data),
		Behavior:      cloneStringMap(c.Behavior),
		Environment:   cloneStringMap(c.Environment),
		Testing:       cloneStringMap(c.Testing),
		Documentation: cloneStringMap(c.Documentation),
	}
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CutKind is the structural category of a cut point.
type CutKind string

const (
	// CutKindBranch marks a conditional construct (if/else, switch).
	CutKindBranch CutKind = "branch"
	// CutKindLoop marks an iteration construct.
	CutKindLoop CutKind = "loop"
	// CutKindCall marks a call statement boundary.
	CutKindCall CutKind = "call"
	// CutKindAssignment marks an assignment block boundary.
	CutKindAssignment CutKind = "assignment"
)

// Span is a half-open line range [Start, End) into a source fragment.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// CutPoint is a candidate split location inside a not-yet-atomic unit.
// Produced and consumed entirely inside the decomposer; never persisted.
type CutPoint struct {
	// Span is the line range the cut would carve out.
	Span Span `json:"span"`
	// Kind is the structural category of the cut.
	Kind CutKind `json:"kind"`
	// Priority orders candidate cuts; lower values are tried first.
	Priority int `json:"priority"`
	// Rationale explains why this location is a candidate.
	Rationale string `json:"rationale"`
}
