package models

// EdgeKind names the strategy that proposed a dependency edge.
type EdgeKind string

const (
	// EdgeExplicit comes from dependency IDs carried on the atom.
	EdgeExplicit EdgeKind = "explicit"
	// EdgeCRUDInferred comes from create-before-use analysis on a shared
	// entity.
	EdgeCRUDInferred EdgeKind = "crud-inferred"
	// EdgePatternInferred comes from known operation-sequencing rules.
	EdgePatternInferred EdgeKind = "pattern-inferred"
)

// DependencyEdge is a directed ordering constraint: From must complete
// before To may start. Duplicate (From, To) pairs from different strategies
// are merged, not stacked.
type DependencyEdge struct {
	// From is the atom that must run first.
	From string `json:"from"`
	// To is the atom that depends on From.
	To string `json:"to"`
	// Kind names the strategy that proposed the edge.
	Kind EdgeKind `json:"kind"`
}
