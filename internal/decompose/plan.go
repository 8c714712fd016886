package decompose

import (
	"fmt"
	"sort"

	"github.com/ShayCichocki/fission/internal/inject"
	"github.com/ShayCichocki/fission/pkg/models"
)

// Planner drives the full planning pipeline: cut a unit into atoms, inject
// context into each, score it against the rubric, and re-cut rejections
// until every leaf is accepted or force-emitted. The re-cut loop is bounded
// by the Decomposer's depth limit, so planning always terminates.
type Planner struct {
	decomposer *Decomposer
	injector   *inject.Injector
	scorer     *AtomicityScorer
	debugLog   func(format string, args ...interface{})
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithPlannerDebugLog sets the debug logging function.
func WithPlannerDebugLog(fn func(format string, args ...interface{})) PlannerOption {
	return func(p *Planner) {
		if fn != nil {
			p.debugLog = fn
		}
	}
}

// NewPlanner creates a Planner from its three collaborators.
func NewPlanner(decomposer *Decomposer, injector *inject.Injector, scorer *AtomicityScorer, opts ...PlannerOption) *Planner {
	p := &Planner{
		decomposer: decomposer,
		injector:   injector,
		scorer:     scorer,
		debugLog:   func(string, ...interface{}) {},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan returns the accepted, context-injected atom set for a unit. Atoms
// that cannot pass the rubric within the depth bound come back with
// ForcedAtomic set rather than being dropped; an unresolved reference
// aborts the whole plan since such an atom must never reach scheduling.
func (p *Planner) Plan(unit *models.AtomicUnit) ([]*models.AtomicUnit, error) {
	atoms, err := p.decomposer.Decompose(unit)
	if err != nil {
		return nil, err
	}

	accepted := make([]*models.AtomicUnit, 0, len(atoms))
	queue := append([]*models.AtomicUnit(nil), atoms...)
	// remap records re-cut atoms: their dependents are rewired onto the
	// replacement sinks after the loop settles.
	remap := make(map[string][]string)

	for i := 0; i < len(queue); i++ {
		candidate := queue[i]

		injected, err := p.injector.Inject(candidate)
		if err != nil {
			return nil, fmt.Errorf("inject atom %s: %w", candidate.ID, err)
		}

		result := p.scorer.Validate(injected)
		if result.Passed {
			accepted = append(accepted, injected)
			continue
		}

		if injected.ForcedAtomic {
			// Already degraded at decomposition time; keep it and let the
			// flag drive downstream auditing.
			accepted = append(accepted, injected)
			continue
		}

		children, sinks, err := p.decomposer.Recut(injected, result.FailedCriteria)
		if err != nil {
			p.debugLog("[plan] atom %s scored %.2f (failed %v) and cannot be re-cut: %v",
				injected.ID, result.Score, result.FailedCriteria, err)
			injected.ForcedAtomic = true
			accepted = append(accepted, injected)
			continue
		}

		p.debugLog("[plan] atom %s scored %.2f (failed %v), re-cut into %d children",
			injected.ID, result.Score, result.FailedCriteria, len(children))
		remap[injected.ID] = sinks
		queue = append(queue, children...)
	}

	for _, atom := range accepted {
		atom.DependencyIDs = resolveRemap(atom.DependencyIDs, remap)
	}
	return accepted, nil
}

// resolveRemap rewrites dependency IDs through the re-cut remap until no
// entry refers to a replaced atom.
func resolveRemap(ids []string, remap map[string][]string) []string {
	if len(remap) == 0 || len(ids) == 0 {
		return ids
	}

	seen := make(map[string]bool)
	var out []string
	var visit func(id string)
	visit = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		if sinks, ok := remap[id]; ok {
			for _, sink := range sinks {
				visit(sink)
			}
			return
		}
		out = append(out, id)
	}
	for _, id := range ids {
		visit(id)
	}
	sort.Strings(out)
	return out
}
