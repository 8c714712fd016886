package executor

import (
	"sort"
	"sync"

	"github.com/ShayCichocki/fission/pkg/models"
)

// accumulator is the only shared mutable state during a wave: worker
// goroutines append their atom results through it concurrently.
type accumulator struct {
	mu     sync.Mutex
	report *models.ExecutionReport
}

func newAccumulator(report *models.ExecutionReport) *accumulator {
	return &accumulator{report: report}
}

// record stores a terminal result for one atom.
func (a *accumulator) record(res *models.AtomResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.report.Results[res.AtomID] = res
}

// result returns the recorded result for an atom, or nil if it has not
// settled.
func (a *accumulator) result(atomID string) *models.AtomResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.report.Results[atomID]
}

// succeededIDs returns the sorted IDs of every atom that has succeeded so
// far. Used for wave checkpoints.
func (a *accumulator) succeededIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var ids []string
	for id, res := range a.report.Results {
		if res.Status == models.AtomStatusSucceeded {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
