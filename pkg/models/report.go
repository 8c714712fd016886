package models

import "time"

// AtomResult is the final record for one atom in a run.
type AtomResult struct {
	// AtomID identifies the atom.
	AtomID string `json:"atom_id"`
	// Wave is the wave index the atom was scheduled in.
	Wave int `json:"wave"`
	// Status is the terminal state the atom reached.
	Status AtomStatus `json:"status"`
	// Attempts is the full attempt history, empty for skipped atoms.
	Attempts []ExecutionAttempt `json:"attempts,omitempty"`
	// Error holds the terminal error message for failed atoms.
	Error string `json:"error,omitempty"`
}

// ExecutionReport enumerates every atom's final status for a run. Partial
// success is a normal, fully reported outcome.
type ExecutionReport struct {
	// RunID identifies the execution run.
	RunID string `json:"run_id"`
	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when execution settled.
	FinishedAt time.Time `json:"finished_at"`
	// Waves is the number of waves in the partition.
	Waves int `json:"waves"`
	// Results maps atom ID to its final record.
	Results map[string]*AtomResult `json:"results"`
}

// Count returns the number of atoms that ended in the given status.
func (r *ExecutionReport) Count(status AtomStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// SuccessRate returns succeeded atoms over total atoms, or 0 for an empty
// report.
func (r *ExecutionReport) SuccessRate() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	return float64(r.Count(AtomStatusSucceeded)) / float64(len(r.Results))
}

// Duration returns the wall-clock time of the run.
func (r *ExecutionReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Completed returns true if every atom reached a terminal status.
func (r *ExecutionReport) Completed() bool {
	for _, res := range r.Results {
		if !res.Status.Terminal() {
			return false
		}
	}
	return true
}
