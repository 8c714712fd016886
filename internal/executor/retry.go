package executor

import (
	"errors"
	"fmt"

	"github.com/ShayCichocki/fission/pkg/models"
)

// ErrRetryExhausted is the terminal condition for an atom whose attempt
// budget is spent.
var ErrRetryExhausted = errors.New("retry budget exhausted")

// ErrNonRetryable classifies a failure as a contract violation that must
// not consume further attempts. Generators and validators wrap it to stop
// the retry loop immediately.
var ErrNonRetryable = errors.New("non-retryable failure")

// NextAction tells the executor whether to try an atom again.
type NextAction struct {
	// Retry indicates another attempt should run.
	Retry bool
	// Parameters is the knob bundle for the next attempt, set when Retry
	// is true.
	Parameters models.AttemptParameters
	// Reason explains the give-up, set when Retry is false.
	Reason string
}

// RetryPolicy decides the next action from an atom's attempt history. A
// policy must be a pure function of the history, holding no state between
// calls, so runs replay deterministically.
type RetryPolicy interface {
	NextAttempt(history []models.ExecutionAttempt) NextAction
}

// ScheduledRetryPolicy retries on a fixed exploration schedule with a hard
// attempt cap. Later attempts narrow toward conservative behavior; the
// schedule clamps at its last entry when the cap exceeds its length.
type ScheduledRetryPolicy struct {
	maxAttempts int
	schedule    []float64
}

// NewRetryPolicy returns the default policy: up to 4 attempts with
// exploration 0.7, 0.5, 0.3, 0.3.
func NewRetryPolicy() *ScheduledRetryPolicy {
	return &ScheduledRetryPolicy{
		maxAttempts: 4,
		schedule:    []float64{0.7, 0.5, 0.3, 0.3},
	}
}

// NewScheduledRetryPolicy builds a policy from an explicit cap and
// exploration schedule. Non-positive caps and empty schedules fall back to
// the defaults.
func NewScheduledRetryPolicy(maxAttempts int, schedule []float64) *ScheduledRetryPolicy {
	p := NewRetryPolicy()
	if maxAttempts > 0 {
		p.maxAttempts = maxAttempts
	}
	if len(schedule) > 0 {
		p.schedule = append([]float64(nil), schedule...)
	}
	return p
}

// MaxAttempts returns the attempt cap.
func (p *ScheduledRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// NextAttempt inspects the history and either hands back parameters for
// one more attempt or gives up. Cancelled and non-retryable attempts give
// up immediately regardless of remaining budget.
func (p *ScheduledRetryPolicy) NextAttempt(history []models.ExecutionAttempt) NextAction {
	if len(history) > 0 {
		last := history[len(history)-1]
		if last.Outcome == models.OutcomeCancelled {
			return NextAction{Reason: "cancelled mid-attempt"}
		}
		if last.NonRetryable {
			return NextAction{Reason: fmt.Sprintf("%v: %s", ErrNonRetryable, last.Diagnostics)}
		}
		if !last.Outcome.Retryable() {
			return NextAction{Reason: fmt.Sprintf("outcome %s is not retryable", last.Outcome)}
		}
	}
	if len(history) >= p.maxAttempts {
		return NextAction{Reason: fmt.Sprintf("%v: %d attempts", ErrRetryExhausted, len(history))}
	}

	idx := len(history)
	if idx >= len(p.schedule) {
		idx = len(p.schedule) - 1
	}
	return NextAction{
		Retry: true,
		Parameters: models.AttemptParameters{
			Exploration: p.schedule[idx],
			Guidance:    guidanceFrom(history),
		},
	}
}

// guidanceFrom folds the previous attempt's failed criteria and
// diagnostics into corrective guidance for the next attempt.
func guidanceFrom(history []models.ExecutionAttempt) []string {
	if len(history) == 0 {
		return nil
	}
	last := history[len(history)-1]
	var guidance []string
	for _, criterion := range last.FailedCriteria {
		guidance = append(guidance, "address failed criterion: "+criterion)
	}
	if last.Diagnostics != "" {
		guidance = append(guidance, last.Diagnostics)
	}
	return guidance
}
