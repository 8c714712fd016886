package models

import "time"

// AttemptOutcome classifies how a single execution attempt ended.
type AttemptOutcome string

const (
	// OutcomeSuccess indicates generation and validation both passed.
	OutcomeSuccess AttemptOutcome = "success"
	// OutcomeValidationFailed indicates the validator rejected the
	// generated content.
	OutcomeValidationFailed AttemptOutcome = "validation_failed"
	// OutcomeGeneratorError indicates the generator returned an error.
	OutcomeGeneratorError AttemptOutcome = "generator_error"
	// OutcomeTimeout indicates the attempt exceeded its deadline.
	OutcomeTimeout AttemptOutcome = "timeout"
	// OutcomeCancelled indicates the run was cancelled mid-attempt.
	OutcomeCancelled AttemptOutcome = "cancelled"
)

// Valid returns true if the outcome is a known value.
func (o AttemptOutcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeValidationFailed, OutcomeGeneratorError,
		OutcomeTimeout, OutcomeCancelled:
		return true
	default:
		return false
	}
}

// Retryable returns true if the outcome counts against the retry budget
// rather than ending the atom outright.
func (o AttemptOutcome) Retryable() bool {
	switch o {
	case OutcomeValidationFailed, OutcomeGeneratorError, OutcomeTimeout:
		return true
	default:
		return false
	}
}

// AttemptParameters is the knob bundle handed to the generator for one
// attempt. The executor treats it as opaque; only the retry policy produces
// it and only the generator interprets it.
type AttemptParameters struct {
	// Exploration is a bounded creativity knob in [0,1]. Later attempts
	// narrow toward conservative behavior.
	Exploration float64 `json:"exploration"`
	// Guidance carries corrective feedback folded in from the previous
	// attempt's failed criteria and diagnostics.
	Guidance []string `json:"guidance,omitempty"`
}

// ExecutionAttempt records one try at generating and validating an atom.
type ExecutionAttempt struct {
	// AttemptNumber is 1-based.
	AttemptNumber int `json:"attempt_number"`
	// Parameters is the knob bundle used for this attempt.
	Parameters AttemptParameters `json:"parameters"`
	// StartedAt is when the attempt began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the attempt ended.
	FinishedAt time.Time `json:"finished_at"`
	// Outcome classifies how the attempt ended.
	Outcome AttemptOutcome `json:"outcome"`
	// Diagnostics holds the error or validator feedback for this attempt.
	Diagnostics string `json:"diagnostics,omitempty"`
	// FailedCriteria names the validation criteria that failed, carried
	// structurally so the retry policy can fold them into the next
	// attempt's parameters.
	FailedCriteria []string `json:"failed_criteria,omitempty"`
	// NonRetryable marks a contract violation that must not be retried.
	NonRetryable bool `json:"non_retryable,omitempty"`
}

// Duration returns the elapsed time of the attempt.
func (a ExecutionAttempt) Duration() time.Duration {
	return a.FinishedAt.Sub(a.StartedAt)
}

// ValidationResult is produced by the atomicity scorer before execution and
// by the external validator collaborator after generation.
type ValidationResult struct {
	// Passed indicates acceptance.
	Passed bool `json:"passed"`
	// Score is the weighted composite in [0,1].
	Score float64 `json:"score"`
	// FailedCriteria names the criteria that did not hold.
	FailedCriteria []string `json:"failed_criteria,omitempty"`
	// SuggestedFix is optional corrective guidance.
	SuggestedFix string `json:"suggested_fix,omitempty"`
}

// GeneratedContent is the opaque product of the generator collaborator.
type GeneratedContent struct {
	// AtomID is the atom this content was generated for.
	AtomID string `json:"atom_id"`
	// Content is the generated payload.
	Content string `json:"content"`
	// Model optionally names the producer for auditing.
	Model string `json:"model,omitempty"`
}
