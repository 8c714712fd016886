// Package executor runs wave-partitioned atoms to completion under bounded
// concurrency, retrying failures on a fixed schedule and reporting every
// atom's terminal status.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/ShayCichocki/fission/internal/graph"
	"github.com/ShayCichocki/fission/pkg/models"
)

// Generator produces content for one atom. Implementations must be safe for
// concurrent calls on distinct atoms and must honor the context deadline.
type Generator interface {
	Generate(ctx context.Context, atom *models.AtomicUnit, params models.AttemptParameters) (models.GeneratedContent, error)
}

// Validator checks generated content against an atom's context. Same
// concurrency and deadline requirements as Generator.
type Validator interface {
	Validate(ctx context.Context, content models.GeneratedContent, atomCtx models.Context) (models.ValidationResult, error)
}

// AtomicityChecker re-scores an atom against the acceptance rubric between
// attempts. decompose.AtomicityScorer satisfies this.
type AtomicityChecker interface {
	Validate(atom *models.AtomicUnit) models.ValidationResult
}

// RevalidationMode controls what is re-checked before each retry attempt.
type RevalidationMode string

const (
	// RevalidateFull re-runs the whole atomicity rubric before a retry.
	RevalidateFull RevalidationMode = "full"
	// RevalidateContextOnly re-checks only context completeness.
	RevalidateContextOnly RevalidationMode = "context-only"
	// RevalidateOff disables re-validation between attempts.
	RevalidateOff RevalidationMode = "off"
)

// DefaultMaxConcurrency bounds in-flight atoms per wave when not configured.
const DefaultMaxConcurrency = 4

// DefaultAttemptTimeout bounds one generator or validator call when not
// configured.
const DefaultAttemptTimeout = 2 * time.Minute

// RequiredConfig contains the minimal required configuration for a
// WaveExecutor. Both collaborators are required and have no defaults.
type RequiredConfig struct {
	// Generator produces content for each atom.
	Generator Generator
	// Validator checks each atom's generated content.
	Validator Validator
}

// Option configures a WaveExecutor. Use With* functions to create Options.
type Option func(*WaveExecutor)

// WithMaxConcurrency sets the maximum number of in-flight atoms per wave.
func WithMaxConcurrency(n int) Option {
	return func(e *WaveExecutor) {
		if n > 0 {
			e.maxConcurrency = int64(n)
		}
	}
}

// WithAttemptTimeout sets the deadline for a single generate+validate
// attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(e *WaveExecutor) {
		if d > 0 {
			e.attemptTimeout = d
		}
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *WaveExecutor) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithEmitter sets the event emitter for observability.
func WithEmitter(em *Emitter) Option {
	return func(e *WaveExecutor) { e.emitter = em }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(e *WaveExecutor) { e.logger = l }
}

// WithAtomicityChecker sets the rubric used for re-validation between
// attempts.
func WithAtomicityChecker(c AtomicityChecker) Option {
	return func(e *WaveExecutor) { e.checker = c }
}

// WithRevalidation sets the re-validation mode applied before each retry.
func WithRevalidation(mode RevalidationMode) Option {
	return func(e *WaveExecutor) { e.revalidation = mode }
}

// WithCompletedAtoms pre-marks atoms as succeeded so a resumed run does not
// regenerate them.
func WithCompletedAtoms(ids []string) Option {
	return func(e *WaveExecutor) {
		for _, id := range ids {
			e.completed[id] = true
		}
	}
}

// WithRunID sets the run identifier carried on the report. Defaults to a
// fresh UUID; a resumed run passes its original ID so checkpoints and
// history line up.
func WithRunID(id string) Option {
	return func(e *WaveExecutor) {
		e.runID = id
	}
}

// WithWaveCheckpoint sets a callback invoked after each wave settles with
// the wave index and the IDs of every atom succeeded so far. Used for crash
// recovery; a nil callback disables checkpointing.
func WithWaveCheckpoint(fn func(wave int, completed []string)) Option {
	return func(e *WaveExecutor) { e.checkpoint = fn }
}

// WaveExecutor runs the waves of a dependency graph strictly in order,
// executing the atoms within one wave concurrently. Construction is the only
// mutation point; Execute may be called once per executor.
type WaveExecutor struct {
	generator      Generator
	validator      Validator
	policy         RetryPolicy
	maxConcurrency int64
	attemptTimeout time.Duration
	emitter        *Emitter
	logger         *DebugLogger
	checker        AtomicityChecker
	revalidation   RevalidationMode
	completed      map[string]bool
	checkpoint     func(wave int, completed []string)
	runID          string
}

// New creates a WaveExecutor from the required collaborators and options.
func New(req RequiredConfig, opts ...Option) (*WaveExecutor, error) {
	if req.Generator == nil {
		return nil, fmt.Errorf("executor: generator is required")
	}
	if req.Validator == nil {
		return nil, fmt.Errorf("executor: validator is required")
	}

	e := &WaveExecutor{
		generator:      req.Generator,
		validator:      req.Validator,
		policy:         NewRetryPolicy(),
		maxConcurrency: DefaultMaxConcurrency,
		attemptTimeout: DefaultAttemptTimeout,
		revalidation:   RevalidateFull,
		completed:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute runs every wave of the graph in order and returns the report. A
// cancelled run still returns a complete report, with in-flight and
// never-started atoms marked aborted, alongside the context's error.
// Already-settled results are always retained.
func (e *WaveExecutor) Execute(ctx context.Context, g *graph.DependencyGraph) (*models.ExecutionReport, error) {
	if g == nil {
		return nil, fmt.Errorf("executor: nil graph")
	}

	runID := e.runID
	if runID == "" {
		runID = uuid.New().String()
	}

	waves := g.Waves()
	report := &models.ExecutionReport{
		RunID:     runID,
		StartedAt: time.Now(),
		Waves:     len(waves),
		Results:   make(map[string]*models.AtomResult, g.Size()),
	}
	acc := newAccumulator(report)

	e.logger.Log("[executor] run %s: %d atoms in %d waves, concurrency %d",
		report.RunID, g.Size(), len(waves), e.maxConcurrency)

	// blocked holds atoms that failed or were skipped; their transitive
	// dependents must never be attempted.
	blocked := make(map[string]bool)

	for waveIdx, wave := range waves {
		if ctx.Err() != nil {
			e.abortFrom(acc, waves, waveIdx)
			break
		}

		runnable := e.settleWaveHead(acc, g, blocked, waveIdx, wave)
		e.runWave(ctx, acc, waveIdx, runnable)

		// Fold this wave's failures into the blocked set so later waves
		// skip their dependents.
		for _, atom := range runnable {
			if res := acc.result(atom.ID); res != nil && res.Status == models.AtomStatusFailed {
				blocked[atom.ID] = true
			}
		}

		if ctx.Err() != nil {
			e.abortFrom(acc, waves, waveIdx+1)
			break
		}
		if e.checkpoint != nil {
			e.checkpoint(waveIdx, acc.succeededIDs())
		}
	}

	report.FinishedAt = time.Now()
	e.logger.Log("[executor] run %s settled: %d succeeded, %d failed, %d skipped, %d aborted",
		report.RunID, report.Count(models.AtomStatusSucceeded), report.Count(models.AtomStatusFailed),
		report.Count(models.AtomStatusSkipped), report.Count(models.AtomStatusAborted))
	return report, ctx.Err()
}

// settleWaveHead records every atom in the wave that needs no attempt:
// pre-completed atoms from a resumed run and atoms blocked by an upstream
// failure. It returns the atoms that actually run.
func (e *WaveExecutor) settleWaveHead(acc *accumulator, g *graph.DependencyGraph, blocked map[string]bool, waveIdx int, wave []string) []*models.AtomicUnit {
	var runnable []*models.AtomicUnit
	for _, id := range wave {
		atom := g.Atom(id)

		if e.completed[id] {
			acc.record(&models.AtomResult{AtomID: id, Wave: waveIdx, Status: models.AtomStatusSucceeded})
			e.logger.Log("[executor] atom %s already completed, carried over", id)
			continue
		}

		if dep := firstBlockedDep(g.Dependencies(id), blocked); dep != "" {
			blocked[id] = true
			acc.record(&models.AtomResult{
				AtomID: id,
				Wave:   waveIdx,
				Status: models.AtomStatusSkipped,
				Error:  fmt.Sprintf("dependency %s did not succeed", dep),
			})
			e.emit(Event{Type: EventSkipped, AtomID: id, Wave: waveIdx, Timestamp: time.Now()})
			e.logger.Log("[executor] atom %s skipped: dependency %s did not succeed", id, dep)
			continue
		}

		runnable = append(runnable, atom)
	}
	return runnable
}

// runWave executes the runnable atoms of one wave concurrently, bounded by
// the semaphore, and returns only after every atom has settled.
func (e *WaveExecutor) runWave(ctx context.Context, acc *accumulator, waveIdx int, runnable []*models.AtomicUnit) {
	if len(runnable) == 0 {
		return
	}
	e.logger.Log("[executor] wave %d: running %d atoms", waveIdx, len(runnable))

	sem := semaphore.NewWeighted(e.maxConcurrency)
	done := make(chan struct{}, len(runnable))
	for _, atom := range runnable {
		atom := atom
		if err := sem.Acquire(ctx, 1); err != nil {
			// Cancelled while waiting for a slot: the atom never started.
			acc.record(&models.AtomResult{AtomID: atom.ID, Wave: waveIdx, Status: models.AtomStatusAborted})
			done <- struct{}{}
			continue
		}
		go func() {
			defer sem.Release(1)
			defer func() { done <- struct{}{} }()
			acc.record(e.runAtom(ctx, atom, waveIdx))
		}()
	}
	for range runnable {
		<-done
	}
}

// runAtom drives one atom through its attempt loop until success, retry
// exhaustion, or cancellation.
func (e *WaveExecutor) runAtom(ctx context.Context, atom *models.AtomicUnit, waveIdx int) *models.AtomResult {
	result := &models.AtomResult{AtomID: atom.ID, Wave: waveIdx}
	e.emit(Event{Type: EventStarted, AtomID: atom.ID, Wave: waveIdx, Attempt: 1, Timestamp: time.Now()})

	for {
		action := e.policy.NextAttempt(result.Attempts)
		if !action.Retry {
			result.Status = models.AtomStatusFailed
			result.Error = action.Reason
			e.emit(Event{Type: EventFailed, AtomID: atom.ID, Wave: waveIdx, Attempt: len(result.Attempts), Timestamp: time.Now()})
			e.logger.Log("[executor] atom %s failed after %d attempts: %s", atom.ID, len(result.Attempts), action.Reason)
			return result
		}

		if len(result.Attempts) > 0 {
			if diag, ok := e.revalidate(atom); !ok {
				result.Attempts = append(result.Attempts, models.ExecutionAttempt{
					AttemptNumber: len(result.Attempts) + 1,
					Parameters:    action.Parameters,
					StartedAt:     time.Now(),
					FinishedAt:    time.Now(),
					Outcome:       models.OutcomeGeneratorError,
					Diagnostics:   diag,
					NonRetryable:  true,
				})
				result.Status = models.AtomStatusFailed
				result.Error = diag
				e.emit(Event{Type: EventFailed, AtomID: atom.ID, Wave: waveIdx, Attempt: len(result.Attempts), Timestamp: time.Now()})
				e.logger.Log("[executor] atom %s failed re-validation: %s", atom.ID, diag)
				return result
			}
		}

		attempt := e.attempt(ctx, atom, len(result.Attempts)+1, action.Parameters)
		result.Attempts = append(result.Attempts, attempt)

		switch attempt.Outcome {
		case models.OutcomeSuccess:
			result.Status = models.AtomStatusSucceeded
			e.emit(Event{Type: EventSucceeded, AtomID: atom.ID, Wave: waveIdx, Attempt: attempt.AttemptNumber, Timestamp: time.Now()})
			e.logger.Log("[executor] atom %s succeeded on attempt %d", atom.ID, attempt.AttemptNumber)
			return result
		case models.OutcomeCancelled:
			result.Status = models.AtomStatusAborted
			result.Error = attempt.Diagnostics
			e.logger.Log("[executor] atom %s aborted on attempt %d", atom.ID, attempt.AttemptNumber)
			return result
		}
		// Retryable outcome: loop back to the policy.
	}
}

// attempt runs one generate+validate cycle under the attempt timeout and
// classifies the outcome.
func (e *WaveExecutor) attempt(ctx context.Context, atom *models.AtomicUnit, number int, params models.AttemptParameters) models.ExecutionAttempt {
	attempt := models.ExecutionAttempt{
		AttemptNumber: number,
		Parameters:    params,
		StartedAt:     time.Now(),
	}
	actx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
	defer cancel()

	content, err := e.generator.Generate(actx, atom, params)
	if err != nil {
		attempt.FinishedAt = time.Now()
		attempt.Outcome, attempt.NonRetryable = classify(ctx, actx, err)
		attempt.Diagnostics = fmt.Sprintf("generator: %v", err)
		return attempt
	}

	verdict, err := e.validator.Validate(actx, content, atom.Context)
	attempt.FinishedAt = time.Now()
	if err != nil {
		attempt.Outcome, attempt.NonRetryable = classify(ctx, actx, err)
		attempt.Diagnostics = fmt.Sprintf("validator: %v", err)
		return attempt
	}
	if !verdict.Passed {
		attempt.Outcome = models.OutcomeValidationFailed
		attempt.FailedCriteria = verdict.FailedCriteria
		attempt.Diagnostics = verdict.SuggestedFix
		return attempt
	}

	attempt.Outcome = models.OutcomeSuccess
	return attempt
}

// revalidate re-checks the atom against the configured re-validation mode
// before a retry. A failing check is a contract violation, not a transient
// miss, so the atom must not burn further attempts.
func (e *WaveExecutor) revalidate(atom *models.AtomicUnit) (string, bool) {
	switch e.revalidation {
	case RevalidateOff:
		return "", true
	case RevalidateContextOnly:
		if !atom.Context.Complete() {
			return "atom context is no longer complete", false
		}
		return "", true
	default:
		if e.checker == nil {
			return "", true
		}
		verdict := e.checker.Validate(atom)
		if !verdict.Passed {
			return fmt.Sprintf("atom no longer satisfies the atomicity rubric (score %.2f, failed: %v)",
				verdict.Score, verdict.FailedCriteria), false
		}
		return "", true
	}
}

// abortFrom marks every not-yet-settled atom in waves[from:] aborted. Called
// after external cancellation so the report still enumerates every atom.
func (e *WaveExecutor) abortFrom(acc *accumulator, waves [][]string, from int) {
	for waveIdx := from; waveIdx < len(waves); waveIdx++ {
		for _, id := range waves[waveIdx] {
			if acc.result(id) == nil {
				acc.record(&models.AtomResult{AtomID: id, Wave: waveIdx, Status: models.AtomStatusAborted})
			}
		}
	}
}

func (e *WaveExecutor) emit(event Event) {
	if e.emitter != nil {
		e.emitter.Emit(event)
	}
}

// classify maps a collaborator error to an attempt outcome. Cancellation of
// the run context wins over the per-attempt deadline.
func classify(runCtx, attemptCtx context.Context, err error) (models.AttemptOutcome, bool) {
	switch {
	case runCtx.Err() != nil:
		return models.OutcomeCancelled, false
	case errors.Is(err, context.DeadlineExceeded) || attemptCtx.Err() == context.DeadlineExceeded:
		return models.OutcomeTimeout, false
	case errors.Is(err, ErrNonRetryable):
		return models.OutcomeGeneratorError, true
	default:
		return models.OutcomeGeneratorError, false
	}
}

// firstBlockedDep returns the first dependency present in the blocked set,
// or an empty string when none is.
func firstBlockedDep(deps []string, blocked map[string]bool) string {
	for _, dep := range deps {
		if blocked[dep] {
			return dep
		}
	}
	return ""
}
