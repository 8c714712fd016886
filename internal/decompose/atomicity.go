package decompose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/fission/internal/inject"
	"github.com/ShayCichocki/fission/pkg/models"
)

// Criterion names reported through ValidationResult.FailedCriteria.
const (
	CriterionIndependence        = "independence"
	CriterionDeterminism         = "determinism"
	CriterionSinglePurpose       = "single-purpose"
	CriterionContextCompleteness = "context-completeness"
	CriterionIdempotency         = "idempotency"
	CriterionMinimalGranularity  = "minimal-granularity"
)

// criterionWeights are the fixed rubric weights. They sum to 1.0.
var criterionWeights = map[string]float64{
	CriterionIndependence:        0.25,
	CriterionDeterminism:         0.20,
	CriterionSinglePurpose:       0.20,
	CriterionContextCompleteness: 0.15,
	CriterionIdempotency:         0.10,
	CriterionMinimalGranularity:  0.10,
}

// AcceptanceThreshold is the minimum atomicity score for acceptance.
const AcceptanceThreshold = 0.95

const scoreEpsilon = 1e-9

// Default single-purpose thresholds, shared by the Decomposer's cheap
// heuristic and the scorer.
const (
	defaultMaxComplexity = 3.0
	defaultMaxSize       = 10
)

// nondeterministicPrimitives are call names whose results vary between
// runs unless taken as declared inputs instead.
var nondeterministicPrimitives = map[string]bool{
	"random": true, "rand": true, "randint": true, "shuffle": true,
	"now": true, "clock": true, "today": true, "timestamp": true,
	"uuid": true, "getenv": true,
}

// effectfulPrimitives are call names that mutate state outside the atom.
var effectfulPrimitives = map[string]bool{
	"send": true, "write": true, "insert": true, "update": true,
	"delete": true, "push": true, "append": true, "store": true,
	"persist": true, "emit": true, "print": true, "log": true,
}

// AtomicityScorer scores candidate atoms against the acceptance rubric.
type AtomicityScorer struct {
	maxComplexity float64
	maxSize       int
}

// NewScorer creates a scorer. Non-positive arguments fall back to the
// default single-purpose thresholds.
func NewScorer(maxComplexity float64, maxSize int) *AtomicityScorer {
	s := &AtomicityScorer{maxComplexity: maxComplexity, maxSize: maxSize}
	if s.maxComplexity <= 0 {
		s.maxComplexity = defaultMaxComplexity
	}
	if s.maxSize <= 0 {
		s.maxSize = defaultMaxSize
	}
	return s
}

// Validate scores an atom against the six-criterion rubric and reports
// every failed criterion by name. Minimal granularity is informational:
// its weight is always granted and findings surface only in SuggestedFix,
// so it never blocks acceptance on its own.
func (s *AtomicityScorer) Validate(atom *models.AtomicUnit) models.ValidationResult {
	result := models.ValidationResult{}
	if atom == nil {
		result.FailedCriteria = []string{CriterionIndependence}
		result.SuggestedFix = "nil atom"
		return result
	}

	score := 0.0
	grade := func(criterion string, ok bool, detail string) {
		if ok {
			score += criterionWeights[criterion]
			return
		}
		result.FailedCriteria = append(result.FailedCriteria, criterion)
		result.SuggestedFix = appendFix(result.SuggestedFix, detail)
	}

	ok, detail := s.checkIndependence(atom)
	grade(CriterionIndependence, ok, detail)

	ok, detail = s.checkDeterminism(atom)
	grade(CriterionDeterminism, ok, detail)

	ok, detail = s.checkSinglePurpose(atom)
	grade(CriterionSinglePurpose, ok, detail)

	ok, detail = s.checkContextCompleteness(atom)
	grade(CriterionContextCompleteness, ok, detail)

	ok, detail = s.checkIdempotency(atom)
	grade(CriterionIdempotency, ok, detail)

	score += criterionWeights[CriterionMinimalGranularity]
	if finding := granularityFinding(atom); finding != "" {
		result.SuggestedFix = appendFix(result.SuggestedFix, finding)
	}

	result.Score = score
	result.Passed = score >= AcceptanceThreshold-scoreEpsilon
	return result
}

// checkIndependence requires every free identifier in the fragment to
// resolve within the atom's context. Ambient state shows up here as a
// reference the context cannot answer.
func (s *AtomicityScorer) checkIndependence(atom *models.AtomicUnit) (bool, string) {
	var missing []string
	for _, name := range inject.FreeIdentifiers(atom.SourceFragment) {
		if !atom.Context.Resolves(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return true, ""
	}
	return false, "references outside context: " + strings.Join(missing, ", ")
}

// checkDeterminism rejects fragments that call known non-deterministic
// primitives; their results have to arrive as declared inputs instead.
func (s *AtomicityScorer) checkDeterminism(atom *models.AtomicUnit) (bool, string) {
	calls := nondeterministicCalls(atom.SourceFragment)
	if len(calls) == 0 {
		return true, ""
	}
	return false, "non-deterministic calls: " + strings.Join(calls, ", ") + "; take their results as declared inputs"
}

// checkSinglePurpose is the composite size measure: structural complexity
// and line count both within threshold.
func (s *AtomicityScorer) checkSinglePurpose(atom *models.AtomicUnit) (bool, string) {
	complexity := EstimateComplexity(atom.SourceFragment)
	lines := CountLines(atom.SourceFragment)
	if complexity <= s.maxComplexity && lines <= s.maxSize {
		return true, ""
	}
	return false, fmt.Sprintf("complexity %.1f (max %.1f), %d lines (max %d)",
		complexity, s.maxComplexity, lines, s.maxSize)
}

func (s *AtomicityScorer) checkContextCompleteness(atom *models.AtomicUnit) (bool, string) {
	if atom.Context.Complete() {
		return true, ""
	}
	return false, "context is missing one or more sections"
}

// checkIdempotency fails atoms that mutate external state without the
// mutation being declared: every mutated root must appear in
// DeclaredOutputs unless the unit is marked pure.
func (s *AtomicityScorer) checkIdempotency(atom *models.AtomicUnit) (bool, string) {
	if atom.IsPure {
		return true, ""
	}
	var undeclared []string
	for _, root := range mutatedRoots(atom.SourceFragment) {
		if _, ok := atom.DeclaredOutputs[root]; !ok {
			undeclared = append(undeclared, root)
		}
	}
	if len(undeclared) == 0 {
		return true, ""
	}
	return false, "undeclared external mutations: " + strings.Join(undeclared, ", ")
}

// granularityFinding reports whether the atom could plausibly be split
// further. Informational only.
func granularityFinding(atom *models.AtomicUnit) string {
	for _, cut := range FindCutPoints(atom.SourceFragment) {
		if len(applyCut(atom.SourceFragment, cut)) > 1 {
			return fmt.Sprintf("could be split further (%s cut at line %d)", cut.Kind, cut.Span.Start+1)
		}
	}
	return ""
}

// nondeterministicCalls returns the offending call names in a fragment,
// sorted and deduplicated.
func nondeterministicCalls(fragment string) []string {
	seen := make(map[string]bool)
	var calls []string
	for _, raw := range splitLines(fragment) {
		for _, site := range callSites(cleanLine(raw)) {
			parts := strings.Split(site, ".")
			leaf := strings.ToLower(parts[len(parts)-1])
			if nondeterministicPrimitives[leaf] && !seen[site] {
				seen[site] = true
				calls = append(calls, site)
			}
		}
	}
	sort.Strings(calls)
	return calls
}

// mutatedRoots lists external state a fragment mutates: roots of dotted
// assignment targets plus standalone calls to effectful primitives. A call
// whose result is captured by an assignment does not count; the assignment
// target declares it.
func mutatedRoots(fragment string) []string {
	seen := make(map[string]bool)
	var roots []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			roots = append(roots, name)
		}
	}

	for _, raw := range splitLines(fragment) {
		line := strings.TrimSpace(cleanLine(raw))

		if idx := strings.Index(line, " = "); idx > 0 {
			lhs := strings.TrimSpace(line[:idx])
			if dot := strings.IndexByte(lhs, '.'); dot > 0 && identChain.MatchString(lhs) {
				add(lhs[:dot])
			}
			continue
		}

		if !callPattern.MatchString(line) {
			continue
		}
		name := line[:strings.IndexByte(line, '(')]
		parts := strings.Split(name, ".")
		leaf := strings.ToLower(parts[len(parts)-1])
		if effectfulPrimitives[leaf] {
			if len(parts) > 1 {
				add(parts[0])
			} else {
				add(leaf)
			}
		}
	}
	sort.Strings(roots)
	return roots
}

func appendFix(existing, detail string) string {
	if detail == "" {
		return existing
	}
	if existing == "" {
		return detail
	}
	return existing + "; " + detail
}
