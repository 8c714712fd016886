package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/fission/pkg/models"
)

// RuleValidator is the shipped deterministic validator: it checks generated
// content against the atom's declared interface without calling any model.
// Satisfies executor.Validator and is safe for concurrent use.
type RuleValidator struct {
	// MinLength rejects content shorter than this many characters once
	// trimmed. Zero means any non-empty content passes the length rule.
	MinLength int
}

// NewRuleValidator creates a validator with the default rules.
func NewRuleValidator() *RuleValidator {
	return &RuleValidator{}
}

// Validate applies the rules and returns a verdict with per-rule failed
// criteria. The context argument is accepted for interface parity; rule
// checks never block.
func (v *RuleValidator) Validate(_ context.Context, content models.GeneratedContent, atomCtx models.Context) (models.ValidationResult, error) {
	var failed []string
	var fixes []string

	trimmed := strings.TrimSpace(content.Content)
	if trimmed == "" {
		failed = append(failed, "non_empty")
		fixes = append(fixes, "produce non-empty content")
	} else if v.MinLength > 0 && len(trimmed) < v.MinLength {
		failed = append(failed, "min_length")
		fixes = append(fixes, fmt.Sprintf("content is %d characters, need at least %d", len(trimmed), v.MinLength))
	}

	// Every declared output must be mentioned: content that never names an
	// output cannot be producing it.
	for name := range atomCtx.Behavior {
		if !strings.HasPrefix(name, "produces:") {
			continue
		}
		output := strings.TrimPrefix(name, "produces:")
		if trimmed != "" && !strings.Contains(content.Content, output) {
			failed = append(failed, "output_referenced:"+output)
			fixes = append(fixes, fmt.Sprintf("declared output %q never appears in the content", output))
		}
	}

	if len(failed) > 0 {
		return models.ValidationResult{
			Passed:         false,
			Score:          score(failed),
			FailedCriteria: failed,
			SuggestedFix:   strings.Join(fixes, "; "),
		}, nil
	}
	return models.ValidationResult{Passed: true, Score: 1.0}, nil
}

// score maps the number of failed rules onto [0,1).
func score(failed []string) float64 {
	s := 1.0 - 0.5*float64(len(failed))
	if s < 0 {
		return 0
	}
	return s
}
