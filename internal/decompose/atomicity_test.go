package decompose

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/ShayCichocki/fission/pkg/models"
)

// completeContext builds a context with all five sections filled, merging
// extra entries into the data section.
func completeContext(data map[string]string) models.Context {
	ctx := models.Context{
		Data:          map[string]string{"scope": "test fixture"},
		Behavior:      map[string]string{"preconditions": "inputs are set"},
		Environment:   map[string]string{"execution": "isolated"},
		Testing:       map[string]string{"assert": "completes"},
		Documentation: map[string]string{"purpose": "fixture atom"},
	}
	for k, v := range data {
		ctx.Data[k] = v
	}
	return ctx
}

func TestCriterionWeightsSumToOne(t *testing.T) {
	sum := 0.0
	for _, w := range criterionWeights {
		sum += w
	}
	if math.Abs(sum-1.0) > scoreEpsilon {
		t.Errorf("criterion weights sum to %v, want 1.0", sum)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		atom       *models.AtomicUnit
		wantScore  float64
		wantPassed bool
		wantFailed []string
	}{
		{
			name: "self-contained fragment passes",
			atom: &models.AtomicUnit{
				ID:              "a1",
				SourceFragment:  "discount = subtotal * rate",
				DeclaredOutputs: map[string]string{"discount": "money"},
				Context:         completeContext(map[string]string{"subtotal": "money", "rate": "float"}),
			},
			wantScore:  1.0,
			wantPassed: true,
		},
		{
			name: "unresolved reference fails independence",
			atom: &models.AtomicUnit{
				ID:             "a2",
				SourceFragment: "discount = subtotal * ghost",
				Context:        completeContext(map[string]string{"subtotal": "money"}),
			},
			wantScore:  0.75,
			wantFailed: []string{CriterionIndependence},
		},
		{
			name: "wall-clock read fails determinism",
			atom: &models.AtomicUnit{
				ID:             "a3",
				SourceFragment: "stamp = now()",
				Context:        completeContext(map[string]string{"now": "clock primitive"}),
			},
			wantScore:  0.80,
			wantFailed: []string{CriterionDeterminism},
		},
		{
			name: "oversized fragment fails single-purpose",
			atom: &models.AtomicUnit{
				ID: "a4",
				SourceFragment: "x1 = 1\nx2 = 1\nx3 = 1\nx4 = 1\nx5 = 1\nx6 = 1\n" +
					"x7 = 1\nx8 = 1\nx9 = 1\nx10 = 1\nx11 = 1",
				Context: completeContext(nil),
			},
			wantScore:  0.80,
			wantFailed: []string{CriterionSinglePurpose},
		},
		{
			name: "missing section fails context-completeness",
			atom: &models.AtomicUnit{
				ID:             "a5",
				SourceFragment: "x = 1",
				Context: models.Context{
					Data:          map[string]string{"scope": "fixture"},
					Behavior:      map[string]string{"preconditions": "none"},
					Environment:   map[string]string{"execution": "isolated"},
					Documentation: map[string]string{"purpose": "fixture"},
				},
			},
			wantScore:  0.85,
			wantFailed: []string{CriterionContextCompleteness},
		},
		{
			name: "undeclared mutation fails idempotency",
			atom: &models.AtomicUnit{
				ID:             "a6",
				SourceFragment: "cart.total = amount",
				Context:        completeContext(map[string]string{"cart": "Cart", "amount": "money"}),
			},
			wantScore:  0.90,
			wantFailed: []string{CriterionIdempotency},
		},
		{
			name: "declared mutation passes idempotency",
			atom: &models.AtomicUnit{
				ID:              "a7",
				SourceFragment:  "cart.total = amount",
				DeclaredOutputs: map[string]string{"cart": "Cart"},
				Context:         completeContext(map[string]string{"cart": "Cart", "amount": "money"}),
			},
			wantScore:  1.0,
			wantPassed: true,
		},
		{
			name: "effectful call fails idempotency",
			atom: &models.AtomicUnit{
				ID:             "a8",
				SourceFragment: "store(record)",
				Context:        completeContext(map[string]string{"store": "storage primitive", "record": "Record"}),
			},
			wantScore:  0.90,
			wantFailed: []string{CriterionIdempotency},
		},
		{
			name: "pure unit passes idempotency",
			atom: &models.AtomicUnit{
				ID:             "a9",
				SourceFragment: "store(record)",
				IsPure:         true,
				Context:        completeContext(map[string]string{"store": "storage primitive", "record": "Record"}),
			},
			wantScore:  1.0,
			wantPassed: true,
		},
	}

	scorer := NewScorer(0, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := scorer.Validate(tt.atom)

			if math.Abs(result.Score-tt.wantScore) > 1e-9 {
				t.Errorf("Score = %v, want %v", result.Score, tt.wantScore)
			}
			if result.Passed != tt.wantPassed {
				t.Errorf("Passed = %t, want %t (score %v)", result.Passed, tt.wantPassed, result.Score)
			}
			if !reflect.DeepEqual(result.FailedCriteria, tt.wantFailed) {
				t.Errorf("FailedCriteria = %v, want %v", result.FailedCriteria, tt.wantFailed)
			}
		})
	}
}

func TestValidate_GranularityIsInformational(t *testing.T) {
	atom := &models.AtomicUnit{
		ID:              "g1",
		SourceFragment:  "a = 1\nb = 2",
		DeclaredOutputs: map[string]string{"a": "int", "b": "int"},
		Context:         completeContext(nil),
	}

	result := NewScorer(0, 0).Validate(atom)

	if !result.Passed {
		t.Fatalf("splittable but otherwise sound atom must still pass, got score %v, failed %v",
			result.Score, result.FailedCriteria)
	}
	if len(result.FailedCriteria) != 0 {
		t.Errorf("minimal granularity must never appear in FailedCriteria, got %v", result.FailedCriteria)
	}
	if !strings.Contains(result.SuggestedFix, "could be split further") {
		t.Errorf("SuggestedFix should flag the finer cut, got %q", result.SuggestedFix)
	}
}

func TestValidate_NilAtom(t *testing.T) {
	result := NewScorer(0, 0).Validate(nil)
	if result.Passed {
		t.Error("nil atom must not pass")
	}
}

func TestNondeterministicCalls(t *testing.T) {
	fragment := "seed = random()\n" +
		"stamp = clock.now()\n" +
		"x = compute(seed)"

	got := nondeterministicCalls(fragment)
	want := []string{"clock.now", "random"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("nondeterministicCalls = %v, want %v", got, want)
	}
}

func TestMutatedRoots(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		want     []string
	}{
		{"dotted assignment", "cart.total = x", []string{"cart"}},
		{"effectful standalone call", "send(msg)", []string{"send"}},
		{"dotted effectful call names the receiver", "queue.push(job)", []string{"queue"}},
		{"captured call result is declared by its target", "x = append(list, item)", nil},
		{"plain assignment", "x = y + 1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mutatedRoots(tt.fragment); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("mutatedRoots(%q) = %v, want %v", tt.fragment, got, tt.want)
			}
		})
	}
}
