package decompose

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/ShayCichocki/fission/internal/inject"
	"github.com/ShayCichocki/fission/pkg/models"
)

// stubResolver resolves identifiers from a fixed symbol table.
type stubResolver map[string]models.ResolvedSymbol

func (r stubResolver) Resolve(name string) (models.ResolvedSymbol, bool) {
	sym, ok := r[name]
	return sym, ok
}

func newTestPlanner(resolver stubResolver) *Planner {
	return NewPlanner(New(), inject.New(resolver), NewScorer(0, 0))
}

func TestPlanner_AcceptsSimpleBranchUnit(t *testing.T) {
	unit := &models.AtomicUnit{
		ID: "unit-plan",
		SourceFragment: "if total > limit {\n" +
			"discount = total * 0.1\n" +
			"} else {\n" +
			"discount = 0\n" +
			"}\n" +
			"applyDiscount(cart, discount)",
		DeclaredInputs: map[string]string{
			"total": "money",
			"limit": "money",
			"cart":  "Cart",
		},
	}
	resolver := stubResolver{
		"applyDiscount": {Name: "applyDiscount", Kind: models.SymbolFunction, Definition: "applyDiscount(cart, amount)"},
	}
	planner := newTestPlanner(resolver)

	atoms, err := planner.Plan(unit)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	wantFragments := []string{
		"total > limit",
		"discount = total * 0.1",
		"discount = 0",
		"applyDiscount(cart, discount)",
	}
	if got := fragmentsOf(atoms); !reflect.DeepEqual(got, wantFragments) {
		t.Fatalf("Expected fragments %v, got %v", wantFragments, got)
	}

	ids := make(map[string]bool, len(atoms))
	for _, atom := range atoms {
		ids[atom.ID] = true
	}
	scorer := NewScorer(0, 0)
	for _, atom := range atoms {
		if atom.ForcedAtomic {
			t.Errorf("atom %q should not be forced atomic", atom.SourceFragment)
		}
		if !atom.Context.Complete() {
			t.Errorf("atom %q has an incomplete context", atom.SourceFragment)
		}
		if result := scorer.Validate(atom); !result.Passed {
			t.Errorf("accepted atom %q re-validates at %v (failed %v)",
				atom.SourceFragment, result.Score, result.FailedCriteria)
		}
		for _, dep := range atom.DependencyIDs {
			if !ids[dep] {
				t.Errorf("atom %q depends on %s, which is not in the plan", atom.SourceFragment, dep)
			}
		}
	}

	cond, thenArm, elseArm, merge := atoms[0], atoms[1], atoms[2], atoms[3]
	if len(cond.DependencyIDs) != 0 {
		t.Errorf("condition should have no dependencies, got %v", cond.DependencyIDs)
	}
	for _, arm := range []*models.AtomicUnit{thenArm, elseArm} {
		if !reflect.DeepEqual(arm.DependencyIDs, []string{cond.ID}) {
			t.Errorf("arm %q dependencies = %v, want [%s]", arm.SourceFragment, arm.DependencyIDs, cond.ID)
		}
	}
	wantMergeDeps := []string{thenArm.ID, elseArm.ID}
	sort.Strings(wantMergeDeps)
	if !reflect.DeepEqual(merge.DependencyIDs, wantMergeDeps) {
		t.Errorf("merge dependencies = %v, want %v", merge.DependencyIDs, wantMergeDeps)
	}
}

func TestPlanner_UnresolvedReferenceAborts(t *testing.T) {
	unit := &models.AtomicUnit{
		ID:             "unit-ghost",
		SourceFragment: "mystery = ghostCall(seed)",
	}
	planner := newTestPlanner(stubResolver{})

	atoms, err := planner.Plan(unit)
	if err == nil {
		t.Fatal("Expected an error for unresolvable references, got nil")
	}
	if atoms != nil {
		t.Errorf("Expected no atoms on failure, got %d", len(atoms))
	}

	var unresolved *inject.UnresolvedReferenceError
	if !errors.As(err, &unresolved) {
		t.Fatalf("Expected UnresolvedReferenceError, got %v", err)
	}
	if unresolved.AtomID != "unit-ghost" {
		t.Errorf("AtomID = %s, want unit-ghost", unresolved.AtomID)
	}
	if want := []string{"ghostCall", "seed"}; !reflect.DeepEqual(unresolved.Identifiers, want) {
		t.Errorf("Identifiers = %v, want %v", unresolved.Identifiers, want)
	}
}

// A rejected atom is re-cut and its dependents rewired onto the
// replacement sinks. The else arm below mutates counter without declaring
// it, fails idempotency, and splits at the data boundary; the half that
// still cannot pass is force-accepted.
func TestPlanner_RecutsRejectedAtom(t *testing.T) {
	unit := &models.AtomicUnit{
		ID: "unit-recut",
		SourceFragment: "if useCache {\n" +
			"value = cache.read(key)\n" +
			"} else {\n" +
			"counter.misses = counter.misses + 1\n" +
			"value = fetch(url)\n" +
			"}\n" +
			"publish(value)",
		DeclaredInputs: map[string]string{"useCache": "bool"},
	}
	resolver := stubResolver{
		"cache":   {Name: "cache", Kind: models.SymbolType, Definition: "read-through cache handle"},
		"key":     {Name: "key", Kind: models.SymbolConstant, Definition: "cache key for the current request"},
		"counter": {Name: "counter", Kind: models.SymbolType, Definition: "hit/miss counters"},
		"fetch":   {Name: "fetch", Kind: models.SymbolFunction, Definition: "fetch(url) retrieves the resource"},
		"url":     {Name: "url", Kind: models.SymbolConstant, Definition: "origin URL"},
		"publish": {Name: "publish", Kind: models.SymbolFunction, Definition: "publish(value) hands the value downstream"},
	}
	planner := newTestPlanner(resolver)

	atoms, err := planner.Plan(unit)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	wantFragments := []string{
		"useCache",
		"value = cache.read(key)",
		"publish(value)",
		"counter.misses = counter.misses + 1",
		"value = fetch(url)",
	}
	if got := fragmentsOf(atoms); !reflect.DeepEqual(got, wantFragments) {
		t.Fatalf("Expected fragments %v, got %v", wantFragments, got)
	}
	cond, thenArm, merge, miss, fetch := atoms[0], atoms[1], atoms[2], atoms[3], atoms[4]

	// Only the undeclared-mutation half survives as forced atomic.
	for _, atom := range []*models.AtomicUnit{cond, thenArm, merge, fetch} {
		if atom.ForcedAtomic {
			t.Errorf("atom %q should not be forced atomic", atom.SourceFragment)
		}
	}
	if !miss.ForcedAtomic {
		t.Error("counter update cannot be cut further and should be force-accepted")
	}

	ids := make(map[string]bool, len(atoms))
	for _, atom := range atoms {
		ids[atom.ID] = true
	}
	for _, atom := range atoms {
		if !atom.Context.Complete() {
			t.Errorf("atom %q has an incomplete context", atom.SourceFragment)
		}
		for _, dep := range atom.DependencyIDs {
			if !ids[dep] {
				t.Errorf("atom %q depends on %s, which is not in the plan", atom.SourceFragment, dep)
			}
		}
	}

	// Replacement halves inherit the rejected arm's dependency on the
	// condition.
	for _, atom := range []*models.AtomicUnit{thenArm, miss, fetch} {
		if !reflect.DeepEqual(atom.DependencyIDs, []string{cond.ID}) {
			t.Errorf("atom %q dependencies = %v, want [%s]", atom.SourceFragment, atom.DependencyIDs, cond.ID)
		}
	}

	// The merge no longer references the rejected arm; it waits on both
	// replacement sinks instead.
	wantMergeDeps := []string{thenArm.ID, miss.ID, fetch.ID}
	sort.Strings(wantMergeDeps)
	if !reflect.DeepEqual(merge.DependencyIDs, wantMergeDeps) {
		t.Errorf("merge dependencies = %v, want %v", merge.DependencyIDs, wantMergeDeps)
	}

	if miss.ParentID == "" || miss.ParentID == unit.ID {
		t.Errorf("re-cut child should be parented to the rejected atom, got %q", miss.ParentID)
	}
	if miss.Level != 2 || fetch.Level != 2 {
		t.Errorf("re-cut children should sit one level deeper, got levels %d and %d", miss.Level, fetch.Level)
	}
}

func TestResolveRemap_Transitive(t *testing.T) {
	remap := map[string][]string{
		"A": {"B", "C"},
		"C": {"D"},
	}
	got := resolveRemap([]string{"A", "X"}, remap)
	want := []string{"B", "D", "X"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("resolveRemap = %v, want %v", got, want)
	}
}
