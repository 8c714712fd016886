package decompose

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/ShayCichocki/fission/pkg/models"
)

func TestDecompose_StraightLineFragmentStaysWhole(t *testing.T) {
	unit := &models.AtomicUnit{
		ID: "unit-1",
		SourceFragment: "subtotal = price * quantity\n" +
			"tax = subtotal * taxRate\n" +
			"total = subtotal + tax",
		DeclaredInputs:  map[string]string{"price": "money", "quantity": "int", "taxRate": "float"},
		DeclaredOutputs: map[string]string{"total": "money"},
	}

	atoms, err := New().Decompose(unit)
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}

	if len(atoms) != 1 {
		t.Fatalf("Expected exactly 1 atom, got %d", len(atoms))
	}
	atom := atoms[0]
	if atom.ForcedAtomic {
		t.Error("straight-line fragment under thresholds must not be force-emitted")
	}
	if atom.ID != "unit-1" {
		t.Errorf("single-atom result should keep the unit ID, got %q", atom.ID)
	}
	if len(atom.DependencyIDs) != 0 {
		t.Errorf("single atom should have no dependencies, got %v", atom.DependencyIDs)
	}
	if !reflect.DeepEqual(atom.DeclaredInputs, unit.DeclaredInputs) {
		t.Errorf("declared inputs not preserved: %v", atom.DeclaredInputs)
	}
}

func TestDecompose_BranchYieldsConditionArmsAndMerge(t *testing.T) {
	unit := &models.AtomicUnit{
		ID: "unit-2",
		SourceFragment: "if total > limit {\n" +
			"discount = total * 0.1\n" +
			"} else {\n" +
			"discount = 0\n" +
			"}\n" +
			"applyDiscount(cart, discount)",
		DeclaredInputs: map[string]string{"total": "money", "limit": "money", "cart": "Cart"},
	}

	atoms, err := New().Decompose(unit)
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}

	if len(atoms) != 4 {
		t.Fatalf("Expected 4 atoms (condition, then, else, merge), got %d", len(atoms))
	}

	cond, then, other, merge := atoms[0], atoms[1], atoms[2], atoms[3]

	if cond.SourceFragment != "total > limit" {
		t.Errorf("condition fragment = %q", cond.SourceFragment)
	}
	if len(cond.DependencyIDs) != 0 {
		t.Errorf("condition should have no dependencies, got %v", cond.DependencyIDs)
	}
	if then.SourceFragment != "discount = total * 0.1" {
		t.Errorf("then fragment = %q", then.SourceFragment)
	}
	for _, arm := range []*models.AtomicUnit{then, other} {
		if !reflect.DeepEqual(arm.DependencyIDs, []string{cond.ID}) {
			t.Errorf("arm %q should depend on the condition, got %v", arm.SourceFragment, arm.DependencyIDs)
		}
	}

	wantMergeDeps := []string{then.ID, other.ID}
	sort.Strings(wantMergeDeps)
	if !reflect.DeepEqual(merge.DependencyIDs, wantMergeDeps) {
		t.Errorf("merge deps = %v, want %v", merge.DependencyIDs, wantMergeDeps)
	}
	if merge.SourceFragment != "applyDiscount(cart, discount)" {
		t.Errorf("merge fragment = %q", merge.SourceFragment)
	}
	if merge.DeclaredInputs["discount"] == "" {
		t.Errorf("merge should take discount from an upstream arm, inputs = %v", merge.DeclaredInputs)
	}

	for _, atom := range atoms {
		if atom.ForcedAtomic {
			t.Errorf("atom %q unexpectedly force-emitted", atom.SourceFragment)
		}
		if atom.Level != 1 {
			t.Errorf("atom %q level = %d, want 1", atom.SourceFragment, atom.Level)
		}
		if atom.ParentID != "unit-2" {
			t.Errorf("atom %q parent = %q, want unit-2", atom.SourceFragment, atom.ParentID)
		}
	}
}

func TestDecompose_LoopSeparatesControlFromBody(t *testing.T) {
	unit := &models.AtomicUnit{
		ID: "unit-3",
		SourceFragment: "sum = 0\n" +
			"for item in items {\n" +
			"sum = sum + item.price\n" +
			"}\n" +
			"report = render(sum)",
		DeclaredInputs: map[string]string{"items": "list"},
	}

	atoms, err := New().Decompose(unit)
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}

	wantFragments := []string{
		"sum = 0",
		"for item in items",
		"sum = sum + item.price",
		"report = render(sum)",
	}
	if len(atoms) != len(wantFragments) {
		t.Fatalf("Expected %d atoms, got %d", len(wantFragments), len(atoms))
	}
	for i, want := range wantFragments {
		if atoms[i].SourceFragment != want {
			t.Errorf("atom %d fragment = %q, want %q", i, atoms[i].SourceFragment, want)
		}
	}

	// prefix <- control <- body <- merge, one edge each
	for i := 1; i < len(atoms); i++ {
		want := []string{atoms[i-1].ID}
		if !reflect.DeepEqual(atoms[i].DependencyIDs, want) {
			t.Errorf("atom %d deps = %v, want %v", i, atoms[i].DependencyIDs, want)
		}
	}
}

func TestDecompose_CallIsolatedWhenOverThreshold(t *testing.T) {
	unit := &models.AtomicUnit{
		ID: "unit-4",
		SourceFragment: "validate(order)\n" +
			"reserve(order)\n" +
			"charge(order)\n" +
			"confirm(order)\n" +
			"notify(order)",
	}

	atoms, err := New().Decompose(unit)
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}

	if len(atoms) != 2 {
		t.Fatalf("Expected 2 atoms, got %d", len(atoms))
	}
	if atoms[0].SourceFragment != "validate(order)" {
		t.Errorf("first atom = %q, want the isolated call", atoms[0].SourceFragment)
	}
	if !reflect.DeepEqual(atoms[1].DependencyIDs, []string{atoms[0].ID}) {
		t.Errorf("remainder should run after the isolated call, deps = %v", atoms[1].DependencyIDs)
	}
}

func TestDecompose_NoCutAvailableForcesAtomic(t *testing.T) {
	// Eleven chained assignments: over the size threshold, but every
	// statement shares data with the next, so no boundary cut applies.
	var lines []string
	lines = append(lines, "v0 = seed")
	for i := 1; i <= 10; i++ {
		lines = append(lines, fmt.Sprintf("v%d = v%d + 1", i, i-1))
	}
	unit := &models.AtomicUnit{ID: "unit-5", SourceFragment: strings.Join(lines, "\n")}

	atoms, err := New().Decompose(unit)
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}

	if len(atoms) != 1 {
		t.Fatalf("Expected 1 atom, got %d", len(atoms))
	}
	if !atoms[0].ForcedAtomic {
		t.Error("uncuttable over-threshold fragment must be flagged ForcedAtomic")
	}
}

func TestDecompose_DepthLimitForcesAtomic(t *testing.T) {
	unit := &models.AtomicUnit{
		ID: "unit-6",
		SourceFragment: "if a {\n" +
			"if b {\n" +
			"if c {\n" +
			"x = 1\n" +
			"}\n" +
			"}\n" +
			"}",
	}

	atoms, err := New(WithMaxDepth(2)).Decompose(unit)
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}

	var forced *models.AtomicUnit
	for _, atom := range atoms {
		if atom.ForcedAtomic {
			if forced != nil {
				t.Fatalf("more than one forced atom: %q and %q", forced.SourceFragment, atom.SourceFragment)
			}
			forced = atom
		}
	}
	if forced == nil {
		t.Fatal("expected a forced atom at the depth limit")
	}
	if forced.Level != 2 {
		t.Errorf("forced atom level = %d, want 2", forced.Level)
	}
	if !strings.HasPrefix(forced.SourceFragment, "if c {") {
		t.Errorf("forced atom fragment = %q, want the innermost branch", forced.SourceFragment)
	}
}

func TestDecompose_Deterministic(t *testing.T) {
	fragment := "if total > limit {\n" +
		"discount = total * 0.1\n" +
		"} else {\n" +
		"discount = 0\n" +
		"}\n" +
		"applyDiscount(cart, discount)"

	first, err := New().Decompose(&models.AtomicUnit{ID: "run-a", SourceFragment: fragment})
	if err != nil {
		t.Fatalf("first Decompose failed: %v", err)
	}
	second, err := New().Decompose(&models.AtomicUnit{ID: "run-b", SourceFragment: fragment})
	if err != nil {
		t.Fatalf("second Decompose failed: %v", err)
	}

	a := structuralShape(t, first)
	b := structuralShape(t, second)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("decomposition is not structurally deterministic:\n%v\n%v", a, b)
	}
}

// structuralShape renders atoms id-independently: dependency edges become
// positions in the emit order.
func structuralShape(t *testing.T, atoms []*models.AtomicUnit) []string {
	t.Helper()
	index := make(map[string]int, len(atoms))
	for i, atom := range atoms {
		index[atom.ID] = i
	}
	shape := make([]string, len(atoms))
	for i, atom := range atoms {
		deps := make([]int, 0, len(atom.DependencyIDs))
		for _, dep := range atom.DependencyIDs {
			pos, ok := index[dep]
			if !ok {
				t.Fatalf("atom %s depends on unknown id %s", atom.ID, dep)
			}
			deps = append(deps, pos)
		}
		sort.Ints(deps)
		shape[i] = fmt.Sprintf("level=%d forced=%t deps=%v fragment=%q",
			atom.Level, atom.ForcedAtomic, deps, atom.SourceFragment)
	}
	return shape
}

func TestDecompose_EmptyFragment(t *testing.T) {
	if _, err := New().Decompose(&models.AtomicUnit{ID: "u", SourceFragment: "  \n "}); err == nil {
		t.Error("expected error for empty fragment")
	}
	if _, err := New().Decompose(nil); err == nil {
		t.Error("expected error for nil unit")
	}
}

func TestRecut_BranchAtom(t *testing.T) {
	atom := &models.AtomicUnit{
		ID:    "rejected",
		Level: 3,
		SourceFragment: "if flag {\n" +
			"y = 1\n" +
			"} else {\n" +
			"y = 2\n" +
			"}",
		DependencyIDs: []string{"upstream-1"},
	}

	children, sinks, err := New().Recut(atom, nil)
	if err != nil {
		t.Fatalf("Recut failed: %v", err)
	}

	if len(children) != 3 {
		t.Fatalf("Expected 3 children, got %d", len(children))
	}
	cond := children[0]
	if cond.SourceFragment != "flag" {
		t.Errorf("first child = %q, want condition", cond.SourceFragment)
	}
	if !reflect.DeepEqual(cond.DependencyIDs, []string{"upstream-1"}) {
		t.Errorf("condition should inherit the rejected atom's dependencies, got %v", cond.DependencyIDs)
	}

	wantSinks := []string{children[1].ID, children[2].ID}
	sort.Strings(wantSinks)
	gotSinks := append([]string(nil), sinks...)
	sort.Strings(gotSinks)
	if !reflect.DeepEqual(gotSinks, wantSinks) {
		t.Errorf("sinks = %v, want the two arms %v", gotSinks, wantSinks)
	}

	for _, child := range children {
		if child.Level != 4 {
			t.Errorf("child level = %d, want 4", child.Level)
		}
		if child.ParentID != "rejected" {
			t.Errorf("child parent = %q, want rejected", child.ParentID)
		}
	}
}

func TestRecut_PrefersCutsForFailedCriteria(t *testing.T) {
	atom := &models.AtomicUnit{
		ID:    "mixed",
		Level: 1,
		SourceFragment: "log(message)\n" +
			"if flag {\n" +
			"y = 1\n" +
			"}",
	}

	d := New()

	// Default order explodes the branch: prefix, condition, then-arm.
	plain, _, err := d.Recut(atom, nil)
	if err != nil {
		t.Fatalf("Recut failed: %v", err)
	}
	if len(plain) != 3 || plain[1].SourceFragment != "flag" {
		t.Errorf("default order should cut the branch first, got %d children: %v", len(plain), fragmentsOf(plain))
	}

	// A determinism failure prefers the call cut, which only splits the
	// call away from the rest.
	steered, _, err := d.Recut(atom, []string{CriterionDeterminism})
	if err != nil {
		t.Fatalf("Recut with criteria failed: %v", err)
	}
	if len(steered) != 2 || steered[0].SourceFragment != "log(message)" {
		t.Errorf("determinism failure should isolate the call, got %d children: %v", len(steered), fragmentsOf(steered))
	}
	if len(steered) == 2 && !strings.HasPrefix(steered[1].SourceFragment, "if flag {") {
		t.Errorf("remainder should keep the branch intact, got %q", steered[1].SourceFragment)
	}
}

func fragmentsOf(atoms []*models.AtomicUnit) []string {
	fragments := make([]string, len(atoms))
	for i, atom := range atoms {
		fragments[i] = atom.SourceFragment
	}
	return fragments
}

func TestRecut_DepthLimit(t *testing.T) {
	atom := &models.AtomicUnit{
		ID:             "deep",
		Level:          DefaultMaxDepth,
		SourceFragment: "if flag {\ny = 1\n}",
	}

	_, _, err := New().Recut(atom, nil)
	if !errors.Is(err, ErrDepthExceeded) {
		t.Errorf("expected ErrDepthExceeded, got %v", err)
	}
}

func TestRecut_NoCutPoint(t *testing.T) {
	atom := &models.AtomicUnit{ID: "flat", Level: 1, SourceFragment: "x = 1"}

	_, _, err := New().Recut(atom, nil)
	if err == nil {
		t.Fatal("expected error when no cut point applies")
	}
	if errors.Is(err, ErrDepthExceeded) {
		t.Error("no-cut-point failure must be distinct from the depth bound")
	}
}
