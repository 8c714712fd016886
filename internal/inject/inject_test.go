package inject

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/ShayCichocki/fission/pkg/models"
)

// mapResolver is a stub project context backed by a plain map.
type mapResolver map[string]models.ResolvedSymbol

func (m mapResolver) Resolve(name string) (models.ResolvedSymbol, bool) {
	sym, ok := m[name]
	return sym, ok
}

func TestFreeIdentifiers(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		want     []string
	}{
		{
			name:     "simple expression",
			fragment: "total = price * quantity",
			want:     []string{"price", "quantity"},
		},
		{
			name:     "assignment target is bound",
			fragment: "total = 1\nresult = total + tax",
			want:     []string{"tax"},
		},
		{
			name:     "loop variable is bound",
			fragment: "for item in items {\nsum = sum + item.price\n}",
			want:     []string{"items"},
		},
		{
			name:     "keywords excluded",
			fragment: "if count > limit {\nreturn false\n}",
			want:     []string{"count", "limit"},
		},
		{
			name:     "dotted chain reports root",
			fragment: "name = cart.owner.name",
			want:     []string{"cart"},
		},
		{
			name:     "string literals ignored",
			fragment: "msg = \"hello owner\"\nsend(msg, recipient)",
			want:     []string{"recipient", "send"},
		},
		{
			name:     "comments ignored",
			fragment: "x = base // uses legacyField",
			want:     []string{"base"},
		},
		{
			name:     "comparison is not a binding",
			fragment: "if status == target {\nflag = true\n}",
			want:     []string{"status", "target"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FreeIdentifiers(tt.fragment)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FreeIdentifiers() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInjector_Inject(t *testing.T) {
	resolver := mapResolver{
		"Cart":     {Name: "Cart", Kind: models.SymbolType, Definition: "type Cart { items, owner }"},
		"TAX_RATE": {Name: "TAX_RATE", Kind: models.SymbolConstant, Definition: "0.08"},
		"send":     {Name: "send", Kind: models.SymbolFunction, Definition: "send(msg, to) -> ack"},
	}
	in := New(resolver)

	atom := &models.AtomicUnit{
		ID:              "atom-1",
		SourceFragment:  "cart = Cart.new()\ntotal = base * TAX_RATE\nsend(total, cart)",
		DeclaredInputs:  map[string]string{"base": "float"},
		DeclaredOutputs: map[string]string{"total": "float"},
		IsDeterministic: true,
	}

	got, err := in.Inject(atom)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got == atom {
		t.Fatal("Inject must return a new value, not the caller's atom")
	}
	if atom.Context.Complete() {
		t.Error("caller's atom context must stay untouched")
	}
	if !got.Context.Complete() {
		t.Errorf("injected context should have all five sections: %+v", got.Context)
	}

	if got.Context.Data["Cart"] != "type Cart { items, owner }" {
		t.Errorf("type symbol should be filed under data, got %q", got.Context.Data["Cart"])
	}
	if got.Context.Data["TAX_RATE"] != "0.08" {
		t.Errorf("constant symbol should be filed under data, got %q", got.Context.Data["TAX_RATE"])
	}
	if got.Context.Environment["send"] != "send(msg, to) -> ack" {
		t.Errorf("function symbol should be filed under environment, got %q", got.Context.Environment["send"])
	}
	if !got.Context.Resolves("base") {
		t.Error("declared input should satisfy self-containment")
	}
	if got.Context.Behavior["produces:total"] != "float" {
		t.Error("declared output should appear as a postcondition")
	}
}

func TestInjector_UnresolvedReferences(t *testing.T) {
	in := New(mapResolver{
		"known": {Name: "known", Kind: models.SymbolConstant, Definition: "1"},
	})

	atom := &models.AtomicUnit{
		ID:             "atom-7",
		SourceFragment: "x = known + mysteryA\ny = mysteryB.field",
	}

	_, err := in.Inject(atom)
	if err == nil {
		t.Fatal("expected UnresolvedReferenceError")
	}

	var unresolved *UnresolvedReferenceError
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected UnresolvedReferenceError, got %T: %v", err, err)
	}
	if unresolved.AtomID != "atom-7" {
		t.Errorf("AtomID = %q, want atom-7", unresolved.AtomID)
	}
	want := []string{"mysteryA", "mysteryB"}
	if !reflect.DeepEqual(unresolved.Identifiers, want) {
		t.Errorf("Identifiers = %v, want %v", unresolved.Identifiers, want)
	}
}

// TestInjector_SyntheticUnresolvedProperty injects fabricated identifiers
// into otherwise-resolvable fragments and asserts each one is reported.
func TestInjector_SyntheticUnresolvedProperty(t *testing.T) {
	resolver := mapResolver{
		"base":  {Name: "base", Kind: models.SymbolConstant, Definition: "10"},
		"scale": {Name: "scale", Kind: models.SymbolConstant, Definition: "2"},
	}
	in := New(resolver)

	for i := 0; i < 20; i++ {
		ghost := fmt.Sprintf("ghostRef%d", i)
		atom := &models.AtomicUnit{
			ID:             fmt.Sprintf("atom-%d", i),
			SourceFragment: fmt.Sprintf("value = base * scale + %s", ghost),
		}

		_, err := in.Inject(atom)
		var unresolved *UnresolvedReferenceError
		if !errors.As(err, &unresolved) {
			t.Fatalf("fragment with %s: expected UnresolvedReferenceError, got %v", ghost, err)
		}
		if len(unresolved.Identifiers) != 1 || unresolved.Identifiers[0] != ghost {
			t.Errorf("fragment with %s: reported %v", ghost, unresolved.Identifiers)
		}
	}
}
