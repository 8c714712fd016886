package symbols

import (
	"sync"
	"testing"

	"github.com/ShayCichocki/fission/pkg/models"
)

// countingResolver tracks how many times each name reaches the provider.
type countingResolver struct {
	mu    sync.Mutex
	calls map[string]int
	known map[string]models.ResolvedSymbol
}

func newCountingResolver(known map[string]models.ResolvedSymbol) *countingResolver {
	return &countingResolver{calls: make(map[string]int), known: known}
}

func (r *countingResolver) Resolve(name string) (models.ResolvedSymbol, bool) {
	r.mu.Lock()
	r.calls[name]++
	r.mu.Unlock()
	sym, ok := r.known[name]
	return sym, ok
}

func (r *countingResolver) callCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func TestCachedResolver_CachesHitsAndMisses(t *testing.T) {
	inner := newCountingResolver(map[string]models.ResolvedSymbol{
		"Cart": {Name: "Cart", Kind: models.SymbolType, Definition: "record"},
	})
	cached, err := NewCachedResolver(inner, 16)
	if err != nil {
		t.Fatalf("NewCachedResolver() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, ok := cached.Resolve("Cart"); !ok {
			t.Fatal("Resolve(Cart) = false, want true")
		}
		if _, ok := cached.Resolve("Missing"); ok {
			t.Fatal("Resolve(Missing) = true, want false")
		}
	}

	// The provider is consulted once per identifier; negative answers are
	// cached too.
	if got := inner.callCount("Cart"); got != 1 {
		t.Errorf("provider calls for Cart = %d, want 1", got)
	}
	if got := inner.callCount("Missing"); got != 1 {
		t.Errorf("provider calls for Missing = %d, want 1", got)
	}

	hits, misses := cached.Stats()
	if hits != 4 || misses != 2 {
		t.Errorf("Stats() = %d hits, %d misses; want 4, 2", hits, misses)
	}
}

func TestCachedResolver_Eviction(t *testing.T) {
	inner := newCountingResolver(map[string]models.ResolvedSymbol{
		"a": {Name: "a"}, "b": {Name: "b"}, "c": {Name: "c"},
	})
	cached, err := NewCachedResolver(inner, 2)
	if err != nil {
		t.Fatal(err)
	}

	cached.Resolve("a")
	cached.Resolve("b")
	cached.Resolve("c") // evicts a
	cached.Resolve("a") // must hit the provider again

	if got := inner.callCount("a"); got != 2 {
		t.Errorf("provider calls for a = %d, want 2 after eviction", got)
	}
}

func TestNewCachedResolver_NilResolver(t *testing.T) {
	if _, err := NewCachedResolver(nil, 8); err == nil {
		t.Error("expected error for nil resolver")
	}
}

func TestNewCachedResolver_DefaultSize(t *testing.T) {
	inner := newCountingResolver(nil)
	if _, err := NewCachedResolver(inner, 0); err != nil {
		t.Errorf("NewCachedResolver(0) error = %v", err)
	}
}
