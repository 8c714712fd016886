package resume

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "resume.db"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCheckpointLifecycle(t *testing.T) {
	store := openTestStore(t)
	hash := HashUnit("x = 1\ny = 2")

	cp, err := store.Begin("run-1", hash)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if cp.LastWave != -1 {
		t.Errorf("LastWave = %d, want -1 before any wave settles", cp.LastWave)
	}

	if err := store.MarkWave("run-1", 0, []string{"a"}); err != nil {
		t.Fatalf("MarkWave(0) error = %v", err)
	}
	if err := store.MarkWave("run-1", 1, []string{"a", "b", "c"}); err != nil {
		t.Fatalf("MarkWave(1) error = %v", err)
	}

	got, err := store.Get("run-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.LastWave != 1 {
		t.Errorf("LastWave = %d, want 1", got.LastWave)
	}
	if len(got.CompletedAtoms) != 3 || got.CompletedAtoms[1] != "b" {
		t.Errorf("CompletedAtoms = %v", got.CompletedAtoms)
	}
	if got.Status != StatusRunning {
		t.Errorf("Status = %s, want running", got.Status)
	}

	if err := store.Complete("run-1"); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	got, err = store.Get("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("Status = %s, want completed", got.Status)
	}
}

func TestResumable_FiltersByHashAndStatus(t *testing.T) {
	store := openTestStore(t)
	hash := HashUnit("unit-a")
	other := HashUnit("unit-b")

	if _, err := store.Begin("interrupted", hash); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Begin("finished", hash); err != nil {
		t.Fatal(err)
	}
	if err := store.Complete("finished"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Begin("different-unit", other); err != nil {
		t.Fatal(err)
	}

	resumable, err := store.Resumable(hash)
	if err != nil {
		t.Fatalf("Resumable() error = %v", err)
	}
	if len(resumable) != 1 || resumable[0].RunID != "interrupted" {
		t.Errorf("resumable = %+v, want only the interrupted matching run", resumable)
	}
}

func TestMarkWave_UnknownRun(t *testing.T) {
	store := openTestStore(t)
	if err := store.MarkWave("absent", 0, nil); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Begin("run-1", HashUnit("u")); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("run-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get("run-1"); err == nil {
		t.Error("Get() after Delete() should fail")
	}
}

func TestHashUnit_Deterministic(t *testing.T) {
	if HashUnit("same") != HashUnit("same") {
		t.Error("HashUnit is not deterministic")
	}
	if HashUnit("one") == HashUnit("two") {
		t.Error("distinct fragments should hash differently")
	}
}
