package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ShayCichocki/fission/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestReadFragment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "task.txt")
	writeFile(t, path, "x = 1\ny = x + 1\n")

	fragment, err := readFragment(path)
	if err != nil {
		t.Fatalf("readFragment() error = %v", err)
	}
	if !strings.Contains(fragment, "y = x + 1") {
		t.Errorf("fragment = %q", fragment)
	}

	writeFile(t, path, "   \n")
	if _, err := readFragment(path); err == nil {
		t.Error("expected error for empty fragment")
	}

	if _, err := readFragment(filepath.Join(dir, "absent.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBuildPlan_MissingSnapshotStillPlans(t *testing.T) {
	cfg := config.Default()
	cfg.Context.Path = filepath.Join(t.TempDir(), "context.yaml")

	atoms, g, err := buildPlan(cfg, "x = 1\ny = x + 1", "")
	if err != nil {
		t.Fatalf("buildPlan() error = %v", err)
	}
	if len(atoms) == 0 {
		t.Fatal("no atoms planned")
	}
	if g.Size() != len(atoms) {
		t.Errorf("graph size = %d, atoms = %d", g.Size(), len(atoms))
	}
}

func TestBuildPlan_ContextOverride(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "ctx.yaml")
	writeFile(t, snapshot, `
runtime:
  language: go
conventions:
  naming: snake_case
`)

	cfg := config.Default()
	cfg.Context.Path = filepath.Join(dir, "nonexistent.yaml")

	if _, _, err := buildPlan(cfg, "a = 1", snapshot); err != nil {
		t.Fatalf("buildPlan() with override error = %v", err)
	}
}

func TestWritePlanOutputs(t *testing.T) {
	cfg := config.Default()
	cfg.Context.Path = filepath.Join(t.TempDir(), "context.yaml")

	atoms, g, err := buildPlan(cfg, "a = 1\nb = a + 1", "")
	if err != nil {
		t.Fatalf("buildPlan() error = %v", err)
	}

	var text strings.Builder
	writePlanText(&text, atoms, g)
	if !strings.Contains(text.String(), "wave 0") {
		t.Errorf("text output missing wave header:\n%s", text.String())
	}

	var doc strings.Builder
	if err := writePlanYAML(&doc, atoms, g); err != nil {
		t.Fatalf("writePlanYAML() error = %v", err)
	}
	out := doc.String()
	if !strings.Contains(out, "atoms:") || !strings.Contains(out, "waves:") {
		t.Errorf("yaml output missing sections:\n%s", out)
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("\n\n  hello  \nworld"); got != "hello" {
		t.Errorf("firstLine = %q, want hello", got)
	}
	long := strings.Repeat("a", 80)
	if got := firstLine(long); len(got) != 60 || !strings.HasSuffix(got, "...") {
		t.Errorf("long line not truncated: %q", got)
	}
}
