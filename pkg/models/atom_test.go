package models

import "testing"

func TestAtomStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status AtomStatus
		want   bool
	}{
		{"pending is valid", AtomStatusPending, true},
		{"running is valid", AtomStatusRunning, true},
		{"succeeded is valid", AtomStatusSucceeded, true},
		{"failed is valid", AtomStatusFailed, true},
		{"skipped is valid", AtomStatusSkipped, true},
		{"aborted is valid", AtomStatusAborted, true},
		{"empty string is invalid", AtomStatus(""), false},
		{"unknown status is invalid", AtomStatus("done"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("AtomStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestAtomStatus_Terminal(t *testing.T) {
	tests := []struct {
		status AtomStatus
		want   bool
	}{
		{AtomStatusPending, false},
		{AtomStatusRunning, false},
		{AtomStatusSucceeded, true},
		{AtomStatusFailed, true},
		{AtomStatusSkipped, true},
		{AtomStatusAborted, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.want {
				t.Errorf("AtomStatus(%q).Terminal() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestAtomicUnit_Clone(t *testing.T) {
	orig := &AtomicUnit{
		ID:             "atom-1",
		SourceFragment: "total = price * quantity",
		Level:          2,
		DeclaredInputs: map[string]string{"price": "float", "quantity": "int"},
		DependencyIDs:  []string{"atom-0"},
		Context: Context{
			Data: map[string]string{"price": "float"},
		},
	}

	clone := orig.Clone()

	if clone == orig {
		t.Fatal("Clone returned the same pointer")
	}

	clone.DeclaredInputs["price"] = "decimal"
	clone.DependencyIDs[0] = "atom-99"
	clone.Context.Data["price"] = "changed"

	if orig.DeclaredInputs["price"] != "float" {
		t.Error("mutating clone inputs leaked into the original")
	}
	if orig.DependencyIDs[0] != "atom-0" {
		t.Error("mutating clone dependencies leaked into the original")
	}
	if orig.Context.Data["price"] != "float" {
		t.Error("mutating clone context leaked into the original")
	}
}

func TestContext_Complete(t *testing.T) {
	full := Context{
		Data:          map[string]string{"Cart": "type"},
		Behavior:      map[string]string{"pre": "cart exists"},
		Environment:   map[string]string{"runtime": "go"},
		Testing:       map[string]string{"assert": "total >= 0"},
		Documentation: map[string]string{"purpose": "sum line items"},
	}
	if !full.Complete() {
		t.Error("context with all five sections should be complete")
	}

	missing := full.Clone()
	missing.Testing = nil
	if missing.Complete() {
		t.Error("context missing a section should not be complete")
	}

	var empty Context
	if empty.Complete() {
		t.Error("zero-value context should not be complete")
	}
}

func TestContext_Resolves(t *testing.T) {
	ctx := Context{
		Data:        map[string]string{"Cart": "type Cart struct"},
		Environment: map[string]string{"strings": "stdlib import"},
		Behavior:    map[string]string{"invariant": "non-negative total"},
	}

	if !ctx.Resolves("Cart") {
		t.Error("identifier in Data should resolve")
	}
	if !ctx.Resolves("strings") {
		t.Error("identifier in Environment should resolve")
	}
	if ctx.Resolves("invariant") {
		t.Error("Behavior entries do not satisfy self-containment")
	}
	if ctx.Resolves("missing") {
		t.Error("unknown identifier should not resolve")
	}
}
