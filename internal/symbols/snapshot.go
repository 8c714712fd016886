// Package symbols provides the project-context snapshot consulted during
// context injection. A snapshot is immutable for the duration of a run, so
// concurrent resolution needs no locking.
package symbols

import (
	"fmt"
	"os"
	"sort"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/fission/pkg/models"
)

// snapshotFile represents the project context YAML file structure.
type snapshotFile struct {
	// Symbols lists explicitly defined identifiers.
	Symbols []models.ResolvedSymbol `yaml:"symbols"`
	// Runtime holds target language and runtime facts, keyed by name.
	Runtime map[string]string `yaml:"runtime"`
	// Conventions holds project conventions, keyed by name.
	Conventions map[string]string `yaml:"conventions"`
}

// Snapshot is a read-only set of resolved symbols. It satisfies
// inject.Resolver and is safe for concurrent use.
type Snapshot struct {
	symbols map[string]models.ResolvedSymbol
}

// NewSnapshot builds a snapshot from an explicit symbol list. Later entries
// win on duplicate names.
func NewSnapshot(syms []models.ResolvedSymbol) *Snapshot {
	s := &Snapshot{symbols: make(map[string]models.ResolvedSymbol, len(syms))}
	for _, sym := range syms {
		s.symbols[sym.Name] = sym
	}
	return s
}

// LoadSnapshot reads a project context YAML file. Runtime and convention
// entries become symbols of the matching kind so fragments can reference
// them like any other identifier.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project context: %w", err)
	}

	var file snapshotFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse project context %s: %w", path, err)
	}

	syms := make([]models.ResolvedSymbol, 0, len(file.Symbols)+len(file.Runtime)+len(file.Conventions))
	for _, sym := range file.Symbols {
		if sym.Name == "" {
			return nil, fmt.Errorf("parse project context %s: symbol with empty name", path)
		}
		if sym.Kind == "" {
			sym.Kind = models.SymbolType
		}
		if sym.Source == "" {
			sym.Source = path
		}
		syms = append(syms, sym)
	}
	for name, definition := range file.Runtime {
		syms = append(syms, models.ResolvedSymbol{
			Name: name, Kind: models.SymbolRuntime, Definition: definition, Source: path,
		})
	}
	for name, definition := range file.Conventions {
		syms = append(syms, models.ResolvedSymbol{
			Name: name, Kind: models.SymbolConvention, Definition: definition, Source: path,
		})
	}
	return NewSnapshot(syms), nil
}

// Resolve returns the symbol for an identifier, or false when unknown.
func (s *Snapshot) Resolve(name string) (models.ResolvedSymbol, bool) {
	sym, ok := s.symbols[name]
	return sym, ok
}

// Len returns the number of symbols in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.symbols)
}

// Names returns every symbol name, sorted.
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.symbols))
	for name := range s.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
