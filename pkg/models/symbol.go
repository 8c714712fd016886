package models

// SymbolKind classifies a resolved identifier.
type SymbolKind string

const (
	// SymbolType is a named type or record shape.
	SymbolType SymbolKind = "type"
	// SymbolConstant is a named constant value.
	SymbolConstant SymbolKind = "constant"
	// SymbolSchema is a data schema or example value set.
	SymbolSchema SymbolKind = "schema"
	// SymbolFunction is a callable provided by the project.
	SymbolFunction SymbolKind = "function"
	// SymbolImport is a module or package the fragment relies on.
	SymbolImport SymbolKind = "import"
	// SymbolRuntime is a fact about the target runtime or language.
	SymbolRuntime SymbolKind = "runtime"
	// SymbolConvention is a project convention the fragment must follow.
	SymbolConvention SymbolKind = "convention"
)

// DataKind returns true for kinds filed under Context.Data; the remaining
// kinds are filed under Context.Environment.
func (k SymbolKind) DataKind() bool {
	switch k {
	case SymbolType, SymbolConstant, SymbolSchema:
		return true
	default:
		return false
	}
}

// ResolvedSymbol is the project-context provider's answer for one
// identifier.
type ResolvedSymbol struct {
	// Name is the identifier as it appears in source.
	Name string `json:"name" yaml:"name"`
	// Kind classifies the symbol.
	Kind SymbolKind `json:"kind" yaml:"kind"`
	// Definition is the resolved content: a type shape, constant value,
	// signature, or convention text.
	Definition string `json:"definition" yaml:"definition"`
	// Source optionally names where the definition came from.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}
