// Package inject makes atoms self-contained by resolving every external
// reference in a fragment against a read-only project context snapshot and
// attaching the answers to the atom's context bundle.
package inject

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/fission/pkg/models"
)

// Resolver is the project-context provider consulted for each external
// reference. Implementations must be read-only and safe for concurrent use.
type Resolver interface {
	// Resolve returns the symbol for an identifier, or false when the
	// identifier is unknown.
	Resolve(name string) (models.ResolvedSymbol, bool)
}

// UnresolvedReferenceError reports the identifiers in an atom's fragment
// that the project context could not resolve. The atom cannot proceed to
// scheduling.
type UnresolvedReferenceError struct {
	// AtomID is the atom whose fragment failed resolution.
	AtomID string
	// Identifiers lists every name that failed, sorted.
	Identifiers []string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("atom %s: unresolved references: %s", e.AtomID, strings.Join(e.Identifiers, ", "))
}

// Injector populates atom contexts from a project-context resolver.
type Injector struct {
	resolver Resolver
	debugLog func(format string, args ...interface{})
}

// Option configures an Injector.
type Option func(*Injector)

// WithDebugLog sets the debug logging function.
func WithDebugLog(fn func(format string, args ...interface{})) Option {
	return func(in *Injector) {
		if fn != nil {
			in.debugLog = fn
		}
	}
}

// New creates an Injector backed by the given resolver.
func New(resolver Resolver, opts ...Option) *Injector {
	in := &Injector{
		resolver: resolver,
		debugLog: func(format string, args ...interface{}) {},
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Inject returns a copy of the atom with all five context sections
// populated. The caller's atom is never mutated. Every free identifier in
// the fragment must resolve through the declared inputs or the project
// context; otherwise an UnresolvedReferenceError naming all failures is
// returned and the atom must not be scheduled.
func (in *Injector) Inject(atom *models.AtomicUnit) (*models.AtomicUnit, error) {
	out := atom.Clone()
	ctx := models.Context{
		Data:          make(map[string]string),
		Behavior:      make(map[string]string),
		Environment:   make(map[string]string),
		Testing:       make(map[string]string),
		Documentation: make(map[string]string),
	}

	// Declared inputs are part of the atom's interface; they satisfy
	// self-containment without consulting the resolver.
	for name, typ := range atom.DeclaredInputs {
		ctx.Data[name] = fmt.Sprintf("declared input: %s", typ)
	}

	var unresolved []string
	for _, name := range FreeIdentifiers(atom.SourceFragment) {
		if ctx.Resolves(name) {
			continue
		}
		sym, ok := in.resolver.Resolve(name)
		if !ok {
			unresolved = append(unresolved, name)
			continue
		}
		if sym.Kind.DataKind() {
			ctx.Data[name] = sym.Definition
		} else {
			ctx.Environment[name] = sym.Definition
		}
	}
	if len(unresolved) > 0 {
		in.debugLog("[inject] atom %s: %d unresolved references: %v", atom.ID, len(unresolved), unresolved)
		return nil, &UnresolvedReferenceError{AtomID: atom.ID, Identifiers: unresolved}
	}

	in.fillBehavior(out, &ctx)
	in.fillEnvironment(out, &ctx)
	in.fillTesting(out, &ctx)
	in.fillDocumentation(out, &ctx)
	if len(ctx.Data) == 0 {
		ctx.Data["(none)"] = "fragment requires no external data"
	}

	out.Context = ctx
	return out, nil
}

func (in *Injector) fillBehavior(atom *models.AtomicUnit, ctx *models.Context) {
	if len(atom.DeclaredInputs) == 0 {
		ctx.Behavior["preconditions"] = "no declared inputs; all values derived locally"
	}
	for name, typ := range atom.DeclaredInputs {
		ctx.Behavior["requires:"+name] = typ
	}
	for name, typ := range atom.DeclaredOutputs {
		ctx.Behavior["produces:"+name] = typ
	}
	switch {
	case atom.IsPure && atom.IsDeterministic:
		ctx.Behavior["invariant"] = "pure and deterministic; re-running is observably identical"
	case atom.IsDeterministic:
		ctx.Behavior["invariant"] = "deterministic for fixed inputs"
	default:
		ctx.Behavior["invariant"] = "effects limited to declared outputs"
	}
}

func (in *Injector) fillEnvironment(atom *models.AtomicUnit, ctx *models.Context) {
	// Execution conventions hold for every atom regardless of resolved
	// environment symbols.
	ctx.Environment["execution"] = "isolated; no shared mutable state with sibling atoms"
	if atom.ForcedAtomic {
		ctx.Environment["note"] = "emitted at decomposition depth limit; audit before reuse"
	}
}

func (in *Injector) fillTesting(atom *models.AtomicUnit, ctx *models.Context) {
	for name, typ := range atom.DeclaredOutputs {
		ctx.Testing["assert:"+name] = fmt.Sprintf("produced value conforms to %s", typ)
	}
	if atom.IsDeterministic {
		ctx.Testing["assert:repeatable"] = "two runs with identical inputs yield identical outputs"
	}
	if len(ctx.Testing) == 0 {
		ctx.Testing["assert:completes"] = "fragment executes without error"
	}
}

func (in *Injector) fillDocumentation(atom *models.AtomicUnit, ctx *models.Context) {
	summary := firstLine(atom.SourceFragment)
	if summary == "" {
		summary = "empty fragment"
	}
	ctx.Documentation["purpose"] = summary
	ctx.Documentation["level"] = fmt.Sprintf("decomposition depth %d", atom.Level)
}

func firstLine(fragment string) string {
	for _, line := range strings.Split(fragment, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}
