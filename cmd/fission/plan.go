package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/fission/internal/config"
	"github.com/ShayCichocki/fission/internal/decompose"
	"github.com/ShayCichocki/fission/internal/graph"
	"github.com/ShayCichocki/fission/internal/inject"
	"github.com/ShayCichocki/fission/internal/symbols"
	"github.com/ShayCichocki/fission/pkg/models"
)

var (
	planOutput      string
	planContextPath string
)

var planCmd = &cobra.Command{
	Use:   "plan <file>",
	Short: "Decompose a fragment and show the wave plan",
	Long: `Decompose a source fragment into atoms and show the dependency waves
without executing anything.

The fragment is read from the given file, or from stdin when the argument
is "-". Identifiers that the fragment references must resolve through the
project context snapshot (.fission/context.yaml by default).

Examples:
  fission plan task.txt
  cat task.txt | fission plan -
  fission plan task.txt --output yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planOutput, "output", "text", "Output format: text or yaml")
	planCmd.Flags().StringVar(&planContextPath, "context", "", "Project context snapshot path (overrides config)")
}

// planDoc is the serializable form of a settled plan.
type planDoc struct {
	Atoms []planAtom `yaml:"atoms"`
	Waves [][]string `yaml:"waves"`
	Edges []planEdge `yaml:"edges,omitempty"`
}

type planAtom struct {
	ID           string   `yaml:"id"`
	Fragment     string   `yaml:"fragment"`
	Wave         int      `yaml:"wave"`
	Dependencies []string `yaml:"dependencies,omitempty"`
	ForcedAtomic bool     `yaml:"forced_atomic,omitempty"`
}

type planEdge struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	Kind string `yaml:"kind"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	fragment, err := readFragment(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	atoms, g, err := buildPlan(cfg, fragment, planContextPath)
	if err != nil {
		return err
	}

	switch planOutput {
	case "yaml":
		return writePlanYAML(os.Stdout, atoms, g)
	case "text":
		writePlanText(os.Stdout, atoms, g)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", planOutput)
	}
}

// readFragment reads the source fragment from a file, or stdin for "-".
func readFragment(arg string) (string, error) {
	var data []byte
	var err error
	if arg == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		return "", fmt.Errorf("read fragment: %w", err)
	}
	fragment := strings.TrimSpace(string(data))
	if fragment == "" {
		return "", fmt.Errorf("fragment is empty")
	}
	return fragment, nil
}

// buildPlan runs the full planning pipeline: decompose, inject, score,
// re-cut, and graph construction.
func buildPlan(cfg *config.Config, fragment, contextPath string) ([]*models.AtomicUnit, *graph.DependencyGraph, error) {
	resolver, err := loadResolver(cfg, contextPath)
	if err != nil {
		return nil, nil, err
	}

	decomposer := decompose.New(
		decompose.WithMaxDepth(cfg.Decompose.MaxDepth),
		decompose.WithThresholds(cfg.Decompose.MaxComplexity, cfg.Decompose.MaxSize),
	)
	injector := inject.New(resolver)
	scorer := decompose.NewScorer(cfg.Decompose.MaxComplexity, cfg.Decompose.MaxSize)
	planner := decompose.NewPlanner(decomposer, injector, scorer)

	atoms, err := planner.Plan(&models.AtomicUnit{ID: "root", SourceFragment: fragment})
	if err != nil {
		var unresolved *inject.UnresolvedReferenceError
		if errors.As(err, &unresolved) {
			return nil, nil, fmt.Errorf("atom %s references identifiers with no context entry: %s\n"+
				"Add them to the project context snapshot (%s)",
				unresolved.AtomID, strings.Join(unresolved.Identifiers, ", "), snapshotPath(cfg, contextPath))
		}
		return nil, nil, fmt.Errorf("plan: %w", err)
	}

	g, err := graph.NewBuilder().Build(atoms)
	if err != nil {
		return nil, nil, fmt.Errorf("build graph: %w", err)
	}
	return atoms, g, nil
}

// loadResolver loads the project context snapshot, wrapped in a lookup
// cache. A missing snapshot file yields an empty snapshot so fragments
// with no free identifiers still plan.
func loadResolver(cfg *config.Config, contextPath string) (inject.Resolver, error) {
	path := snapshotPath(cfg, contextPath)

	var snap *symbols.Snapshot
	if _, err := os.Stat(path); os.IsNotExist(err) {
		snap = symbols.NewSnapshot(nil)
	} else {
		snap, err = symbols.LoadSnapshot(path)
		if err != nil {
			return nil, err
		}
	}

	cached, err := symbols.NewCachedResolver(snap, cfg.Context.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("build resolver cache: %w", err)
	}
	return cached, nil
}

func snapshotPath(cfg *config.Config, override string) string {
	if override != "" {
		return override
	}
	return cfg.Context.Path
}

func writePlanText(w io.Writer, atoms []*models.AtomicUnit, g *graph.DependencyGraph) {
	byID := make(map[string]*models.AtomicUnit, len(atoms))
	for _, a := range atoms {
		byID[a.ID] = a
	}

	waves := g.Waves()
	fmt.Fprintf(w, "%d atoms in %d waves\n\n", g.Size(), len(waves))
	for i, wave := range waves {
		fmt.Fprintf(w, "wave %d:\n", i)
		for _, id := range wave {
			a := byID[id]
			line := firstLine(a.SourceFragment)
			marker := ""
			if a.ForcedAtomic {
				marker = " [forced]"
			}
			if len(a.DependencyIDs) > 0 {
				fmt.Fprintf(w, "  %s%s  %s  (after %s)\n", id, marker, line, strings.Join(a.DependencyIDs, ", "))
			} else {
				fmt.Fprintf(w, "  %s%s  %s\n", id, marker, line)
			}
		}
	}
}

func writePlanYAML(w io.Writer, atoms []*models.AtomicUnit, g *graph.DependencyGraph) error {
	waveOf := make(map[string]int)
	waves := g.Waves()
	for i, wave := range waves {
		for _, id := range wave {
			waveOf[id] = i
		}
	}

	doc := planDoc{Waves: waves}
	for _, a := range atoms {
		doc.Atoms = append(doc.Atoms, planAtom{
			ID:           a.ID,
			Fragment:     a.SourceFragment,
			Wave:         waveOf[a.ID],
			Dependencies: a.DependencyIDs,
			ForcedAtomic: a.ForcedAtomic,
		})
	}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, planEdge{From: e.From, To: e.To, Kind: string(e.Kind)})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(doc)
}

// firstLine returns the first non-empty line of a fragment, truncated.
func firstLine(fragment string) string {
	for _, line := range strings.Split(fragment, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 60 {
			return line[:57] + "..."
		}
		return line
	}
	return ""
}
