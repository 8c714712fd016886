package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/fission/internal/config"
	"github.com/ShayCichocki/fission/internal/decompose"
	"github.com/ShayCichocki/fission/internal/executor"
	"github.com/ShayCichocki/fission/internal/generate"
	"github.com/ShayCichocki/fission/internal/graph"
	"github.com/ShayCichocki/fission/internal/resume"
	"github.com/ShayCichocki/fission/internal/state"
	"github.com/ShayCichocki/fission/internal/tui"
	"github.com/ShayCichocki/fission/pkg/models"
)

var (
	runHeadless       bool
	runResume         bool
	runMaxConcurrency int
	runContextPath    string
	runRevalidation   string
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Decompose a fragment and execute its waves",
	Long: `Decompose a source fragment into atoms, partition them into waves,
and execute the waves in parallel against the Anthropic API.

Each atom is generated and validated independently. Failed atoms skip
their transitive dependents; unrelated branches keep running. A failed
atom is retried up to the attempt budget with a decreasing exploration
schedule and corrective guidance folded into the prompt.

Wave boundaries are checkpointed, so an interrupted run can be picked up
with --resume instead of regenerating finished atoms.

Examples:
  fission run task.txt
  fission run task.txt --headless
  fission run task.txt --resume`,
	Args: cobra.ExactArgs(1),
	RunE: runExecute,
}

func init() {
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Run without TUI (print events to stdout)")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "Resume the latest interrupted run of this fragment")
	runCmd.Flags().IntVar(&runMaxConcurrency, "max-concurrency", 0, "Max in-flight atoms per wave (overrides config)")
	runCmd.Flags().StringVar(&runContextPath, "context", "", "Project context snapshot path (overrides config)")
	runCmd.Flags().StringVar(&runRevalidation, "revalidation", "", "Revalidation mode: full, context-only, or off (overrides config)")
}

func runExecute(cmd *cobra.Command, args []string) error {
	fragment, err := readFragment(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyRunFlags(cfg)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	_, g, err := buildPlan(cfg, fragment, runContextPath)
	if err != nil {
		return err
	}

	gen, err := buildGenerator(cfg)
	if err != nil {
		return err
	}

	// Checkpoint store for crash recovery.
	checkpoints, err := resume.NewStore(filepath.Join(cwd, ".fission", "resume.db"))
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer checkpoints.Close()

	unitHash := resume.HashUnit(fragment)
	runID := uuid.New().String()
	var completed []string
	if runResume {
		prior, err := checkpoints.Resumable(unitHash)
		if err != nil {
			return fmt.Errorf("look up resumable runs: %w", err)
		}
		if len(prior) > 0 {
			runID = prior[0].RunID
			completed = prior[0].CompletedAtoms
			fmt.Printf("Resuming run %s: %d atoms already complete\n", runID, len(completed))
		}
	}
	if len(completed) == 0 {
		if _, err := checkpoints.Begin(runID, unitHash); err != nil {
			return fmt.Errorf("record checkpoint: %w", err)
		}
	}

	// Cancellation: OS signals plus the stop file watcher.
	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	ctx, watcher, err := executor.NewStopWatcher(ctx, cwd)
	if err != nil {
		return fmt.Errorf("start stop watcher: %w", err)
	}
	defer watcher.Close()

	logger := executor.NewDebugLoggerForDir(cwd)
	defer logger.Close()

	emitter := executor.NewEmitter(g.Size() * 8)
	scorer := decompose.NewScorer(cfg.Decompose.MaxComplexity, cfg.Decompose.MaxSize)

	exec, err := executor.New(executor.RequiredConfig{
		Generator: gen,
		Validator: generate.NewRuleValidator(),
	},
		executor.WithMaxConcurrency(cfg.Execute.MaxConcurrency),
		executor.WithAttemptTimeout(cfg.Execute.AttemptTimeout),
		executor.WithRetryPolicy(executor.NewScheduledRetryPolicy(cfg.Execute.MaxAttempts, cfg.Execute.ExplorationSchedule)),
		executor.WithEmitter(emitter),
		executor.WithLogger(logger),
		executor.WithAtomicityChecker(scorer),
		executor.WithRevalidation(executor.RevalidationMode(cfg.Execute.Revalidation)),
		executor.WithRunID(runID),
		executor.WithCompletedAtoms(completed),
		executor.WithWaveCheckpoint(func(wave int, done []string) {
			if err := checkpoints.MarkWave(runID, wave, done); err != nil {
				logger.Log("[run] checkpoint wave %d: %v", wave, err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("build executor: %w", err)
	}

	var report *models.ExecutionReport
	var runErr error
	if runHeadless {
		report, runErr = executeHeadless(ctx, exec, g, emitter)
	} else {
		report, runErr = executeWithTUI(ctx, exec, g, emitter, stopSignals)
	}

	if report != nil {
		if err := saveReport(cwd, report); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not persist run history: %v\n", err)
		}
		if runErr == nil {
			if err := checkpoints.Complete(runID); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not finalize checkpoint: %v\n", err)
			}
		}
		printSummary(report)
	}

	if runErr != nil {
		return fmt.Errorf("run interrupted: %w", runErr)
	}
	if report != nil && report.Count(models.AtomStatusFailed) > 0 {
		return fmt.Errorf("%d atoms failed", report.Count(models.AtomStatusFailed))
	}
	return nil
}

// applyRunFlags folds command line overrides into the loaded config.
func applyRunFlags(cfg *config.Config) {
	if runMaxConcurrency > 0 {
		cfg.Execute.MaxConcurrency = runMaxConcurrency
	}
	if runRevalidation != "" {
		cfg.Execute.Revalidation = runRevalidation
	}
}

// buildGenerator constructs the Anthropic-backed generator from config.
func buildGenerator(cfg *config.Config) (executor.Generator, error) {
	apiKey := ""
	if !cfg.Anthropic.UseBedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w\n\nSet it with:\n  export ANTHROPIC_API_KEY=your-key-here\nor:\n  fission config anthropic.api_key your-key-here", err)
		}
		apiKey = key
	}

	client, err := generate.NewClient(generate.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("build Anthropic client: %w", err)
	}
	return generate.NewAnthropicGenerator(client), nil
}

// executeHeadless runs the executor while printing events to stdout.
func executeHeadless(ctx context.Context, exec *executor.WaveExecutor, g *graph.DependencyGraph, emitter *executor.Emitter) (*models.ExecutionReport, error) {
	printerDone := make(chan struct{})
	go func() {
		defer close(printerDone)
		for event := range emitter.Events() {
			printEvent(event)
		}
	}()

	report, err := exec.Execute(ctx, g)
	emitter.Close()
	<-printerDone
	return report, err
}

// executeWithTUI runs the executor behind the live monitor.
func executeWithTUI(ctx context.Context, exec *executor.WaveExecutor, g *graph.DependencyGraph, emitter *executor.Emitter, cancel context.CancelFunc) (*models.ExecutionReport, error) {
	monitor := tui.NewMonitor(g, emitter.Events(), cancel)
	program := tui.NewProgram(monitor)

	var report *models.ExecutionReport
	var runErr error
	go func() {
		report, runErr = exec.Execute(ctx, g)
		emitter.Close()
		program.Send(tui.DoneMsg{Report: report, Err: runErr})
	}()

	if _, err := program.Run(); err != nil {
		return report, fmt.Errorf("tui: %w", err)
	}
	return report, runErr
}

// printEvent renders one executor event for headless mode.
func printEvent(event executor.Event) {
	switch event.Type {
	case executor.EventStarted:
		if event.Attempt > 1 {
			color.Yellow("↻ wave %d  %s (attempt %d)", event.Wave, event.AtomID, event.Attempt)
		} else {
			fmt.Printf("• wave %d  %s\n", event.Wave, event.AtomID)
		}
	case executor.EventSucceeded:
		color.Green("✓ wave %d  %s", event.Wave, event.AtomID)
	case executor.EventFailed:
		color.Red("✗ wave %d  %s (after %d attempts)", event.Wave, event.AtomID, event.Attempt)
	case executor.EventSkipped:
		color.Yellow("⊘ wave %d  %s (dependency did not succeed)", event.Wave, event.AtomID)
	}
}

// saveReport persists the settled report into the project history database.
func saveReport(cwd string, report *models.ExecutionReport) error {
	db, err := state.OpenProject(cwd)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}
	return db.SaveReport(report)
}

// printSummary prints the final per-status counts.
func printSummary(report *models.ExecutionReport) {
	parts := []string{
		color.GreenString("%d succeeded", report.Count(models.AtomStatusSucceeded)),
	}
	if n := report.Count(models.AtomStatusFailed); n > 0 {
		parts = append(parts, color.RedString("%d failed", n))
	}
	if n := report.Count(models.AtomStatusSkipped); n > 0 {
		parts = append(parts, color.YellowString("%d skipped", n))
	}
	if n := report.Count(models.AtomStatusAborted); n > 0 {
		parts = append(parts, fmt.Sprintf("%d aborted", n))
	}
	fmt.Printf("\nRun %s settled in %s: %s\n",
		report.RunID, report.Duration().Round(time.Millisecond), strings.Join(parts, ", "))
}
