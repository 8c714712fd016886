package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/fission/internal/state"
	"github.com/ShayCichocki/fission/pkg/models"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show run history",
	Long: `Display recent execution runs from the project history database.

Without arguments, lists recent runs with their per-status counts.
With a run ID, shows every atom's terminal status and attempt history
for that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of recent runs to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No run history. Run 'fission run <file>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if len(args) == 1 {
		return displayRun(db, args[0])
	}
	return displayRecentRuns(db)
}

func displayRecentRuns(db *state.DB) error {
	runs, err := db.RecentRuns(statusLimit)
	if err != nil {
		return fmt.Errorf("list recent runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No run history. Run 'fission run <file>' to start.")
		return nil
	}

	fmt.Println("Recent runs:")
	for _, run := range runs {
		elapsed := formatDuration(time.Since(run.StartedAt))
		fmt.Printf("  %s  %d waves, %d atoms, %.0f%% succeeded (%s ago)\n",
			run.RunID, run.Waves, run.Atoms, run.SuccessRate()*100, elapsed)
		if run.Failed > 0 || run.Skipped > 0 || run.Aborted > 0 {
			fmt.Printf("    %s", color.RedString("%d failed", run.Failed))
			if run.Skipped > 0 {
				fmt.Printf(", %s", color.YellowString("%d skipped", run.Skipped))
			}
			if run.Aborted > 0 {
				fmt.Printf(", %d aborted", run.Aborted)
			}
			fmt.Println()
		}
	}
	return nil
}

func displayRun(db *state.DB, runID string) error {
	results, err := db.RunResults(runID)
	if err != nil {
		return fmt.Errorf("load run results: %w", err)
	}
	if len(results) == 0 {
		fmt.Printf("No results for run %s\n", runID)
		return nil
	}

	fmt.Printf("Run %s:\n", runID)
	lastWave := -1
	for _, res := range results {
		if res.Wave != lastWave {
			fmt.Printf("  wave %d:\n", res.Wave)
			lastWave = res.Wave
		}
		fmt.Printf("    %s %s\n", statusGlyph(res.Status), res.AtomID)
		for _, attempt := range res.Attempts {
			fmt.Printf("      attempt %d: %s (exploration %.1f, %s)\n",
				attempt.AttemptNumber, attempt.Outcome, attempt.Parameters.Exploration,
				attempt.FinishedAt.Sub(attempt.StartedAt).Round(time.Millisecond))
		}
		if res.Error != "" {
			fmt.Printf("      %s\n", color.RedString(res.Error))
		}
	}
	return nil
}

func statusGlyph(status models.AtomStatus) string {
	switch status {
	case models.AtomStatusSucceeded:
		return color.GreenString("✓")
	case models.AtomStatusFailed:
		return color.RedString("✗")
	case models.AtomStatusSkipped:
		return color.YellowString("⊘")
	case models.AtomStatusAborted:
		return "◼"
	default:
		return "·"
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
