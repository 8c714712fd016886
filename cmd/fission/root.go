package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fission",
	Short: "Task decomposition and parallel wave execution",
	Long: `Fission splits a source fragment into atomic, self-contained units,
orders them into dependency waves, and executes the waves in parallel
against the Anthropic API.

Core capabilities:
- Decomposes a fragment into atoms along structural cut points
- Injects complete context so every atom stands alone
- Validates atomicity against a five-criteria rubric
- Builds a dependency graph and partitions it into waves
- Executes waves with bounded concurrency and retry orchestration`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
