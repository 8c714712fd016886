package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a fission project",
	Long: `Initialize a directory for use with fission.

This command sets up everything needed to run fission:
  - Creates the .fission directory structure (logs, signals, databases)
  - Creates a project context snapshot template
  - Creates a .fission.yaml config template
  - Adds fission entries to .gitignore if one exists

The directory argument is optional and defaults to the current directory.

Examples:
  fission init              # Initialize current directory
  fission init ./myproject  # Initialize specific directory
  fission init --force      # Reinitialize even if already set up`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing fission in %s...\n\n", absPath)

	fissionDir := filepath.Join(absPath, ".fission")
	if _, err := os.Stat(fissionDir); err == nil && !initForce {
		fmt.Println("Directory already initialized. Use --force to reinitialize.")
		return nil
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		printStatus("⚠", "ANTHROPIC_API_KEY not set (you can set it later)", color.FgYellow)
	} else {
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}

	for _, sub := range []string{"logs", "signals"} {
		if err := os.MkdirAll(filepath.Join(fissionDir, sub), 0755); err != nil {
			return fmt.Errorf("creating .fission/%s directory: %w", sub, err)
		}
	}
	printStatus("✓", "Created .fission directory structure", color.FgGreen)

	if err := createContextTemplate(fissionDir); err != nil {
		return fmt.Errorf("creating context template: %w", err)
	}
	printStatus("✓", "Created .fission/context.yaml template", color.FgGreen)

	if err := createProjectConfig(absPath); err != nil {
		return fmt.Errorf("creating project config: %w", err)
	}
	printStatus("✓", "Created .fission.yaml template", color.FgGreen)

	if err := updateGitignore(absPath); err != nil {
		return fmt.Errorf("updating .gitignore: %w", err)
	}

	fmt.Printf("\n%s fission initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	if apiKey == "" {
		fmt.Println("  1. Set your API key:")
		fmt.Println("     export ANTHROPIC_API_KEY=your-key-here")
		fmt.Println()
	}
	fmt.Println("  2. Describe your project's types and conventions in .fission/context.yaml")
	fmt.Println()
	fmt.Println("  3. Plan and run:")
	fmt.Println("     fission plan task.txt")
	fmt.Println("     fission run task.txt")

	return nil
}

// createContextTemplate writes an example project context snapshot.
func createContextTemplate(fissionDir string) error {
	path := filepath.Join(fissionDir, "context.yaml")
	if _, err := os.Stat(path); err == nil && !initForce {
		return nil
	}

	template := `# Project context snapshot.
# Every free identifier a fragment references must resolve here, or
# planning aborts with an unresolved-reference error.

symbols:
  # - name: User
  #   kind: type
  #   definition: "struct { ID string; Email string }"

runtime:
  language: go

conventions:
  error_handling: "return explicit errors, no panics"
`
	return os.WriteFile(path, []byte(template), 0644)
}

// createProjectConfig creates a .fission.yaml template.
func createProjectConfig(repoPath string) error {
	configPath := filepath.Join(repoPath, ".fission.yaml")

	if _, err := os.Stat(configPath); err == nil {
		return nil // Already exists, don't overwrite
	}

	template := `# Fission project configuration
# This file overrides defaults from ~/.config/fission/config.yaml

# decompose:
#   max_depth: 10
#   max_complexity: 3.0
#   max_size: 10

# execute:
#   max_concurrency: 4
#   attempt_timeout: 2m
#   max_attempts: 4
#   revalidation: full
`

	return os.WriteFile(configPath, []byte(template), 0644)
}

// updateGitignore adds fission entries to an existing .gitignore.
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	data, err := os.ReadFile(gitignorePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no repo ignore file, nothing to update
		}
		return err
	}
	existingContent := string(data)

	fissionEntries := []string{
		".fission/logs/",
		".fission/signals/",
		".fission/*.db*",
	}

	needsUpdate := false
	for _, entry := range fissionEntries {
		if !strings.Contains(existingContent, entry) {
			needsUpdate = true
			break
		}
	}
	if !needsUpdate {
		return nil
	}

	var newContent strings.Builder
	newContent.WriteString(existingContent)
	if len(existingContent) > 0 && !strings.HasSuffix(existingContent, "\n") {
		newContent.WriteString("\n")
	}
	newContent.WriteString("\n# fission\n")
	for _, entry := range fissionEntries {
		if !strings.Contains(existingContent, entry) {
			newContent.WriteString(entry + "\n")
		}
	}

	if err := os.WriteFile(gitignorePath, []byte(newContent.String()), 0644); err != nil {
		return err
	}
	printStatus("✓", "Updated .gitignore with fission entries", color.FgGreen)
	return nil
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
