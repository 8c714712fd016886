package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ShayCichocki/fission/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify fission configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/fission/config.yaml
Project-specific overrides can be placed in .fission.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s (%s)\n",
		config.MaskAPIKey(cfg.Anthropic.APIKey), config.GetAPIKeySource(cfg))
	fmt.Printf("anthropic.model: %s\n", orDefault(cfg.Anthropic.Model))
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("decompose.max_depth: %d\n", cfg.Decompose.MaxDepth)
	fmt.Printf("decompose.max_complexity: %g\n", cfg.Decompose.MaxComplexity)
	fmt.Printf("decompose.max_size: %d\n", cfg.Decompose.MaxSize)
	fmt.Printf("execute.max_concurrency: %d\n", cfg.Execute.MaxConcurrency)
	fmt.Printf("execute.attempt_timeout: %s\n", cfg.Execute.AttemptTimeout)
	fmt.Printf("execute.max_attempts: %d\n", cfg.Execute.MaxAttempts)
	fmt.Printf("execute.revalidation: %s\n", cfg.Execute.Revalidation)
	fmt.Printf("context.path: %s\n", cfg.Context.Path)
	fmt.Printf("context.cache_size: %d\n", cfg.Context.CacheSize)
	fmt.Printf("tui.refresh_rate: %s\n", cfg.TUI.RefreshRate)
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return orDefault(cfg.Anthropic.Model), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "decompose.max_depth":
		return strconv.Itoa(cfg.Decompose.MaxDepth), nil
	case "decompose.max_complexity":
		return strconv.FormatFloat(cfg.Decompose.MaxComplexity, 'g', -1, 64), nil
	case "decompose.max_size":
		return strconv.Itoa(cfg.Decompose.MaxSize), nil
	case "execute.max_concurrency":
		return strconv.Itoa(cfg.Execute.MaxConcurrency), nil
	case "execute.attempt_timeout":
		return cfg.Execute.AttemptTimeout.String(), nil
	case "execute.max_attempts":
		return strconv.Itoa(cfg.Execute.MaxAttempts), nil
	case "execute.revalidation":
		return cfg.Execute.Revalidation, nil
	case "context.path":
		return cfg.Context.Path, nil
	case "context.cache_size":
		return strconv.Itoa(cfg.Context.CacheSize), nil
	case "tui.refresh_rate":
		return cfg.TUI.RefreshRate.String(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for use_bedrock: %w", err)
		}
		cfg.Anthropic.UseBedrock = b
	case "decompose.max_depth":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_depth: %w", err)
		}
		cfg.Decompose.MaxDepth = n
	case "decompose.max_complexity":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for max_complexity: %w", err)
		}
		cfg.Decompose.MaxComplexity = f
	case "decompose.max_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_size: %w", err)
		}
		cfg.Decompose.MaxSize = n
	case "execute.max_concurrency":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_concurrency: %w", err)
		}
		cfg.Execute.MaxConcurrency = n
	case "execute.attempt_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for attempt_timeout: %w", err)
		}
		cfg.Execute.AttemptTimeout = d
	case "execute.max_attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_attempts: %w", err)
		}
		cfg.Execute.MaxAttempts = n
	case "execute.revalidation":
		switch value {
		case "full", "context-only", "off":
			cfg.Execute.Revalidation = value
		default:
			return fmt.Errorf("invalid revalidation mode: %s (want full, context-only, or off)", value)
		}
	case "context.path":
		cfg.Context.Path = value
	case "context.cache_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for cache_size: %w", err)
		}
		cfg.Context.CacheSize = n
	case "tui.refresh_rate":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for refresh_rate: %w", err)
		}
		cfg.TUI.RefreshRate = d
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
