// Package config handles configuration loading and management for fission.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for fission.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Decompose DecomposeConfig `mapstructure:"decompose"`
	Execute   ExecuteConfig   `mapstructure:"execute"`
	Context   ContextConfig   `mapstructure:"context"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// UseBedrock routes generation through AWS Bedrock instead of the
	// direct API.
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// DecomposeConfig holds decomposition thresholds.
type DecomposeConfig struct {
	// MaxDepth bounds the decomposition worklist.
	MaxDepth int `mapstructure:"max_depth"`
	// MaxComplexity is the single-purpose complexity threshold.
	MaxComplexity float64 `mapstructure:"max_complexity"`
	// MaxSize is the single-purpose line-count threshold.
	MaxSize int `mapstructure:"max_size"`
}

// ExecuteConfig holds wave execution settings.
type ExecuteConfig struct {
	// MaxConcurrency bounds in-flight atoms per wave.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// AttemptTimeout bounds one generate+validate attempt.
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	// MaxAttempts is the per-atom retry budget.
	MaxAttempts int `mapstructure:"max_attempts"`
	// ExplorationSchedule is the per-attempt exploration knob sequence.
	ExplorationSchedule []float64 `mapstructure:"exploration_schedule"`
	// Revalidation is the re-check mode before retries: full,
	// context-only, or off.
	Revalidation string `mapstructure:"revalidation"`
}

// ContextConfig holds project context settings.
type ContextConfig struct {
	// Path is the project context snapshot file.
	Path string `mapstructure:"path"`
	// CacheSize bounds the resolution cache for expensive providers.
	CacheSize int `mapstructure:"cache_size"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, FISSION_*)
// 2. Project config (.fission.yaml in current directory or parent)
// 3. User config (~/.config/fission/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("FISSION")
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "FISSION_MODEL")
	v.BindEnv("execute.max_concurrency", "FISSION_MAX_CONCURRENCY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("decompose.max_depth", cfg.Decompose.MaxDepth)
	v.Set("decompose.max_complexity", cfg.Decompose.MaxComplexity)
	v.Set("decompose.max_size", cfg.Decompose.MaxSize)
	v.Set("execute.max_concurrency", cfg.Execute.MaxConcurrency)
	v.Set("execute.attempt_timeout", cfg.Execute.AttemptTimeout.String())
	v.Set("execute.max_attempts", cfg.Execute.MaxAttempts)
	v.Set("execute.exploration_schedule", cfg.Execute.ExplorationSchedule)
	v.Set("execute.revalidation", cfg.Execute.Revalidation)
	v.Set("context.path", cfg.Context.Path)
	v.Set("context.cache_size", cfg.Context.CacheSize)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)

	v.SetDefault("decompose.max_depth", 10)
	v.SetDefault("decompose.max_complexity", 3.0)
	v.SetDefault("decompose.max_size", 10)

	v.SetDefault("execute.max_concurrency", 4)
	v.SetDefault("execute.attempt_timeout", "2m")
	v.SetDefault("execute.max_attempts", 4)
	v.SetDefault("execute.exploration_schedule", []float64{0.7, 0.5, 0.3, 0.3})
	v.SetDefault("execute.revalidation", "full")

	v.SetDefault("context.path", filepath.Join(".fission", "context.yaml"))
	v.SetDefault("context.cache_size", 1024)

	v.SetDefault("tui.refresh_rate", "100ms")
}

// getUserConfigDir returns the XDG config directory for fission.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "fission")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "fission")
	}
	return filepath.Join(home, ".config", "fission")
}

// findProjectConfig searches for .fission.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".fission.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Decompose: DecomposeConfig{
			MaxDepth:      10,
			MaxComplexity: 3.0,
			MaxSize:       10,
		},
		Execute: ExecuteConfig{
			MaxConcurrency:      4,
			AttemptTimeout:      2 * time.Minute,
			MaxAttempts:         4,
			ExplorationSchedule: []float64{0.7, 0.5, 0.3, 0.3},
			Revalidation:        "full",
		},
		Context: ContextConfig{
			Path:      filepath.Join(".fission", "context.yaml"),
			CacheSize: 1024,
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
}
