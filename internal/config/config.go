// Package config handles configuration loading and management for Foreman.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/tmcfarlane/foreman/pkg/models"
)

// Config holds all configuration for Foreman.
type Config struct {
	Roles    RolesConfig    `mapstructure:"roles"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
	Paths    PathsConfig    `mapstructure:"paths"`
}

// RoleConfig describes how to invoke one agent role.
type RoleConfig struct {
	// Command is the executable plus any leading arguments.
	Command []string `mapstructure:"command"`
	// Model is the model identifier passed to the CLI; empty omits the flag.
	Model string `mapstructure:"model"`
}

// RolesConfig holds the three role invocations.
type RolesConfig struct {
	Planner  RoleConfig `mapstructure:"planner"`
	Worker   RoleConfig `mapstructure:"worker"`
	Verifier RoleConfig `mapstructure:"verifier"`
}

// WorkerConfig holds worker retry settings.
type WorkerConfig struct {
	// Tiers is the escalation ladder as a comma-separated list, weakest first.
	Tiers string `mapstructure:"tiers"`
}

// TimeoutsConfig holds per-role timeouts. Zero disables the deadline.
type TimeoutsConfig struct {
	Planner  time.Duration `mapstructure:"planner"`
	Worker   time.Duration `mapstructure:"worker"`
	Verifier time.Duration `mapstructure:"verifier"`
}

// PathsConfig holds filesystem layout settings, relative to the repo root.
type PathsConfig struct {
	// ControlDir holds the plan, prompts, schemas, and run ledger.
	ControlDir string `mapstructure:"control_dir"`
	// WorktreesDir holds the per-step git worktrees.
	WorktreesDir string `mapstructure:"worktrees_dir"`
}

// Ladder parses the configured tier list.
func (c *Config) Ladder() (models.Ladder, error) {
	ladder := models.ParseLadder(c.Worker.Tiers)
	if len(ladder) == 0 {
		return nil, fmt.Errorf("worker.tiers must name at least one tier")
	}
	return ladder, nil
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (FOREMAN_*)
// 2. Project config (.foreman/config.yaml in current directory or parent)
// 3. User config (~/.config/foreman/config.yaml)
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
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("FOREMAN")
	v.AutomaticEnv()
	v.BindEnv("worker.tiers", "FOREMAN_WORKER_TIERS")
	v.BindEnv("roles.planner.model", "FOREMAN_PLANNER_MODEL")
	v.BindEnv("roles.verifier.model", "FOREMAN_VERIFIER_MODEL")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
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
	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("roles.planner.command", []string{"claude"})
	v.SetDefault("roles.planner.model", "opus")
	v.SetDefault("roles.worker.command", []string{"claude"})
	v.SetDefault("roles.worker.model", "")
	v.SetDefault("roles.verifier.command", []string{"claude"})
	v.SetDefault("roles.verifier.model", "opus")

	v.SetDefault("worker.tiers", "sonnet,opus")

	v.SetDefault("timeouts.planner", "10m")
	v.SetDefault("timeouts.worker", "45m")
	v.SetDefault("timeouts.verifier", "15m")

	v.SetDefault("paths.control_dir", ".foreman")
	v.SetDefault("paths.worktrees_dir", ".worktrees")
}

// getUserConfigDir returns the XDG config directory for Foreman.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "foreman")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "foreman")
	}
	return filepath.Join(home, ".config", "foreman")
}

// findProjectConfig searches for .foreman/config.yaml in the current
// directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".foreman", "config.yaml")
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
		Roles: RolesConfig{
			Planner:  RoleConfig{Command: []string{"claude"}, Model: "opus"},
			Worker:   RoleConfig{Command: []string{"claude"}},
			Verifier: RoleConfig{Command: []string{"claude"}, Model: "opus"},
		},
		Worker: WorkerConfig{
			Tiers: "sonnet,opus",
		},
		Timeouts: TimeoutsConfig{
			Planner:  10 * time.Minute,
			Worker:   45 * time.Minute,
			Verifier: 15 * time.Minute,
		},
		Paths: PathsConfig{
			ControlDir:   ".foreman",
			WorktreesDir: ".worktrees",
		},
	}
}
