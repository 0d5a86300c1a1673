// Package config loads watchset configuration from defaults, YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	werrors "github.com/Aman-CERP/watchset/internal/errors"
)

// Project config file names, in lookup order.
const (
	ProjectConfigFile    = ".watchset.yaml"
	ProjectConfigFileAlt = ".watchset.yml"
)

// Config represents the complete watchset configuration.
type Config struct {
	Version int `yaml:"version" json:"version"`

	// Watch tunes the watch set.
	Watch WatchConfig `yaml:"watch" json:"watch"`

	// Inventory is the path of the file listing the files to watch.
	// Relative paths resolve against the directory holding the config.
	Inventory string `yaml:"inventory" json:"inventory"`

	// Command is run once per change notification.
	Command []string `yaml:"command" json:"command"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// WatchConfig configures the watch set.
type WatchConfig struct {
	// Debounce is the coalescing window (e.g. "200ms").
	Debounce string `yaml:"debounce" json:"debounce"`
	// PollFallback polls files whose native watch cannot be created.
	PollFallback bool `yaml:"poll_fallback" json:"poll_fallback"`
	// PollInterval is the polling period for fallback handles (e.g. "1s").
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Watch: WatchConfig{
			Debounce:     "200ms",
			PollFallback: false,
			PollInterval: "1s",
		},
		LogLevel: "warn",
	}
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/watchset/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/watchset/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "watchset", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "watchset", "config.yaml")
	}
	return filepath.Join(home, ".config", "watchset", "config.yaml")
}

// Load loads configuration for the given directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/watchset/config.yaml)
//  3. Project config (.watchset.yaml in dir)
//  4. Environment variables (WATCHSET_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userPath := GetUserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFile loads defaults overridden by a single YAML file and the
// environment. A missing file is an error.
func LoadFile(path string) (*Config, error) {
	if !fileExists(path) {
		return nil, werrors.New(werrors.ErrCodeConfigNotFound,
			fmt.Sprintf("config file not found: %s", path), nil)
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromDir loads .watchset.yaml or .watchset.yml from dir if present.
func (c *Config) loadFromDir(dir string) error {
	for _, name := range []string{ProjectConfigFile, ProjectConfigFileAlt} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML merges a YAML file into c. A relative inventory path is made
// absolute against the file's directory.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return werrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err)
	}

	if parsed.Inventory != "" && !filepath.IsAbs(parsed.Inventory) {
		parsed.Inventory = filepath.Join(filepath.Dir(path), parsed.Inventory)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Watch.PollFallback {
		c.Watch.PollFallback = true
	}
	if other.Watch.PollInterval != "" {
		c.Watch.PollInterval = other.Watch.PollInterval
	}
	if other.Inventory != "" {
		c.Inventory = other.Inventory
	}
	if len(other.Command) > 0 {
		c.Command = other.Command
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WATCHSET_DEBOUNCE"); v != "" {
		c.Watch.Debounce = v
	}
	if v := os.Getenv("WATCHSET_POLL_FALLBACK"); v != "" {
		c.Watch.PollFallback = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("WATCHSET_POLL_INTERVAL"); v != "" {
		c.Watch.PollInterval = v
	}
	if v := os.Getenv("WATCHSET_INVENTORY"); v != "" {
		c.Inventory = v
	}
	if v := os.Getenv("WATCHSET_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks durations and the log level.
func (c *Config) Validate() error {
	if _, err := parsePositiveDuration("watch.debounce", c.Watch.Debounce); err != nil {
		return err
	}
	if _, err := parsePositiveDuration("watch.poll_interval", c.Watch.PollInterval); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return werrors.ConfigError(
			fmt.Sprintf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel), nil)
	}

	return nil
}

// DebounceWindow returns the parsed coalescing window.
func (c *Config) DebounceWindow() time.Duration {
	d, _ := parsePositiveDuration("watch.debounce", c.Watch.Debounce)
	return d
}

// PollInterval returns the parsed polling interval.
func (c *Config) PollInterval() time.Duration {
	d, _ := parsePositiveDuration("watch.poll_interval", c.Watch.PollInterval)
	return d
}

func parsePositiveDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, werrors.ConfigError(fmt.Sprintf("%s: invalid duration %q", field, value), err)
	}
	if d <= 0 {
		return 0, werrors.ConfigError(fmt.Sprintf("%s must be positive, got %s", field, value), nil)
	}
	return d, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// FindProjectRoot walks up from startDir looking for a .git directory or a
// watchset config file. Returns the absolute startDir if neither is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) ||
			fileExists(filepath.Join(currentDir, ProjectConfigFile)) ||
			fileExists(filepath.Join(currentDir, ProjectConfigFileAlt)) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
