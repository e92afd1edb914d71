// Package config loads and validates the learning subsystem configuration.
// Config lives in a YAML file under ~/.bittu by default; every field has
// a safe default so a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store"`
	Patterns    PatternsConfig    `yaml:"patterns"`
	Preferences PreferencesConfig `yaml:"preferences"`
	Context     ContextConfig     `yaml:"context"`
	Suggestions SuggestionsConfig `yaml:"suggestions"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Path is the SQLite database file path. Empty means the default
	// (~/.bittu/memory.db).
	Path string `yaml:"path"`
}

// PatternsConfig tunes the pattern engine.
type PatternsConfig struct {
	MinSupport           int     `yaml:"min_support"`             // temporal patterns need at least this many observations
	MaxGapSeconds        int     `yaml:"max_gap_seconds"`         // adjacency window for sequential patterns
	RecencyWindowDays    int     `yaml:"recency_window_days"`     // recent-count window for frequency patterns
	SkipRatioWarn        float64 `yaml:"skip_ratio_warn"`         // corrupt-row ratio that triggers an integrity warning
	RecomputeIntervalMin int     `yaml:"recompute_interval_mins"` // background recompute cadence (0 disables)
}

// PreferencesConfig tunes the preference manager.
type PreferencesConfig struct {
	HalfLifeDays        int     `yaml:"half_life_days"`       // confidence decay half-life
	VisibilityThreshold float64 `yaml:"visibility_threshold"` // facts below this are hidden from suggestions
	ExplicitStrength    float64 `yaml:"explicit_strength"`    // reinforcement strength for "remember ..." commands
	InferredStrength    float64 `yaml:"inferred_strength"`    // reinforcement strength for pattern-derived facts
}

// ContextConfig tunes the in-process context window.
type ContextConfig struct {
	WindowSize       int `yaml:"window_size"`        // recent commands retained
	IdleThresholdMin int `yaml:"idle_threshold_min"` // gap that starts a new session
}

// Weights holds the per-source scoring weights for suggestions.
type Weights struct {
	Sequential float64 `yaml:"sequential"`
	Temporal   float64 `yaml:"temporal"`
	Frequency  float64 `yaml:"frequency"`
	Preference float64 `yaml:"preference"`
}

// SuggestionsConfig tunes the suggestion generator.
type SuggestionsConfig struct {
	MaxResults int     `yaml:"max_results"`
	Weights    Weights `yaml:"weights"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Debug bool   `yaml:"debug"`
}

// DefaultConfig returns the configuration with all defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Patterns: PatternsConfig{
			MinSupport:           3,
			MaxGapSeconds:        300,
			RecencyWindowDays:    30,
			SkipRatioWarn:        0.10,
			RecomputeIntervalMin: 15,
		},
		Preferences: PreferencesConfig{
			HalfLifeDays:        30,
			VisibilityThreshold: 0.2,
			ExplicitStrength:    0.9,
			InferredStrength:    0.4,
		},
		Context: ContextConfig{
			WindowSize:       20,
			IdleThresholdMin: 30,
		},
		Suggestions: SuggestionsConfig{
			MaxResults: 5,
			Weights: Weights{
				Sequential: 0.40,
				Temporal:   0.35,
				Frequency:  0.25,
				Preference: 0.25,
			},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// DefaultDir returns the default data directory (~/.bittu).
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".bittu"), nil
}

// DefaultPath returns the default config file path (~/.bittu/config.yaml).
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultDBPath returns the default database path (~/.bittu/memory.db).
func DefaultDBPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "memory.db"), nil
}

// Load reads the config file at path, applying defaults for missing
// fields and clamping out-of-range values. A missing file yields the
// defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.clamp()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BITTU_DB_PATH"); v != "" {
		c.Store.Path = v
	}
	if os.Getenv("BITTU_DEBUG") == "1" {
		c.Logging.Debug = true
	}
}

// clamp pulls out-of-range values back to safe defaults.
func (c *Config) clamp() {
	def := DefaultConfig()

	if c.Patterns.MinSupport < 1 {
		c.Patterns.MinSupport = def.Patterns.MinSupport
	}
	if c.Patterns.MaxGapSeconds <= 0 {
		c.Patterns.MaxGapSeconds = def.Patterns.MaxGapSeconds
	}
	if c.Patterns.RecencyWindowDays <= 0 {
		c.Patterns.RecencyWindowDays = def.Patterns.RecencyWindowDays
	}
	if c.Patterns.SkipRatioWarn <= 0 || c.Patterns.SkipRatioWarn > 1 {
		c.Patterns.SkipRatioWarn = def.Patterns.SkipRatioWarn
	}
	if c.Patterns.RecomputeIntervalMin < 0 {
		c.Patterns.RecomputeIntervalMin = def.Patterns.RecomputeIntervalMin
	}

	if c.Preferences.HalfLifeDays <= 0 {
		c.Preferences.HalfLifeDays = def.Preferences.HalfLifeDays
	}
	if c.Preferences.VisibilityThreshold < 0 || c.Preferences.VisibilityThreshold >= 1 {
		c.Preferences.VisibilityThreshold = def.Preferences.VisibilityThreshold
	}
	if c.Preferences.ExplicitStrength <= 0 || c.Preferences.ExplicitStrength > 1 {
		c.Preferences.ExplicitStrength = def.Preferences.ExplicitStrength
	}
	if c.Preferences.InferredStrength <= 0 || c.Preferences.InferredStrength > 1 {
		c.Preferences.InferredStrength = def.Preferences.InferredStrength
	}

	if c.Context.WindowSize <= 0 {
		c.Context.WindowSize = def.Context.WindowSize
	}
	if c.Context.IdleThresholdMin <= 0 {
		c.Context.IdleThresholdMin = def.Context.IdleThresholdMin
	}

	if c.Suggestions.MaxResults <= 0 {
		c.Suggestions.MaxResults = def.Suggestions.MaxResults
	}
	w := &c.Suggestions.Weights
	if w.Sequential < 0 {
		w.Sequential = def.Suggestions.Weights.Sequential
	}
	if w.Temporal < 0 {
		w.Temporal = def.Suggestions.Weights.Temporal
	}
	if w.Frequency < 0 {
		w.Frequency = def.Suggestions.Weights.Frequency
	}
	if w.Preference < 0 {
		w.Preference = def.Suggestions.Weights.Preference
	}
	if w.Sequential+w.Temporal+w.Frequency+w.Preference == 0 {
		*w = def.Suggestions.Weights
	}
}

// Save writes the config to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
