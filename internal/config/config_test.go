package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.Patterns, cfg.Patterns)
	assert.Equal(t, def.Preferences, cfg.Preferences)
	assert.Equal(t, def.Suggestions, cfg.Suggestions)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
patterns:
  min_support: 5
suggestions:
  max_results: 3
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Patterns.MinSupport)
	assert.Equal(t, 3, cfg.Suggestions.MaxResults)
	// Untouched fields keep defaults.
	assert.Equal(t, 300, cfg.Patterns.MaxGapSeconds)
	assert.Equal(t, 0.40, cfg.Suggestions.Weights.Sequential)
}

func TestLoadClampsOutOfRangeValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
patterns:
  min_support: -2
  skip_ratio_warn: 4.0
preferences:
  visibility_threshold: 1.5
  half_life_days: -1
context:
  window_size: 0
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.Patterns.MinSupport, cfg.Patterns.MinSupport)
	assert.Equal(t, def.Patterns.SkipRatioWarn, cfg.Patterns.SkipRatioWarn)
	assert.Equal(t, def.Preferences.VisibilityThreshold, cfg.Preferences.VisibilityThreshold)
	assert.Equal(t, def.Preferences.HalfLifeDays, cfg.Preferences.HalfLifeDays)
	assert.Equal(t, def.Context.WindowSize, cfg.Context.WindowSize)
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("patterns: [not a map"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrideDBPath(t *testing.T) {
	t.Setenv("BITTU_DB_PATH", "/tmp/custom.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", cfg.Store.Path)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Patterns.MinSupport = 7
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Patterns.MinSupport)
}
