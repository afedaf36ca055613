package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir so DefaultPath never hits the
// real user config.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	setupTestHome(t)
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 60, cfg.Signature.EarlyGameThreshold)
	assert.Equal(t, 10, cfg.Signature.OpeningLength)
	assert.InDelta(t, 0.60, cfg.Matching.MinSimilarity, 1e-9)
	assert.Equal(t, "patterns.json", cfg.Store.PatternsFile)
	assert.Equal(t, "comments.json", cfg.Store.CommentsFile)
	assert.Equal(t, "pattern_stats.json", cfg.Store.StatsFile)
	assert.True(t, cfg.Store.Quarantine)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestConfig_Validate(t *testing.T) {
	setupTestHome(t)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"missing data dir", func(c *Config) { c.Store.DataDir = "" }, "DataDir is required"},
		{"file name with separator", func(c *Config) { c.Store.PatternsFile = "../patterns.json" }, "PatternsFile"},
		{"zero threshold", func(c *Config) { c.Signature.EarlyGameThreshold = 0 }, "EarlyGameThreshold must be greater than 0"},
		{"zero opening", func(c *Config) { c.Signature.OpeningLength = 0 }, "OpeningLength"},
		{"similarity above one", func(c *Config) { c.Matching.MinSimilarity = 1.2 }, "MinSimilarity must be less than or equal to 1"},
		{"negative limit", func(c *Config) { c.Matching.Limit = -1 }, "Limit"},
		{"bad server addr", func(c *Config) { c.Server.Addr = "not an addr" }, "Server.Addr"},
		{"server addr ok", func(c *Config) { c.Server.Addr = "localhost:9102" }, ""},
		{"zero shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "ShutdownTimeout"},
		{"bad scoring", func(c *Config) { c.Scoring.ExpansionFloor = 2 }, "scoring"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging"},
		{"bad telemetry", func(c *Config) { c.Telemetry.Enabled = true; c.Telemetry.Endpoint = "" }, "telemetry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	home := setupTestHome(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "buildscout", "data"), cfg.Store.DataDir)
	assert.Equal(t, Default().Scoring, cfg.Scoring)
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	setupTestHome(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_YAML(t *testing.T) {
	setupTestHome(t)
	path := writeConfig(t, t.TempDir(), `
store:
  data_dir: /var/lib/buildscout
  quarantine: false
signature:
  early_game_threshold: 50
matching:
  min_similarity: 0.7
  limit: 5
scoring:
  expansion_multipliers: [1.0, 0.5]
logging:
  level: debug
  format: json
  sampling:
    tick: 2s
server:
  addr: 127.0.0.1:9102
telemetry:
  shutdown_timeout: 10s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/buildscout", cfg.Store.DataDir)
	assert.False(t, cfg.Store.Quarantine)
	assert.Equal(t, 50, cfg.Signature.EarlyGameThreshold)
	assert.Equal(t, 10, cfg.Signature.OpeningLength, "unset fields keep defaults")
	assert.InDelta(t, 0.7, cfg.Matching.MinSimilarity, 1e-9)
	assert.Equal(t, 5, cfg.Matching.Limit)
	assert.Equal(t, []float64{1.0, 0.5}, cfg.Scoring.ExpansionMultipliers)
	assert.Len(t, cfg.Scoring.TimingBuckets, 3)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 2*time.Second, cfg.Logging.Sampling.Tick)
	assert.Equal(t, 10*time.Second, cfg.Telemetry.ShutdownTimeout)
	assert.Equal(t, "127.0.0.1:9102", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "buildscout", cfg.Logging.Fields["service"])
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	setupTestHome(t)
	path := writeConfig(t, t.TempDir(), `
matching:
  min_similarity: 0.7
`)
	t.Setenv("BUILDSCOUT_MATCHING_MIN_SIMILARITY", "0.8")
	t.Setenv("BUILDSCOUT_SIGNATURE_OPENING_LENGTH", "12")
	t.Setenv("BUILDSCOUT_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, cfg.Matching.MinSimilarity, 1e-9)
	assert.Equal(t, 12, cfg.Signature.OpeningLength)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_ExpandsHome(t *testing.T) {
	home := setupTestHome(t)
	t.Setenv("BUILDSCOUT_STORE_DATA_DIR", "~/games")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "games"), cfg.Store.DataDir)
}

func TestLoad_InvalidValues(t *testing.T) {
	setupTestHome(t)
	path := writeConfig(t, t.TempDir(), `
matching:
  min_similarity: 3
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestLoad_MalformedYAML(t *testing.T) {
	setupTestHome(t)
	path := writeConfig(t, t.TempDir(), "store: [unclosed")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config file")
}

func TestLoad_FileTooLarge(t *testing.T) {
	setupTestHome(t)
	path := writeConfig(t, t.TempDir(), "# "+strings.Repeat("x", maxConfigFileSize))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrConfigTooLarge)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "store.data_dir", envKey("BUILDSCOUT_STORE_DATA_DIR"))
	assert.Equal(t, "matching.min_similarity", envKey("BUILDSCOUT_MATCHING_MIN_SIMILARITY"))
	assert.Equal(t, "debug", envKey("BUILDSCOUT_DEBUG"))
}

func TestEnsureConfigDir(t *testing.T) {
	home := setupTestHome(t)

	require.NoError(t, EnsureConfigDir())
	info, err := os.Stat(filepath.Join(home, ".config", "buildscout"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
