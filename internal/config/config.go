// Package config loads buildscout configuration.
//
// Values come from built-in defaults, then an optional YAML file, then
// BUILDSCOUT_* environment variables, highest last.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/buildscout/internal/buildorder"
	"github.com/fyrsmithlabs/buildscout/internal/logging"
	"github.com/fyrsmithlabs/buildscout/internal/matcher"
	"github.com/fyrsmithlabs/buildscout/internal/patternstore"
	"github.com/fyrsmithlabs/buildscout/internal/similarity"
	"github.com/fyrsmithlabs/buildscout/internal/telemetry"
	"github.com/fyrsmithlabs/buildscout/internal/validation"
)

// Config holds the complete buildscout configuration.
type Config struct {
	Store      StoreConfig       `koanf:"store"`
	Signature  SignatureConfig   `koanf:"signature"`
	Matching   MatchingConfig    `koanf:"matching"`
	Scoring    similarity.Config `koanf:"scoring"`
	Vocabulary VocabularyConfig  `koanf:"vocabulary"`
	Server     ServerConfig      `koanf:"server"`
	Logging    logging.Config    `koanf:"logging"`
	Telemetry  telemetry.Config  `koanf:"telemetry"`
}

// StoreConfig locates the pattern library on disk.
type StoreConfig struct {
	DataDir      string `koanf:"data_dir" validate:"required"`
	PatternsFile string `koanf:"patterns_file" validate:"required,excludesall=/\\"`
	CommentsFile string `koanf:"comments_file" validate:"required,excludesall=/\\"`
	StatsFile    string `koanf:"stats_file" validate:"required,excludesall=/\\"`
	// Quarantine renames corrupt files aside instead of overwriting them on
	// the next save.
	Quarantine bool `koanf:"quarantine"`
}

// SignatureConfig tunes signature construction.
type SignatureConfig struct {
	EarlyGameThreshold int `koanf:"early_game_threshold" validate:"gt=0,lte=200"`
	OpeningLength      int `koanf:"opening_length" validate:"gt=0"`
}

// MatchingConfig tunes opponent matching.
type MatchingConfig struct {
	MinSimilarity float64 `koanf:"min_similarity" validate:"gte=0,lte=1"`
	// Limit caps the number of reported matches; 0 reports all.
	Limit int `koanf:"limit" validate:"gte=0"`
}

// VocabularyConfig points at optional per-race name overrides.
type VocabularyConfig struct {
	OverridesPath string `koanf:"overrides_path"`
}

// ServerConfig controls the HTTP API served by the watch command.
type ServerConfig struct {
	// Addr is host:port to listen on. Empty disables the server.
	Addr            string        `koanf:"addr" validate:"omitempty,hostname_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			DataDir:      defaultDataDir(),
			PatternsFile: patternstore.DefaultPatternsFile,
			CommentsFile: patternstore.DefaultCommentsFile,
			StatsFile:    patternstore.DefaultStatsFile,
			Quarantine:   true,
		},
		Signature: SignatureConfig{
			EarlyGameThreshold: buildorder.DefaultEarlyGameThreshold,
			OpeningLength:      buildorder.DefaultOpeningLength,
		},
		Matching: MatchingConfig{
			MinSimilarity: matcher.DefaultMinSimilarity,
		},
		Server: ServerConfig{
			ShutdownTimeout: 5 * time.Second,
		},
		Scoring:   similarity.DefaultConfig(),
		Logging:   *logging.NewDefaultConfig(),
		Telemetry: *telemetry.NewDefaultConfig(),
	}
}

// Validate checks struct tags and the cross-field rules of each section.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}

// ConfigDir returns ~/.config/buildscout.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".buildscout")
	}
	return filepath.Join(home, ".config", "buildscout")
}

func defaultDataDir() string {
	return filepath.Join(ConfigDir(), "data")
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
