// Package config provides unified configuration for the yourdb process:
// where the database directory lives and the compactor's trigger policy.
// Adapted from the teacher's internal/config/config.go — same
// YAML/JSON-file-plus-env-override-plus-Resolve/Validate/EnsureDirectories
// shape, trimmed to the single embedded store's concerns.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the unified configuration for one yourdb database directory.
type Config struct {
	// DataDir is the database directory D (spec.md §6): holds catalog.meta
	// and the per-entity entities/ subtree.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Compaction is the trigger policy a host passes to
	// entity.Engine.ShouldOptimize; the engine does not compact on its own.
	Compaction CompactionConfig `json:"compaction" yaml:"compaction"`
}

// CompactionConfig holds the Compactor's trigger policy (spec.md §4.7:
// "triggered ... when live-set-size / log-frame-count drops below a
// configured ratio").
type CompactionConfig struct {
	// TriggerRatio is the live-set-size / log-frame-count threshold below
	// which ShouldOptimize/ShouldCompact report true. 0 makes them always
	// report false; callers still have explicit Optimize available.
	TriggerRatio float64 `json:"trigger_ratio" yaml:"trigger_ratio"`

	// MinFrames is the minimum log-frame-count before the ratio check
	// applies at all, so an entity with a handful of frames is never
	// reported as due for compaction.
	MinFrames int `json:"min_frames" yaml:"min_frames"`
}

// DefaultConfig returns the configuration a fresh yourdb process starts
// from before any file or environment overrides are applied.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/yourdb",
		Compaction: CompactionConfig{
			TriggerRatio: 0.5,
			MinFrames:    1000,
		},
	}
}

// CatalogPath returns the path to the catalog database.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.DataDir, "catalog.meta")
}

// Resolve fills in the default DataDir and Compaction.MinFrames when a
// loaded file or environment overrides left them empty or zero.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/yourdb"
	}
	if c.Compaction.MinFrames == 0 {
		c.Compaction.MinFrames = 1000
	}
}

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if c.Compaction.TriggerRatio < 0 || c.Compaction.TriggerRatio > 1 {
		return fmt.Errorf("config: compaction.trigger_ratio must be between 0 and 1, got %v", c.Compaction.TriggerRatio)
	}
	if c.Compaction.MinFrames < 0 {
		return fmt.Errorf("config: compaction.min_frames must be non-negative, got %d", c.Compaction.MinFrames)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file, layered over
// DefaultConfig.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("config: unsupported file extension %q", ext)
	}
	return cfg, nil
}

// LoadFromEnv applies YOURDB_* environment overrides on top of cfg.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("YOURDB_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("YOURDB_COMPACTION_TRIGGER_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Compaction.TriggerRatio = f
		}
	}
	if v := os.Getenv("YOURDB_COMPACTION_MIN_FRAMES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Compaction.MinFrames = n
		}
	}
}

// EnsureDirectories creates the database directory tree if absent.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(filepath.Join(c.DataDir, "entities"), 0o755); err != nil {
		return fmt.Errorf("config: create data directory: %w", err)
	}
	return nil
}

// ShouldCompact reports whether the engine should trigger an automatic
// Optimize given the current live-set size and log frame count, per the
// configured trigger ratio and minimum frame count.
func (c *Config) ShouldCompact(liveSetSize, logFrameCount int) bool {
	if c.Compaction.TriggerRatio <= 0 || logFrameCount < c.Compaction.MinFrames {
		return false
	}
	ratio := float64(liveSetSize) / float64(logFrameCount)
	return ratio < c.Compaction.TriggerRatio
}
