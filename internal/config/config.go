// Package config provides run configuration for the pipeline: reference time,
// worker counts, enrichment tuning, and per-dataset cleaning mode.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultWorkers       = 4
	DefaultContamination = 0.10
	DefaultSeed          = 42
)

// Config is the run configuration. The zero value is usable after
// WithDefaults.
type Config struct {
	// Reference is the pinned "now" for recency-dependent metrics, RFC 3339.
	// Empty means the caller supplies wall clock at startup.
	Reference string `json:"reference" yaml:"reference"`

	// Workers bounds the aggregator pool (0 = default).
	Workers int `json:"workers" yaml:"workers"`

	// Datasets maps dataset name to cleaning mode: "schema" (declared
	// schema, the default for known datasets) or "generic" (fallback
	// heuristic cleaner).
	Datasets map[string]string `json:"datasets" yaml:"datasets"`

	// Enrichment tuning.
	Contamination float64 `json:"contamination" yaml:"contamination"`
	Clusters      int     `json:"clusters" yaml:"clusters"` // 0 = automatic
	Seed          int64   `json:"seed" yaml:"seed"`

	// SkipEnrichment disables the ML pass entirely.
	SkipEnrichment bool `json:"skip_enrichment" yaml:"skip_enrichment"`

	// Verbose switches the logger to debug level.
	Verbose bool `json:"verbose" yaml:"verbose"`
}

// New returns the default configuration.
func New() Config {
	return Config{
		Workers:       DefaultWorkers,
		Contamination: DefaultContamination,
		Seed:          DefaultSeed,
		Datasets:      map[string]string{},
	}
}

// WithDefaults fills zero values with defaults. Boolean fields are left
// alone so explicit false stays distinguishable.
func (c Config) WithDefaults() Config {
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.Contamination == 0 {
		c.Contamination = DefaultContamination
	}
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	if c.Datasets == nil {
		c.Datasets = map[string]string{}
	}
	return c
}

// Validate returns an error when the configuration cannot drive a run.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	if c.Contamination < 0 || c.Contamination >= 1 {
		return fmt.Errorf("contamination must be in [0, 1), got %g", c.Contamination)
	}
	if c.Clusters < 0 {
		return fmt.Errorf("clusters must be non-negative, got %d", c.Clusters)
	}
	if c.Reference != "" {
		if _, err := time.Parse(time.RFC3339, c.Reference); err != nil {
			return fmt.Errorf("parsing reference time %q: %w", c.Reference, err)
		}
	}
	for name, mode := range c.Datasets {
		if mode != "schema" && mode != "generic" {
			return fmt.Errorf("dataset %s: unknown cleaning mode %q", name, mode)
		}
	}
	return nil
}

// ReferenceTime parses the pinned reference, falling back to the given
// default when unset.
func (c Config) ReferenceTime(fallback time.Time) time.Time {
	if c.Reference == "" {
		return fallback
	}
	at, err := time.Parse(time.RFC3339, c.Reference)
	if err != nil {
		return fallback
	}
	return at
}

// LoadFromFile loads configuration from a JSON or YAML file.
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}
	return cfg.WithDefaults(), nil
}

// LoadFromEnv reads QUARRY_* environment overrides on top of the defaults.
func LoadFromEnv() Config {
	cfg := New()
	if val := os.Getenv("QUARRY_REFERENCE"); val != "" {
		cfg.Reference = val
	}
	if val := os.Getenv("QUARRY_WORKERS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.Workers = parsed
		}
	}
	if val := os.Getenv("QUARRY_CONTAMINATION"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Contamination = parsed
		}
	}
	if val := os.Getenv("QUARRY_CLUSTERS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.Clusters = parsed
		}
	}
	if val := os.Getenv("QUARRY_SEED"); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Seed = parsed
		}
	}
	if val := os.Getenv("QUARRY_SKIP_ENRICHMENT"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			cfg.SkipEnrichment = parsed
		}
	}
	if val := os.Getenv("QUARRY_VERBOSE"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			cfg.Verbose = parsed
		}
	}
	return cfg
}
