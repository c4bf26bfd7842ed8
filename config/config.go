// Package config loads runtime settings from an optional YAML file and the environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/pkg/log"
)

// Environment variables that override file values.
const (
	EnvLogLevel       = "TABML_LOG_LEVEL"
	EnvLogFormat      = "TABML_LOG_FORMAT"
	EnvDatabaseURL    = "DATABASE_URL"
	EnvMaxUploadBytes = "TABML_MAX_UPLOAD_BYTES"
	EnvPreviewRows    = "TABML_PREVIEW_ROWS"
	EnvPageSize       = "TABML_PAGE_SIZE"
)

// Config holds every runtime setting.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Limits   LimitsConfig   `yaml:"limits"`
}

// LogConfig selects the logger level and output format ("json" or "console").
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig points at the Postgres store. An empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// LimitsConfig bounds request sizes.
type LimitsConfig struct {
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	PreviewRows    int   `yaml:"preview_rows"`
	PageSize       int   `yaml:"page_size"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Limits: LimitsConfig{
			MaxUploadBytes: 32 << 20,
			PreviewRows:    5,
			PageSize:       10,
		},
	}
}

// Load reads path (skipped when empty), applies environment overrides and validates.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok {
		c.Log.Format = v
	}
	if v, ok := lookup(EnvDatabaseURL); ok {
		c.Database.URL = v
	}
	if v, ok := lookup(EnvMaxUploadBytes); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return errors.NewValidationError(EnvMaxUploadBytes, "not an integer", v)
		}
		c.Limits.MaxUploadBytes = n
	}
	for _, e := range []struct {
		key string
		dst *int
	}{
		{EnvPreviewRows, &c.Limits.PreviewRows},
		{EnvPageSize, &c.Limits.PageSize},
	} {
		v, ok := lookup(e.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.NewValidationError(e.key, "not an integer", v)
		}
		*e.dst = n
	}
	return nil
}

// Validate rejects unknown log settings and non-positive limits.
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.NewValidationError("log.level", "unknown level", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return errors.NewValidationError("log.format", "must be json or console", c.Log.Format)
	}
	if c.Limits.MaxUploadBytes <= 0 {
		return errors.NewValidationError("limits.max_upload_bytes", "must be positive", c.Limits.MaxUploadBytes)
	}
	if c.Limits.PreviewRows <= 0 {
		return errors.NewValidationError("limits.preview_rows", "must be positive", c.Limits.PreviewRows)
	}
	if c.Limits.PageSize <= 0 {
		return errors.NewValidationError("limits.page_size", "must be positive", c.Limits.PageSize)
	}
	return nil
}
