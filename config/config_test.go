package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

func env(values map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := values[k]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabml.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
  format: console
database:
  url: postgres://file
limits:
  page_size: 25
`), 0o600))

	cfg, err := load(path, env(map[string]string{
		EnvDatabaseURL: "postgres://env",
		EnvPreviewRows: "8",
	}))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "postgres://env", cfg.Database.URL)
	assert.Equal(t, 25, cfg.Limits.PageSize)
	assert.Equal(t, 8, cfg.Limits.PreviewRows)
	assert.Equal(t, int64(32<<20), cfg.Limits.MaxUploadBytes)
}

func TestLoad_Errors(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("log: [unclosed"), 0o600))
	_, err = load(bad, env(nil))
	assert.Error(t, err)

	tests := []map[string]string{
		{EnvLogLevel: "verbose"},
		{EnvLogFormat: "xml"},
		{EnvMaxUploadBytes: "lots"},
		{EnvMaxUploadBytes: "0"},
		{EnvPageSize: "-1"},
		{EnvPreviewRows: "x"},
	}
	for _, vars := range tests {
		_, err := load("", env(vars))
		var verr *errors.ValidationError
		assert.True(t, errors.As(err, &verr), "%v: %v", vars, err)
	}
}
