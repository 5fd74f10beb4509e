package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigValid(t *testing.T) {
	path := writeTempConfig(t, `
application:
  log_level: info
events:
  greet:
    print:
      stream: stdout
start_with:
  - greet
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Contains(t, cfg.Events, "greet")
	assert.Equal(t, []string{"greet"}, cfg.StartWith)
}

func TestLoadConfigRejectsUnknownRootKey(t *testing.T) {
	path := writeTempConfig(t, `
events:
  greet:
    print:
      stream: stdout
nonsense_key: true
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown configuration key")
}

func TestLoadConfigIgnoresUnknownEventKeys(t *testing.T) {
	path := writeTempConfig(t, `
events:
  greet:
    print:
      stream: stdout
    totally_unrecognized: 123
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Contains(t, cfg.Events, "greet")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	require.Error(t, err)
}
