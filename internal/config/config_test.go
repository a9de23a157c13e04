package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "metadata-aggregator", cfg.App.Name)
	assert.Equal(t, "production", cfg.App.Environment)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 8401, cfg.Admin.Port)
}

func TestLoad_ReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  name: test-aggregator
  environment: staging
  log_level: debug
  log_format: text
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-aggregator", cfg.App.Name)
	assert.Equal(t, "staging", cfg.App.Environment)
	assert.Equal(t, "debug", cfg.App.LogLevel)
}

func TestLoad_EnvironmentOverridesFileValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  name: from-file\n"), 0o644))

	t.Setenv("MA_APP_NAME", "from-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.App.Name)
}

func TestLoad_InvalidEnvironmentFailsValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  environment: nonsense\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_SigningEnabledRequiresKeyAndCertFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("signing:\n  enabled: true\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoad_DefaultsSourceDirectoryWhenUnset(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "./in", cfg.Source.Directory)
}

func TestLoad_ParsesFilterRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source:
  directory: /data/in
filter_rules:
  - attr: registrar
    value: "urn:federation:a"
    authority: "urn:federation:a"
  - attr: registrar
    value: "urn:federation:b"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.FilterRules, 2)
	assert.Equal(t, "urn:federation:a", cfg.FilterRules[0].Authority)
	assert.Empty(t, cfg.FilterRules[1].Authority)
}
