package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/root-talis/dankai/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), config.DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadFullConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
dir = "db/migrations"
driver = "postgres"
dsn = "postgres://localhost/app?sslmode=disable"
table = "app_schema_version"
verbose = true
`)

	cfg, err := config.Load(path, true)
	require.NoError(t, err)

	require.NotNil(t, cfg.Dir)
	assert.Equal(t, "db/migrations", *cfg.Dir)
	require.NotNil(t, cfg.Driver)
	assert.Equal(t, "postgres", *cfg.Driver)
	require.NotNil(t, cfg.DSN)
	assert.Equal(t, "postgres://localhost/app?sslmode=disable", *cfg.DSN)
	require.NotNil(t, cfg.Table)
	assert.Equal(t, "app_schema_version", *cfg.Table)
	require.NotNil(t, cfg.Verbose)
	assert.True(t, *cfg.Verbose)
}

func TestLoadPartialConfigLeavesAbsentFieldsNil(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `dir = "migrations"`)

	cfg, err := config.Load(path, true)
	require.NoError(t, err)

	require.NotNil(t, cfg.Dir)
	assert.Equal(t, "migrations", *cfg.Dir)
	assert.Nil(t, cfg.Driver)
	assert.Nil(t, cfg.DSN)
	assert.Nil(t, cfg.Table)
	assert.Nil(t, cfg.Verbose)
}

func TestLoadMissingDefaultConfigIsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), config.DefaultFileName)

	cfg, err := config.Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, &config.FileConfig{}, cfg)
}

func TestLoadMissingExplicitConfigFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nope.toml")

	_, err := config.Load(path, true)
	assert.Error(t, err)
}

func TestLoadMalformedConfigFails(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "dir = [broken")

	_, err := config.Load(path, true)
	assert.Error(t, err)
}
