package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 4, cfg.Pool.Workers)
	assert.Equal(t, int64(8), cfg.Pool.PerKindLimit)
	assert.Equal(t, int64(32), cfg.Pool.TotalLimit)
	assert.Equal(t, 2*time.Second, cfg.Pool.StartTimeout)
	assert.Contains(t, cfg.Workspace.Include, "**/*.yaml")
}

func TestLoadEmptyPathIsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oraml.yaml")
	raw := `
workspace:
  include:
    - "rules/**/*.yaml"
pool:
  workers: 2
  per_kind_limit: 3
  total_limit: 5
  start_timeout_ms: 250
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"rules/**/*.yaml"}, cfg.Workspace.Include)
	assert.Equal(t, 2, cfg.Pool.Workers)
	assert.Equal(t, int64(3), cfg.Pool.PerKindLimit)
	assert.Equal(t, int64(5), cfg.Pool.TotalLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.Pool.StartTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ORAML_POOL_WORKERS", "9")
	t.Setenv("ORAML_POOL_TOTAL_LIMIT", "40")
	t.Setenv("ORAML_START_TIMEOUT_MS", "100")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Pool.Workers)
	assert.Equal(t, int64(40), cfg.Pool.TotalLimit)
	assert.Equal(t, 100*time.Millisecond, cfg.Pool.StartTimeout)
}
