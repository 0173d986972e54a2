package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/scancache/internal/config"
)

func TestConfigSetGetShow(t *testing.T) {
	_, globalDir := setupProject(t)
	globalPath := filepath.Join(globalDir, "config.yaml")

	out, err := execute(t, "config", "set", "cache.ttl", "2h")
	require.NoError(t, err)
	assert.Contains(t, out, "Set cache.ttl = 2h")

	cfg, err := config.Load(globalPath)
	require.NoError(t, err)
	assert.Equal(t, "2h", cfg.Cache.TTL)

	out, err = execute(t, "config", "get", "cache.ttl")
	require.NoError(t, err)
	assert.Equal(t, "2h\n", out)

	out, err = execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# global: "+globalPath)
	assert.Contains(t, out, "ttl: 2h")
}

func TestConfigSet_Invalid(t *testing.T) {
	setupProject(t)

	_, err := execute(t, "config", "set", "--", "cache.max_size", "-1")
	require.Error(t, err)

	_, err = execute(t, "config", "set", "nope.key", "1")
	require.ErrorIs(t, err, config.ErrUnknownKey)
}

func TestConfigSet_Project(t *testing.T) {
	projectRoot, globalDir := setupProject(t)

	_, err := execute(t, "config", "set", "--project", "cache.max_size", "3")
	require.NoError(t, err)

	projectCfg, err := config.Load(filepath.Join(projectRoot, ".scancache", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, projectCfg.Cache.MaxSize)

	_, statErr := os.Stat(filepath.Join(globalDir, "config.yaml"))
	assert.True(t, os.IsNotExist(statErr), "global config must not be touched")

	out, err := execute(t, "config", "get", "cache.max_size")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)
}

func TestConfig_Precedence(t *testing.T) {
	projectRoot, _ := setupProject(t)

	_, err := execute(t, "config", "set", "cache.ttl", "1h")
	require.NoError(t, err)

	projectFile := filepath.Join(projectRoot, ".scancache", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(projectFile), 0o750))
	require.NoError(t, os.WriteFile(projectFile, []byte("cache:\n  ttl: 30m\n"), 0o600))

	out, err := execute(t, "config", "get", "cache.ttl")
	require.NoError(t, err)
	assert.Equal(t, "30m\n", out, "project file overrides global file")

	t.Setenv("SCANCACHE_CACHE_TTL", "600")
	out, err = execute(t, "config", "get", "cache.ttl")
	require.NoError(t, err)
	assert.Equal(t, "600\n", out, "environment overrides files")

	out, err = execute(t, "config", "get", "cache.ttl", "--cache-ttl", "5m")
	require.NoError(t, err)
	assert.Equal(t, "5m\n", out, "flags override environment")

	out, err = execute(t, "config", "get", "cache.directory")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(projectRoot, ".scancache", "cache")+"\n", out)
}
