package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rshade/scancache/internal/config"
)

// setupProject points SCANCACHE_PROJECT_DIR at a fresh project root and
// SCANCACHE_HOME at an isolated global dir. It returns both.
func setupProject(t *testing.T) (projectRoot, globalDir string) {
	t.Helper()
	setupCLITest(t)
	projectRoot = t.TempDir()
	globalDir = t.TempDir()
	t.Setenv("SCANCACHE_PROJECT_DIR", projectRoot)
	t.Setenv("SCANCACHE_HOME", globalDir)
	return projectRoot, globalDir
}

// TestConfigInit_InsideProject verifies that "config init" inside a project
// creates .scancache/config.yaml and .scancache/.gitignore.
func TestConfigInit_InsideProject(t *testing.T) {
	projectRoot, _ := setupProject(t)

	out, err := execute(t, "config", "init")
	require.NoError(t, err, "config init should succeed inside a project")
	assert.Contains(t, out, "Configuration initialized at")
	assert.Contains(t, out, "Created .gitignore")

	configPath := filepath.Join(projectRoot, ".scancache", "config.yaml")
	_, statErr := os.Stat(configPath)
	require.NoError(t, statErr, ".scancache/config.yaml should exist")

	gitignoreData, readErr := os.ReadFile(filepath.Join(projectRoot, ".scancache", ".gitignore"))
	require.NoError(t, readErr)
	assert.Equal(t, config.GitignoreContent(), string(gitignoreData))

	_, err = execute(t, "config", "init")
	require.Error(t, err, "a second init without --force should fail")
	assert.Contains(t, err.Error(), "already exists")
}

// TestConfigInit_ExistingGitignorePreserved verifies that "config init --force"
// never overwrites an existing .gitignore.
func TestConfigInit_ExistingGitignorePreserved(t *testing.T) {
	projectRoot, _ := setupProject(t)

	dir := filepath.Join(projectRoot, ".scancache")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	customContent := "# My custom gitignore\n*.secret\n"
	gitignorePath := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(gitignorePath, []byte(customContent), 0o600))

	out, err := execute(t, "config", "init", "--force")
	require.NoError(t, err)
	assert.NotContains(t, out, "Created .gitignore")

	data, err := os.ReadFile(gitignorePath)
	require.NoError(t, err)
	assert.Equal(t, customContent, string(data))
}

// TestConfigInit_GlobalFlag verifies that --global writes to SCANCACHE_HOME
// even inside a project.
func TestConfigInit_GlobalFlag(t *testing.T) {
	projectRoot, globalDir := setupProject(t)

	out, err := execute(t, "config", "init", "--global")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration initialized successfully")

	_, statErr := os.Stat(filepath.Join(globalDir, "config.yaml"))
	require.NoError(t, statErr, "global config.yaml should exist in SCANCACHE_HOME")

	_, statErr = os.Stat(filepath.Join(projectRoot, ".scancache", "config.yaml"))
	assert.True(t, os.IsNotExist(statErr), "project config should not be created with --global")
}

// TestConfigInit_ForceOverwritesConfig verifies that --force replaces an
// existing project config with defaults.
func TestConfigInit_ForceOverwritesConfig(t *testing.T) {
	projectRoot, _ := setupProject(t)

	dir := filepath.Join(projectRoot, ".scancache")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	existing := filepath.Join(dir, "config.yaml")
	original := "# old config\ncache:\n  max_size: 7\n"
	require.NoError(t, os.WriteFile(existing, []byte(original), 0o600))

	_, err := execute(t, "config", "init", "--force")
	require.NoError(t, err)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, *config.Default(), cfg)
}
