package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/scancache/internal/config"
)

func TestEnsureGitignore_CreatesNewFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	created, err := config.EnsureGitignore(dir)
	require.NoError(t, err)
	assert.True(t, created, "should report file was created")

	data, readErr := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "cache/")
	assert.Contains(t, string(data), "*.log")
}

func TestEnsureGitignore_DoesNotOverwriteExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	gitignorePath := filepath.Join(dir, ".gitignore")

	customContent := "# my custom gitignore\nnode_modules/\n"
	require.NoError(t, os.WriteFile(gitignorePath, []byte(customContent), 0o644))

	created, err := config.EnsureGitignore(dir)
	require.NoError(t, err)
	assert.False(t, created, "should report file was NOT created")

	data, readErr := os.ReadFile(gitignorePath)
	require.NoError(t, readErr)
	assert.Equal(t, customContent, string(data), "existing content must be preserved")
}

func TestEnsureGitignore_CreatesParentDirectory(t *testing.T) {
	t.Parallel()

	nestedDir := filepath.Join(t.TempDir(), "sub", "deep", ".scancache")

	created, err := config.EnsureGitignore(nestedDir)
	require.NoError(t, err)
	assert.True(t, created)

	data, readErr := os.ReadFile(filepath.Join(nestedDir, ".gitignore"))
	require.NoError(t, readErr)
	assert.Equal(t, config.GitignoreContent(), string(data))

	created, err = config.EnsureGitignore(nestedDir)
	require.NoError(t, err)
	assert.False(t, created, "second call should return false")
}

func TestGitignoreContent(t *testing.T) {
	t.Parallel()

	lines := strings.Split(strings.TrimSpace(config.GitignoreContent()), "\n")
	assert.Contains(t, lines, "cache/")
	assert.Contains(t, lines, "*.log")
	assert.NotContains(t, lines, "config.yaml", "the config file stays tracked")
}
