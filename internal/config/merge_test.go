package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/scancache/internal/config"
)

// newDefaultTarget returns a Config with known non-default values so tests
// can verify that absent overlay keys leave the original values intact.
func newDefaultTarget() *config.Config {
	return &config.Config{
		Cache: config.CacheConfig{
			Enabled:   true,
			TTL:       "3600",
			Directory: "/var/cache/global",
			MaxSize:   500,
		},
		Logging: config.LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Scan: config.ScanConfig{Concurrency: 4},
	}
}

// writeOverlay is a test helper that writes YAML content to a temp file
// and returns its path.
func writeOverlay(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overlay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestShallowMergeYAML_SingleKeyOverride(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
logging:
  level: debug
  format: console
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))

	assert.Equal(t, "debug", target.Logging.Level)
	assert.Equal(t, "console", target.Logging.Format)
	assert.Equal(t, newDefaultTarget().Cache, target.Cache, "absent sections are preserved")
	assert.Equal(t, 4, target.Scan.Concurrency)
}

func TestShallowMergeYAML_SectionReplacedFromDefaults(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
cache:
  max_size: 10
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))

	assert.Equal(t, 10, target.Cache.MaxSize)
	assert.True(t, target.Cache.Enabled, "omitted fields take built-in defaults")
	assert.Equal(t, config.Default().Cache.TTL, target.Cache.TTL)
	assert.Empty(t, target.Cache.Directory, "lower-layer values are not merged field by field")
}

func TestShallowMergeYAML_EmptyAndCommentOnly(t *testing.T) {
	for _, content := range []string{"", "# nothing here\n"} {
		target := newDefaultTarget()
		require.NoError(t, config.ShallowMergeYAML(target, writeOverlay(t, content)))
		assert.Equal(t, newDefaultTarget(), target)
	}
}

func TestShallowMergeYAML_UnknownKeysIgnored(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
plugins:
  foo: bar
scan:
  concurrency: 2
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))
	assert.Equal(t, 2, target.Scan.Concurrency)
}

func TestShallowMergeYAML_Errors(t *testing.T) {
	t.Run("corrupted yaml", func(t *testing.T) {
		err := config.ShallowMergeYAML(newDefaultTarget(), writeOverlay(t, "cache: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("wrong section type", func(t *testing.T) {
		err := config.ShallowMergeYAML(newDefaultTarget(), writeOverlay(t, "scan:\n  concurrency: many\n"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		err := config.ShallowMergeYAML(newDefaultTarget(), filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("nil target", func(t *testing.T) {
		err := config.ShallowMergeYAML(nil, writeOverlay(t, ""))
		assert.Error(t, err)
	})
}
