package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/scancache/internal/engine"
	"github.com/rshade/scancache/internal/engine/cache"
)

// countingAnalyzer reports the file length and counts invocations.
type countingAnalyzer struct {
	name    string
	version string
	calls   atomic.Int32
	failOn  string
}

func (a *countingAnalyzer) Name() string    { return a.name }
func (a *countingAnalyzer) Version() string { return a.version }

func (a *countingAnalyzer) Analyze(_ context.Context, path string, src []byte) (json.RawMessage, error) {
	a.calls.Add(1)
	if a.failOn != "" && filepath.Base(path) == a.failOn {
		return nil, errors.New("boom")
	}
	return json.RawMessage(fmt.Sprintf(`{"length":%d}`, len(src))), nil
}

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.New(cache.Config{
		Enabled:   true,
		TTL:       cache.DefaultTTL,
		Directory: t.TempDir(),
	}, cache.WithLogger(zerolog.New(zerolog.NewTestWriter(t))))
	require.NoError(t, err)
	return store
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunner_Analyze(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "main.go", "package main\n")

	store := newTestStore(t)
	runner := engine.NewRunner(store)
	a := &countingAnalyzer{name: "codeQuality", version: "1.0.0"}

	t.Run("first run analyzes", func(t *testing.T) {
		res, err := runner.Analyze(ctx, a, path)
		require.NoError(t, err)
		assert.False(t, res.Cached)
		assert.JSONEq(t, `{"length":13}`, string(res.Output))
		assert.Equal(t, int32(1), a.calls.Load())
	})

	t.Run("unchanged file is served from cache", func(t *testing.T) {
		res, err := runner.Analyze(ctx, a, path)
		require.NoError(t, err)
		assert.True(t, res.Cached)
		assert.JSONEq(t, `{"length":13}`, string(res.Output))
		assert.Equal(t, int32(1), a.calls.Load())
	})

	t.Run("edited file is reanalyzed", func(t *testing.T) {
		writeFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")
		res, err := runner.Analyze(ctx, a, path)
		require.NoError(t, err)
		assert.False(t, res.Cached)
		assert.JSONEq(t, `{"length":29}`, string(res.Output))
		assert.Equal(t, int32(2), a.calls.Load())
	})

	t.Run("metadata records analyzer", func(t *testing.T) {
		entry, ok := store.GetEntry(path, cache.InCategory("codeQuality"))
		require.True(t, ok)
		assert.Equal(t, "codeQuality", entry.Metadata[engine.MetaAnalyzer])
		assert.Equal(t, "1.0.0", entry.Metadata[engine.MetaAnalyzerVersion])
		assert.Equal(t, 29, entry.Metadata[engine.MetaBytes])
		assert.False(t, store.HasChanged(path, cache.InCategory("codeQuality")))
	})
}

func TestRunner_AnalyzerVersions(t *testing.T) {
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "app.py", "print('hi')\n")

	tests := []struct {
		name       string
		cached     string
		current    string
		wantCached bool
	}{
		{"same version", "1.2.0", "1.2.0", true},
		{"patch upgrade", "1.2.0", "1.2.5", true},
		{"minor upgrade", "1.2.0", "1.3.0", true},
		{"major upgrade", "1.2.0", "2.0.0", false},
		{"downgrade", "1.2.0", "1.1.0", false},
		{"zero major minor upgrade", "0.2.0", "0.3.0", false},
		{"zero major patch upgrade", "0.2.0", "0.2.1", true},
		{"unparseable current", "1.0.0", "latest", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			runner := engine.NewRunner(store)

			_, err := runner.Analyze(ctx, &countingAnalyzer{name: "lint", version: tt.cached}, path)
			require.NoError(t, err)

			next := &countingAnalyzer{name: "lint", version: tt.current}
			res, err := runner.Analyze(ctx, next, path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCached, res.Cached)
			if tt.wantCached {
				assert.Equal(t, int32(0), next.calls.Load())
			} else {
				assert.Equal(t, int32(1), next.calls.Load())
			}
		})
	}
}

func TestRunner_AnalyzersDoNotShareResults(t *testing.T) {
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "lib.js", "export {}\n")
	runner := engine.NewRunner(newTestStore(t))

	quality := &countingAnalyzer{name: "codeQuality", version: "1.0.0"}
	security := &countingAnalyzer{name: "security", version: "1.0.0"}

	_, err := runner.Analyze(ctx, quality, path)
	require.NoError(t, err)

	res, err := runner.Analyze(ctx, security, path)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, int32(1), security.calls.Load())
}

func TestRunner_Errors(t *testing.T) {
	ctx := context.Background()
	runner := engine.NewRunner(newTestStore(t))

	t.Run("nil analyzer", func(t *testing.T) {
		_, err := runner.Analyze(ctx, nil, "x")
		require.ErrorIs(t, err, engine.ErrNilAnalyzer)

		_, err = runner.AnalyzeAll(ctx, nil, []string{"x"})
		require.ErrorIs(t, err, engine.ErrNilAnalyzer)
	})

	t.Run("no files", func(t *testing.T) {
		_, err := runner.AnalyzeAll(ctx, &countingAnalyzer{name: "a", version: "1.0.0"}, nil)
		require.ErrorIs(t, err, engine.ErrNoFiles)
	})

	t.Run("missing file", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "missing.go")
		res, err := runner.Analyze(ctx, &countingAnalyzer{name: "a", version: "1.0.0"}, missing)
		require.Error(t, err)
		require.ErrorIs(t, res.Err, os.ErrNotExist)
		assert.Contains(t, res.Error, "missing.go")
	})

	t.Run("analyzer failure is not cached", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "bad.go", "package bad\n")
		a := &countingAnalyzer{name: "a", version: "1.0.0", failOn: "bad.go"}

		res, err := runner.Analyze(ctx, a, path)
		require.Error(t, err)
		assert.Equal(t, err, res.Err)

		_, err = runner.Analyze(ctx, a, path)
		require.Error(t, err)
		assert.Equal(t, int32(2), a.calls.Load())
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := runner.Analyze(cancelled, &countingAnalyzer{name: "a", version: "1.0.0"}, "x")
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestRunner_AnalyzeAll(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	var paths []string
	for i := range 20 {
		paths = append(paths, writeFile(t, dir, fmt.Sprintf("f%02d.go", i), fmt.Sprintf("// %d\n", i)))
	}
	paths = append(paths, writeFile(t, dir, "broken.go", "x"))

	runner := engine.NewRunner(newTestStore(t), engine.WithConcurrency(4))
	assert.Equal(t, 4, runner.Concurrency())
	a := &countingAnalyzer{name: "codeQuality", version: "1.0.0", failOn: "broken.go"}

	results, err := runner.AnalyzeAll(ctx, a, paths)
	require.NoError(t, err)
	require.Len(t, results, len(paths))
	for i, res := range results {
		assert.Equal(t, paths[i], res.Path, "results keep input order")
	}
	assert.Equal(t, engine.Summary{Files: 21, Analyzed: 20, Failed: 1}, engine.Summarize(results))

	results, err = runner.AnalyzeAll(ctx, a, paths)
	require.NoError(t, err)
	assert.Equal(t, engine.Summary{Files: 21, Cached: 20, Failed: 1}, engine.Summarize(results))
	assert.Equal(t, int32(22), a.calls.Load())
}

func TestRunner_AnalyzeAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := writeFile(t, t.TempDir(), "a.go", "package a\n")
	runner := engine.NewRunner(newTestStore(t))
	_, err := runner.AnalyzeAll(ctx, &countingAnalyzer{name: "a", version: "1.0.0"}, []string{path})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunner_DisabledCache(t *testing.T) {
	store, err := cache.New(cache.Config{Enabled: false})
	require.NoError(t, err)

	path := writeFile(t, t.TempDir(), "a.go", "package a\n")
	runner := engine.NewRunner(store)
	a := &countingAnalyzer{name: "a", version: "1.0.0"}

	for range 3 {
		res, err := runner.Analyze(context.Background(), a, path)
		require.NoError(t, err)
		assert.False(t, res.Cached)
	}
	assert.Equal(t, int32(3), a.calls.Load())
}

func TestNewRunner_DefaultConcurrency(t *testing.T) {
	runner := engine.NewRunner(newTestStore(t), engine.WithConcurrency(0))
	assert.Positive(t, runner.Concurrency())
}
