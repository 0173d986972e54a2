package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	"github.com/rshade/scancache/internal/engine/cache"
	"github.com/rshade/scancache/internal/logging"
)

// Metadata keys written alongside every cached analysis result.
const (
	MetaAnalyzer        = "analyzer"
	MetaAnalyzerVersion = "analyzerVersion"
	MetaBytes           = "bytes"
)

// Common engine errors.
var (
	ErrNilAnalyzer = errors.New("analyzer cannot be nil")
	ErrNoFiles     = errors.New("no files to analyze")
)

// Analyzer produces a JSON result for a single source file.
type Analyzer interface {
	// Name identifies the analyzer and is used as the cache category.
	Name() string
	// Version is a semantic version. Results cached by an incompatible
	// version are recomputed.
	Version() string
	Analyze(ctx context.Context, path string, src []byte) (json.RawMessage, error)
}

// Result is the outcome of analyzing one file.
type Result struct {
	Path     string          `json:"path"`
	Analyzer string          `json:"analyzer"`
	Output   json.RawMessage `json:"output,omitempty"`
	Cached   bool            `json:"cached"`
	Duration time.Duration   `json:"durationNs"`

	// Err is set when the file could not be read or analyzed.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// Summary counts the outcomes of a batch.
type Summary struct {
	Files    int `json:"files"`
	Cached   int `json:"cached"`
	Analyzed int `json:"analyzed"`
	Failed   int `json:"failed"`
}

// Runner executes analyzers through a cache.Store.
type Runner struct {
	store       *cache.Store
	concurrency int
	onProgress  ProgressFunc
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithConcurrency bounds how many files AnalyzeAll processes at once.
// Values below 1 select runtime.NumCPU().
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		r.concurrency = n
	}
}

// WithProgress registers fn to be called as each AnalyzeAll file finishes.
func WithProgress(fn ProgressFunc) RunnerOption {
	return func(r *Runner) {
		r.onProgress = fn
	}
}

// NewRunner creates a Runner backed by store.
func NewRunner(store *cache.Store, opts ...RunnerOption) *Runner {
	r := &Runner{store: store}
	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency < 1 {
		r.concurrency = runtime.NumCPU()
	}
	return r
}

// Concurrency returns the effective AnalyzeAll parallelism.
func (r *Runner) Concurrency() int {
	return r.concurrency
}

// Analyze returns the result of a for path, from the cache when possible.
// The returned error is the same as Result.Err except for context
// cancellation, which is returned without a result.
func (r *Runner) Analyze(ctx context.Context, a Analyzer, path string) (Result, error) {
	if a == nil {
		return Result{}, ErrNilAnalyzer
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	log := logging.FromContext(ctx)
	start := time.Now()
	res := Result{Path: path, Analyzer: a.Name()}
	category := cache.InCategory(a.Name())

	if !r.store.HasChanged(path, category) {
		if entry, ok := r.store.GetEntry(path, category); ok {
			if versionCompatible(entry.Metadata[MetaAnalyzerVersion], a.Version()) {
				res.Output = entry.Content
				res.Cached = true
				res.Duration = time.Since(start)
				log.Debug().
					Str("file", path).
					Str("analyzer", a.Name()).
					Msg("using cached analysis result")
				return res, nil
			}
			log.Debug().
				Str("file", path).
				Interface("cached_version", entry.Metadata[MetaAnalyzerVersion]).
				Str("analyzer_version", a.Version()).
				Msg("cached result from incompatible analyzer version")
		}
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return res.fail(fmt.Errorf("reading %s: %w", path, err), start)
	}

	out, err := a.Analyze(ctx, path, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return res.fail(fmt.Errorf("%s analyzer on %s: %w", a.Name(), path, err), start)
	}

	r.store.Set(path, out,
		category,
		cache.WithSourceFingerprint(cache.Fingerprint(src)),
		cache.WithMetadata(map[string]any{
			MetaAnalyzer:        a.Name(),
			MetaAnalyzerVersion: a.Version(),
			MetaBytes:           len(src),
		}),
	)

	res.Output = out
	res.Duration = time.Since(start)
	return res, nil
}

// AnalyzeAll analyzes paths concurrently and returns results in input order.
// Per-file failures are reported in Result.Err and do not stop the batch; only
// context cancellation does.
func (r *Runner) AnalyzeAll(ctx context.Context, a Analyzer, paths []string) ([]Result, error) {
	if a == nil {
		return nil, ErrNilAnalyzer
	}
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	ctx = logging.ContextWithTraceID(ctx, logging.GetOrGenerateTraceID(ctx))
	log := logging.FromContext(ctx)
	log.Debug().
		Str("analyzer", a.Name()).
		Int("files", len(paths)).
		Int("concurrency", r.concurrency).
		Msg("starting analysis batch")

	results := make([]Result, len(paths))
	progress := NewProgress(len(paths), r.onProgress)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, path := range paths {
		g.Go(func() error {
			res, err := r.Analyze(gCtx, a, path)
			if err != nil && res.Err == nil {
				return err
			}
			results[i] = res
			progress.Record(res)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum := Summarize(results)
	log.Debug().
		Int("cached", sum.Cached).
		Int("analyzed", sum.Analyzed).
		Int("failed", sum.Failed).
		Msg("analysis batch complete")
	return results, nil
}

// Summarize counts cache hits, fresh analyses and failures in results.
func Summarize(results []Result) Summary {
	sum := Summary{Files: len(results)}
	for _, res := range results {
		switch {
		case res.Err != nil:
			sum.Failed++
		case res.Cached:
			sum.Cached++
		default:
			sum.Analyzed++
		}
	}
	return sum
}

func (res Result) fail(err error, start time.Time) (Result, error) {
	res.Err = err
	res.Error = err.Error()
	res.Duration = time.Since(start)
	return res, err
}

// versionCompatible reports whether a result cached by version cached can be
// reused by current. Compatibility follows caret semantics: same major, and
// same minor while the major is 0. Downgrades are never compatible.
func versionCompatible(cached any, current string) bool {
	s, ok := cached.(string)
	if !ok || s == "" {
		return false
	}
	if s == current {
		return true
	}
	constraint, err := semver.NewConstraint("^" + s)
	if err != nil {
		return false
	}
	v, err := semver.NewVersion(current)
	if err != nil {
		return false
	}
	return constraint.Check(v)
}
