package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rshade/scancache/internal/analyzer"
	"github.com/rshade/scancache/internal/engine"
)

const tabPadding = 2

// skippedDirs are never descended into when a directory is scanned.
var skippedDirs = map[string]bool{ //nolint:gochecknoglobals // Read-only lookup table.
	"node_modules": true,
	"vendor":       true,
}

type scanOptions struct {
	concurrency int
	jsonOutput  bool
	showStats   bool
	progress    bool
}

// newScanCmd creates the scan command, which runs the line metrics analyzer
// through the cache.
func newScanCmd(a *app) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan <path>...",
		Short: "Analyze files, reusing cached results for unchanged ones",
		Long: `Runs the built-in line metrics analyzer on each file.

Directories are walked recursively; hidden directories, vendor/ and
node_modules/ are skipped, and only files with a recognized source extension
are analyzed. Files named explicitly are always analyzed.

A file whose contents match the fingerprint stored with its cached result is
not re-read by the analyzer.`,
		Example: `  # Analyze a tree
  scancache scan ./internal

  # JSON output, four files at a time
  scancache scan --json --concurrency 4 main.go util.go

  # Show cache statistics for this run
  scancache scan --stats .`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, a, opts, args)
		},
	}

	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 0,
		"files analyzed at once (0 = scan.concurrency from config, then one per CPU)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "write results as JSON")
	cmd.Flags().BoolVar(&opts.showStats, "stats", false, "print cache statistics after the scan")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "report progress on stderr while scanning")

	return cmd
}

func runScan(cmd *cobra.Command, a *app, opts scanOptions, args []string) error {
	ctx := cmd.Context()

	paths, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no source files found")
	}

	store, err := a.store()
	if err != nil {
		return err
	}

	concurrency := opts.concurrency
	if concurrency == 0 {
		concurrency = a.cfg.Scan.Concurrency
	}
	runnerOpts := []engine.RunnerOption{engine.WithConcurrency(concurrency)}
	if opts.progress {
		runnerOpts = append(runnerOpts, engine.WithProgress(progressPrinter(cmd.ErrOrStderr())))
	}
	runner := engine.NewRunner(store, runnerOpts...)

	results, err := runner.AnalyzeAll(ctx, analyzer.NewLineMetrics(), paths)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	summary := engine.Summarize(results)

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		if err := writeJSON(out, scanReport{Results: results, Summary: summary}); err != nil {
			return err
		}
	} else {
		if err := renderScanResults(out, results); err != nil {
			return err
		}
		if err := renderScanSummary(out, summary); err != nil {
			return err
		}
	}

	if opts.showStats && !opts.jsonOutput {
		if err := renderStats(out, store.Stats(), store.Size()); err != nil {
			return err
		}
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d files could not be analyzed", summary.Failed, summary.Files)
	}
	return nil
}

// progressPrinter writes one line per finished file.
func progressPrinter(w io.Writer) engine.ProgressFunc {
	return func(s engine.ProgressSnapshot) {
		_, _ = fmt.Fprintf(w, "[%3.0f%%] %d/%d files, %d cached, %d failed\n",
			s.PercentComplete, s.Done, s.Total, s.Cached, s.Failed)
	}
}

// scanReport is the --json document.
type scanReport struct {
	Results []engine.Result `json:"results"`
	Summary engine.Summary  `json:"summary"`
}

// collectFiles expands directories in args into the source files below them.
func collectFiles(args []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			add(filepath.Clean(arg))
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				name := d.Name()
				if path != arg && (strings.HasPrefix(name, ".") || skippedDirs[name]) {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && analyzer.Supports(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", arg, err)
		}
	}
	return files, nil
}

// renderScanResults writes one row per file.
func renderScanResults(w io.Writer, results []engine.Result) error {
	styled := isWriterTerminal(w)
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)

	fmt.Fprintln(tw, "FILE\tLANG\tLINES\tCODE\tCOMMENT\tDEPTH\tTODO\tSOURCE")
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\t-\t%s\n", res.Path, statusLabel(styled, "error", failedColor()))
			continue
		}

		var m analyzer.Metrics
		if err := json.Unmarshal(res.Output, &m); err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\t-\t%s\n", res.Path, statusLabel(styled, "bad output", failedColor()))
			continue
		}

		source := statusLabel(styled, "analyzed", analyzedColor())
		if res.Cached {
			source = statusLabel(styled, "cached", cachedColor())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			res.Path, m.Language,
			formatCount(m.Lines), formatCount(m.Code), formatCount(m.Comment),
			m.MaxDepth, m.Todos, source)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, res := range results {
		if res.Err != nil {
			if _, err := fmt.Fprintf(w, "error: %v\n", res.Err); err != nil {
				return err
			}
		}
	}
	return nil
}

func renderScanSummary(w io.Writer, sum engine.Summary) error {
	_, err := fmt.Fprintf(w, "\n%s files: %s from cache, %s analyzed, %s failed\n",
		formatCount(sum.Files), formatCount(sum.Cached), formatCount(sum.Analyzed), formatCount(sum.Failed))
	return err
}

func statusLabel(styled bool, label string, color lipgloss.Color) string {
	if !styled {
		return label
	}
	return lipgloss.NewStyle().Foreground(color).Render(label)
}
