package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/rshade/scancache/internal/analyzer"
	"github.com/rshade/scancache/internal/engine/cache"
	"github.com/rshade/scancache/internal/logging"
	"github.com/rshade/scancache/internal/metrics"
)

// newCacheCmd creates the cache command group for inspecting and maintaining
// the result cache.
func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Cache inspection and maintenance commands"}
	cmd.AddCommand(
		newCacheStatsCmd(a), newCacheSizeCmd(a), newCacheKeysCmd(a),
		newCacheClearCmd(a), newCacheCleanupCmd(a),
		newCacheGetCmd(a), newCacheInvalidateCmd(a), newCacheCheckCmd(a),
	)
	return cmd
}

func newCacheStatsCmd(a *app) *cobra.Command {
	var (
		jsonOutput bool
		prometheus bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache counters and size",
		Long: `Shows hit, miss, write and eviction counters together with the cache size.

Counters cover the current process only; they start at zero on every run.
Use 'scancache scan --stats' to see them for a scan.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if jsonOutput && prometheus {
				return errors.New("--json and --prometheus are mutually exclusive")
			}
			store, err := a.store()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case prometheus:
				reg, err := metrics.NewRegistry(metrics.NewCacheCollector(store))
				if err != nil {
					return err
				}
				return metrics.WriteText(out, reg)
			case jsonOutput:
				return writeJSON(out, statsReport{Stats: store.Stats(), Size: store.Size()})
			default:
				return renderStats(out, store.Stats(), store.Size())
			}
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "write statistics as JSON")
	cmd.Flags().BoolVar(&prometheus, "prometheus", false, "write statistics in the Prometheus text format")
	return cmd
}

// statsReport is the --json document of cache stats.
type statsReport struct {
	Stats cache.Stats `json:"stats"`
	Size  cache.Size  `json:"size"`
}

func renderStats(w io.Writer, stats cache.Stats, size cache.Size) error {
	return renderFields(w, "CACHE STATS", []field{
		{"Hits", formatCount(stats.Hits)},
		{"Misses", formatCount(stats.Misses)},
		{"Writes", formatCount(stats.Writes)},
		{"Evictions", formatCount(stats.Evictions)},
		{"Hit rate", fmt.Sprintf("%d%%", stats.HitRate)},
		{"Avg retrieval", printer.Sprintf("%.3f ms", stats.AvgRetrievalTime)},
		{"Entries", formatCount(size.Memory)},
		{"Files", formatCount(size.Files)},
		{"Disk", formatBytes(size.Disk)},
	})
}

func newCacheSizeCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "size",
		Short: "Show how many entries the cache holds and their disk usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			size := store.Size()
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), size)
			}
			cfg := store.Config()
			limit := "unbounded"
			if cfg.MaxSize > 0 {
				limit = formatCount(cfg.MaxSize)
			}
			return renderFields(cmd.OutOrStdout(), "CACHE SIZE", []field{
				{"Directory", cfg.Directory},
				{"Entries", formatCount(size.Memory)},
				{"Max entries", limit},
				{"Files", formatCount(size.Files)},
				{"Disk", formatBytes(size.Disk)},
				{"TTL", cache.FormatDuration(cfg.TTL)},
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "write size as JSON")
	return cmd
}

func newCacheKeysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the keys of fresh cache entries",
		Long:  "Lists composite keys (category:key) of every entry loaded from the cache directory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, key := range store.Keys() {
				fmt.Fprintln(out, key)
			}
			return nil
		},
	}
}

func newCacheClearCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached result",
		Long: `Deletes every cached result from memory and disk.

Asks for confirmation on a terminal. Non-interactive use requires --force.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			dir := store.Config().Directory
			files := store.Size().Files
			clearAll := func() error {
				store.Clear()
				return nil
			}

			if !store.IsEnabled() {
				disk, diskErr := a.cacheFiles(store)
				if diskErr != nil {
					return diskErr
				}
				if disk == nil {
					cmd.Println("Cache cleared: nothing on disk")
					return nil
				}
				dir = disk.Directory()
				files, _ = disk.Usage()
				clearAll = disk.DeleteAll
			}

			if !force {
				interactive := isTerminal(os.Stdin) && isWriterTerminal(cmd.OutOrStdout())
				if !interactive {
					return errors.New("refusing to clear the cache without --force in non-interactive mode")
				}
				res := ConfirmClear(cmd.OutOrStdout(), cmd.InOrStdin(), interactive, dir, files)
				if !res.Accepted {
					cmd.Println("Aborted")
					return nil
				}
			}

			if err := clearAll(); err != nil {
				return fmt.Errorf("clearing %s: %w", dir, err)
			}
			cmd.Printf("Cache cleared: %s\n", dir)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "do not ask for confirmation")
	return cmd
}

// cacheFiles opens the directory behind a disabled store, which has no
// persistence of its own but may hold files from runs with caching on.
// It returns nil when the directory does not exist.
func (a *app) cacheFiles(store *cache.Store) (*cache.FilePersistence, error) {
	dir := store.Config().Directory
	if dir == "" {
		var err error
		if dir, err = cache.DefaultDirectory(); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil //nolint:nilnil // Nothing on disk to act on.
		}
		return nil, fmt.Errorf("opening cache directory: %w", err)
	}
	return cache.NewFilePersistence(dir, logging.ComponentLogger(a.logger, "cache"))
}

func newCacheCleanupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired entries from memory and disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			before := store.Size().Files
			removed := store.Cleanup()
			after := store.Size().Files
			cmd.Printf("Removed %s expired entries (%s files)\n",
				formatCount(removed), formatCount(max(before-after, 0)))
			return nil
		},
	}
}

func newCacheGetCmd(a *app) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a cached result",
		Long: `Prints the content cached under key as JSON.

Results of 'scancache scan' are keyed by file path in the codeQuality category.`,
		Example: `  scancache cache get main.go
  scancache cache get --category security main.go`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			entry, ok := store.GetEntry(args[0], cache.InCategory(category))
			if !ok {
				return fmt.Errorf("no fresh cache entry for %q", cache.CompositeKey(category, args[0]))
			}
			return writeJSON(cmd.OutOrStdout(), entry)
		},
	}

	cmd.Flags().StringVar(&category, "category", analyzer.LineMetricsName, "cache category")
	return cmd
}

func newCacheInvalidateCmd(a *app) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "invalidate <key>...",
		Short: "Remove cached results for the given keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			for _, key := range args {
				store.Invalidate(key, cache.InCategory(category))
				cmd.Printf("Invalidated %s\n", cache.CompositeKey(category, key))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", analyzer.LineMetricsName, "cache category")
	return cmd
}

func newCacheCheckCmd(a *app) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "check <file>...",
		Short: "Report whether files changed since their result was cached",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, path := range args {
				state := "unchanged"
				if store.HasChanged(path, cache.InCategory(category)) {
					state = "changed"
				}
				fmt.Fprintf(out, "%s\t%s\n", state, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", analyzer.LineMetricsName, "cache category")
	return cmd
}
