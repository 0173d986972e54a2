package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/scancache/internal/config"
	"github.com/rshade/scancache/internal/engine/cache"
	"github.com/rshade/scancache/internal/logging"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// rootFlags holds the persistent flags shared by every subcommand.
type rootFlags struct {
	debug      bool
	configPath string
	projectDir string
	cacheDir   string
	cacheTTL   string
	noCache    bool
}

// app is the state assembled by the root command before a subcommand runs.
// Each root command owns one, so tests can build many roots side by side.
type app struct {
	flags rootFlags

	cfg        *config.Config
	configPath string
	projectDir string

	registry  *cache.Registry
	logger    zerolog.Logger
	logResult *logging.Result
}

// NewRootCmd creates the root Cobra command for the scancache CLI.
func NewRootCmd(ver string) *cobra.Command {
	cmd, _ := newRootCmd(ver)
	return cmd
}

func newRootCmd(ver string) (*cobra.Command, *app) {
	a := &app{logger: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:           "scancache",
		Short:         "Cached static analysis for source trees",
		Long:          "scancache: run source analyzers and reuse results for files that have not changed",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVar(&a.flags.debug, "debug", false, "enable debug logging")
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default $SCANCACHE_HOME/config.yaml)")
	pf.StringVar(&a.flags.projectDir, "project-dir", "", "project root holding .scancache/ (default: nearest parent with one)")
	pf.StringVar(&a.flags.cacheDir, "cache-dir", "", "cache directory (overrides config file and env var)")
	pf.StringVar(&a.flags.cacheTTL, "cache-ttl", "", "cache TTL as seconds or a duration like 1h (overrides config file and env var)")
	pf.BoolVar(&a.flags.noCache, "no-cache", false, "disable the result cache for this run")

	cmd.AddCommand(newScanCmd(a), newCacheCmd(a), newConfigCmd(a))
	closeLogAfterRun(cmd, a.closeLog)
	return cmd, a
}

// closeLogAfterRun wraps the RunE of cmd and its descendants so that after
// runs once the command returns, whether or not it failed. Cobra skips the
// post-run hooks when RunE returns an error.
func closeLogAfterRun(cmd *cobra.Command, after func(*cobra.Command)) {
	for _, sub := range cmd.Commands() {
		closeLogAfterRun(sub, after)
	}
	run := cmd.RunE
	if run == nil {
		return
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		defer after(c)
		return run(c, args)
	}
}

// closeLog releases the log file opened by setupLogging.
func (a *app) closeLog(cmd *cobra.Command) {
	if a.logResult == nil {
		return
	}
	if err := a.logResult.Close(); err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: closing log file: %v\n", err)
	}
	a.logResult = nil
}

// setup resolves configuration, logging and the cache registry.
func (a *app) setup(cmd *cobra.Command) error {
	configPath := a.flags.configPath
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		configPath = p
	}
	a.configPath = configPath

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining working directory: %w", err)
	}
	a.projectDir = config.ResolveProjectDir(cmd.Context(), a.flags.projectDir, cwd)

	cfg, err := config.NewWithProjectDir(cmd.Context(), configPath, a.projectDir)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if err := a.applyFlags(cmd, cfg); err != nil {
		return err
	}
	a.cfg = cfg

	a.setupLogging(cmd)

	a.registry = cache.NewRegistry(cache.WithLogger(logging.ComponentLogger(a.logger, "cache")))
	return nil
}

// applyFlags lets explicitly set CLI flags win over file and environment.
func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("cache-dir") {
		cfg.Cache.Directory = a.flags.cacheDir
	}
	if flags.Changed("cache-ttl") {
		if _, err := cache.ParseTTL(a.flags.cacheTTL); err != nil {
			return fmt.Errorf("--cache-ttl: %w", err)
		}
		cfg.Cache.TTL = a.flags.cacheTTL
	}
	if a.flags.noCache {
		cfg.Cache.Enabled = false
	}
	return nil
}

// store returns the process-wide cache store, creating it on first use.
func (a *app) store() (*cache.Store, error) {
	cfg, err := a.cfg.CacheConfig()
	if err != nil {
		return nil, err
	}
	store, err := a.registry.Cache(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return store, nil
}

const rootCmdExample = `  # Analyze files, reusing cached results for unchanged ones
  scancache scan ./cmd ./internal

  # Emit results as JSON with an explicit cache TTL (10 minutes)
  scancache scan --json --cache-ttl 10m main.go

  # Show what the cache holds
  scancache cache size

  # Remove expired entries
  scancache cache cleanup

  # Check whether a file changed since it was analyzed
  scancache cache check main.go

  # Create project-local configuration
  scancache config init

  # Set configuration values
  scancache config set cache.max_size 5000`
