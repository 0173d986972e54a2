package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rshade/scancache/internal/config"
)

// newConfigCmd creates the config command group with configuration subcommands.
func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(
		newConfigInitCmd(a), newConfigShowCmd(a), newConfigGetCmd(a), newConfigSetCmd(a),
	)
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Prints the configuration after merging the global file, the project file,
SCANCACHE_* environment variables and command-line flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("marshaling config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# global: %s\n", a.configPath)
			if a.projectDir != "" {
				fmt.Fprintf(out, "# project: %s\n", filepath.Join(a.projectDir, "config.yaml"))
			}
			_, err = out.Write(data)
			return err
		},
	}
}

func newConfigGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Print one effective configuration value",
		Example: `  scancache config get cache.ttl`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := a.cfg.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newConfigSetCmd(a *app) *cobra.Command {
	var project bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Sets a value in the global configuration file, or in the project file with --project.

Keys: cache.enabled, cache.ttl, cache.directory, cache.max_size,
logging.level, logging.format, logging.file, scan.concurrency.`,
		Example: `  scancache config set cache.ttl 1h
  scancache config set --project cache.max_size 2000`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if project {
				if a.projectDir == "" {
					return fmt.Errorf("no project found; run 'scancache config init --project-dir <dir>' first")
				}
				path = filepath.Join(a.projectDir, "config.yaml")
			}

			// Edit the file's own contents so environment and flag overrides
			// are not written back.
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			cmd.Printf("Set %s = %s in %s\n", args[0], args[1], path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&project, "project", false, "write to the project configuration file")
	return cmd
}
