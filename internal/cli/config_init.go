package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rshade/scancache/internal/config"
)

// newConfigInitCmd creates the config init command for initializing configuration.
// Inside a project (a directory tree with .scancache/, or one named with
// --project-dir) it writes .scancache/config.yaml and a .gitignore that keeps
// cached results out of version control. Otherwise, or with --global, it
// writes the global config file.
func newConfigInitCmd(a *app) *cobra.Command {
	var (
		force  bool
		global bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file with default values",
		Long: `Creates a new configuration file with default values.

Inside a project, creates project-local configuration at
$PROJECT/.scancache/config.yaml with a .gitignore for the cache directory.
Use --global to force global configuration initialization even inside a project.`,
		Example: `  # Create project-local configuration in the current directory
  scancache config init --project-dir .

  # Create global configuration
  scancache config init --global

  # Create configuration, overwriting existing
  scancache config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.projectDir != "" && !global {
				return initProjectConfig(cmd, a.projectDir, force)
			}
			return initGlobalConfig(cmd, a.configPath, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	cmd.Flags().BoolVar(&global, "global", false, "force global configuration init even inside a project")

	return cmd
}

// checkNotExists fails unless path is absent or force is set.
func checkNotExists(path string, force bool) error {
	if force {
		return nil
	}
	_, err := os.Stat(path)
	if err == nil {
		return errors.New("configuration file already exists, use --force to overwrite")
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("cannot access config path %s: %w", path, err)
	}
	return nil
}

// initProjectConfig creates project-local config at projectDir/config.yaml with .gitignore.
func initProjectConfig(cmd *cobra.Command, projectDir string, force bool) error {
	configPath := filepath.Join(projectDir, "config.yaml")
	if err := checkNotExists(configPath, force); err != nil {
		return err
	}

	if err := config.Default().Save(configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	// Never overwrites an existing .gitignore.
	created, err := config.EnsureGitignore(projectDir)
	if err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}

	cmd.Printf("Configuration initialized at %s\n", configPath)
	if created {
		cmd.Printf("Created .gitignore to keep cached results out of version control\n")
	}
	return nil
}

// initGlobalConfig creates the global config file at configPath.
func initGlobalConfig(cmd *cobra.Command, configPath string, force bool) error {
	if err := checkNotExists(configPath, force); err != nil {
		return err
	}

	if err := config.Default().Save(configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	cmd.Printf("Configuration initialized successfully\n")
	cmd.Printf("Configuration file: %s\n", configPath)
	return nil
}
