package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rshade/scancache/internal/logging"
)

// projectDirName is the per-project (and per-user home) settings directory.
const projectDirName = ".scancache"

// projectCacheDirName is the cache directory inside a project .scancache/.
const projectCacheDirName = "cache"

// ResolveProjectDir determines the project-local .scancache directory path.
// It checks (in order):
//  1. flagValue (--project-dir CLI flag)
//  2. SCANCACHE_PROJECT_DIR env var
//  3. walking up from startDir to the nearest directory containing .scancache/
//
// Returns the absolute path to $PROJECT/.scancache/ or "" if no project is found.
// Does NOT create the directory.
func ResolveProjectDir(ctx context.Context, flagValue, startDir string) string {
	if flagValue != "" {
		return toAbsProjectDir(ctx, flagValue)
	}

	if envDir := os.Getenv("SCANCACHE_PROJECT_DIR"); envDir != "" {
		return toAbsProjectDir(ctx, envDir)
	}

	root, ok := findProjectRoot(startDir)
	if !ok {
		return ""
	}
	return toAbsProjectDir(ctx, root)
}

// findProjectRoot walks up from dir looking for a .scancache directory.
// The user's home .scancache is not treated as a project marker.
func findProjectRoot(dir string) (string, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	home, _ := HomeDir()

	for {
		candidate := filepath.Join(abs, projectDirName)
		if candidate != home {
			if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
				return abs, true
			}
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", false
		}
		abs = parent
	}
}

// NewWithProjectDir loads the global config and shallow-merges the project
// config on top. A missing or broken project file falls back to the global
// settings with a warning. When the merged settings leave the cache directory
// unset, the project's .scancache/cache is used.
func NewWithProjectDir(ctx context.Context, globalPath, projectDir string) (*Config, error) {
	cfg, err := Load(globalPath)
	if err != nil {
		return nil, err
	}
	if projectDir == "" {
		return cfg, nil
	}

	overlayPath := filepath.Join(projectDir, configFileName)
	if _, statErr := os.Stat(overlayPath); statErr == nil {
		merged := *cfg
		if mergeErr := ShallowMergeYAML(&merged, overlayPath); mergeErr != nil {
			logging.FromContext(ctx).Warn().
				Str("component", "config").
				Str("operation", "merge_project_config").
				Err(mergeErr).
				Str("overlay_path", overlayPath).
				Msg("failed to merge project config, using global settings")
		} else {
			cfg = &merged
		}
	}

	if cfg.Cache.Directory == "" {
		cfg.Cache.Directory = ProjectCacheDir(projectDir)
	}
	return cfg, nil
}

// ProjectCacheDir returns the cache directory inside a project .scancache/.
func ProjectCacheDir(projectDir string) string {
	return filepath.Join(projectDir, projectCacheDirName)
}

// toAbsProjectDir converts dir to an absolute path and appends ".scancache".
// A path that already ends with ".scancache" is returned as-is (after
// resolving) to prevent double-append.
func toAbsProjectDir(ctx context.Context, dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		logging.FromContext(ctx).Warn().
			Str("component", "config").
			Err(err).
			Str("dir", dir).
			Msg("failed to resolve absolute path for project directory")
		abs = dir
	}

	if filepath.Base(abs) == projectDirName {
		return abs
	}
	return filepath.Join(abs, projectDirName)
}
