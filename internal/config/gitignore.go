package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ignoredPaths are the .scancache/ entries kept out of version control.
// The config file itself is meant to be committed.
var ignoredPaths = []string{ //nolint:gochecknoglobals // Read-only list.
	projectCacheDirName + "/",
	"*.log",
}

// GitignoreContent returns what EnsureGitignore writes into a project's
// .scancache/ directory.
func GitignoreContent() string {
	var b strings.Builder
	b.WriteString("# scancache project-local data (auto-generated)\n")
	b.WriteString("# Config is tracked; cached analysis results are not.\n")
	for _, p := range ignoredPaths {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	return b.String()
}

// EnsureGitignore writes dir/.gitignore unless a file by that name is already
// there, creating dir as needed. It reports whether it wrote the file; an
// existing .gitignore is left untouched.
func EnsureGitignore(dir string) (bool, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return false, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, ".gitignore")
	//nolint:gosec // .gitignore must be world-readable (0644).
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("creating %s: %w", path, err)
	}

	_, writeErr := f.WriteString(GitignoreContent())
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		return false, fmt.Errorf("writing %s: %w", path, writeErr)
	}
	return true, nil
}
