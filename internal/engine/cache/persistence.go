package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// cacheFileExtension is the file extension used for cache entries.
const cacheFileExtension = ".json"

// tempFileSuffix marks in-flight writes that have not been renamed yet.
const tempFileSuffix = ".tmp"

// FilePersistence stores one JSON document per entry in a directory.
// Filenames are the SHA-256 of the composite key so that arbitrary keys map to
// safe, stable names across restarts.
type FilePersistence struct {
	// directory is the cache directory path.
	directory string

	logger zerolog.Logger
}

// NewFilePersistence creates the directory (and parents) if needed.
func NewFilePersistence(directory string, logger zerolog.Logger) (*FilePersistence, error) {
	if directory == "" {
		return nil, errors.New("cache directory cannot be empty")
	}
	if err := os.MkdirAll(directory, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FilePersistence{directory: directory, logger: logger}, nil
}

// Directory returns the cache directory path.
func (p *FilePersistence) Directory() string {
	return p.directory
}

// WriteEntry durably stores entry, replacing any previous file for its key.
func (p *FilePersistence) WriteEntry(entry *Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	filePath := p.keyToFilePath(entry.Key)

	// Write to temporary file first, then rename for atomicity
	tempPath := filePath + tempFileSuffix
	if writeErr := os.WriteFile(tempPath, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write cache file: %w", writeErr)
	}
	if renameErr := os.Rename(tempPath, filePath); renameErr != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename cache file: %w", renameErr)
	}
	return nil
}

// LoadAll reads every entry file and returns those still fresh at now.
// Unreadable, corrupted or expired files are skipped.
func (p *FilePersistence) LoadAll(now time.Time) []*Entry {
	names, err := p.entryFiles()
	if err != nil {
		p.logger.Warn().Err(err).Str("directory", p.directory).Msg("cannot list cache directory")
		return nil
	}

	var loaded []*Entry
	for _, name := range names {
		entry, readErr := p.readFile(filepath.Join(p.directory, name))
		if readErr != nil {
			p.logger.Warn().Err(readErr).Str("file", name).Msg("skipping unreadable cache file")
			continue
		}
		if entry.IsExpired(now) {
			continue
		}
		loaded = append(loaded, entry)
	}
	return loaded
}

// DeleteEntry removes the file for key. A missing file is not an error.
func (p *FilePersistence) DeleteEntry(key string) error {
	err := os.Remove(p.keyToFilePath(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}

// DeleteAll removes every entry file in the directory.
// It keeps going past individual failures and returns them joined.
func (p *FilePersistence) DeleteAll() error {
	names, err := p.entryFiles()
	if err != nil {
		return err
	}

	var errs []error
	for _, name := range names {
		removeErr := os.Remove(filepath.Join(p.directory, name))
		if removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove cache file %s: %w", name, removeErr))
		}
	}
	return errors.Join(errs...)
}

// SweepExpired removes entry files that are expired at now and returns how
// many were removed. Corrupted files are left in place.
func (p *FilePersistence) SweepExpired(now time.Time) int {
	names, err := p.entryFiles()
	if err != nil {
		p.logger.Warn().Err(err).Str("directory", p.directory).Msg("cannot list cache directory")
		return 0
	}

	removed := 0
	for _, name := range names {
		filePath := filepath.Join(p.directory, name)
		entry, readErr := p.readFile(filePath)
		if readErr != nil {
			continue
		}
		if !entry.IsExpired(now) {
			continue
		}
		if removeErr := os.Remove(filePath); removeErr == nil {
			removed++
		}
	}
	return removed
}

// Usage returns the number of entry files and their total size in bytes.
func (p *FilePersistence) Usage() (int, int64) {
	entries, err := os.ReadDir(p.directory)
	if err != nil {
		return 0, 0
	}

	var (
		count int
		total int64
	)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != cacheFileExtension {
			continue
		}
		info, infoErr := e.Info()
		if infoErr != nil {
			continue
		}
		count++
		total += info.Size()
	}
	return count, total
}

// entryFiles lists the names of entry files in the directory.
func (p *FilePersistence) entryFiles() ([]string, error) {
	entries, err := os.ReadDir(p.directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != cacheFileExtension {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (p *FilePersistence) readFile(filePath string) (*Entry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var entry Entry
	if unmarshalErr := json.Unmarshal(data, &entry); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", unmarshalErr)
	}
	if !entry.valid() {
		return nil, errors.New("cache entry is missing required fields")
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	return &entry, nil
}

// keyToFilePath maps a composite key to its entry file.
func (p *FilePersistence) keyToFilePath(key string) string {
	return filepath.Join(p.directory, Fingerprint([]byte(key))+cacheFileExtension)
}
