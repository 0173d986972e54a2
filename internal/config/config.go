// Package config loads scancache settings from YAML files and the environment.
//
// Settings are layered, later layers winning:
//  1. built-in defaults
//  2. the global file ($SCANCACHE_HOME/config.yaml, default ~/.scancache/config.yaml)
//  3. a project-local .scancache/config.yaml (shallow merge by top-level key)
//  4. SCANCACHE_* environment variables
//  5. CLI flags, applied by the caller
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rshade/scancache/internal/engine/cache"
	"github.com/rshade/scancache/internal/logging"
)

// Environment variables for the non-cache settings. The cache section honors
// the SCANCACHE_CACHE_* variables defined in the cache package.
const (
	EnvHome      = "SCANCACHE_HOME"
	EnvLogLevel  = "SCANCACHE_LOG_LEVEL"
	EnvLogFormat = "SCANCACHE_LOG_FORMAT"
)

// configFileName is the name of both the global and project config files.
const configFileName = "config.yaml"

// ErrUnknownKey is returned by Get and Set for unsupported dotted keys.
var ErrUnknownKey = errors.New("unknown config key")

// Config is the full set of scancache settings.
type Config struct {
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
	Scan    ScanConfig    `yaml:"scan"`
}

// CacheConfig is the YAML form of cache.Config.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`

	// TTL accepts seconds ("86400", "0.5") or a Go duration ("24h").
	TTL string `yaml:"ttl"`

	// Directory defaults to the user cache directory when empty.
	Directory string `yaml:"directory,omitempty"`

	// MaxSize caps the number of entries; 0 means unbounded.
	MaxSize int `yaml:"max_size"`
}

// LoggingConfig is the YAML form of logging.Config.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// ScanConfig controls the scan command.
type ScanConfig struct {
	// Concurrency is the number of files analyzed at once; 0 means one per CPU.
	Concurrency int `yaml:"concurrency"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Enabled: true,
			TTL:     strconv.Itoa(int(cache.DefaultTTL.Seconds())),
			MaxSize: cache.DefaultMaxSize,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: logging.FormatConsole,
		},
	}
}

// HomeDir returns the scancache home directory ($SCANCACHE_HOME or ~/.scancache).
func HomeDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, projectDirName), nil
}

// DefaultPath returns the location of the global config file.
func DefaultPath() (string, error) {
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the file at path on top of the defaults. A missing file is not
// an error. Environment overrides are not applied; see ApplyEnv.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes c to path as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays the SCANCACHE_* environment variables onto c.
func (c *Config) ApplyEnv() {
	cc := cache.Config{
		Enabled:   c.Cache.Enabled,
		Directory: c.Cache.Directory,
		MaxSize:   c.Cache.MaxSize,
	}.ApplyEnv()
	c.Cache.Enabled = cc.Enabled
	c.Cache.Directory = cc.Directory
	c.Cache.MaxSize = cc.MaxSize
	if v := os.Getenv(cache.EnvCacheTTL); v != "" {
		if _, err := cache.ParseTTL(v); err == nil {
			c.Cache.TTL = v
		}
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
}

// CacheConfig converts the cache section into a cache.Config.
func (c *Config) CacheConfig() (cache.Config, error) {
	cfg := cache.Config{
		Enabled:   c.Cache.Enabled,
		TTL:       cache.DefaultTTL,
		Directory: c.Cache.Directory,
		MaxSize:   c.Cache.MaxSize,
	}
	if c.Cache.TTL != "" {
		ttl, err := cache.ParseTTL(c.Cache.TTL)
		if err != nil {
			return cache.Config{}, fmt.Errorf("cache.ttl: %w", err)
		}
		cfg.TTL = ttl
	}
	if err := cfg.Validate(); err != nil {
		return cache.Config{}, err
	}
	return cfg, nil
}

// LoggingConfig converts the logging section into a logging.Config.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		File:   c.Logging.File,
	}
}

// Get returns the value of a dotted key such as "cache.ttl".
func (c *Config) Get(key string) (string, error) {
	switch strings.ToLower(key) {
	case "cache.enabled":
		return strconv.FormatBool(c.Cache.Enabled), nil
	case "cache.ttl":
		return c.Cache.TTL, nil
	case "cache.directory":
		return c.Cache.Directory, nil
	case "cache.max_size":
		return strconv.Itoa(c.Cache.MaxSize), nil
	case "logging.level":
		return c.Logging.Level, nil
	case "logging.format":
		return c.Logging.Format, nil
	case "logging.file":
		return c.Logging.File, nil
	case "scan.concurrency":
		return strconv.Itoa(c.Scan.Concurrency), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

// Set assigns a dotted key from its string form, validating the value.
func (c *Config) Set(key, value string) error {
	switch strings.ToLower(key) {
	case "cache.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		c.Cache.Enabled = b
	case "cache.ttl":
		if _, err := cache.ParseTTL(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		c.Cache.TTL = value
	case "cache.directory":
		c.Cache.Directory = value
	case "cache.max_size":
		n, err := parseNonNegative(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		c.Cache.MaxSize = n
	case "logging.level":
		c.Logging.Level = value
	case "logging.format":
		if value != logging.FormatConsole && value != logging.FormatJSON {
			return fmt.Errorf("invalid value for %s: must be %q or %q", key, logging.FormatConsole, logging.FormatJSON)
		}
		c.Logging.Format = value
	case "logging.file":
		c.Logging.File = value
	case "scan.concurrency":
		n, err := parseNonNegative(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		c.Scan.Concurrency = n
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

func parseNonNegative(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must be >= 0, got %d", n)
	}
	return n, nil
}
