package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Configuration constants and defaults.
const (
	// DefaultTTL is the default entry lifetime (one day).
	DefaultTTL = 24 * time.Hour

	// DefaultMaxSize disables the entry-count cap.
	DefaultMaxSize = 0

	// appDirName is the directory created under the user cache directory.
	appDirName = "scancache"

	// hoursPerDay is used for duration formatting calculations.
	hoursPerDay = 24

	// minutesPerHour is used for duration formatting calculations.
	minutesPerHour = 60

	// EnvCacheEnabled is the environment variable for enabling/disabling the cache.
	EnvCacheEnabled = "SCANCACHE_CACHE_ENABLED"

	// EnvCacheTTL is the environment variable for overriding the TTL.
	EnvCacheTTL = "SCANCACHE_CACHE_TTL"

	// EnvCacheDir is the environment variable for the cache directory.
	EnvCacheDir = "SCANCACHE_CACHE_DIR"

	// EnvCacheMaxSize is the environment variable for the entry-count cap.
	EnvCacheMaxSize = "SCANCACHE_CACHE_MAX_SIZE"
)

// Configuration validation errors.
var (
	ErrInvalidTTL     = errors.New("TTL must be positive")
	ErrInvalidMaxSize = errors.New("max size must not be negative")
)

// Config controls a Store.
//
// The zero value is a disabled cache. Start from DefaultConfig and override
// fields rather than building a Config literal.
type Config struct {
	// Enabled turns caching on. A disabled store never reads or writes.
	// DefaultConfig sets it; the zero value leaves it off.
	Enabled bool

	// TTL is how long an entry stays fresh after it is written.
	TTL time.Duration

	// Directory holds one JSON file per entry. Empty means DefaultDirectory.
	Directory string

	// MaxSize caps the number of in-memory entries. Zero means unbounded.
	MaxSize int
}

// DefaultConfig returns an enabled, unbounded configuration with a one-day TTL
// rooted at the default cache directory.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		TTL:     DefaultTTL,
		MaxSize: DefaultMaxSize,
	}
}

// Validate checks the numeric fields of c.
func (c Config) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidTTL, c.TTL)
	}
	if c.MaxSize < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxSize, c.MaxSize)
	}
	return nil
}

// normalized replaces zero or invalid values with defaults.
func (c Config) normalized() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxSize < 0 {
		c.MaxSize = DefaultMaxSize
	}
	return c
}

// DefaultDirectory returns the per-user cache directory for scancache,
// honoring XDG_CACHE_HOME and the platform conventions of os.UserCacheDir.
func DefaultDirectory() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user cache directory: %w", err)
	}
	return filepath.Join(base, appDirName), nil
}

// ApplyEnv overlays the SCANCACHE_CACHE_* environment variables onto c.
// Unset or unparseable values leave the corresponding field unchanged.
func (c Config) ApplyEnv() Config {
	if v := os.Getenv(EnvCacheEnabled); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Enabled = enabled
		}
	}
	if v := os.Getenv(EnvCacheTTL); v != "" {
		if ttl, err := ParseTTL(v); err == nil {
			c.TTL = ttl
		}
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		c.Directory = v
	}
	if v := os.Getenv(EnvCacheMaxSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.MaxSize = n
		}
	}
	return c
}

// ParseTTL parses a TTL string in any of these forms:
//   - Integer seconds: "3600".
//   - Fractional seconds: "0.1".
//   - Duration string: "1h", "30m", "150ms".
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		d := time.Duration(secs * float64(time.Second))
		if d <= 0 {
			return 0, fmt.Errorf("%w: got %q", ErrInvalidTTL, s)
		}
		return d, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid TTL format: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: got %q", ErrInvalidTTL, s)
	}
	return d, nil
}

// FormatDuration formats a duration in a human-readable way.
// Examples: "150ms", "30s", "5m", "2h30m", "3d2h".
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	if d < hoursPerDay*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % minutesPerHour
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	days := int(d.Hours()) / hoursPerDay
	hours := int(d.Hours()) % hoursPerDay
	if hours == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd%dh", days, hours)
}
