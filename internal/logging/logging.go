// Package logging configures the zerolog loggers used across scancache and
// carries them, together with a per-run trace ID, through context.Context.
package logging

import (
	"context"
	"crypto/rand"
	"io"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects the level, format and optional file sink.
type Config struct {
	Level  string
	Format string
	File   string
}

// DefaultConfig logs warnings and above to stderr in console format.
func DefaultConfig() Config {
	return Config{Level: "warn", Format: FormatConsole}
}

// Result is a logger plus the file it writes to, if any.
type Result struct {
	Logger zerolog.Logger

	// FilePath is set when logs are also appended to a file.
	FilePath string

	// FallbackReason explains why a requested file could not be opened.
	FallbackReason string

	file *os.File
}

// Close releases the log file handle, if one was opened.
func (r *Result) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// NewLogger builds a logger writing to stderr.
// If cfg.File is set the logger also appends to that file; when the file
// cannot be opened the logger stays console-only and FallbackReason says why.
func NewLogger(cfg Config) Result {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg Config, stderr io.Writer) Result {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		lvl = zerolog.WarnLevel
	}

	var console io.Writer = stderr
	if cfg.Format != FormatJSON {
		console = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}
	}
	writers := []io.Writer{console}

	var result Result
	if cfg.File != "" {
		f, openErr := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if openErr != nil {
			result.FallbackReason = openErr.Error()
		} else {
			result.file = f
			result.FilePath = cfg.File
			writers = append(writers, f)
		}
	}

	result.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Logger()
	return result
}

// ComponentLogger tags every event from l with the component name.
func ComponentLogger(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

// FromContext returns the logger stored in ctx, or a disabled logger.
// The trace ID, when present, is attached to every event.
func FromContext(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if id := TraceIDFromContext(ctx); id != "" {
		tagged := l.With().Str("trace_id", id).Logger()
		return &tagged
	}
	return l
}

type traceIDKey struct{}

// NewTraceID returns a new ULID string.
func NewTraceID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// ContextWithTraceID stores id in ctx.
func ContextWithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// TraceIDFromContext returns the trace ID in ctx, or "".
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// GetOrGenerateTraceID returns the trace ID in ctx, generating one if absent.
func GetOrGenerateTraceID(ctx context.Context) string {
	if id := TraceIDFromContext(ctx); id != "" {
		return id
	}
	return NewTraceID()
}
