package cache

import (
	"encoding/json"
	"time"
)

// Entry is a single cached result together with its expiry bookkeeping.
// Timestamps are milliseconds since the Unix epoch so that the persisted form
// stays language-neutral.
type Entry struct {
	// Key is the composite key (category:key, or key alone).
	Key string `json:"key"`

	// Content is the cached payload as a JSON value.
	Content json.RawMessage `json:"content"`

	// Hash is the hex SHA-256 of Content, or of the source file when the
	// entry was written with ForFile.
	Hash string `json:"hash"`

	// Timestamp is the creation or last overwrite time.
	Timestamp int64 `json:"timestamp"`

	// ExpiresAt is Timestamp plus the store TTL.
	ExpiresAt int64 `json:"expiresAt"`

	// Metadata holds auxiliary attributes supplied by the caller.
	Metadata map[string]any `json:"metadata"`

	// seq orders writes that share a millisecond timestamp.
	seq uint64
}

// newEntry builds an entry written at now that lives for ttl.
// The expiry is always at least one millisecond after the timestamp.
func newEntry(key string, content json.RawMessage, hash string, now time.Time, ttl time.Duration) *Entry {
	ts := now.UnixMilli()
	life := ttl.Milliseconds()
	if life < 1 {
		life = 1
	}
	return &Entry{
		Key:       key,
		Content:   content,
		Hash:      hash,
		Timestamp: ts,
		ExpiresAt: ts + life,
		Metadata:  map[string]any{},
	}
}

// IsExpired reports whether the entry is no longer fresh at now.
func (e *Entry) IsExpired(now time.Time) bool {
	return now.UnixMilli() >= e.ExpiresAt
}

// Age returns how long ago the entry was written.
func (e *Entry) Age(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-e.Timestamp) * time.Millisecond
}

// TimeUntilExpiration returns the remaining lifetime at now, or 0 once expired.
func (e *Entry) TimeUntilExpiration(now time.Time) time.Duration {
	remaining := e.ExpiresAt - now.UnixMilli()
	if remaining < 0 {
		return 0
	}
	return time.Duration(remaining) * time.Millisecond
}

// valid reports whether a decoded entry carries enough data to be served.
func (e *Entry) valid() bool {
	return e.Key != "" && len(e.Content) > 0 && e.ExpiresAt > e.Timestamp
}
