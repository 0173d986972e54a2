package cache

import (
	"encoding/json"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Store is an in-memory result cache mirrored to a FilePersistence.
// Every operation runs to completion under the store mutex; there is no
// background expiry. Expired entries are dropped when Get observes them or
// when Cleanup sweeps.
type Store struct {
	// mu serializes all access to entries, stats and the persisted files.
	mu sync.Mutex

	cfg     Config
	entries map[string]*Entry
	seq     uint64

	// persist is nil when the store is disabled.
	persist *FilePersistence
	stats   *StatsTracker

	logger zerolog.Logger
	now    func() time.Time
}

// StoreOption customizes a Store at construction.
type StoreOption func(*Store)

// WithLogger sets the logger used for persistence warnings.
func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// Option qualifies a single cache call.
type Option func(*callOptions)

type callOptions struct {
	category   string
	metadata   map[string]any
	sourceFile string
	sourceHash string
}

// InCategory namespaces the key, e.g. "codeQuality" or "security".
func InCategory(category string) Option {
	return func(o *callOptions) {
		o.category = category
	}
}

// WithMetadata attaches auxiliary attributes to the entry written by Set.
func WithMetadata(metadata map[string]any) Option {
	return func(o *callOptions) {
		o.metadata = metadata
	}
}

// ForFile makes Set fingerprint the file at path instead of the content, so a
// later HasChanged on that path can detect edits.
func ForFile(path string) Option {
	return func(o *callOptions) {
		o.sourceFile = path
	}
}

// WithSourceFingerprint records hash (see Fingerprint) as the entry hash.
// Use it when the caller already holds the exact bytes it analyzed.
func WithSourceFingerprint(hash string) Option {
	return func(o *callOptions) {
		o.sourceHash = hash
	}
}

func applyOptions(opts []Option) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates a Store for cfg and warm-starts it from the cache directory.
// Zero TTL and negative MaxSize fall back to defaults. An empty directory
// resolves to DefaultDirectory. A disabled store touches no files; note that
// cfg.Enabled is false unless cfg came from DefaultConfig or sets it.
func New(cfg Config, opts ...StoreOption) (*Store, error) {
	s := &Store{
		cfg:     cfg.normalized(),
		entries: make(map[string]*Entry),
		stats:   NewStatsTracker(),
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if !s.cfg.Enabled {
		return s, nil
	}

	if s.cfg.Directory == "" {
		dir, err := DefaultDirectory()
		if err != nil {
			return nil, err
		}
		s.cfg.Directory = dir
	}

	persist, err := NewFilePersistence(s.cfg.Directory, s.logger)
	if err != nil {
		return nil, err
	}
	s.persist = persist
	s.warmStart()

	return s, nil
}

// warmStart loads fresh persisted entries in write order.
func (s *Store) warmStart() {
	loaded := s.persist.LoadAll(s.now())
	slices.SortStableFunc(loaded, func(a, b *Entry) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return 0
		}
	})

	for _, entry := range loaded {
		s.seq++
		entry.seq = s.seq
		s.entries[entry.Key] = entry
	}
	s.evictLocked()

	s.logger.Debug().
		Str("directory", s.cfg.Directory).
		Int("entries", len(s.entries)).
		Msg("cache warm start complete")
}

// Set stores content under key. It is a no-op when the store is disabled or
// content is not valid JSON. Persistence failures are logged and the entry
// stays available from memory.
func (s *Store) Set(key string, content json.RawMessage, opts ...Option) {
	o := applyOptions(opts)
	if !s.cfg.Enabled {
		return
	}

	if len(content) == 0 {
		content = json.RawMessage("null")
	}
	if !json.Valid(content) {
		s.logger.Warn().Str("key", key).Msg("ignoring cache write with invalid JSON content")
		return
	}

	hash := Fingerprint(content)
	switch {
	case o.sourceHash != "":
		hash = o.sourceHash
	case o.sourceFile != "":
		fileHash, err := FingerprintFile(o.sourceFile)
		if err != nil {
			s.logger.Debug().Err(err).Str("file", o.sourceFile).Msg("cannot fingerprint source file")
		} else {
			hash = fileHash
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	composite := CompositeKey(o.category, key)
	entry := newEntry(composite, slices.Clone(content), hash, s.now(), s.cfg.TTL)
	if o.metadata != nil {
		entry.Metadata = maps.Clone(o.metadata)
	}
	s.seq++
	entry.seq = s.seq
	s.entries[composite] = entry

	if err := s.persist.WriteEntry(entry); err != nil {
		s.logger.Warn().Err(err).Str("key", composite).Msg("cache entry kept in memory only")
	}
	s.stats.RecordWrite()

	s.evictLocked()
}

// Get returns the content stored under key if it is still fresh.
// An expired entry is removed as a side effect and counts as a miss.
func (s *Store) Get(key string, opts ...Option) (json.RawMessage, bool) {
	entry, ok := s.GetEntry(key, opts...)
	if !ok {
		return nil, false
	}
	return entry.Content, true
}

// GetEntry is Get returning a copy of the whole entry, including its hash
// and metadata.
func (s *Store) GetEntry(key string, opts ...Option) (*Entry, bool) {
	start := time.Now()
	o := applyOptions(opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		s.stats.RecordRetrieval(time.Since(start))
	}()

	if !s.cfg.Enabled {
		s.stats.RecordMiss()
		return nil, false
	}

	composite := CompositeKey(o.category, key)
	entry, ok := s.entries[composite]
	if !ok {
		s.stats.RecordMiss()
		return nil, false
	}

	if entry.IsExpired(s.now()) {
		s.removeLocked(composite)
		s.stats.RecordMiss()
		return nil, false
	}

	s.stats.RecordHit()
	return entry.clone(), true
}

// Invalidate removes the entry for key from memory and disk.
func (s *Store) Invalidate(key string, opts ...Option) {
	o := applyOptions(opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		return
	}
	s.removeLocked(CompositeKey(o.category, key))
}

// Clear removes every entry from memory and every entry file from disk.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*Entry)
	if s.persist == nil {
		return
	}
	if err := s.persist.DeleteAll(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to remove some cache files")
	}
}

// Cleanup removes every expired entry and returns how many in-memory entries
// were dropped. Expired files left on disk by earlier runs are removed too.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		return 0
	}

	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if entry.IsExpired(now) {
			s.removeLocked(key)
			removed++
		}
	}

	swept := s.persist.SweepExpired(now)
	s.logger.Debug().Int("entries", removed).Int("files", swept).Msg("cache cleanup complete")
	return removed
}

// HasChanged reports whether filePath differs from what was cached for it.
// It returns true when no entry exists, when the file cannot be read, or when
// the stored fingerprint does not match the file's current contents. TTL is
// not considered.
func (s *Store) HasChanged(filePath string, opts ...Option) bool {
	o := applyOptions(opts)

	s.mu.Lock()
	entry, ok := s.entries[CompositeKey(o.category, filePath)]
	var stored string
	if ok {
		stored = entry.Hash
	}
	s.mu.Unlock()

	if !ok {
		return true
	}

	current, err := FingerprintFile(filePath)
	if err != nil {
		s.logger.Debug().Err(err).Str("file", filePath).Msg("treating unreadable file as changed")
		return true
	}
	return current != stored
}

// Stats returns a snapshot of the hit/miss counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Snapshot()
}

// Size reports the live entry count and the persisted footprint.
func (s *Store) Size() Size {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := Size{Memory: len(s.entries)}
	if s.persist != nil {
		size.Files, size.Disk = s.persist.Usage()
	}
	return size
}

// Keys returns the composite keys currently held in memory, sorted.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.entries))
}

// Config returns the effective configuration after defaults were applied.
func (s *Store) Config() Config {
	return s.cfg
}

// IsEnabled returns true if caching is enabled.
func (s *Store) IsEnabled() bool {
	return s.cfg.Enabled
}

// removeLocked drops key from memory and deletes its file.
func (s *Store) removeLocked(key string) {
	if _, ok := s.entries[key]; !ok {
		return
	}
	delete(s.entries, key)
	if err := s.persist.DeleteEntry(key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to delete cache file")
	}
}

// evictLocked removes the oldest writes until the entry count fits MaxSize.
func (s *Store) evictLocked() {
	for s.cfg.MaxSize > 0 && len(s.entries) > s.cfg.MaxSize {
		var oldest *Entry
		for _, entry := range s.entries {
			if oldest == nil || entry.Timestamp < oldest.Timestamp ||
				(entry.Timestamp == oldest.Timestamp && entry.seq < oldest.seq) {
				oldest = entry
			}
		}
		s.removeLocked(oldest.Key)
		s.stats.RecordEviction()
		s.logger.Debug().Str("key", oldest.Key).Msg("evicted cache entry")
	}
}

// clone returns a deep copy safe to hand to callers.
func (e *Entry) clone() *Entry {
	c := *e
	c.Content = slices.Clone(e.Content)
	c.Metadata = maps.Clone(e.Metadata)
	return &c
}
