package cache

import (
	"math"
	"time"
)

// Stats is a point-in-time snapshot of cache activity since the store was
// created. It is never persisted.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Writes    uint64 `json:"writes"`
	Evictions uint64 `json:"evictions"`

	// HitRate is the rounded percentage of Get calls that hit.
	HitRate int `json:"hitRate"`

	// AvgRetrievalTime is the mean Get latency in milliseconds.
	AvgRetrievalTime float64 `json:"avgRetrievalTime"`
}

// Size reports how much the cache currently holds.
type Size struct {
	// Memory is the number of in-memory entries.
	Memory int `json:"memory"`

	// Files is the number of persisted entry files.
	Files int `json:"files"`

	// Disk is the total size of the persisted entry files in bytes.
	Disk int64 `json:"disk"`
}

// StatsTracker accumulates counters and a running mean of retrieval latency.
// It has no locking of its own; the owning Store serializes access.
type StatsTracker struct {
	hits      uint64
	misses    uint64
	writes    uint64
	evictions uint64
	samples   uint64
	avgMillis float64
}

// NewStatsTracker returns a tracker with all counters at zero.
func NewStatsTracker() *StatsTracker {
	return &StatsTracker{}
}

// RecordHit counts a successful lookup.
func (t *StatsTracker) RecordHit() { t.hits++ }

// RecordMiss counts a failed lookup.
func (t *StatsTracker) RecordMiss() { t.misses++ }

// RecordWrite counts a stored entry.
func (t *StatsTracker) RecordWrite() { t.writes++ }

// RecordEviction counts an entry removed for size pressure.
func (t *StatsTracker) RecordEviction() { t.evictions++ }

// RecordRetrieval folds one Get latency sample into the running mean.
func (t *StatsTracker) RecordRetrieval(d time.Duration) {
	t.samples++
	sample := float64(d) / float64(time.Millisecond)
	t.avgMillis += (sample - t.avgMillis) / float64(t.samples)
}

// Snapshot returns the current counters with the hit rate derived from them.
func (t *StatsTracker) Snapshot() Stats {
	return Stats{
		Hits:             t.hits,
		Misses:           t.misses,
		Writes:           t.writes,
		Evictions:        t.evictions,
		HitRate:          hitRate(t.hits, t.misses),
		AvgRetrievalTime: t.avgMillis,
	}
}

func hitRate(hits, misses uint64) int {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(hits) / float64(total)))
}
