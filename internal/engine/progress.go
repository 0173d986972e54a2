package engine

import (
	"sync"
	"time"
)

// percentMultiplier converts a ratio to a percentage (0-100).
const percentMultiplier = 100

// ProgressFunc is invoked after each file in an AnalyzeAll batch completes.
// Calls are serialized.
type ProgressFunc func(ProgressSnapshot)

// Progress tracks how far an analysis batch has got. It is safe for
// concurrent use.
type Progress struct {
	mu        sync.Mutex
	total     int
	done      int
	cached    int
	failed    int
	startTime time.Time
	onUpdate  ProgressFunc
}

// ProgressSnapshot is an immutable copy of Progress state.
type ProgressSnapshot struct {
	Total           int
	Done            int
	Cached          int
	Failed          int
	PercentComplete float64
	Elapsed         time.Duration
	FilesPerSecond  float64
	Remaining       time.Duration
}

// NewProgress creates a tracker for total files. onUpdate may be nil.
func NewProgress(total int, onUpdate ProgressFunc) *Progress {
	return &Progress{
		total:     total,
		startTime: time.Now(),
		onUpdate:  onUpdate,
	}
}

// Record counts res and notifies the callback.
func (p *Progress) Record(res Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	switch {
	case res.Err != nil:
		p.failed++
	case res.Cached:
		p.cached++
	}
	if p.onUpdate != nil {
		p.onUpdate(p.snapshotLocked())
	}
}

// Snapshot returns the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Progress) snapshotLocked() ProgressSnapshot {
	elapsed := time.Since(p.startTime)
	s := ProgressSnapshot{
		Total:   p.total,
		Done:    p.done,
		Cached:  p.cached,
		Failed:  p.failed,
		Elapsed: elapsed,
	}
	if p.total > 0 {
		s.PercentComplete = float64(p.done) / float64(p.total) * percentMultiplier
	}
	if secs := elapsed.Seconds(); secs > 0 {
		s.FilesPerSecond = float64(p.done) / secs
	}
	if p.done > 0 && p.done < p.total {
		s.Remaining = elapsed / time.Duration(p.done) * time.Duration(p.total-p.done)
	}
	return s
}
