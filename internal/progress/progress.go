package progress

import (
	"sync/atomic"
	"time"
)

// Tracker accumulates processed-byte counts from concurrent hashing
// workers. The processed counter feeds a live percentage/ETA display
// only; the final comparison result never depends on it, so relaxed
// best-effort accuracy is acceptable.
type Tracker struct {
	processed atomic.Int64
	total     atomic.Int64
	phase     atomic.Value // string
	current   atomic.Value // string
	start     atomic.Int64 // unix nanoseconds
}

// NewTracker creates an idle tracker.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.phase.Store("")
	t.current.Store("")
	return t
}

// Reset starts a new pass: zeroes the processed counter, fixes the
// expected total and restarts the clock. The total is computed once
// before hashing begins and never recomputed mid-pass.
func (t *Tracker) Reset(phase string, total int64) {
	t.processed.Store(0)
	t.total.Store(total)
	t.phase.Store(phase)
	t.current.Store("")
	t.start.Store(time.Now().UnixNano())
}

// Add records n more processed bytes.
func (t *Tracker) Add(n int64) {
	t.processed.Add(n)
}

// SetCurrent records the identifier being hashed right now.
func (t *Tracker) SetCurrent(identifier string) {
	t.current.Store(identifier)
}

// Snapshot is a read-only view of the tracker at one instant.
type Snapshot struct {
	Phase     string
	Current   string
	Processed int64
	Total     int64
	Elapsed   time.Duration
}

// Snapshot captures the current state for a reporting collaborator.
func (t *Tracker) Snapshot() Snapshot {
	start := t.start.Load()
	var elapsed time.Duration
	if start > 0 {
		elapsed = time.Since(time.Unix(0, start))
	}
	return Snapshot{
		Phase:     t.phase.Load().(string),
		Current:   t.current.Load().(string),
		Processed: t.processed.Load(),
		Total:     t.total.Load(),
		Elapsed:   elapsed,
	}
}

// Percent returns progress in the range 0-100.
func (s Snapshot) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Processed) / float64(s.Total) * 100
}

// Speed returns the observed throughput in bytes per second.
func (s Snapshot) Speed() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.Processed) / secs
}

// ETA estimates the remaining duration at the observed throughput.
func (s Snapshot) ETA() time.Duration {
	speed := s.Speed()
	if speed <= 0 || s.Processed >= s.Total {
		return 0
	}
	remaining := float64(s.Total - s.Processed)
	return time.Duration(remaining / speed * float64(time.Second))
}
