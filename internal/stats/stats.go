// Package stats aggregates completed job records into an end-of-run
// summary, printed to stderr under --verbose.
package stats

import (
	"sync"
	"time"

	"github.com/riftwood/parallel/internal/collector"
)

// SlotSummary aggregates the jobs a single worker slot ran.
type SlotSummary struct {
	Jobs     int
	Failures int
	WallTime time.Duration
}

// Summary is the aggregate view over every recorded job.
type Summary struct {
	TotalJobs  int
	Failures   int
	WallTime   time.Duration
	BySlot     map[int]SlotSummary
	ByExitCode map[int]int
}

// Tracker accumulates Records as they arrive from the worker pool and produces a
// Summary on demand, mirroring the teacher's cost.Tracker shape: records
// append under a lock, and the summary is rebuilt from the full slice
// rather than maintained incrementally, so Summary() is always
// consistent with everything Record has seen so far.
type Tracker struct {
	mu      sync.Mutex
	records []collector.Record
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record appends one completed job's record to the tracker.
func (t *Tracker) Record(rec collector.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, rec)
}

// Summary builds the aggregate summary over every record seen so far.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return buildSummary(t.records)
}

func buildSummary(records []collector.Record) Summary {
	s := Summary{
		BySlot:     make(map[int]SlotSummary),
		ByExitCode: make(map[int]int),
	}
	for _, r := range records {
		s.TotalJobs++
		s.WallTime += r.WallTime
		s.ByExitCode[r.ExitStatus]++
		if r.ExitStatus != 0 {
			s.Failures++
		}
		slot := s.BySlot[r.Slot]
		slot.Jobs++
		slot.WallTime += r.WallTime
		if r.ExitStatus != 0 {
			slot.Failures++
		}
		s.BySlot[r.Slot] = slot
	}
	return s
}
