// Package reader implements the fixed-window indexed reader over the
// "unprocessed" spool file: a sequential iterator over logical inputs
// with O(1) status and a moving-average ETA estimator.
package reader

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/riftwood/parallel/internal/perr"
)

// DefaultWindowSize is the default byte window read from the spool file
// on each refill, absent a tuning override.
const DefaultWindowSize = 8 * 1024

// Reader is a shared-mutable sequential iterator over the logical inputs
// recorded in a spool file. All mutations occur under a single mutex so
// that cursor advance and the ETA counters stay coherent.
type Reader struct {
	mu sync.Mutex

	f          *os.File
	windowSize int
	window     []byte
	winLen     int
	newlines   []int // offsets of '\n' within window
	cursor     int   // index into window of the start of the next unread line
	eof        bool

	total     int
	completed int
	nextJob   int
	start     time.Time
	avgNs     int64
}

// Open opens path for reading and prepares the indexed reader. total is
// the record count the Spooler reported. windowSize <= 0 uses
// DefaultWindowSize.
func Open(path string, total int, windowSize int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.Wrap(perr.SpoolIO, path, err)
	}
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	r := &Reader{
		f:          f,
		windowSize: windowSize,
		window:     make([]byte, windowSize),
		total:      total,
		nextJob:    1,
		start:      time.Now(),
	}
	if err := r.refill(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}

// refill reads the next window starting at the first unconsumed byte and
// recomputes the newline index. Must be called with mu held. If the
// unconsumed tail already fills the window — a logical input longer than
// windowSize — the window is doubled before reading further, so a single
// long line cannot stall the reader.
func (r *Reader) refill() error {
	// Preserve any unconsumed tail bytes (a partial line straddling the
	// window boundary) by prefixing them onto the new window.
	tailLen := r.winLen - r.cursor
	if tailLen >= len(r.window) {
		grown := make([]byte, len(r.window)*2)
		copy(grown, r.window[r.cursor:r.winLen])
		r.window = grown
	} else {
		tail := r.window[r.cursor:r.winLen]
		copy(r.window, tail)
	}
	n := tailLen

	for n < len(r.window) {
		m, err := r.f.Read(r.window[n:])
		n += m
		if err != nil {
			if err == io.EOF {
				r.eof = true
				break
			}
			return perr.Wrap(perr.SpoolIO, "unprocessed", err)
		}
		if m == 0 {
			r.eof = true
			break
		}
	}
	r.winLen = n
	r.cursor = 0
	r.newlines = r.newlines[:0]
	for i := 0; i < r.winLen; i++ {
		if r.window[i] == '\n' {
			r.newlines = append(r.newlines, i)
		}
	}
	return nil
}

// Next atomically acquires the next logical input and its job number.
// ok is false once the reader is exhausted.
func (r *Reader) Next() (input string, job int, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		nl := r.nextNewlineIndex()
		if nl >= 0 {
			line := string(r.window[r.cursor:nl])
			r.cursor = nl + 1
			job = r.nextJob
			r.nextJob++
			return line, job, true, nil
		}
		if r.eof {
			return "", 0, false, nil
		}
		if err := r.refill(); err != nil {
			return "", 0, false, err
		}
	}
}

// nextNewlineIndex returns the window offset of the first newline at or
// after r.cursor, or -1 if none remain in the current window.
func (r *Reader) nextNewlineIndex() int {
	for _, off := range r.newlines {
		if off >= r.cursor {
			return off
		}
	}
	return -1
}

// RecordCompletion registers a job completion for ETA purposes. The
// running average is reset to the elapsed time since the reader opened
// after the first completion, and recomputed as elapsed/completed
// thereafter.
func (r *Reader) RecordCompletion() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
	elapsed := time.Since(r.start)
	if r.completed == 1 {
		r.avgNs = elapsed.Nanoseconds()
	} else {
		r.avgNs = elapsed.Nanoseconds() / int64(r.completed)
	}
}

// Status is a snapshot of the reader's progress counters.
type Status struct {
	Total     int
	Completed int
	Remaining int
	AvgNs     int64
}

// Status returns a consistent snapshot of total/completed/remaining/avg.
func (r *Reader) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		Total:     r.total,
		Completed: r.completed,
		Remaining: r.total - r.completed,
		AvgNs:     r.avgNs,
	}
}

// ETANs returns the estimated remaining time in nanoseconds:
// remaining * average_time_ns.
func (s Status) ETANs() int64 {
	return int64(s.Remaining) * s.AvgNs
}
