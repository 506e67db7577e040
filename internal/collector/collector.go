// Package collector implements the Ordered Output Collector: it receives
// out-of-order job completion records from the worker pool and emits
// each job's captured output to the program's stdout/stderr in strict
// ascending job_number order, while maintaining the persisted errors
// file, the job log, and the ETA line.
package collector

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/btree"

	"github.com/riftwood/parallel/internal/reader"
)

// Record is a single job's completion report, handed from a worker to
// the collector over the completion channel.
type Record struct {
	JobNumber  int
	Slot       int
	Input      string
	ExitStatus int
	Signal     int
	Stdout     []byte
	Stderr     []byte
	WallTime   time.Duration
	StartedAt  time.Time
	Command    string
}

func (r Record) Less(other Record) bool { return r.JobNumber < other.JobNumber }

// Config configures the collector's output targets and policy flags.
type Config struct {
	Stdout        io.Writer
	Stderr        io.Writer
	ErrorsFile    *os.File // persistent errors spool file, written whenever a job's captured stderr is nonempty
	ProcessedFile *os.File // persistent stdout spool file, written on every completion
	Joblog        io.Writer
	Joblog8601    bool
	Verbose       bool
	Quiet         bool
	ETA           bool
	Host          string
	Reader        *reader.Reader // used to print ETA status after each emission
}

// Collector accumulates out-of-order Records and emits them in order.
type Collector struct {
	cfg         Config
	pending     *btree.BTreeG[Record]
	nextToEmit  int
	joblogSeq   int
	failingJobs int
	anyErrors   bool
}

// New creates a Collector ready to receive completion records starting
// at job number 1.
func New(cfg Config) *Collector {
	return &Collector{
		cfg:        cfg,
		pending:    btree.NewG(32, Record.Less),
		nextToEmit: 1,
	}
}

// Handle processes one completion record: if it is the next job in
// sequence it is emitted immediately and any contiguous successors
// already buffered are drained; otherwise it is buffered until its
// predecessors arrive.
func (c *Collector) Handle(rec Record) error {
	if rec.JobNumber != c.nextToEmit {
		c.pending.ReplaceOrInsert(rec)
		return nil
	}
	if err := c.emit(rec); err != nil {
		return err
	}
	c.nextToEmit++
	for {
		next, ok := c.pending.Get(Record{JobNumber: c.nextToEmit})
		if !ok {
			break
		}
		c.pending.Delete(next)
		if err := c.emit(next); err != nil {
			return err
		}
		c.nextToEmit++
	}
	return nil
}

// emit writes one record's captured output to stdout/stderr, the errors
// spool file, the job log, and the ETA line, in the order §4.6 mandates.
func (c *Collector) emit(rec Record) error {
	if c.cfg.Verbose {
		fmt.Fprintf(c.cfg.Stdout, "== job %d (slot %d): %s ==\n", rec.JobNumber, rec.Slot, rec.Command)
	}
	if len(rec.Stdout) > 0 {
		if _, err := c.cfg.Stdout.Write(rec.Stdout); err != nil {
			return err
		}
		if c.cfg.ProcessedFile != nil {
			if _, err := c.cfg.ProcessedFile.Write(rec.Stdout); err != nil {
				return err
			}
		}
	}

	if len(rec.Stderr) > 0 {
		c.anyErrors = true
		if c.cfg.ErrorsFile != nil {
			if _, err := c.cfg.ErrorsFile.Write(rec.Stderr); err != nil {
				return err
			}
		}
		if rec.ExitStatus != 0 && !c.cfg.Quiet {
			if _, err := c.cfg.Stderr.Write(rec.Stderr); err != nil {
				return err
			}
		}
	}
	if rec.ExitStatus != 0 {
		c.failingJobs++
	}

	if c.cfg.Joblog != nil {
		c.writeJoblogRow(rec)
	}

	if c.cfg.ETA && c.cfg.Reader != nil {
		c.writeETA()
	}
	return nil
}

// writeJoblogRow appends one TSV joblog row for rec. Send/Receive are
// left at 0, matching the original implementation's behavior.
func (c *Collector) writeJoblogRow(rec Record) {
	if c.joblogSeq == 0 {
		fmt.Fprint(c.cfg.Joblog, "Seq\tHost\tStarttime\tJobRuntime\tSend\tReceive\tExitval\tSignal\tCommand\n")
	}
	c.joblogSeq++

	var startTime string
	if c.cfg.Joblog8601 {
		startTime = rec.StartedAt.Format(time.RFC3339)
	} else {
		startTime = fmt.Sprintf("%.3f", float64(rec.StartedAt.UnixNano())/1e9)
	}

	fmt.Fprintf(c.cfg.Joblog, "%d\t%s\t%s\t%.3f\t0\t0\t%d\t%d\t%s\n",
		c.joblogSeq, c.cfg.Host, startTime, rec.WallTime.Seconds(), rec.ExitStatus, rec.Signal, rec.Command)
}

// writeETA prints the ETA line after an emission, per §6's format.
func (c *Collector) writeETA() {
	s := c.cfg.Reader.Status()
	secs := float64(s.ETANs()) / 1e9
	avgSecs := float64(s.AvgNs) / 1e9
	fmt.Fprintf(c.cfg.Stderr, "ETA: %.0fs Left: %d AVG: %.2fs Completed: %d\n",
		secs, s.Remaining, avgSecs, s.Completed)
}

// Finish replays the persisted errors file to stderr (if nonempty) and
// computes the process exit code: the count of failing jobs, clamped to
// 1..=101, or 0 if no job failed and no stderr was captured.
func (c *Collector) Finish() int {
	if c.anyErrors && c.cfg.ErrorsFile != nil {
		fmt.Fprintln(c.cfg.Stderr, "parallel: encountered errors during processing:")
		if _, err := c.cfg.ErrorsFile.Seek(0, io.SeekStart); err == nil {
			io.Copy(c.cfg.Stderr, c.cfg.ErrorsFile)
		}
	}
	if c.failingJobs == 0 && !c.anyErrors {
		return 0
	}
	n := c.failingJobs
	if n == 0 {
		n = 1
	}
	if n > 101 {
		n = 101
	}
	return n
}
