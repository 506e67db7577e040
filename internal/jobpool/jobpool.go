// Package jobpool implements the Worker Pool & Dispatcher: a bounded set
// of worker goroutines that pull logical inputs from the shared Indexed
// Input Reader, build and launch the instantiated command, enforce the
// inter-job delay and memory-admission policies, and send a completion
// record to the Ordered Output Collector.
package jobpool

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/riftwood/parallel/internal/builder"
	"github.com/riftwood/parallel/internal/collector"
	"github.com/riftwood/parallel/internal/reader"
	"github.com/riftwood/parallel/internal/shellexec"
	"github.com/riftwood/parallel/internal/token"
)

// MemAvailable returns the currently available system memory in bytes.
// Its production implementation wraps gopsutil/v3/mem.VirtualMemory;
// tests inject a fake.
type MemAvailable func() (uint64, error)

// Config holds the per-run dispatch policy.
type Config struct {
	Workers      int
	Total        int
	Delay        time.Duration
	Timeout      time.Duration
	MemFree      uint64 // 0 disables the memory-admission gate
	Pipe         bool
	ShellEnabled bool
	Quiet        bool
	MemPollEvery time.Duration // default 100ms
}

// Pool dispatches jobs read from a reader.Reader against a tokenized
// template, sending completion records to a collector channel.
type Pool struct {
	cfg     Config
	tokens  []token.Token
	rdr     *reader.Reader
	cmd     *shellexec.Builder
	limiter *rate.Limiter
	memFn   MemAvailable
}

// New constructs a Pool. cmdBuilder decides shell-vs-argv launch and is
// injectable for tests. memFn is injectable; pass nil to use the real
// gopsutil-backed implementation, SystemMemAvailable.
func New(cfg Config, tokens []token.Token, rdr *reader.Reader, cmdBuilder *shellexec.Builder, memFn MemAvailable) *Pool {
	if cfg.MemPollEvery <= 0 {
		cfg.MemPollEvery = 100 * time.Millisecond
	}
	if memFn == nil {
		memFn = SystemMemAvailable
	}
	p := &Pool{cfg: cfg, tokens: tokens, rdr: rdr, cmd: cmdBuilder, memFn: memFn}
	if cfg.Delay > 0 {
		p.limiter = rate.NewLimiter(rate.Every(cfg.Delay), 1)
	}
	return p
}

// Run spawns cfg.Workers goroutines and returns the channel they send
// completion records to. The channel is closed once every worker has
// exhausted the reader or ctx is canceled.
func (p *Pool) Run(ctx context.Context) <-chan collector.Record {
	out := make(chan collector.Record)
	var wg sync.WaitGroup
	wg.Add(p.cfg.Workers)
	for slot := 1; slot <= p.cfg.Workers; slot++ {
		go func(slot int) {
			defer wg.Done()
			p.workerLoop(ctx, slot, out)
		}(slot)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (p *Pool) workerLoop(ctx context.Context, slot int, out chan<- collector.Record) {
	for {
		if ctx.Err() != nil {
			return
		}
		input, job, ok, err := p.rdr.Next()
		if err != nil || !ok {
			return
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return
			}
		}
		if p.cfg.MemFree > 0 {
			if err := p.awaitMemory(ctx); err != nil {
				return
			}
		}

		rec := p.execute(ctx, input, job, slot)
		p.rdr.RecordCompletion()
		select {
		case out <- rec:
		case <-ctx.Done():
			return
		}
	}
}

// awaitMemory blocks the calling worker, without holding the reader's
// lock, until available system memory meets cfg.MemFree or ctx is done.
func (p *Pool) awaitMemory(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.MemPollEvery)
	defer ticker.Stop()
	for {
		avail, err := p.memFn()
		if err == nil && avail >= p.cfg.MemFree {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// execute builds and runs a single job's command, capturing the result
// into a collector.Record. Spawn and wait failures are folded into the
// record's exit status rather than propagated, per the per-job error
// recoverability policy.
func (p *Pool) execute(ctx context.Context, input string, job, slot int) collector.Record {
	command := builder.Build(p.tokens, input, job, slot, p.cfg.Total, p.cfg.Pipe)

	runCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	shellWrapped := p.cfg.ShellEnabled && !p.cfg.Pipe
	cmd, err := p.cmd.Build(runCtx, command, shellWrapped)
	if err != nil {
		return collector.Record{
			JobNumber: job, Slot: slot, Input: input, Command: command,
			ExitStatus: 127, Stderr: []byte("parallel: " + err.Error() + "\n"),
			StartedAt: time.Now(),
		}
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	if !p.cfg.Quiet {
		cmd.Stdout = &stdoutBuf
	}
	cmd.Stderr = &stderrBuf

	var stdinPipe io.WriteCloser
	if p.cfg.Pipe {
		stdinPipe, err = cmd.StdinPipe()
		if err != nil {
			return collector.Record{
				JobNumber: job, Slot: slot, Input: input, Command: command,
				ExitStatus: 127, Stderr: []byte("parallel: " + err.Error() + "\n"),
				StartedAt: time.Now(),
			}
		}
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return collector.Record{
			JobNumber: job, Slot: slot, Input: input, Command: command,
			ExitStatus: 127, Stderr: []byte("parallel: spawn failed: " + err.Error() + "\n"),
			StartedAt: start,
		}
	}

	if p.cfg.Pipe {
		io.WriteString(stdinPipe, input+"\n")
		stdinPipe.Close()
	}

	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	exitStatus := 0
	signal := 0
	if waitErr != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			exitStatus = 124
			stderrBuf.WriteString("parallel: job " + strconv.Itoa(job) + " timed out\n")
		} else if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitStatus = exitErr.ExitCode()
			signal = exitSignal(exitErr)
		} else {
			exitStatus = 127
			stderrBuf.WriteString("parallel: " + waitErr.Error() + "\n")
		}
	}

	return collector.Record{
		JobNumber:  job,
		Slot:       slot,
		Input:      input,
		Command:    command,
		ExitStatus: exitStatus,
		Signal:     signal,
		Stdout:     stdoutBuf.Bytes(),
		Stderr:     stderrBuf.Bytes(),
		WallTime:   elapsed,
		StartedAt:  start,
	}
}
