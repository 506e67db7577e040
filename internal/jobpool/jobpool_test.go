package jobpool

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"syscall"
	"testing"
	"time"

	"github.com/riftwood/parallel/internal/collector"
	"github.com/riftwood/parallel/internal/reader"
	"github.com/riftwood/parallel/internal/shellexec"
	"github.com/riftwood/parallel/internal/token"
)

// fakeEchoCmd spawns "echo" instead of a real shell/argv[0], so tests run
// without depending on the host's shell binaries.
func fakeEchoCmd(ctx context.Context, name string, args ...string) *exec.Cmd {
	// The real argv[0] is whatever the template resolved to; for the test
	// we always actually run /bin/echo with the resolved argument so the
	// captured stdout is deterministic and inspectable.
	all := append([]string{name}, args...)
	return exec.CommandContext(ctx, "echo", all[len(all)-1])
}

func writeSpool(t *testing.T, lines []string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "unprocessed")
	var data string
	for _, l := range lines {
		data += l + "\n"
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPoolExecutesAllJobsAndReportsCompletion(t *testing.T) {
	path := writeSpool(t, []string{"one", "two", "three"})
	rdr, err := reader.Open(path, 3, reader.DefaultWindowSize)
	if err != nil {
		t.Fatal(err)
	}
	defer rdr.Close()

	toks, err := token.Tokenize("echo {}", 3, nil)
	if err != nil {
		t.Fatal(err)
	}

	cmdBuilder := shellexec.NewBuilderWithCmd(shellexec.ShellPOSIX, fakeEchoCmd)
	cfg := Config{Workers: 2, Total: 3}
	pool := New(cfg, toks, rdr, cmdBuilder, func() (uint64, error) { return 1 << 30, nil })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var jobNumbers []int
	for rec := range pool.Run(ctx) {
		jobNumbers = append(jobNumbers, rec.JobNumber)
		if rec.ExitStatus != 0 {
			t.Errorf("job %d: unexpected nonzero exit status %d, stderr=%s", rec.JobNumber, rec.ExitStatus, rec.Stderr)
		}
	}

	sort.Ints(jobNumbers)
	if len(jobNumbers) != 3 || jobNumbers[0] != 1 || jobNumbers[1] != 2 || jobNumbers[2] != 3 {
		t.Errorf("got job numbers %v, want [1 2 3]", jobNumbers)
	}
}

func TestPoolFeedsOrderedCollector(t *testing.T) {
	path := writeSpool(t, []string{"a", "b", "c", "d"})
	rdr, err := reader.Open(path, 4, reader.DefaultWindowSize)
	if err != nil {
		t.Fatal(err)
	}
	defer rdr.Close()

	toks, err := token.Tokenize("echo {}", 4, nil)
	if err != nil {
		t.Fatal(err)
	}

	cmdBuilder := shellexec.NewBuilderWithCmd(shellexec.ShellPOSIX, fakeEchoCmd)
	cfg := Config{Workers: 4, Total: 4}
	pool := New(cfg, toks, rdr, cmdBuilder, func() (uint64, error) { return 1 << 30, nil })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var stdout, stderr fakeWriter
	col := collector.New(collector.Config{Stdout: &stdout, Stderr: &stderr})
	for rec := range pool.Run(ctx) {
		if err := col.Handle(rec); err != nil {
			t.Fatal(err)
		}
	}

	want := "a\nb\nc\nd\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
}

func TestPoolRecordsKillSignal(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("signal extraction is POSIX-only")
	}
	path := writeSpool(t, []string{"x"})
	rdr, err := reader.Open(path, 1, reader.DefaultWindowSize)
	if err != nil {
		t.Fatal(err)
	}
	defer rdr.Close()

	toks, err := token.Tokenize("kill -KILL $$", 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	selfKill := func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "kill -KILL $$")
	}
	cmdBuilder := shellexec.NewBuilderWithCmd(shellexec.ShellPOSIX, selfKill)
	cfg := Config{Workers: 1, Total: 1}
	pool := New(cfg, toks, rdr, cmdBuilder, func() (uint64, error) { return 1 << 30, nil })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var rec collector.Record
	for r := range pool.Run(ctx) {
		rec = r
	}
	if rec.Signal != int(syscall.SIGKILL) {
		t.Errorf("Signal = %d, want SIGKILL (%d)", rec.Signal, syscall.SIGKILL)
	}
}

type fakeWriter struct{ buf []byte }

func (w *fakeWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *fakeWriter) String() string { return string(w.buf) }
