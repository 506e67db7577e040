package collector

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

func TestCollectorEmitsOutOfOrderRecordsInOrder(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := New(Config{Stdout: &stdout, Stderr: &stderr})

	if err := c.Handle(Record{JobNumber: 2, Stdout: []byte("two\n")}); err != nil {
		t.Fatal(err)
	}
	if stdout.Len() != 0 {
		t.Fatalf("job 2 emitted before job 1: %q", stdout.String())
	}
	if err := c.Handle(Record{JobNumber: 1, Stdout: []byte("one\n")}); err != nil {
		t.Fatal(err)
	}
	if got := stdout.String(); got != "one\ntwo\n" {
		t.Errorf("got %q, want \"one\\ntwo\\n\"", got)
	}
}

func TestCollectorExitCodeClamping(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := New(Config{Stdout: &stdout, Stderr: &stderr})
	for i := 1; i <= 150; i++ {
		c.Handle(Record{JobNumber: i, ExitStatus: 1})
	}
	if code := c.Finish(); code != 101 {
		t.Errorf("exit code = %d, want 101 (clamped)", code)
	}
}

func TestCollectorExitCodeZeroOnSuccess(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := New(Config{Stdout: &stdout, Stderr: &stderr})
	c.Handle(Record{JobNumber: 1, ExitStatus: 0})
	if code := c.Finish(); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestCollectorMirrorsStdoutToProcessedFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	processed, err := os.CreateTemp(t.TempDir(), "processed")
	if err != nil {
		t.Fatal(err)
	}
	defer processed.Close()

	c := New(Config{Stdout: &stdout, Stderr: &stderr, ProcessedFile: processed})
	c.Handle(Record{JobNumber: 1, Stdout: []byte("one\n")})

	if _, err := processed.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(processed)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "one\n" {
		t.Errorf("processed file = %q, want %q", got, "one\n")
	}
}

func TestCollectorJoblogHeaderAndRow(t *testing.T) {
	var stdout, stderr, joblog bytes.Buffer
	c := New(Config{Stdout: &stdout, Stderr: &stderr, Joblog: &joblog})
	c.Handle(Record{JobNumber: 1, Command: "echo hi", ExitStatus: 0})
	lines := strings.Split(strings.TrimRight(joblog.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header + 1 row: %q", len(lines), joblog.String())
	}
	if !strings.HasPrefix(lines[0], "Seq\tHost\tStarttime") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "echo hi") {
		t.Errorf("row = %q", lines[1])
	}
}

func TestCollectorMirrorsStderrOnNonzeroExit(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := New(Config{Stdout: &stdout, Stderr: &stderr})
	c.Handle(Record{JobNumber: 1, ExitStatus: 1, Stderr: []byte("boom\n")})
	if !strings.Contains(stderr.String(), "boom") {
		t.Errorf("stderr = %q, want mirrored failure output", stderr.String())
	}
}

func TestCollectorQuietSuppressesStderrMirror(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := New(Config{Stdout: &stdout, Stderr: &stderr, Quiet: true})
	c.Handle(Record{JobNumber: 1, ExitStatus: 1, Stderr: []byte("boom\n")})
	if strings.Contains(stderr.String(), "boom") {
		t.Errorf("stderr = %q, want mirror suppressed under quiet mode", stderr.String())
	}
}
