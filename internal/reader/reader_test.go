package reader

import (
	"os"
	"path/filepath"
	"testing"
)

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

func TestReaderSequentialIteration(t *testing.T) {
	path := writeSpool(t, []string{"1", "2", "3"})
	r, err := Open(path, 3, DefaultWindowSize)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	for i, want := range []string{"1", "2", "3"} {
		input, job, ok, err := r.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("expected item %d, got exhausted", i)
		}
		if input != want || job != i+1 {
			t.Errorf("item %d = (%q, %d), want (%q, %d)", i, input, job, want, i+1)
		}
	}
	if _, _, ok, _ := r.Next(); ok {
		t.Error("expected exhausted reader")
	}
}

func TestReaderSmallWindowForcesRefill(t *testing.T) {
	lines := []string{"aaaa", "bbbb", "cccc", "dddd"}
	path := writeSpool(t, lines)
	r, err := Open(path, len(lines), 6) // smaller than one full line+newline pair sum
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	for i, want := range lines {
		input, job, ok, err := r.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("item %d: reader exhausted early", i)
		}
		if input != want || job != i+1 {
			t.Errorf("item %d = (%q, %d), want (%q, %d)", i, input, job, want, i+1)
		}
	}
}

func TestReaderGrowsWindowForLongLine(t *testing.T) {
	long := "0123456789012345" // longer than the tiny window below
	lines := []string{long, "short"}
	path := writeSpool(t, lines)
	r, err := Open(path, len(lines), 4)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	for i, want := range lines {
		input, job, ok, err := r.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("item %d: reader exhausted early", i)
		}
		if input != want || job != i+1 {
			t.Errorf("item %d = (%q, %d), want (%q, %d)", i, input, job, want, i+1)
		}
	}
}

func TestReaderStatusAndCompletion(t *testing.T) {
	path := writeSpool(t, []string{"x", "y"})
	r, err := Open(path, 2, DefaultWindowSize)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if s := r.Status(); s.Total != 2 || s.Completed != 0 || s.Remaining != 2 {
		t.Errorf("initial status = %+v", s)
	}
	r.RecordCompletion()
	s := r.Status()
	if s.Completed != 1 || s.Remaining != 1 || s.AvgNs <= 0 {
		t.Errorf("status after first completion = %+v", s)
	}
	r.RecordCompletion()
	s = r.Status()
	if s.Completed != 2 || s.Remaining != 0 {
		t.Errorf("status after second completion = %+v", s)
	}
}
