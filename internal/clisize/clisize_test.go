package clisize

import "testing"

func TestParseMemFree(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"1000", 1000},
		{"1k", 1000},
		{"1K", 1024},
		{"2m", 2_000_000},
		{"1M", 1 << 20},
		{"1g", 1_000_000_000},
		{"1G", 1 << 30},
	}
	for _, c := range cases {
		got, err := ParseMemFree(c.in)
		if err != nil {
			t.Fatalf("%s: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseMemFree(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseJobs(t *testing.T) {
	cases := []struct {
		in    string
		cores int
		want  int
	}{
		{"4", 8, 4},
		{"2x", 4, 8},
		{"50%", 8, 4},
		{"+2", 4, 6},
		{"-2", 4, 2},
		{"-10", 4, 1}, // clamped to minimum 1
	}
	for _, c := range cases {
		got, err := ParseJobs(c.in, c.cores)
		if err != nil {
			t.Fatalf("%s: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseJobs(%q, %d) = %d, want %d", c.in, c.cores, got, c.want)
		}
	}
}
