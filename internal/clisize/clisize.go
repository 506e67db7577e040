// Package clisize parses the scaled-integer value grammars used by the
// --jobs and --mem-free flags.
package clisize

import (
	"fmt"
	"strconv"
	"strings"
)

// memSuffixes maps each recognized --mem-free unit suffix to its multiplier.
var memSuffixes = map[byte]float64{
	'k': 1e3,
	'K': 1 << 10,
	'm': 1e6,
	'M': 1 << 20,
	'g': 1e9,
	'G': 1 << 30,
	't': 1e12,
	'T': 1 << 40,
	'p': 1e15,
	'P': 1 << 50,
}

// ParseMemFree parses a --mem-free value: a decimal integer with an
// optional unit suffix (k/K/m/M/g/G/t/T/p/P), returning the size in bytes.
func ParseMemFree(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty --mem-free value")
	}
	last := s[len(s)-1]
	if mult, ok := memSuffixes[last]; ok {
		num, err := strconv.ParseFloat(s[:len(s)-1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid --mem-free value %q: %w", s, err)
		}
		return uint64(num * mult), nil
	}
	num, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid --mem-free value %q: %w", s, err)
	}
	return num, nil
}

// ParseJobs parses a --jobs value against the detected core count:
// a positive integer (absolute), "NxCORES" (multiplier), "P%" (percentage
// of cores), or "+N"/"-N" (relative to cores). The result is clamped to
// at least 1.
func ParseJobs(s string, cores int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty --jobs value")
	}
	clamp := func(n int) int {
		if n < 1 {
			return 1
		}
		return n
	}

	switch {
	case strings.HasSuffix(s, "%"):
		pct, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid --jobs percentage %q: %w", s, err)
		}
		return clamp(int(float64(cores) * pct / 100.0)), nil
	case strings.HasSuffix(s, "x") || strings.HasSuffix(s, "X"):
		mult, err := strconv.ParseFloat(s[:len(s)-1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid --jobs multiplier %q: %w", s, err)
		}
		return clamp(int(float64(cores) * mult)), nil
	case strings.HasPrefix(s, "+"):
		delta, err := strconv.Atoi(s[1:])
		if err != nil {
			return 0, fmt.Errorf("invalid --jobs relative value %q: %w", s, err)
		}
		return clamp(cores + delta), nil
	case strings.HasPrefix(s, "-"):
		delta, err := strconv.Atoi(s[1:])
		if err != nil {
			return 0, fmt.Errorf("invalid --jobs relative value %q: %w", s, err)
		}
		return clamp(cores - delta), nil
	default:
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid --jobs value %q: %w", s, err)
		}
		return clamp(n), nil
	}
}
