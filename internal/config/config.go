// Package config loads the optional tuning profile: a YAML file of
// defaults for knobs that have no CLI flag of their own.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile holds tunable defaults for the indexed reader's window size,
// the memory-admission poll interval, shell preference order, and the
// joblog column order. Only the window size and the poll interval are
// applied; ShellPreference and JoblogFields are parsed and validated but
// shell detection and the joblog writer do not consult them.
type Profile struct {
	WindowSizeBytes   int      `yaml:"window_size_bytes"`
	MemPollIntervalMS int      `yaml:"mem_poll_interval_ms"`
	ShellPreference   []string `yaml:"shell_preference"`
	JoblogFields      []string `yaml:"joblog_fields"`
}

// Default returns the built-in tuning profile used when no file is
// loaded or a field is absent from the loaded file.
func Default() Profile {
	return Profile{
		WindowSizeBytes:   8 * 1024,
		MemPollIntervalMS: 100,
		ShellPreference:   []string{"ion", "dash", "sh"},
		JoblogFields:      []string{"Seq", "Host", "Starttime", "JobRuntime", "Send", "Receive", "Exitval", "Signal", "Command"},
	}
}

// Load reads and parses a tuning profile YAML file; fields absent from
// the file keep their Default() values.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("reading tuning profile %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses YAML bytes over Default(), so fields absent from the YAML
// keep their defaults, and validates the result. A field explicitly set
// to zero overrides its default and then fails validation.
func Parse(data []byte) (Profile, error) {
	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parsing tuning profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks the profile for internally consistent values.
func (p Profile) Validate() error {
	if p.WindowSizeBytes <= 0 {
		return fmt.Errorf("tuning profile: window_size_bytes must be positive")
	}
	if p.MemPollIntervalMS <= 0 {
		return fmt.Errorf("tuning profile: mem_poll_interval_ms must be positive")
	}
	for _, s := range p.ShellPreference {
		switch s {
		case "ion", "dash", "sh", "cmd":
			// valid
		default:
			return fmt.Errorf("tuning profile: unknown shell %q in shell_preference", s)
		}
	}
	return nil
}

// MemPollInterval returns the configured poll interval as a time.Duration.
func (p Profile) MemPollInterval() time.Duration {
	return time.Duration(p.MemPollIntervalMS) * time.Millisecond
}
