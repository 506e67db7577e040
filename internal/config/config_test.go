package config

import "testing"

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default profile should validate: %v", err)
	}
}

func TestParseAppliesDefaultsForZeroFields(t *testing.T) {
	p, err := Parse([]byte(`shell_preference: ["dash", "sh"]`))
	if err != nil {
		t.Fatal(err)
	}
	if p.WindowSizeBytes != Default().WindowSizeBytes {
		t.Errorf("window_size_bytes = %d, want default %d", p.WindowSizeBytes, Default().WindowSizeBytes)
	}
	if len(p.ShellPreference) != 2 || p.ShellPreference[0] != "dash" {
		t.Errorf("shell_preference = %v", p.ShellPreference)
	}
}

func TestParseRejectsUnknownShell(t *testing.T) {
	if _, err := Parse([]byte(`shell_preference: ["powershell"]`)); err == nil {
		t.Fatal("expected validation error for unknown shell")
	}
}

func TestParseRejectsNonPositiveWindow(t *testing.T) {
	if _, err := Parse([]byte(`window_size_bytes: 0`)); err != nil {
		// Parse starts from Default(), so an explicit 0 in YAML overrides it
		// back to 0 and must fail validation.
		return
	}
	t.Fatal("expected validation error for window_size_bytes: 0")
}
