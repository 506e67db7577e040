// Package shellexec selects the shell used to launch child commands,
// builds the exec.Cmd for a job (shell-wrapped or direct argv), and
// implements the SHELL_QUOTE escaping scheme. The command-construction
// function is injectable, following the same testability shape the
// teacher codebase uses for its tmux process wrapper.
package shellexec

import (
	"context"
	"os/exec"
	"runtime"
	"strings"

	"github.com/buildkite/shellwords"
)

// Shell identifies the interpreter used to run a shell-wrapped command.
type Shell int

const (
	ShellNone Shell = iota
	ShellIon
	ShellDash
	ShellPOSIX
	ShellCmd
)

// String renders a human-readable shell name for logging.
func (s Shell) String() string {
	switch s {
	case ShellIon:
		return "ion"
	case ShellDash:
		return "dash"
	case ShellCmd:
		return "cmd"
	case ShellPOSIX:
		return "sh"
	default:
		return "none"
	}
}

// Invocation returns the executable name and the flag that introduces an
// inline command string for this shell (e.g. "sh", "-c").
func (s Shell) Invocation() (name, flag string) {
	switch s {
	case ShellIon:
		return "ion", "-c"
	case ShellDash:
		return "dash", "-c"
	case ShellCmd:
		return "cmd", "/C"
	default:
		return "sh", "-c"
	}
}

// LookPath abstracts exec.LookPath for testability.
type LookPath func(file string) (string, error)

// Detect picks the preferred shell available on PATH: Ion, then Dash,
// then sh on Unix; cmd on Windows, where Ion/Dash are not meaningful
// choices for the core's child-process launch path.
func Detect(lookPath LookPath) Shell {
	if runtime.GOOS == "windows" {
		return ShellCmd
	}
	if _, err := lookPath("ion"); err == nil {
		return ShellIon
	}
	if _, err := lookPath("dash"); err == nil {
		return ShellDash
	}
	return ShellPOSIX
}

// shellMetachars is the byte set whose presence in a template's literal
// text implies the command needs a real shell to interpret it, rather
// than being spawned directly as argv[0] plus arguments.
const shellMetachars = ";&|$<>[]@"

// ShellRequired reports whether command contains any shell metacharacter,
// used as the value of SHELL_ENABLED. There is no option to force shell
// usage on or off; pipe mode launches argv directly regardless.
func ShellRequired(command string) bool {
	return strings.ContainsAny(command, shellMetachars)
}

// quoteChars is the SHELL_QUOTE escape set: each of these bytes, plus
// ASCII space, is prefixed with a backslash.
const quoteChars = "$\\><^&#!*'\"`~{}[]();|?"

// Quote escapes command against the SHELL_QUOTE set. It returns the
// input unmodified if no character requires escaping.
func Quote(command string) string {
	needsEscape := false
	for _, r := range command {
		if r == ' ' || strings.ContainsRune(quoteChars, r) {
			needsEscape = true
			break
		}
	}
	if !needsEscape {
		return command
	}
	var sb strings.Builder
	for _, r := range command {
		if r == ' ' || strings.ContainsRune(quoteChars, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// SplitArgv splits a command string into argv, honoring single quotes,
// double quotes, and backslash escapes.
func SplitArgv(command string) ([]string, error) {
	return shellwords.Split(command)
}

// CmdFunc constructs an *exec.Cmd for name/args bound to ctx. It matches
// exec.CommandContext's signature and is injectable for testing.
type CmdFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// DefaultCmdFunc wraps exec.CommandContext.
func DefaultCmdFunc(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

// Builder decides, per job, whether to invoke a shell or spawn argv
// directly, and constructs the resulting *exec.Cmd.
type Builder struct {
	Shell   Shell
	CmdFunc CmdFunc
}

// NewBuilder creates a Builder that spawns real processes.
func NewBuilder(shell Shell) *Builder {
	return &Builder{Shell: shell, CmdFunc: DefaultCmdFunc}
}

// NewBuilderWithCmd creates a Builder with an injected CmdFunc, for tests.
func NewBuilderWithCmd(shell Shell, fn CmdFunc) *Builder {
	return &Builder{Shell: shell, CmdFunc: fn}
}

// Build constructs the *exec.Cmd for a single job's instantiated command
// string. When shellEnabled is true the command is handed to the
// preferred shell as one argument; otherwise it is split into argv and
// argv[0] is spawned directly.
func (b *Builder) Build(ctx context.Context, command string, shellEnabled bool) (*exec.Cmd, error) {
	if shellEnabled {
		name, flag := b.Shell.Invocation()
		return b.CmdFunc(ctx, name, flag, command), nil
	}
	argv, err := SplitArgv(command)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return b.CmdFunc(ctx, "true"), nil
	}
	return b.CmdFunc(ctx, argv[0], argv[1:]...), nil
}
