// Package logging wires the diagnostic logger used for --verbose
// tracing. The only event logged through it is the shell selection; the
// worker pool and memory admission do not log. It never
// carries user-facing success/failure output — that always goes straight
// to stdout/stderr, matching the teacher's plain fmt.Fprintf convention.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// New builds a colorized slog.Logger writing to w. When verbose is
// false, the logger is set to only emit warnings and above, so Debug/Info
// calls are no-ops unless the operator asked for them.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		NoColor:    !isTerminalFriendly(w),
		TimeFormat: "15:04:05",
	})
	return slog.New(handler)
}

// Default builds a logger writing to os.Stderr.
func Default(verbose bool) *slog.Logger {
	return New(os.Stderr, verbose)
}

func isTerminalFriendly(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
