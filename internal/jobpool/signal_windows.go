//go:build windows

package jobpool

import "os/exec"

// exitSignal is always 0 on Windows: there is no POSIX signal to report.
func exitSignal(exitErr *exec.ExitError) int {
	return 0
}
