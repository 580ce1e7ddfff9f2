// Package output centralizes the process exit codes hammer-kit can return,
// so main and its tests agree on one place rather than scattering magic
// numbers across os.Exit calls.
package output

// Exit codes: 0 if no flips were observed, 1 if at least one flip was
// observed, nonzero on any abort condition.
const (
	ExitNoFlips = 0
	ExitFlips   = 1
	ExitAbort   = 2
)
