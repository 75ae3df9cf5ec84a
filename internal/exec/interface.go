// Package exec provides an interface for command execution.
package exec

import "context"

// Result holds the outcome of a completed command.
type Result struct {
	// Stdout is the captured standard output.
	Stdout string
	// Stderr is the captured standard error.
	Stderr string
	// ExitCode is the process exit status.
	ExitCode int
}

// CommandRunner defines the interface for running external commands to
// completion. Implementations return an error only for genuine invocation
// failures (missing executable, broken pipe); a nonzero exit status is
// reported through Result.ExitCode so callers can apply their own policy.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Capture runs a command in workDir (if non-empty) and captures output.
	Capture(ctx context.Context, workDir string, name string, args ...string) (Result, error)
}
