package execution

import "time"

// RunResult holds what a finished process left behind.
type RunResult struct {
	PID      int
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Elapsed  time.Duration
}

// Process is a started command running in its own process group.
type Process interface {
	// PID returns the OS process id of the shell running the command.
	PID() int

	// Wait blocks until the process exits and its output is drained. A non-zero
	// exit status is reported through RunResult.ExitCode, not as an error.
	Wait() (RunResult, error)

	// Terminate sends SIGTERM to the whole process group.
	Terminate() error

	// Kill sends SIGKILL to the whole process group.
	Kill() error

	// GroupAlive reports whether any member of the process group still
	// exists. Descendants can outlive the shell, so Wait returning does not
	// imply the group is gone.
	GroupAlive() bool
}

// ProcessRunner starts commands as isolated child processes. It applies no
// deadline of its own.
type ProcessRunner interface {
	// Start spawns command. Errors wrap ErrSpawn.
	Start(command string) (Process, error)
}

// GroupSignaler locates the process group of a pid and signals it.
type GroupSignaler interface {
	// TerminateGroup sends a termination signal to the group pid belongs to and
	// classifies the result. It never panics and never blocks on the target.
	TerminateGroup(pid int) ReapAttempt
}
