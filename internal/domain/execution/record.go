package execution

import (
	"math"
	"time"
)

// ExecutionRecord captures the exit artifacts of one dispatched command.
// Records are built once the process has terminated, naturally or by force,
// and are not mutated afterwards.
type ExecutionRecord struct {
	processID      *int
	command        string
	output         []byte
	elapsedSeconds int
	outcome        Outcome
	exitCode       *int
	spawnErr       string
}

// NewCompletedRecord builds the record for a process that exited before its
// deadline. Elapsed time is rounded up to the next whole second.
func NewCompletedRecord(pid int, command string, output []byte, exitCode int, elapsed time.Duration) ExecutionRecord {
	return ExecutionRecord{
		processID:      &pid,
		command:        command,
		output:         output,
		elapsedSeconds: CeilSeconds(elapsed),
		outcome:        OutcomeCompleted,
		exitCode:       &exitCode,
	}
}

// NewTimedOutRecord builds the record for a process that overran its deadline.
// The process identity is not reported and elapsed time is zero. partial is
// whatever stdout was produced before termination; callers that do not keep
// partial output pass nil.
func NewTimedOutRecord(command string, partial []byte) ExecutionRecord {
	return ExecutionRecord{
		command: command,
		output:  partial,
		outcome: OutcomeTimedOut,
	}
}

// NewSpawnFailedRecord builds the record for a command that never started.
func NewSpawnFailedRecord(command string, err error) ExecutionRecord {
	rec := ExecutionRecord{command: command, outcome: OutcomeSpawnFailed}
	if err != nil {
		rec.spawnErr = err.Error()
	}
	return rec
}

// ReconstructRecord rebuilds a record from persisted fields. Persisted rows do
// not carry a process identity.
func ReconstructRecord(command string, output []byte, elapsedSeconds int, outcome Outcome, exitCode *int) ExecutionRecord {
	return ExecutionRecord{
		command:        command,
		output:         output,
		elapsedSeconds: elapsedSeconds,
		outcome:        outcome,
		exitCode:       exitCode,
	}
}

// ProcessID returns the OS pid and whether one is known.
func (r ExecutionRecord) ProcessID() (int, bool) {
	if r.processID == nil {
		return 0, false
	}
	return *r.processID, true
}

// Command returns the command text exactly as dispatched.
func (r ExecutionRecord) Command() string { return r.command }

// CommandLength returns the byte length of the command text.
func (r ExecutionRecord) CommandLength() int { return len(r.command) }

// Output returns the captured stdout. It is never nil.
func (r ExecutionRecord) Output() []byte {
	if r.output == nil {
		return []byte{}
	}
	return r.output
}

// ElapsedSeconds returns the ceiling-rounded wall-clock duration, or zero for
// timed out and unstarted commands.
func (r ExecutionRecord) ElapsedSeconds() int { return r.elapsedSeconds }

// Outcome returns how the command ended.
func (r ExecutionRecord) Outcome() Outcome { return r.outcome }

// ExitCode returns the process exit code when the command completed.
func (r ExecutionRecord) ExitCode() (int, bool) {
	if r.exitCode == nil {
		return 0, false
	}
	return *r.exitCode, true
}

// SpawnError returns the reason a command failed to start, if any.
func (r ExecutionRecord) SpawnError() string { return r.spawnErr }

// CeilSeconds rounds d up to the next whole second.
func CeilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
