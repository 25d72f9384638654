package execution

// Outcome describes how a dispatched command ended.
type Outcome string

const (
	// OutcomeCompleted indicates the process exited on its own before the deadline.
	// The exit code may still be non-zero.
	OutcomeCompleted Outcome = "COMPLETED"

	// OutcomeTimedOut indicates the deadline fired and the process group was
	// terminated and reaped.
	OutcomeTimedOut Outcome = "TIMED_OUT"

	// OutcomeSpawnFailed indicates no process was ever started.
	OutcomeSpawnFailed Outcome = "SPAWN_FAILED"
)

// String returns the string representation of the Outcome.
func (o Outcome) String() string { return string(o) }
