package execution

// ReapResult classifies a single attempt to signal a leftover process group.
type ReapResult string

const (
	// ReapSignaled indicates the process group was found and sent a termination signal.
	ReapSignaled ReapResult = "SIGNALED"

	// ReapNotFound indicates no process or group exists for the pid any more.
	ReapNotFound ReapResult = "NOT_FOUND"

	// ReapPermissionDenied indicates the group exists but cannot be signaled.
	ReapPermissionDenied ReapResult = "PERMISSION_DENIED"

	// ReapFailed covers any other signaling error.
	ReapFailed ReapResult = "FAILED"
)

// String returns the string representation of the ReapResult.
func (r ReapResult) String() string { return string(r) }

// ReapAttempt is the result of sweeping one recorded pid.
type ReapAttempt struct {
	PID    int
	PGID   int
	Result ReapResult
	Err    error
}
