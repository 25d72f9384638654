package execution

import "errors"

var (
	// ErrSpawn is returned when a command could not be started as a process.
	ErrSpawn = errors.New("command could not be spawned")

	// ErrQueueFull is returned when the approved command queue cannot accept
	// another list.
	ErrQueueFull = errors.New("command queue is full")

	// ErrBatchNotFound is returned when no persisted batch exists for an id.
	ErrBatchNotFound = errors.New("batch not found")
)
