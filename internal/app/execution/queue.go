package execution

import (
	"context"

	"github.com/ahrav/cmdrunner/internal/domain/execution"
)

// DefaultQueueCapacity is the number of approved lists the queue buffers.
const DefaultQueueCapacity = 16

// CommandQueue hands approved command lists from manifest intake to batch
// execution. It is safe for concurrent use.
type CommandQueue struct {
	items chan []string
}

// NewCommandQueue creates a queue holding up to capacity lists. A capacity of
// zero or less selects DefaultQueueCapacity.
func NewCommandQueue(capacity int) *CommandQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &CommandQueue{items: make(chan []string, capacity)}
}

// Put enqueues a copy of approved. It returns ErrQueueFull rather than block
// when the queue is at capacity, since callers hold the execution lock.
func (q *CommandQueue) Put(ctx context.Context, approved []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	item := append([]string(nil), approved...)
	select {
	case q.items <- item:
		return nil
	default:
		return execution.ErrQueueFull
	}
}

// Get dequeues the oldest list without blocking. ok is false when the queue
// is empty.
func (q *CommandQueue) Get() (approved []string, ok bool) {
	select {
	case item := <-q.items:
		return item, true
	default:
		return nil, false
	}
}

// Len returns the number of lists waiting.
func (q *CommandQueue) Len() int { return len(q.items) }
