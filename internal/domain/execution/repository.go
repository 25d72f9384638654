package execution

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CommandResult is the persisted form of an ExecutionRecord.
type CommandResult struct {
	Command        string
	CommandLength  int
	ElapsedSeconds int
	Output         []byte
	Outcome        Outcome
	ExitCode       *int
}

// NewCommandResult maps a record to its persisted form.
func NewCommandResult(rec ExecutionRecord) CommandResult {
	res := CommandResult{
		Command:        rec.Command(),
		CommandLength:  rec.CommandLength(),
		ElapsedSeconds: rec.ElapsedSeconds(),
		Output:         rec.Output(),
		Outcome:        rec.Outcome(),
	}
	if code, ok := rec.ExitCode(); ok {
		res.ExitCode = &code
	}
	return res
}

// PersistedBatch is a batch as read back from storage.
type PersistedBatch struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Results   []CommandResult
}

// ResultRepository stores the results of batch runs.
type ResultRepository interface {
	// InsertBatch writes every result of a batch in a single transaction.
	// Either all results become visible or none do.
	InsertBatch(ctx context.Context, batchID uuid.UUID, results []CommandResult) error

	// GetBatch returns a previously persisted batch, or ErrBatchNotFound.
	GetBatch(ctx context.Context, batchID uuid.UUID) (*PersistedBatch, error)
}
