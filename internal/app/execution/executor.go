package execution

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ahrav/cmdrunner/internal/domain/execution"
	"github.com/ahrav/cmdrunner/pkg/common/logger"
)

// CommandSupervisor runs a single command under a deadline.
type CommandSupervisor interface {
	Supervise(ctx context.Context, command string, deadline time.Duration) execution.ExecutionRecord
}

// BatchExecutor drives the supervisor over an approved command list, one
// command at a time. It does not serialize batches itself; the Orchestrator
// holds the execution lock around every call.
type BatchExecutor struct {
	supervisor CommandSupervisor
	limiter    *rate.Limiter

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics ExecutionMetrics
}

// NewBatchExecutor creates a new BatchExecutor. spawnRate limits how many
// commands may be started per second; zero or less disables the limit.
func NewBatchExecutor(
	supervisor CommandSupervisor,
	spawnRate float64,
	logger *logger.Logger,
	tracer trace.Tracer,
	metrics ExecutionMetrics,
) *BatchExecutor {
	e := &BatchExecutor{
		supervisor: supervisor,
		logger:     logger.With("component", "batch_executor"),
		tracer:     tracer,
		metrics:    metrics,
	}
	if spawnRate > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(spawnRate), 1)
	}
	return e
}

// ExecuteBatch runs every approved command sequentially with the given
// per-command deadline and returns one record per dispatched command. An empty
// list returns an empty batch without starting anything.
//
// If ctx is cancelled the command in flight is terminated, no further
// commands are dispatched, and the partial batch is returned with ctx.Err().
func (e *BatchExecutor) ExecuteBatch(ctx context.Context, approved []string, deadline time.Duration) (*execution.ResultBatch, error) {
	batch := execution.NewResultBatch()
	if len(approved) == 0 {
		return batch, nil
	}

	ctx, span := e.tracer.Start(ctx, "batch_executor.execute_batch",
		trace.WithAttributes(
			attribute.String("batch_id", batch.ID().String()),
			attribute.Int("command_count", len(approved)),
		))
	defer span.End()

	e.metrics.ObserveBatchSize(ctx, len(approved))
	e.logger.Info(ctx, "executing batch", "batch_id", batch.ID(), "commands", len(approved))

	for i, command := range approved {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return batch, fmt.Errorf("batch interrupted after %d of %d commands: %w", i, len(approved), err)
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				span.RecordError(err)
				return batch, fmt.Errorf("batch interrupted after %d of %d commands: %w", i, len(approved), err)
			}
		}

		rec := e.supervisor.Supervise(ctx, command, deadline)
		batch.Add(rec)

		e.logger.Debug(ctx, "command finished",
			"batch_id", batch.ID(),
			"command", command,
			"outcome", rec.Outcome(),
			"elapsed_seconds", rec.ElapsedSeconds(),
		)
	}

	counts := batch.CountByOutcome()
	span.SetAttributes(
		attribute.Int("completed", counts[execution.OutcomeCompleted]),
		attribute.Int("timed_out", counts[execution.OutcomeTimedOut]),
		attribute.Int("spawn_failed", counts[execution.OutcomeSpawnFailed]),
	)
	e.logger.Info(ctx, "batch executed",
		"batch_id", batch.ID(),
		"completed", counts[execution.OutcomeCompleted],
		"timed_out", counts[execution.OutcomeTimedOut],
		"spawn_failed", counts[execution.OutcomeSpawnFailed],
	)

	return batch, nil
}
