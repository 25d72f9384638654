package execution

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/cmdrunner/internal/domain/execution"
	"github.com/ahrav/cmdrunner/pkg/common/logger"
)

// Reaper sweeps the process groups of a finished batch and signals any that
// are still alive. It is best effort: every failure is logged and dropped.
type Reaper struct {
	signaler execution.GroupSignaler

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics ExecutionMetrics
}

// NewReaper creates a new Reaper.
func NewReaper(signaler execution.GroupSignaler, logger *logger.Logger, tracer trace.Tracer, metrics ExecutionMetrics) *Reaper {
	return &Reaper{
		signaler: signaler,
		logger:   logger.With("component", "reaper"),
		tracer:   tracer,
		metrics:  metrics,
	}
}

// Reap signals the group of every record that carries a pid and returns the
// classified attempts. It never fails.
func (r *Reaper) Reap(ctx context.Context, batch *execution.ResultBatch) []execution.ReapAttempt {
	pids := batch.ProcessIDs()
	if len(pids) == 0 {
		return nil
	}

	ctx, span := r.tracer.Start(ctx, "reaper.reap",
		trace.WithAttributes(
			attribute.String("batch_id", batch.ID().String()),
			attribute.Int("pid_count", len(pids)),
		))
	defer span.End()

	attempts := make([]execution.ReapAttempt, 0, len(pids))
	for _, pid := range pids {
		attempt := r.signaler.TerminateGroup(pid)
		attempts = append(attempts, attempt)
		r.metrics.IncReapAttempts(ctx, attempt.Result)

		if attempt.Result == execution.ReapSignaled {
			r.logger.Info(ctx, "signaled leftover process group", "pid", attempt.PID, "pgid", attempt.PGID)
			continue
		}
		r.logger.Debug(ctx, "reap attempt did not signal",
			"pid", attempt.PID,
			"pgid", attempt.PGID,
			"result", attempt.Result,
			"error", attempt.Err,
		)
	}

	return attempts
}
