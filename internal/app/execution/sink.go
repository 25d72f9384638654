package execution

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/cmdrunner/internal/domain/execution"
	"github.com/ahrav/cmdrunner/pkg/common/logger"
)

// ResultSink maps batch records to persisted results and writes them through
// the repository in a single transaction.
type ResultSink struct {
	repo execution.ResultRepository

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics ExecutionMetrics
}

// NewResultSink creates a new ResultSink.
func NewResultSink(repo execution.ResultRepository, logger *logger.Logger, tracer trace.Tracer, metrics ExecutionMetrics) *ResultSink {
	return &ResultSink{
		repo:    repo,
		logger:  logger.With("component", "result_sink"),
		tracer:  tracer,
		metrics: metrics,
	}
}

// Persist writes every record of batch atomically. Empty batches are not
// written. Failures are returned to the caller and not retried.
func (s *ResultSink) Persist(ctx context.Context, batch *execution.ResultBatch) error {
	if batch.IsEmpty() {
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "result_sink.persist",
		trace.WithAttributes(
			attribute.String("batch_id", batch.ID().String()),
			attribute.Int("record_count", batch.Len()),
		))
	defer span.End()

	recs := batch.Records()
	results := make([]execution.CommandResult, 0, len(recs))
	for _, rec := range recs {
		results = append(results, execution.NewCommandResult(rec))
	}

	if err := s.repo.InsertBatch(ctx, batch.ID(), results); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		s.metrics.IncPersistErrors(ctx)
		return fmt.Errorf("failed to persist batch %s: %w", batch.ID(), err)
	}

	s.metrics.IncBatchesPersisted(ctx)
	s.logger.Info(ctx, "batch persisted", "batch_id", batch.ID(), "records", len(results))
	return nil
}
