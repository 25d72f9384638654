package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/cmdrunner/internal/domain/execution"
	"github.com/ahrav/cmdrunner/internal/manifest"
	"github.com/ahrav/cmdrunner/pkg/common/logger"
)

// Orchestrator ties manifest intake to batch execution. A single lock, shared
// with any other orchestrator built on the same queue, serializes both phases
// so only one batch is ever running.
type Orchestrator struct {
	lock     sync.Locker
	queue    *CommandQueue
	loader   manifest.Loader
	deadline time.Duration

	executor *BatchExecutor
	reaper   *Reaper
	sink     *ResultSink

	logger *logger.Logger
	tracer trace.Tracer
}

// NewOrchestrator creates a new Orchestrator. lock and queue are supplied by
// the host so that several orchestrators can share them.
func NewOrchestrator(
	lock sync.Locker,
	queue *CommandQueue,
	loader manifest.Loader,
	deadline time.Duration,
	executor *BatchExecutor,
	reaper *Reaper,
	sink *ResultSink,
	logger *logger.Logger,
	tracer trace.Tracer,
) *Orchestrator {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Orchestrator{
		lock:     lock,
		queue:    queue,
		loader:   loader,
		deadline: deadline,
		executor: executor,
		reaper:   reaper,
		sink:     sink,
		logger:   logger.With("component", "orchestrator"),
		tracer:   tracer,
	}
}

// Submit loads the manifest at ref, validates its commands against its
// whitelist and enqueues the approved list. It returns the number of approved
// commands. A malformed manifest is returned as *manifest.FormatError and
// nothing is enqueued.
func (o *Orchestrator) Submit(ctx context.Context, ref string) (int, error) {
	o.lock.Lock()
	defer o.lock.Unlock()

	ctx, span := o.tracer.Start(ctx, "orchestrator.submit",
		trace.WithAttributes(attribute.String("manifest", ref)))
	defer span.End()

	m, err := o.loader.Load(ctx, ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "manifest load failed")
		return 0, fmt.Errorf("failed to load manifest: %w", err)
	}

	approved := m.Approved()
	if err := o.queue.Put(ctx, approved); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to enqueue approved commands: %w", err)
	}

	span.SetAttributes(
		attribute.Int("requested", len(m.Requested)),
		attribute.Int("approved", len(approved)),
	)
	o.logger.Info(ctx, "manifest accepted",
		"manifest", ref,
		"requested", len(m.Requested),
		"approved", len(approved),
	)
	return len(approved), nil
}

// ProcessNext dequeues one approved list and runs it: execute, reap, persist.
// With nothing queued, or an empty list, it returns an empty batch without
// spawning or writing anything.
//
// If ctx is cancelled mid-batch the records gathered so far are still reaped
// and persisted, and the cancellation is returned.
func (o *Orchestrator) ProcessNext(ctx context.Context) (*execution.ResultBatch, error) {
	o.lock.Lock()
	defer o.lock.Unlock()

	approved, ok := o.queue.Get()
	if !ok || len(approved) == 0 {
		return execution.NewResultBatch(), nil
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.process_next",
		trace.WithAttributes(attribute.Int("command_count", len(approved))))
	defer span.End()

	batch, execErr := o.executor.ExecuteBatch(ctx, approved, o.deadline)
	if execErr != nil {
		span.RecordError(execErr)
		o.logger.Warn(ctx, "batch interrupted", "batch_id", batch.ID(), "error", execErr)
	}

	// Cleanup and persistence still run for the commands that were dispatched.
	cleanupCtx := context.WithoutCancel(ctx)
	o.reaper.Reap(cleanupCtx, batch)

	if err := o.sink.Persist(cleanupCtx, batch); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		o.logger.Error(ctx, "failed to persist batch", "batch_id", batch.ID(), "error", err)
		return batch, err
	}

	return batch, execErr
}

// RunManifest submits the manifest at ref and processes the resulting batch.
func (o *Orchestrator) RunManifest(ctx context.Context, ref string) (*execution.ResultBatch, error) {
	if _, err := o.Submit(ctx, ref); err != nil {
		return nil, err
	}
	return o.ProcessNext(ctx)
}
