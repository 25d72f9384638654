package execution

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/cmdrunner/internal/domain/execution"
)

// ExecutionMetrics defines the metrics recorded while running batches.
type ExecutionMetrics interface {
	// Command metrics
	IncCommandsDispatched(ctx context.Context)
	IncCommandsTimedOut(ctx context.Context)
	IncSpawnFailures(ctx context.Context)
	ObserveCommandDuration(ctx context.Context, duration time.Duration)

	// Batch metrics
	ObserveBatchSize(ctx context.Context, size int)
	IncBatchesPersisted(ctx context.Context)
	IncPersistErrors(ctx context.Context)

	// Reaper metrics
	IncReapAttempts(ctx context.Context, result execution.ReapResult)
}

// executionMetrics implements ExecutionMetrics.
type executionMetrics struct {
	commandsDispatched metric.Int64Counter
	commandsTimedOut   metric.Int64Counter
	spawnFailures      metric.Int64Counter
	commandDuration    metric.Float64Histogram

	batchSize        metric.Int64Histogram
	batchesPersisted metric.Int64Counter
	persistErrors    metric.Int64Counter

	reapAttempts metric.Int64Counter
}

const namespace = "cmdrunner"

// NewExecutionMetrics creates a new ExecutionMetrics instance.
func NewExecutionMetrics(mp metric.MeterProvider) (*executionMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(executionMetrics)
	var err error

	if m.commandsDispatched, err = meter.Int64Counter(
		"commands_dispatched_total",
		metric.WithDescription("Total number of commands dispatched"),
	); err != nil {
		return nil, err
	}

	if m.commandsTimedOut, err = meter.Int64Counter(
		"commands_timed_out_total",
		metric.WithDescription("Total number of commands terminated at their deadline"),
	); err != nil {
		return nil, err
	}

	if m.spawnFailures, err = meter.Int64Counter(
		"command_spawn_failures_total",
		metric.WithDescription("Total number of commands that could not be started"),
	); err != nil {
		return nil, err
	}

	if m.commandDuration, err = meter.Float64Histogram(
		"command_duration_seconds",
		metric.WithDescription("Wall-clock duration of completed commands"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.batchSize, err = meter.Int64Histogram(
		"batch_size",
		metric.WithDescription("Number of approved commands per batch"),
	); err != nil {
		return nil, err
	}

	if m.batchesPersisted, err = meter.Int64Counter(
		"batches_persisted_total",
		metric.WithDescription("Total number of batches written to storage"),
	); err != nil {
		return nil, err
	}

	if m.persistErrors, err = meter.Int64Counter(
		"batch_persist_errors_total",
		metric.WithDescription("Total number of failed batch writes"),
	); err != nil {
		return nil, err
	}

	if m.reapAttempts, err = meter.Int64Counter(
		"reap_attempts_total",
		metric.WithDescription("Total number of leftover process groups swept, by result"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *executionMetrics) IncCommandsDispatched(ctx context.Context) {
	m.commandsDispatched.Add(ctx, 1)
}

func (m *executionMetrics) IncCommandsTimedOut(ctx context.Context) {
	m.commandsTimedOut.Add(ctx, 1)
}

func (m *executionMetrics) IncSpawnFailures(ctx context.Context) {
	m.spawnFailures.Add(ctx, 1)
}

func (m *executionMetrics) ObserveCommandDuration(ctx context.Context, duration time.Duration) {
	m.commandDuration.Record(ctx, duration.Seconds())
}

func (m *executionMetrics) ObserveBatchSize(ctx context.Context, size int) {
	m.batchSize.Record(ctx, int64(size))
}

func (m *executionMetrics) IncBatchesPersisted(ctx context.Context) {
	m.batchesPersisted.Add(ctx, 1)
}

func (m *executionMetrics) IncPersistErrors(ctx context.Context) {
	m.persistErrors.Add(ctx, 1)
}

func (m *executionMetrics) IncReapAttempts(ctx context.Context, result execution.ReapResult) {
	m.reapAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result.String())))
}
