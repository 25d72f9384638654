package execution

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/cmdrunner/internal/domain/execution"
	"github.com/ahrav/cmdrunner/pkg/common/logger"
)

const (
	// DefaultDeadline is the wall-clock limit applied to each command.
	DefaultDeadline = 60 * time.Second

	// DefaultKillGrace is how long a terminated process group gets to exit
	// before it is sent SIGKILL.
	DefaultKillGrace = 5 * time.Second
)

// SupervisorConfig tunes how overrunning commands are handled.
type SupervisorConfig struct {
	// KillGrace is the time between SIGTERM and SIGKILL. Zero selects DefaultKillGrace.
	KillGrace time.Duration

	// PreservePartialOutput keeps the stdout a timed out command produced
	// before it was terminated. When false timed out records carry no output.
	PreservePartialOutput bool
}

// DeadlineSupervisor runs one command at a time under a hard deadline. The
// command runs as its own OS process group so that a hung command can be
// killed without affecting the orchestrator.
type DeadlineSupervisor struct {
	runner          execution.ProcessRunner
	killGrace       time.Duration
	preservePartial bool

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics ExecutionMetrics
}

// NewDeadlineSupervisor creates a new DeadlineSupervisor.
func NewDeadlineSupervisor(
	runner execution.ProcessRunner,
	cfg SupervisorConfig,
	logger *logger.Logger,
	tracer trace.Tracer,
	metrics ExecutionMetrics,
) *DeadlineSupervisor {
	killGrace := cfg.KillGrace
	if killGrace <= 0 {
		killGrace = DefaultKillGrace
	}
	return &DeadlineSupervisor{
		runner:          runner,
		killGrace:       killGrace,
		preservePartial: cfg.PreservePartialOutput,
		logger:          logger.With("component", "deadline_supervisor"),
		tracer:          tracer,
		metrics:         metrics,
	}
}

// waitResult carries the outcome of Process.Wait back to the supervisor.
type waitResult struct {
	res execution.RunResult
	err error
}

// Supervise runs command and waits up to deadline for it to finish. It always
// returns exactly one record. When the deadline fires, or ctx is cancelled,
// the process group is terminated and Supervise does not return until the
// process has been reaped.
func (s *DeadlineSupervisor) Supervise(ctx context.Context, command string, deadline time.Duration) execution.ExecutionRecord {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}

	ctx, span := s.tracer.Start(ctx, "deadline_supervisor.supervise",
		trace.WithAttributes(
			attribute.String("command", command),
			attribute.String("deadline", deadline.String()),
		))
	defer span.End()

	s.metrics.IncCommandsDispatched(ctx)

	start := time.Now()
	proc, err := s.runner.Start(command)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "spawn failed")
		s.metrics.IncSpawnFailures(ctx)
		s.logger.Warn(ctx, "failed to spawn command", "command", command, "error", err)
		return execution.NewSpawnFailedRecord(command, err)
	}
	pid := proc.PID()
	span.SetAttributes(attribute.Int("pid", pid))

	done := make(chan waitResult, 1)
	go func() {
		res, err := proc.Wait()
		done <- waitResult{res: res, err: err}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	var reason string
	select {
	case r := <-done:
		elapsed := time.Since(start)
		if r.err != nil {
			// Output is complete up to the point the pipes were closed.
			s.logger.Warn(ctx, "command exited with wait error", "command", command, "pid", pid, "error", r.err)
		}
		if r.res.ExitCode != 0 {
			s.logger.Debug(ctx, "command exited non-zero",
				"command", command,
				"pid", pid,
				"exit_code", r.res.ExitCode,
				"stderr", string(r.res.Stderr),
			)
		}
		s.metrics.ObserveCommandDuration(ctx, elapsed)
		span.AddEvent("command_completed", trace.WithAttributes(
			attribute.Int("exit_code", r.res.ExitCode),
			attribute.Int("stdout_bytes", len(r.res.Stdout)),
		))
		return execution.NewCompletedRecord(pid, command, r.res.Stdout, r.res.ExitCode, elapsed)

	case <-timer.C:
		reason = "deadline_exceeded"
	case <-ctx.Done():
		reason = "context_cancelled"
	}

	span.AddEvent("terminating_process_group", trace.WithAttributes(attribute.String("reason", reason)))
	r := s.terminate(ctx, proc, done)
	s.metrics.IncCommandsTimedOut(ctx)
	s.logger.Warn(ctx, "command terminated",
		"command", command,
		"pid", pid,
		"reason", reason,
		"deadline", deadline.String(),
	)

	var partial []byte
	if s.preservePartial {
		partial = r.res.Stdout
	}
	return execution.NewTimedOutRecord(command, partial)
}

// groupPollInterval is how often a terminated group is probed for survivors.
const groupPollInterval = 20 * time.Millisecond

// terminate sends SIGTERM to the process group and blocks until Wait returns
// and no member of the group is left. Members still alive when the kill grace
// period ends are sent SIGKILL.
func (s *DeadlineSupervisor) terminate(ctx context.Context, proc execution.Process, done <-chan waitResult) waitResult {
	if err := proc.Terminate(); err != nil {
		s.logger.Debug(ctx, "failed to send SIGTERM to process group", "pid", proc.PID(), "error", err)
	}

	grace := time.NewTimer(s.killGrace)
	defer grace.Stop()

	// collect bounds how long survivors of SIGKILL are waited for. It stays
	// nil, and never fires, until SIGKILL has been sent.
	var (
		r       waitResult
		collect <-chan time.Time
	)
	select {
	case r = <-done:
	case <-grace.C:
		s.kill(ctx, proc, "process group ignored SIGTERM, sending SIGKILL")
		collect = time.After(s.killGrace)
		r = <-done
	}

	// The shell can exit while descendants that ignore SIGTERM keep running.
	ticker := time.NewTicker(groupPollInterval)
	defer ticker.Stop()
	for proc.GroupAlive() {
		select {
		case <-ticker.C:
		case <-grace.C:
			s.kill(ctx, proc, "process group members ignored SIGTERM, sending SIGKILL")
			collect = time.After(s.killGrace)
		case <-collect:
			s.logger.Warn(ctx, "process group still present after SIGKILL", "pid", proc.PID())
			return r
		}
	}
	return r
}

func (s *DeadlineSupervisor) kill(ctx context.Context, proc execution.Process, msg string) {
	s.logger.Warn(ctx, msg, "pid", proc.PID())
	if err := proc.Kill(); err != nil {
		s.logger.Debug(ctx, "failed to send SIGKILL to process group", "pid", proc.PID(), "error", err)
	}
}
