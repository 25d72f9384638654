package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/cmdrunner/internal/domain/execution"
	"github.com/ahrav/cmdrunner/pkg/common/logger"
)

func noopTracer() trace.Tracer { return tracenoop.NewTracerProvider().Tracer("test") }

func newTestMetrics(t *testing.T) ExecutionMetrics {
	t.Helper()
	m, err := NewExecutionMetrics(metricnoop.NewMeterProvider())
	require.NoError(t, err)
	return m
}

// fakeBehavior scripts how a fake process behaves.
type fakeBehavior struct {
	stdout     string
	partial    string
	exitCode   int
	runFor     time.Duration
	ignoreTerm bool
	spawnErr   error

	// orphanIgnoresTerm models a descendant that ignores SIGTERM and keeps
	// the group alive after the shell has exited, until SIGKILL.
	orphanIgnoresTerm bool
}

// fakeRunner implements execution.ProcessRunner without touching the OS.
type fakeRunner struct {
	mu        sync.Mutex
	behaviors map[string]fakeBehavior
	started   []string
	procs     []*fakeProcess
	nextPID   int

	running    atomic.Int32
	maxRunning atomic.Int32
}

func newFakeRunner(behaviors map[string]fakeBehavior) *fakeRunner {
	return &fakeRunner{behaviors: behaviors, nextPID: 1000}
}

func (r *fakeRunner) Start(command string) (execution.Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.started = append(r.started, command)
	b := r.behaviors[command]
	if b.spawnErr != nil {
		return nil, fmt.Errorf("%w: %w", execution.ErrSpawn, b.spawnErr)
	}

	r.nextPID++
	p := &fakeProcess{pid: r.nextPID, b: b, stop: make(chan struct{}), runner: r}
	r.procs = append(r.procs, p)

	if n := r.running.Add(1); n > r.maxRunning.Load() {
		r.maxRunning.Store(n)
	}
	return p, nil
}

func (r *fakeRunner) Started() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.started...)
}

func (r *fakeRunner) Procs() []*fakeProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*fakeProcess(nil), r.procs...)
}

type fakeProcess struct {
	pid    int
	b      fakeBehavior
	runner *fakeRunner

	stopOnce sync.Once
	stop     chan struct{}

	terms atomic.Int32
	kills atomic.Int32
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Wait() (execution.RunResult, error) {
	defer p.runner.running.Add(-1)

	timer := time.NewTimer(p.b.runFor)
	defer timer.Stop()

	select {
	case <-timer.C:
		return execution.RunResult{PID: p.pid, Stdout: []byte(p.b.stdout), ExitCode: p.b.exitCode, Elapsed: p.b.runFor}, nil
	case <-p.stop:
		return execution.RunResult{PID: p.pid, Stdout: []byte(p.b.partial), ExitCode: -1}, nil
	}
}

func (p *fakeProcess) Terminate() error {
	p.terms.Add(1)
	if !p.b.ignoreTerm {
		p.halt()
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.kills.Add(1)
	p.halt()
	return nil
}

func (p *fakeProcess) GroupAlive() bool {
	if p.b.orphanIgnoresTerm {
		return p.kills.Load() == 0
	}
	return false
}

func (p *fakeProcess) halt() { p.stopOnce.Do(func() { close(p.stop) }) }

// mockSignaler implements execution.GroupSignaler for testing.
type mockSignaler struct{ mock.Mock }

func (m *mockSignaler) TerminateGroup(pid int) execution.ReapAttempt {
	return m.Called(pid).Get(0).(execution.ReapAttempt)
}

// mockResultRepository implements execution.ResultRepository for testing.
type mockResultRepository struct{ mock.Mock }

func (m *mockResultRepository) InsertBatch(ctx context.Context, batchID uuid.UUID, results []execution.CommandResult) error {
	return m.Called(ctx, batchID, results).Error(0)
}

func (m *mockResultRepository) GetBatch(ctx context.Context, batchID uuid.UUID) (*execution.PersistedBatch, error) {
	args := m.Called(ctx, batchID)
	if b := args.Get(0); b != nil {
		return b.(*execution.PersistedBatch), args.Error(1)
	}
	return nil, args.Error(1)
}

var errBoom = errors.New("boom")

func testLogger() *logger.Logger { return logger.Noop() }

func newTestSupervisor(t *testing.T, runner execution.ProcessRunner, cfg SupervisorConfig) *DeadlineSupervisor {
	t.Helper()
	return NewDeadlineSupervisor(runner, cfg, testLogger(), noopTracer(), newTestMetrics(t))
}
