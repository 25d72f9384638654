package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/cmdrunner/internal/domain/execution"
)

func newTestExecutor(t *testing.T, runner *fakeRunner, spawnRate float64) *BatchExecutor {
	t.Helper()
	sup := newTestSupervisor(t, runner, SupervisorConfig{KillGrace: 20 * time.Millisecond})
	return NewBatchExecutor(sup, spawnRate, testLogger(), noopTracer(), newTestMetrics(t))
}

func TestBatchExecutor_ExecuteBatch(t *testing.T) {
	runner := newFakeRunner(map[string]fakeBehavior{
		"echo a":  {stdout: "a\n"},
		"sleep 9": {runFor: time.Hour},
		"nope":    {spawnErr: errors.New("exec format error")},
		"echo b":  {stdout: "b\n"},
	})
	exec := newTestExecutor(t, runner, 0)

	approved := []string{"echo a", "sleep 9", "nope", "echo b"}
	batch, err := exec.ExecuteBatch(context.Background(), approved, 30*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, approved, runner.Started(), "commands dispatched in order")
	require.Equal(t, 4, batch.Len())

	recs := batch.Records()
	assert.Equal(t, execution.OutcomeCompleted, recs[0].Outcome())
	assert.Equal(t, "a\n", string(recs[0].Output()))
	assert.Equal(t, execution.OutcomeTimedOut, recs[1].Outcome())
	assert.Equal(t, execution.OutcomeSpawnFailed, recs[2].Outcome())
	assert.Equal(t, execution.OutcomeCompleted, recs[3].Outcome())

	assert.Equal(t, int32(1), runner.maxRunning.Load(), "at most one process alive at a time")
}

func TestBatchExecutor_EmptyListSpawnsNothing(t *testing.T) {
	runner := newFakeRunner(nil)
	exec := newTestExecutor(t, runner, 0)

	batch, err := exec.ExecuteBatch(context.Background(), nil, time.Second)
	require.NoError(t, err)

	assert.True(t, batch.IsEmpty())
	assert.Empty(t, runner.Started())
}

func TestBatchExecutor_DuplicateCommandKeepsLastRecord(t *testing.T) {
	runner := newFakeRunner(map[string]fakeBehavior{"date": {stdout: "now"}})
	exec := newTestExecutor(t, runner, 0)

	batch, err := exec.ExecuteBatch(context.Background(), []string{"date", "date"}, time.Second)
	require.NoError(t, err)

	assert.Len(t, runner.Started(), 2)
	assert.Equal(t, 1, batch.Len())

	rec, ok := batch.Get("date")
	require.True(t, ok)
	pid, _ := rec.ProcessID()
	assert.Equal(t, runner.Procs()[1].PID(), pid)
}

func TestBatchExecutor_CancelReturnsPartialBatch(t *testing.T) {
	runner := newFakeRunner(map[string]fakeBehavior{
		"first":  {stdout: "1"},
		"second": {runFor: time.Hour},
		"third":  {stdout: "3"},
	})
	exec := newTestExecutor(t, runner, 0)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	batch, err := exec.ExecuteBatch(ctx, []string{"first", "second", "third"}, time.Hour)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []string{"first", "second"}, runner.Started())
	assert.Equal(t, 2, batch.Len())
	rec, ok := batch.Get("second")
	require.True(t, ok)
	assert.Equal(t, execution.OutcomeTimedOut, rec.Outcome())
}

func TestBatchExecutor_SpawnRateLimit(t *testing.T) {
	runner := newFakeRunner(map[string]fakeBehavior{"a": {}, "b": {}, "c": {}})
	exec := newTestExecutor(t, runner, 20)

	start := time.Now()
	batch, err := exec.ExecuteBatch(context.Background(), []string{"a", "b", "c"}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, 3, batch.Len())
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
