package postgres

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/cmdrunner/internal/domain/execution"
	"github.com/ahrav/cmdrunner/internal/infra/storage"
)

// setupResultStoreTest prepares a store backed by a migrated test container.
func setupResultStoreTest(t *testing.T) (context.Context, *pgxpool.Pool, *resultStore, func()) {
	t.Helper()

	ctx := context.Background()
	pool, containerCleanup := storage.SetupTestContainer(t)
	store := NewResultStore(pool, storage.NoOpTracer())

	cleanup := func() {
		if _, err := pool.Exec(ctx, "DELETE FROM command_batches"); err != nil {
			t.Logf("Failed to clean up command_batches table: %v", err)
		}
		containerCleanup()
	}

	return ctx, pool, store, cleanup
}

func intPtr(v int) *int { return &v }

func TestResultStore_InsertBatch(t *testing.T) {
	ctx, pool, store, cleanup := setupResultStoreTest(t)
	defer cleanup()

	batchID := uuid.New()
	results := []execution.CommandResult{
		{
			Command:        "echo hi",
			CommandLength:  7,
			ElapsedSeconds: 1,
			Output:         []byte("hi\n"),
			Outcome:        execution.OutcomeCompleted,
			ExitCode:       intPtr(0),
		},
		{
			Command:       "sleep 65",
			CommandLength: 8,
			Output:        []byte{},
			Outcome:       execution.OutcomeTimedOut,
		},
	}

	require.NoError(t, store.InsertBatch(ctx, batchID, results))

	var count int
	err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM command_results WHERE batch_id = $1", batchID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := store.GetBatch(ctx, batchID)
	require.NoError(t, err)
	require.Len(t, got.Results, 2)
	assert.Equal(t, results[0].Command, got.Results[0].Command)
	assert.Equal(t, "hi\n", string(got.Results[0].Output))
	require.NotNil(t, got.Results[0].ExitCode)
	assert.Equal(t, 0, *got.Results[0].ExitCode)
	assert.Equal(t, execution.OutcomeTimedOut, got.Results[1].Outcome)
	assert.Nil(t, got.Results[1].ExitCode)
	assert.Zero(t, got.Results[1].ElapsedSeconds)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestResultStore_InsertBatchIsAtomic(t *testing.T) {
	ctx, pool, store, cleanup := setupResultStoreTest(t)
	defer cleanup()

	batchID := uuid.New()
	results := []execution.CommandResult{
		{Command: "ok", CommandLength: 2, Output: []byte("x"), Outcome: execution.OutcomeCompleted, ExitCode: intPtr(0)},
		// Violates the outcome check constraint and must abort the whole batch.
		{Command: "bad", CommandLength: 3, Output: []byte{}, Outcome: execution.Outcome("EXPLODED")},
	}

	err := store.InsertBatch(ctx, batchID, results)
	require.Error(t, err)

	var batches, rows int
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM command_batches WHERE id = $1", batchID).Scan(&batches))
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM command_results WHERE batch_id = $1", batchID).Scan(&rows))
	assert.Zero(t, batches)
	assert.Zero(t, rows)

	_, err = store.GetBatch(ctx, batchID)
	assert.ErrorIs(t, err, execution.ErrBatchNotFound)
}

func TestResultStore_DuplicateBatchRejected(t *testing.T) {
	ctx, _, store, cleanup := setupResultStoreTest(t)
	defer cleanup()

	batchID := uuid.New()
	require.NoError(t, store.InsertBatch(ctx, batchID, nil))

	err := store.InsertBatch(ctx, batchID, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to create command batch"))
}

func TestResultStore_GetBatchNotFound(t *testing.T) {
	ctx, _, store, cleanup := setupResultStoreTest(t)
	defer cleanup()

	_, err := store.GetBatch(ctx, uuid.New())
	assert.ErrorIs(t, err, execution.ErrBatchNotFound)
}
