package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/cmdrunner/internal/domain/execution"
)

var _ execution.ResultRepository = (*ResultStore)(nil)

// ResultStore provides an in-memory implementation of execution.ResultRepository
// for tests and dry runs.
type ResultStore struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*execution.PersistedBatch
	inserts int
}

// NewResultStore creates a new in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{batches: make(map[uuid.UUID]*execution.PersistedBatch)}
}

// InsertBatch stores copies of results under batchID. A batch id can only be
// written once.
func (s *ResultStore) InsertBatch(ctx context.Context, batchID uuid.UUID, results []execution.CommandResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batchID]; exists {
		return fmt.Errorf("batch %s already persisted", batchID)
	}

	stored := make([]execution.CommandResult, len(results))
	for i, r := range results {
		stored[i] = copyResult(r)
	}
	s.batches[batchID] = &execution.PersistedBatch{
		ID:        batchID,
		CreatedAt: time.Now().UTC(),
		Results:   stored,
	}
	s.inserts++

	return nil
}

// GetBatch returns a copy of the stored batch.
func (s *ResultStore) GetBatch(ctx context.Context, batchID uuid.UUID) (*execution.PersistedBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return nil, execution.ErrBatchNotFound
	}

	out := &execution.PersistedBatch{ID: b.ID, CreatedAt: b.CreatedAt, Results: make([]execution.CommandResult, len(b.Results))}
	for i, r := range b.Results {
		out.Results[i] = copyResult(r)
	}
	return out, nil
}

// InsertCount returns how many batches have been written.
func (s *ResultStore) InsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}

func copyResult(r execution.CommandResult) execution.CommandResult {
	r.Output = append([]byte(nil), r.Output...)
	if r.ExitCode != nil {
		code := *r.ExitCode
		r.ExitCode = &code
	}
	return r
}
