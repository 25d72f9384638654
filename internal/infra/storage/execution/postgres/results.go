package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/cmdrunner/internal/db"
	"github.com/ahrav/cmdrunner/internal/domain/execution"
	"github.com/ahrav/cmdrunner/internal/infra/storage"
)

var _ execution.ResultRepository = (*resultStore)(nil)

// resultStore implements execution.ResultRepository using PostgreSQL.
type resultStore struct {
	q      *db.Queries
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewResultStore creates a new PostgreSQL-backed result repository with tracing.
func NewResultStore(pool *pgxpool.Pool, tracer trace.Tracer) *resultStore {
	return &resultStore{q: db.New(pool), db: pool, tracer: tracer}
}

// InsertBatch writes the batch row and every result row in one transaction.
// Rows are bulk loaded with COPY; a failure anywhere rolls back the whole batch.
func (r *resultStore) InsertBatch(ctx context.Context, batchID uuid.UUID, results []execution.CommandResult) error {
	dbAttrs := append(
		storage.DefaultDBAttributes,
		attribute.String("batch_id", batchID.String()),
		attribute.Int("result_count", len(results)),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.insert_command_batch", dbAttrs, func(ctx context.Context) error {
		const txTimeout = 10 * time.Second
		ctx, cancel := context.WithTimeout(ctx, txTimeout)
		defer cancel()

		return pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
			qtx := r.q.WithTx(tx)

			id := pgtype.UUID{Bytes: batchID, Valid: true}
			if err := qtx.CreateCommandBatch(ctx, id); err != nil {
				return fmt.Errorf("failed to create command batch: %w", err)
			}

			if len(results) == 0 {
				return nil
			}

			params := make([]db.InsertCommandResultsParams, 0, len(results))
			for i, res := range results {
				params = append(params, db.InsertCommandResultsParams{
					BatchID:        id,
					Position:       int32(i),
					Command:        res.Command,
					CommandLength:  int32(res.CommandLength),
					ElapsedSeconds: int32(res.ElapsedSeconds),
					Output:         nonNilBytes(res.Output),
					Outcome:        res.Outcome.String(),
					ExitCode:       toInt4(res.ExitCode),
				})
			}

			copied, err := qtx.InsertCommandResults(ctx, params)
			if err != nil {
				return fmt.Errorf("failed to insert command results: %w", err)
			}
			if copied != int64(len(params)) {
				return fmt.Errorf("inserted %d of %d command results", copied, len(params))
			}

			return nil
		})
	})
}

// GetBatch loads a persisted batch and its results in dispatch order.
func (r *resultStore) GetBatch(ctx context.Context, batchID uuid.UUID) (*execution.PersistedBatch, error) {
	dbAttrs := append(
		storage.DefaultDBAttributes,
		attribute.String("batch_id", batchID.String()),
	)

	var batch *execution.PersistedBatch
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.get_command_batch", dbAttrs, func(ctx context.Context) error {
		id := pgtype.UUID{Bytes: batchID, Valid: true}

		row, err := r.q.GetCommandBatch(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return execution.ErrBatchNotFound
			}
			return fmt.Errorf("failed to get command batch: %w", err)
		}

		rows, err := r.q.ListCommandResultsByBatch(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list command results: %w", err)
		}

		batch = &execution.PersistedBatch{
			ID:        batchID,
			CreatedAt: row.CreatedAt.Time,
			Results:   make([]execution.CommandResult, 0, len(rows)),
		}
		for _, rr := range rows {
			res := execution.CommandResult{
				Command:        rr.Command,
				CommandLength:  int(rr.CommandLength),
				ElapsedSeconds: int(rr.ElapsedSeconds),
				Output:         nonNilBytes(rr.Output),
				Outcome:        execution.Outcome(rr.Outcome),
			}
			if rr.ExitCode.Valid {
				code := int(rr.ExitCode.Int32)
				res.ExitCode = &code
			}
			batch.Results = append(batch.Results, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return batch, nil
}

func toInt4(v *int) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
