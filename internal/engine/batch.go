package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// batchOutcome records which planned mutations reached the database.
type batchOutcome struct {
	conflicts map[int]error
	committed []int
}

// commitInBatches applies n planned mutations, BatchSize per database
// transaction. A mutation whose record moved on or disappeared is recorded as
// a conflict and the batch carries on; any other failure rolls the batch back
// and stops. Cancellation is checked between batches, so batches already
// committed stay committed and a partly applied batch is never committed.
// afterCommit receives the indexes committed by each batch.
func (e *Engine) commitInBatches(
	ctx context.Context,
	n int,
	apply func(w service.Writer, i int) error,
	afterCommit func(committed []int) error,
	progress ProgressFunc,
) (*batchOutcome, error) {
	out := &batchOutcome{conflicts: make(map[int]error)}

	for start := 0; start < n; start += e.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			slog.Info("Bulk run interrupted", "committed", len(out.committed), "remaining", n-start)
			return out, err
		}
		end := min(start+e.cfg.BatchSize, n)

		committed, conflicts, err := e.commitBatch(ctx, start, end, apply)
		if err != nil {
			return out, err
		}
		out.committed = append(out.committed, committed...)
		for i, conflictErr := range conflicts {
			out.conflicts[i] = conflictErr
		}

		slog.Debug("Committed batch", "from", start, "to", end, "applied", len(committed))
		if progress != nil {
			progress(end, n)
		}
		if afterCommit != nil && len(committed) > 0 {
			if err := afterCommit(committed); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

// commitBatch applies one batch. Conflicts are only reported for a batch that
// committed.
func (e *Engine) commitBatch(
	ctx context.Context,
	start, end int,
	apply func(w service.Writer, i int) error,
) ([]int, map[int]error, error) {
	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin batch: %w", err)
	}

	var applied []int
	conflicts := make(map[int]error)
	for i := start; i < end; i++ {
		err := apply(tx, i)
		switch {
		case err == nil:
			applied = append(applied, i)
		case errors.Is(err, common.ErrStaleState), errors.Is(err, common.ErrNotFound):
			conflicts[i] = err
		default:
			_ = tx.Rollback()
			return nil, nil, fmt.Errorf("batch %d-%d rolled back: %w", start, end, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit batch %d-%d: %w", start, end, err)
	}
	return applied, conflicts, nil
}
