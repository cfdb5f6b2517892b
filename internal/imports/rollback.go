package imports

import (
	"context"

	"github.com/google/uuid"
)

// RollbackResult summarizes a rollback.
type RollbackResult struct {
	BatchID         uuid.UUID   `json:"batch_id"`
	Status          BatchStatus `json:"status"`
	ProductsDeleted int64       `json:"products_deleted"`
	// ProductsReplaced counts deleted products that existed before the
	// import and were overwritten by it. They are not restored.
	ProductsReplaced int   `json:"products_replaced"`
	StagingReset     int64 `json:"staging_reset"`
	// Noop is set when the batch was never committed or is already rolled
	// back.
	Noop bool `json:"noop"`
}

// Rollback deletes every product attributed to a committed batch, resets
// staging linkage and marks the batch rolled_back in one transaction.
// Products replaced by overwrite rows are deleted, not restored.
func (e *CommitEngine) Rollback(ctx context.Context, batchID uuid.UUID) (RollbackResult, error) {
	batch, err := e.repo.GetBatch(ctx, batchID)
	if err != nil {
		return RollbackResult{}, err
	}
	if batch.Status != BatchCommitted {
		return RollbackResult{BatchID: batchID, Status: batch.Status, Noop: true}, nil
	}

	staged, err := e.repo.ListStagingRows(ctx, batchID)
	if err != nil {
		return RollbackResult{}, &RollbackError{Err: err}
	}
	result := RollbackResult{BatchID: batchID, Status: BatchRolledBack}
	for _, r := range staged {
		if r.IsCommitted && r.Resolution == ResolutionOverwrite {
			result.ProductsReplaced++
		}
	}
	err = e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		deleted, err := tx.DeleteProductsByImportBatch(ctx, batchID)
		if err != nil {
			return err
		}
		reset, err := tx.ResetStagingCommitted(ctx, batchID)
		if err != nil {
			return err
		}
		result.ProductsDeleted, result.StagingReset = deleted, reset
		return tx.UpdateBatchStatus(ctx, batchID, BatchRolledBack, nil, "")
	})
	if err != nil {
		return RollbackResult{}, &RollbackError{Err: err}
	}
	return result, nil
}
