package imports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/equinox-erp/equinox/internal/masterdata/categories"
	"github.com/equinox-erp/equinox/internal/masterdata/products"
)

// DefaultChunkSize is the number of products written per round trip.
const DefaultChunkSize = 50

// StepCheckSKUs is reported when the catalog SKUs cannot be re-read.
const StepCheckSKUs = "check_skus"

// CommitEngine writes a reviewed batch into the catalog and reverts it.
type CommitEngine struct {
	catalog   Catalog
	repo      RepositoryPort
	chunkSize int
	now       func() time.Time
}

// NewCommitEngine constructs an engine. chunkSize <= 0 selects
// DefaultChunkSize.
func NewCommitEngine(catalog Catalog, repo RepositoryPort, chunkSize int) *CommitEngine {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &CommitEngine{catalog: catalog, repo: repo, chunkSize: chunkSize, now: time.Now}
}

// CommitResult summarizes a successful commit.
type CommitResult struct {
	BatchID           uuid.UUID `json:"batch_id"`
	ProductsWritten   int       `json:"products_written"`
	ProductsReplaced  int       `json:"products_replaced"`
	CategoriesCreated int       `json:"categories_created"`
	CategoriesAdopted int       `json:"categories_adopted"`
	CategoriesUpdated int       `json:"categories_updated"`
	Chunks            int       `json:"chunks"`
	StagingLinked     int64     `json:"staging_linked"`
	CommittedAt       time.Time `json:"committed_at"`
}

// Commit runs the commit algorithm for batch. Category writes happen first
// and are kept on failure; product inserts, staging linkage and the batch
// status share one transaction.
func (e *CommitEngine) Commit(ctx context.Context, batch ImportBatch, assignments *Assignments, actor string) (CommitResult, error) {
	if batch.Status == BatchCommitted {
		return CommitResult{}, ErrAlreadyCommitted
	}
	if !batch.Status.CanTransition(BatchCommitted) {
		return CommitResult{}, fmt.Errorf("%w: batch is %s", ErrInvalidTransition, batch.Status)
	}
	if err := assignments.CheckComplete(); err != nil {
		return CommitResult{}, err
	}

	staged, err := e.repo.ListStagingRows(ctx, batch.ID)
	if err != nil {
		return CommitResult{}, &CommitError{Step: StepLoadStaging, Err: err}
	}
	eligible := make([]StagingRow, 0, len(staged))
	for _, r := range staged {
		if r.Eligible() {
			eligible = append(eligible, r)
		}
	}
	if len(eligible) == 0 {
		return CommitResult{}, ErrNothingToCommit
	}
	if err := e.recheckSKUs(ctx, batch.DivisionID, eligible); err != nil {
		return CommitResult{}, err
	}

	result := CommitResult{BatchID: batch.ID}
	if err := e.writeCategories(ctx, batch.DivisionID, assignments, &result); err != nil {
		return CommitResult{}, err
	}
	if err := e.repo.UpdateStagingAssignments(ctx, batch.ID, assignments.Items); err != nil {
		return CommitResult{}, &CommitError{Step: StepUpdateCategories, Err: err}
	}

	records, err := buildProducts(batch, eligible, assignments)
	if err != nil {
		return CommitResult{}, &CommitError{Step: StepInsertProducts, Err: err}
	}
	committedAt := e.now().UTC()

	err = e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for start, n := 0, 1; start < len(records); start, n = start+e.chunkSize, n+1 {
			end := min(start+e.chunkSize, len(records))
			if _, err := tx.InsertProducts(ctx, records[start:end]); err != nil {
				return &CommitError{Step: StepInsertProducts, Err: fmt.Errorf("chunk %d (rows %d-%d): %w",
					n, records[start].SourceRowNumber, records[end-1].SourceRowNumber, err)}
			}
			result.Chunks = n
		}
		linked, err := tx.MarkStagingCommitted(ctx, batch.ID)
		if err != nil {
			return &CommitError{Step: StepMarkStaging, Err: err}
		}
		result.StagingLinked = linked
		if err := tx.UpdateBatchStatus(ctx, batch.ID, BatchCommitted, &committedAt, actor); err != nil {
			return &CommitError{Step: StepMarkBatch, Err: err}
		}
		return nil
	})
	if err != nil {
		var ce *CommitError
		if errors.As(err, &ce) {
			return CommitResult{}, err
		}
		return CommitResult{}, &CommitError{Step: StepMarkBatch, Err: err}
	}

	for _, p := range records {
		if p.ReplaceExisting {
			result.ProductsReplaced++
		}
	}
	result.ProductsWritten = len(records)
	result.CommittedAt = committedAt
	return result, nil
}

// recheckSKUs rejects the commit when a SKU the batch means to insert was
// taken after validation. Overwrite rows are expected to exist.
func (e *CommitEngine) recheckSKUs(ctx context.Context, divisionID int64, rows []StagingRow) error {
	existing, err := e.catalog.ListExistingSKUs(ctx, divisionID)
	if err != nil {
		return &CommitError{Step: StepCheckSKUs, Err: err}
	}
	taken := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		taken[strings.ToLower(s)] = struct{}{}
	}
	conflict := &ConflictError{Reason: "SKUs were added to the catalog after validation; re-validate the file"}
	for _, r := range rows {
		if r.Resolution == ResolutionOverwrite {
			continue
		}
		if _, ok := taken[strings.ToLower(r.SKU)]; ok {
			conflict.Rows = append(conflict.Rows, r.RowNumber)
			conflict.SKUs = append(conflict.SKUs, r.SKU)
		}
	}
	if len(conflict.Rows) > 0 {
		return conflict
	}
	return nil
}

func (e *CommitEngine) writeCategories(ctx context.Context, divisionID int64, assignments *Assignments, result *CommitResult) error {
	for i := range assignments.Items {
		a := &assignments.Items[i]
		if a.ExistingCategoryID == nil {
			created, isNew, err := e.catalog.CreateCategory(ctx, categories.Category{
				DivisionID: divisionID,
				Name:       a.CategoryName,
				HSNCode:    a.HSNCode,
				GSTPercent: copyRate(a.GSTPercent),
				IsActive:   true,
			})
			if err != nil {
				return &CommitError{Step: StepCreateCategories, Err: fmt.Errorf("category %q: %w", a.CategoryName, err)}
			}
			id := created.ID
			a.ExistingCategoryID = &id
			if isNew {
				result.CategoriesCreated++
				continue
			}
			result.CategoriesAdopted++
		}
		if err := e.catalog.UpdateCategoryTax(ctx, *a.ExistingCategoryID, a.HSNCode, a.GSTPercent); err != nil {
			return &CommitError{Step: StepUpdateCategories, Err: fmt.Errorf("category %q: %w", a.CategoryName, err)}
		}
		result.CategoriesUpdated++
	}
	return nil
}

// buildProducts maps staged rows, already in row order, to catalog records.
func buildProducts(batch ImportBatch, rows []StagingRow, assignments *Assignments) ([]products.Product, error) {
	batchID := batch.ID
	out := make([]products.Product, 0, len(rows))
	for _, r := range rows {
		a, ok := assignments.Lookup(r.CategoryName)
		if !ok || a.ExistingCategoryID == nil {
			return nil, fmt.Errorf("row %d: category %q has no id", r.RowNumber, r.CategoryName)
		}
		out = append(out, products.Product{
			DivisionID:      batch.DivisionID,
			CategoryID:      *a.ExistingCategoryID,
			SKU:             r.SKU,
			Barcode:         r.Barcode,
			Name:            r.Name,
			Specifications:  r.Specifications,
			ProductClass:    r.ProductClass,
			IsCustomizable:  r.Customizable,
			PrintType:       r.PrintType,
			Unit:            r.Unit,
			MOQ:             r.MOQ,
			SleeveQuantity:  r.SleeveQty,
			BoxQuantity:     r.BoxQty,
			SellingPrice:    r.SellingPrice,
			ListPrice:       r.ListPrice,
			HSNCode:         a.HSNCode,
			GSTPercent:      copyRate(a.GSTPercent),
			StockType:       r.StockType,
			WarehouseZone:   r.WarehouseZone,
			Remarks:         r.Remarks,
			IsActive:        true,
			IsAutoSKU:       r.IsAutoSKU,
			ImportBatchID:   &batchID,
			ImportNotes:     r.Notes(),
			SourceRowNumber: r.RowNumber,
			ReplaceExisting: r.Resolution == ResolutionOverwrite,
		})
	}
	return out, nil
}
