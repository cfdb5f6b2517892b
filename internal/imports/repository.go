package imports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/equinox-erp/equinox/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for batches and staging
// rows.
type Repository struct {
	pool *pgxpool.Pool
	store
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, store: store{q: pool}}
}

type txRepo struct {
	*CatalogAdapter
	store
}

// WithTx wraps callback in repeatable-read transaction. Products written
// through the TxRepository share the transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{CatalogAdapter: NewCatalog(tx), store: store{q: tx}})
	})
}

// InsertStagingRows replaces the staging rows of a batch atomically.
func (r *Repository) InsertStagingRows(ctx context.Context, batchID uuid.UUID, rows []StagingRow) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return store{q: tx}.replaceStagingRows(ctx, batchID, rows)
	})
}

// store holds the queries shared by the pool and transaction views.
type store struct {
	q db.Querier
}

const batchColumns = `b.id, b.division_id, COALESCE(d.code, ''), b.file_name, b.layout, b.total_rows, b.valid_count,
	b.warning_count, b.error_count, b.status, b.uploaded_by, b.uploaded_at, b.committed_at, b.committed_by`

func scanBatch(row pgx.Row, extra ...any) (ImportBatch, error) {
	var b ImportBatch
	var status string
	dest := []any{&b.ID, &b.DivisionID, &b.DivisionCode, &b.FileName, &b.Layout, &b.TotalRows, &b.ValidCount,
		&b.WarningCount, &b.ErrorCount, &status, &b.UploadedBy, &b.UploadedAt, &b.CommittedAt, &b.CommittedBy}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return ImportBatch{}, err
	}
	b.Status = BatchStatus(status)
	return b, nil
}

func (s store) CreateBatch(ctx context.Context, b ImportBatch) error {
	_, err := s.q.Exec(ctx, `INSERT INTO import_batches
		(id, division_id, file_name, layout, total_rows, valid_count, warning_count, error_count, status, uploaded_by, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.ID, b.DivisionID, b.FileName, b.Layout, b.TotalRows, b.ValidCount, b.WarningCount, b.ErrorCount,
		string(b.Status), b.UploadedBy, b.UploadedAt)
	return err
}

// UpdateBatchStatus only advances from the single allowed predecessor, or
// rewrites the current status.
func (s store) UpdateBatchStatus(ctx context.Context, id uuid.UUID, status BatchStatus, committedAt *time.Time, committedBy string) error {
	prev, _ := status.Previous()
	tag, err := s.q.Exec(ctx, `UPDATE import_batches SET
			status = $2,
			committed_at = COALESCE($3, committed_at),
			committed_by = COALESCE(NULLIF($4, ''), committed_by)
		WHERE id = $1 AND status IN ($2, $5)`,
		id, string(status), committedAt, committedBy, string(prev))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetBatch(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: to %s", ErrInvalidTransition, status)
	}
	return nil
}

func (s store) UpdateBatchCounts(ctx context.Context, id uuid.UUID, sum Summary) error {
	tag, err := s.q.Exec(ctx, `UPDATE import_batches SET total_rows = $2, valid_count = $3, warning_count = $4, error_count = $5
		WHERE id = $1`, id, sum.Total, sum.Valid, sum.Warning, sum.Error)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

func (s store) GetBatch(ctx context.Context, id uuid.UUID) (ImportBatch, error) {
	b, err := scanBatch(s.q.QueryRow(ctx, `SELECT `+batchColumns+`
		FROM import_batches b LEFT JOIN divisions d ON d.id = b.division_id WHERE b.id = $1`, id))
	if db.IsNoRows(err) {
		return ImportBatch{}, ErrBatchNotFound
	}
	return b, err
}

// ListBatches returns batches newest first. divisionID 0 lists every
// division.
func (s store) ListBatches(ctx context.Context, divisionID int64, limit, offset int) (BatchPage, error) {
	rows, err := s.q.Query(ctx, `SELECT `+batchColumns+`, COUNT(*) OVER()
		FROM import_batches b LEFT JOIN divisions d ON d.id = b.division_id
		WHERE ($1::bigint = 0 OR b.division_id = $1)
		ORDER BY b.uploaded_at DESC, b.id
		LIMIT $2 OFFSET $3`, divisionID, limit, offset)
	if err != nil {
		return BatchPage{}, err
	}
	defer rows.Close()

	var page BatchPage
	for rows.Next() {
		var total int
		b, err := scanBatch(rows, &total)
		if err != nil {
			return BatchPage{}, err
		}
		page.Batches = append(page.Batches, b)
		page.Total = total
	}
	return page, rows.Err()
}

func (s store) replaceStagingRows(ctx context.Context, batchID uuid.UUID, rows []StagingRow) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM import_staging_rows WHERE batch_id = $1`, batchID); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, r := range rows {
		payload, err := json.Marshal(r.ValidatedRow)
		if err != nil {
			return fmt.Errorf("encode staging row %d: %w", r.RowNumber, err)
		}
		b.Queue(`INSERT INTO import_staging_rows
			(batch_id, row_number, sku, category_name, status, resolution, is_auto_sku, payload,
			 assigned_category_id, assigned_hsn, assigned_gst_percent, is_committed, committed_product_id)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, NULLIF($10, ''), $11, FALSE, NULL)`,
			batchID, r.RowNumber, r.SKU, r.CategoryName, string(r.Status()), string(r.Resolution), r.IsAutoSKU, payload,
			r.AssignedCategoryID, r.AssignedHSN, r.AssignedGSTPercent)
	}
	results := s.q.SendBatch(ctx, b)
	defer results.Close()
	for _, r := range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert staging row %d: %w", r.RowNumber, err)
		}
	}
	return results.Close()
}

func (s store) UpdateStagingAssignments(ctx context.Context, batchID uuid.UUID, assignments []CategoryAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, a := range assignments {
		b.Queue(`UPDATE import_staging_rows SET
				assigned_category_id = $3, assigned_hsn = NULLIF($4, ''), assigned_gst_percent = $5
			WHERE batch_id = $1 AND lower(category_name) = lower($2)`,
			batchID, a.CategoryName, a.ExistingCategoryID, a.HSNCode, a.GSTPercent)
	}
	results := s.q.SendBatch(ctx, b)
	defer results.Close()
	for _, a := range assignments {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("assign category %q: %w", a.CategoryName, err)
		}
	}
	return results.Close()
}

func (s store) MarkStagingCommitted(ctx context.Context, batchID uuid.UUID) (int64, error) {
	tag, err := s.q.Exec(ctx, `UPDATE import_staging_rows s SET is_committed = TRUE, committed_product_id = p.id
		FROM products p
		WHERE s.batch_id = $1 AND p.import_batch_id = s.batch_id AND p.source_row_number = s.row_number`, batchID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s store) ResetStagingCommitted(ctx context.Context, batchID uuid.UUID) (int64, error) {
	tag, err := s.q.Exec(ctx, `UPDATE import_staging_rows SET is_committed = FALSE, committed_product_id = NULL
		WHERE batch_id = $1 AND is_committed`, batchID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s store) ListStagingRows(ctx context.Context, batchID uuid.UUID) ([]StagingRow, error) {
	rows, err := s.q.Query(ctx, `SELECT payload, assigned_category_id, COALESCE(assigned_hsn, ''), assigned_gst_percent,
			is_committed, committed_product_id
		FROM import_staging_rows WHERE batch_id = $1 ORDER BY row_number`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StagingRow
	for rows.Next() {
		var (
			payload []byte
			r       = StagingRow{BatchID: batchID}
		)
		if err := rows.Scan(&payload, &r.AssignedCategoryID, &r.AssignedHSN, &r.AssignedGSTPercent,
			&r.IsCommitted, &r.CommittedProductID); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &r.ValidatedRow); err != nil {
			return nil, fmt.Errorf("decode staging row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
