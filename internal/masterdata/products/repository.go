package products

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/equinox-erp/equinox/internal/masterdata/shared"
	"github.com/equinox-erp/equinox/internal/platform/db"
)

type Repository interface {
	ListSKUs(ctx context.Context, divisionID int64) ([]string, error)
	MaxAutoSequence(ctx context.Context, divisionID int64) (int, error)
	InsertBatch(ctx context.Context, batch []Product) ([]int64, error)
	DeleteByImportBatch(ctx context.Context, batchID uuid.UUID) (int64, error)
}

type repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &repository{db: q}
}

func (r *repository) ListSKUs(ctx context.Context, divisionID int64) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT sku FROM products WHERE division_id = $1`, divisionID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// MaxAutoSequence returns the largest trailing number among auto-generated
// SKUs of the division, or 0 when there are none.
func (r *repository) MaxAutoSequence(ctx context.Context, divisionID int64) (int, error) {
	var max int
	err := r.db.QueryRow(ctx, `SELECT COALESCE(MAX(substring(sku FROM '([0-9]+)$')::int), 0)
		FROM products WHERE division_id = $1 AND is_auto_sku`, divisionID).Scan(&max)
	return max, err
}

const insertColumns = `division_id, category_id, sku, barcode, name, specifications, product_class,
	is_customizable, print_type, unit, moq, sleeve_quantity, box_quantity, selling_price, list_price,
	hsn_code, gst_percent, stock_type, warehouse_zone, remarks, is_active, is_auto_sku,
	import_batch_id, import_notes, source_row_number, created_at, updated_at`

const insertValues = `$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
	$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, NOW(), NOW()`

const insertProduct = `INSERT INTO products (` + insertColumns + `) VALUES (` + insertValues + `) RETURNING id`

const upsertProduct = `INSERT INTO products (` + insertColumns + `) VALUES (` + insertValues + `)
	ON CONFLICT (division_id, lower(sku)) DO UPDATE SET
		category_id = EXCLUDED.category_id,
		barcode = EXCLUDED.barcode,
		name = EXCLUDED.name,
		specifications = EXCLUDED.specifications,
		product_class = EXCLUDED.product_class,
		is_customizable = EXCLUDED.is_customizable,
		print_type = EXCLUDED.print_type,
		unit = EXCLUDED.unit,
		moq = EXCLUDED.moq,
		sleeve_quantity = EXCLUDED.sleeve_quantity,
		box_quantity = EXCLUDED.box_quantity,
		selling_price = EXCLUDED.selling_price,
		list_price = EXCLUDED.list_price,
		hsn_code = EXCLUDED.hsn_code,
		gst_percent = EXCLUDED.gst_percent,
		stock_type = EXCLUDED.stock_type,
		warehouse_zone = EXCLUDED.warehouse_zone,
		remarks = EXCLUDED.remarks,
		is_active = EXCLUDED.is_active,
		is_auto_sku = EXCLUDED.is_auto_sku,
		import_batch_id = EXCLUDED.import_batch_id,
		import_notes = EXCLUDED.import_notes,
		source_row_number = EXCLUDED.source_row_number,
		updated_at = NOW()
	RETURNING id`

// InsertBatch writes the products in one round trip and returns their ids in
// input order.
func (r *repository) InsertBatch(ctx context.Context, batch []Product) ([]int64, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	b := &pgx.Batch{}
	for _, p := range batch {
		sql := insertProduct
		if p.ReplaceExisting {
			sql = upsertProduct
		}
		b.Queue(sql,
			p.DivisionID, p.CategoryID, p.SKU, p.Barcode, p.Name, p.Specifications, p.ProductClass,
			p.IsCustomizable, p.PrintType, p.Unit, p.MOQ, p.SleeveQuantity, p.BoxQuantity, p.SellingPrice, p.ListPrice,
			p.HSNCode, p.GSTPercent, p.StockType, p.WarehouseZone, p.Remarks, p.IsActive, p.IsAutoSKU,
			p.ImportBatchID, p.ImportNotes, p.SourceRowNumber,
		)
	}

	results := r.db.SendBatch(ctx, b)
	defer results.Close()

	ids := make([]int64, 0, len(batch))
	for _, p := range batch {
		var id int64
		if err := results.QueryRow().Scan(&id); err != nil {
			if db.IsUniqueViolation(err) {
				return nil, fmt.Errorf("product %s: %w", p.SKU, shared.ErrDuplicate)
			}
			return nil, fmt.Errorf("product %s: %w", p.SKU, err)
		}
		ids = append(ids, id)
	}
	return ids, results.Close()
}

func (r *repository) DeleteByImportBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE import_batch_id = $1`, batchID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
