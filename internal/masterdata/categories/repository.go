package categories

import (
	"context"
	"fmt"
	"strings"

	"github.com/equinox-erp/equinox/internal/masterdata/shared"
	"github.com/equinox-erp/equinox/internal/platform/db"
)

type Repository interface {
	FindByName(ctx context.Context, divisionID int64, name string) (Category, error)
	Create(ctx context.Context, category Category) (Category, error)
	UpdateTax(ctx context.Context, id int64, hsn string, gst *float64) error
}

type repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &repository{db: q}
}

const categoryColumns = `id, division_id, name, COALESCE(hsn_code, ''), gst_percent, sort_order, is_active`

// FindByName matches case-insensitively; the unique index on
// (division_id, lower(name)) guarantees at most one row.
func (r *repository) FindByName(ctx context.Context, divisionID int64, name string) (Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE division_id = $1 AND lower(name) = lower($2)`
	var c Category
	err := r.db.QueryRow(ctx, query, divisionID, strings.TrimSpace(name)).
		Scan(&c.ID, &c.DivisionID, &c.Name, &c.HSNCode, &c.GSTPercent, &c.SortOrder, &c.IsActive)
	if db.IsNoRows(err) {
		return Category{}, shared.ErrNotFound
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, category Category) (Category, error) {
	query := `INSERT INTO categories (division_id, name, hsn_code, gst_percent, sort_order, is_active, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, true, NOW(), NOW()) RETURNING id`
	err := r.db.QueryRow(ctx, query, category.DivisionID, category.Name, category.HSNCode, category.GSTPercent, category.SortOrder).
		Scan(&category.ID)
	if db.IsUniqueViolation(err) {
		return Category{}, fmt.Errorf("category %q: %w", category.Name, shared.ErrDuplicate)
	}
	if err != nil {
		return Category{}, err
	}
	category.IsActive = true
	return category, nil
}

func (r *repository) UpdateTax(ctx context.Context, id int64, hsn string, gst *float64) error {
	tag, err := r.db.Exec(ctx, `UPDATE categories SET hsn_code = NULLIF($1, ''), gst_percent = $2, updated_at = NOW() WHERE id = $3`, hsn, gst, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
