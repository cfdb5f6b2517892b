package divisions

import (
	"context"

	"github.com/equinox-erp/equinox/internal/masterdata/shared"
	"github.com/equinox-erp/equinox/internal/platform/db"
)

type Repository interface {
	FindByCode(ctx context.Context, code string) (Division, error)
}

type repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &repository{db: q}
}

func (r *repository) FindByCode(ctx context.Context, code string) (Division, error) {
	var d Division
	err := r.db.QueryRow(ctx, `SELECT id, code, name, is_active FROM divisions WHERE code = $1`, code).
		Scan(&d.ID, &d.Code, &d.Name, &d.IsActive)
	if db.IsNoRows(err) {
		return Division{}, shared.ErrNotFound
	}
	return d, err
}
