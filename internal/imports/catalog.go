package imports

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/equinox-erp/equinox/internal/masterdata/categories"
	"github.com/equinox-erp/equinox/internal/masterdata/divisions"
	"github.com/equinox-erp/equinox/internal/masterdata/products"
	mdshared "github.com/equinox-erp/equinox/internal/masterdata/shared"
	"github.com/equinox-erp/equinox/internal/platform/db"
)

// CatalogAdapter implements Catalog on the masterdata packages.
type CatalogAdapter struct {
	divisions  *divisions.Service
	categories *categories.Service
	products   products.Repository
}

// NewCatalog builds a catalog bound to q, which may be a pool or a
// transaction.
func NewCatalog(q db.Querier) *CatalogAdapter {
	return NewCatalogFrom(
		divisions.NewService(divisions.NewRepository(q)),
		categories.NewService(categories.NewRepository(q)),
		products.NewRepository(q),
	)
}

// NewCatalogFrom assembles a catalog from existing collaborators.
func NewCatalogFrom(d *divisions.Service, c *categories.Service, p products.Repository) *CatalogAdapter {
	return &CatalogAdapter{divisions: d, categories: c, products: p}
}

func (c *CatalogAdapter) FindDivisionByCode(ctx context.Context, code string) (divisions.Division, error) {
	d, err := c.divisions.Resolve(ctx, code)
	if errors.Is(err, mdshared.ErrNotFound) {
		return divisions.Division{}, fmt.Errorf("%w: %s", ErrDivisionNotFound, code)
	}
	return d, err
}

func (c *CatalogAdapter) ListExistingSKUs(ctx context.Context, divisionID int64) ([]string, error) {
	return c.products.ListSKUs(ctx, divisionID)
}

func (c *CatalogAdapter) MaxAutoSKUSequence(ctx context.Context, divisionID int64) (int, error) {
	return c.products.MaxAutoSequence(ctx, divisionID)
}

func (c *CatalogAdapter) FindCategoryByName(ctx context.Context, divisionID int64, name string) (categories.Category, error) {
	return c.categories.FindByName(ctx, divisionID, name)
}

func (c *CatalogAdapter) CreateCategory(ctx context.Context, category categories.Category) (categories.Category, bool, error) {
	return c.categories.CreateOrAdopt(ctx, category)
}

func (c *CatalogAdapter) UpdateCategoryTax(ctx context.Context, id int64, hsn string, gst *float64) error {
	return c.categories.UpdateTax(ctx, id, hsn, gst)
}

// InsertProducts validates every product before the round trip.
func (c *CatalogAdapter) InsertProducts(ctx context.Context, batch []products.Product) ([]int64, error) {
	for _, p := range batch {
		if err := products.Validate(p); err != nil {
			return nil, err
		}
	}
	return c.products.InsertBatch(ctx, batch)
}

func (c *CatalogAdapter) DeleteProductsByImportBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	return c.products.DeleteByImportBatch(ctx, batchID)
}
