package products

import (
	"fmt"
	"strings"

	"github.com/equinox-erp/equinox/internal/masterdata/shared"
)

// Validate checks the columns the catalog constrains.
func Validate(p Product) error {
	switch {
	case p.DivisionID <= 0:
		return fmt.Errorf("%w: division is required", shared.ErrValidation)
	case p.CategoryID <= 0:
		return fmt.Errorf("%w: product %s has no category", shared.ErrValidation, p.SKU)
	case strings.TrimSpace(p.SKU) == "":
		return fmt.Errorf("%w: sku is required", shared.ErrValidation)
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: product %s has no name", shared.ErrValidation, p.SKU)
	case !p.SellingPrice.IsPositive():
		return fmt.Errorf("%w: product %s selling price must be positive", shared.ErrValidation, p.SKU)
	}
	return nil
}
