package categories

import (
	"fmt"
	"strings"

	"github.com/equinox-erp/equinox/internal/masterdata/shared"
	"github.com/equinox-erp/equinox/internal/masterdata/taxes"
)

func (s *Service) validate(c Category) error {
	if c.DivisionID <= 0 {
		return shared.ErrInvalidID
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: category name is required", shared.ErrValidation)
	}
	return validateTax(c.HSNCode, c.GSTPercent)
}

func validateTax(hsn string, gst *float64) error {
	if hsn != "" {
		if err := taxes.ValidateHSN(hsn); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrValidation, err)
		}
	}
	if gst != nil {
		if err := taxes.ValidateRate(*gst); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrValidation, err)
		}
	}
	return nil
}
