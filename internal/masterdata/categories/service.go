package categories

import (
	"context"
	"errors"
	"fmt"

	"github.com/equinox-erp/equinox/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) FindByName(ctx context.Context, divisionID int64, name string) (Category, error) {
	if divisionID <= 0 {
		return Category{}, shared.ErrInvalidID
	}
	return s.repo.FindByName(ctx, divisionID, name)
}

func (s *Service) Create(ctx context.Context, category Category) (Category, error) {
	if err := s.validate(category); err != nil {
		return Category{}, err
	}
	return s.repo.Create(ctx, category)
}

// CreateOrAdopt creates the category, or returns the existing row when a
// concurrent writer created the same name first.
func (s *Service) CreateOrAdopt(ctx context.Context, category Category) (Category, bool, error) {
	created, err := s.Create(ctx, category)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, shared.ErrDuplicate) {
		return Category{}, false, err
	}
	existing, findErr := s.repo.FindByName(ctx, category.DivisionID, category.Name)
	if findErr != nil {
		return Category{}, false, fmt.Errorf("adopt category %q: %w", category.Name, findErr)
	}
	return existing, false, nil
}

func (s *Service) UpdateTax(ctx context.Context, id int64, hsn string, gst *float64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := validateTax(hsn, gst); err != nil {
		return err
	}
	return s.repo.UpdateTax(ctx, id, hsn, gst)
}
