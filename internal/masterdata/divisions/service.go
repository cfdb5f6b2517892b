package divisions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/equinox-erp/equinox/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve looks up an active division by code, ignoring case and padding.
func (s *Service) Resolve(ctx context.Context, code string) (Division, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Division{}, fmt.Errorf("%w: division code is required", shared.ErrValidation)
	}
	d, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Division{}, fmt.Errorf("division %s: %w", code, shared.ErrNotFound)
		}
		return Division{}, err
	}
	if !d.IsActive {
		return Division{}, fmt.Errorf("division %s: %w", code, shared.ErrNotFound)
	}
	return d, nil
}
