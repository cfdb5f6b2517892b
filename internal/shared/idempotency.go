package shared

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/equinox-erp/equinox/internal/platform/db"
)

// ErrIdempotencyConflict reports a key that was already claimed for the module.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

const (
	claimKeySQL   = `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3) ON CONFLICT (key, module) DO NOTHING`
	releaseKeySQL = `DELETE FROM idempotency_keys WHERE key = $1 AND module = $2`
)

// IdempotencyStore claims client request keys in idempotency_keys, one row
// per (key, module).
type IdempotencyStore struct {
	db  db.Querier
	now func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(q db.Querier) *IdempotencyStore {
	return &IdempotencyStore{db: q, now: time.Now}
}

// CheckAndInsert claims key for module. A second claim of the same pair
// returns ErrIdempotencyConflict.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil || s.db == nil {
		return errors.New("idempotency store not initialised")
	}
	key, module = strings.TrimSpace(key), strings.TrimSpace(module)
	switch {
	case key == "":
		return errors.New("idempotency key required")
	case module == "":
		return errors.New("idempotency module required")
	}
	tag, err := s.db.Exec(ctx, claimKeySQL, key, module, s.now().UTC())
	if db.IsUniqueViolation(err) {
		return ErrIdempotencyConflict
	}
	if err != nil {
		return fmt.Errorf("claim idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Delete releases a claimed key so the request can be retried with it.
func (s *IdempotencyStore) Delete(ctx context.Context, key, module string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if _, err := s.db.Exec(ctx, releaseKeySQL, strings.TrimSpace(key), strings.TrimSpace(module)); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
