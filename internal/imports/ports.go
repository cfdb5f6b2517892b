package imports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/equinox-erp/equinox/internal/masterdata/categories"
	"github.com/equinox-erp/equinox/internal/masterdata/divisions"
	"github.com/equinox-erp/equinox/internal/masterdata/products"
	"github.com/equinox-erp/equinox/internal/shared"
)

// ProductWriter writes catalog products attributed to an import batch.
type ProductWriter interface {
	InsertProducts(ctx context.Context, batch []products.Product) ([]int64, error)
	DeleteProductsByImportBatch(ctx context.Context, batchID uuid.UUID) (int64, error)
}

// Catalog is the catalog collaborator.
type Catalog interface {
	CategoryLookup
	ProductWriter
	FindDivisionByCode(ctx context.Context, code string) (divisions.Division, error)
	ListExistingSKUs(ctx context.Context, divisionID int64) ([]string, error)
	MaxAutoSKUSequence(ctx context.Context, divisionID int64) (int, error)
	// CreateCategory reports created=false when it adopted a category
	// created concurrently under the same name.
	CreateCategory(ctx context.Context, c categories.Category) (categories.Category, bool, error)
	UpdateCategoryTax(ctx context.Context, id int64, hsn string, gst *float64) error
}

// BatchPage is one page of batch history.
type BatchPage struct {
	Batches []ImportBatch
	Total   int
}

// BatchStore is the batch-audit collaborator.
type BatchStore interface {
	CreateBatch(ctx context.Context, batch ImportBatch) error
	// UpdateBatchStatus writes status. committedAt and committedBy are kept
	// unchanged when nil or empty.
	UpdateBatchStatus(ctx context.Context, id uuid.UUID, status BatchStatus, committedAt *time.Time, committedBy string) error
	UpdateBatchCounts(ctx context.Context, id uuid.UUID, summary Summary) error
	// InsertStagingRows replaces every staging row of the batch.
	InsertStagingRows(ctx context.Context, batchID uuid.UUID, rows []StagingRow) error
	UpdateStagingAssignments(ctx context.Context, batchID uuid.UUID, assignments []CategoryAssignment) error
	// MarkStagingCommitted links staging rows to the products inserted for
	// them and returns the number of rows linked.
	MarkStagingCommitted(ctx context.Context, batchID uuid.UUID) (int64, error)
	ResetStagingCommitted(ctx context.Context, batchID uuid.UUID) (int64, error)
	GetBatch(ctx context.Context, id uuid.UUID) (ImportBatch, error)
	ListBatches(ctx context.Context, divisionID int64, limit, offset int) (BatchPage, error)
	ListStagingRows(ctx context.Context, batchID uuid.UUID) ([]StagingRow, error)
}

// TxRepository is the transactional view used by commit and rollback.
type TxRepository interface {
	ProductWriter
	UpdateBatchStatus(ctx context.Context, id uuid.UUID, status BatchStatus, committedAt *time.Time, committedBy string) error
	MarkStagingCommitted(ctx context.Context, batchID uuid.UUID) (int64, error)
	ResetStagingCommitted(ctx context.Context, batchID uuid.UUID) (int64, error)
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	BatchStore
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SessionStore persists wizard sessions between requests.
type SessionStore interface {
	Save(ctx context.Context, s *ImportSession) error
	Load(ctx context.Context, batchID uuid.UUID) (*ImportSession, error)
	Delete(ctx context.Context, batchID uuid.UUID) error
}

// Locker serializes commits per division.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// IdempotencyPort guards uploads against replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}
