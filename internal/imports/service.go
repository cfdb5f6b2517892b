package imports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/equinox-erp/equinox/internal/imports/sheet"
	"github.com/equinox-erp/equinox/internal/masterdata/taxes"
	"github.com/equinox-erp/equinox/internal/observability"
	"github.com/equinox-erp/equinox/internal/shared"
)

const (
	idempotencyModule = "imports.upload"
	auditEntity       = "import_batch"
	// DefaultLockTTL bounds a division commit lock.
	DefaultLockTTL = 10 * time.Minute
)

// ServiceConfig groups the collaborators of Service.
type ServiceConfig struct {
	Catalog     Catalog
	Repo        RepositoryPort
	Sessions    SessionStore
	Locker      Locker
	Audit       AuditPort
	Idempotency IdempotencyPort
	Metrics     *observability.Metrics
	Logger      *slog.Logger

	ChunkSize         int
	LockTTL           time.Duration
	ValidateWorkers   int
	HeuristicScanRows int
}

// Service orchestrates the import wizard over its ports.
type Service struct {
	catalog     Catalog
	repo        RepositoryPort
	sessions    SessionStore
	locker      Locker
	audit       AuditPort
	idempotency IdempotencyPort
	metrics     *observability.Metrics
	logger      *slog.Logger
	engine      *CommitEngine
	validator   Validator
	lockTTL     time.Duration
	scanRows    int
	now         func() time.Time

	templates     sync.Map
	templateGroup singleflight.Group
}

// NewService wires the import service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &Service{
		catalog:     cfg.Catalog,
		repo:        cfg.Repo,
		sessions:    cfg.Sessions,
		locker:      cfg.Locker,
		audit:       cfg.Audit,
		idempotency: cfg.Idempotency,
		metrics:     cfg.Metrics,
		logger:      logger.With(slog.String("component", "imports")),
		engine:      NewCommitEngine(cfg.Catalog, cfg.Repo, cfg.ChunkSize),
		validator:   Validator{Workers: cfg.ValidateWorkers},
		lockTTL:     lockTTL,
		scanRows:    cfg.HeuristicScanRows,
		now:         time.Now,
	}
}

// UploadInput describes one uploaded spreadsheet.
type UploadInput struct {
	Division       string
	FileName       string
	Layout         string
	Body           io.Reader
	Actor          string
	IdempotencyKey string
}

// Upload parses, normalizes and validates a spreadsheet, records the batch
// and opens a wizard session at the validation step.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*ImportSession, error) {
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil, ErrDuplicateUpload
			}
			return nil, err
		}
	}
	sess, err := s.upload(ctx, in)
	if err != nil && key != "" && s.idempotency != nil {
		if derr := s.idempotency.Delete(context.WithoutCancel(ctx), key, idempotencyModule); derr != nil {
			s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", derr))
		}
	}
	return sess, err
}

func (s *Service) upload(ctx context.Context, in UploadInput) (*ImportSession, error) {
	division, err := s.catalog.FindDivisionByCode(ctx, in.Division)
	if err != nil {
		return nil, err
	}
	layout, err := sheet.ParseLayout(in.Layout, division.Code)
	if err != nil {
		return nil, &ParseError{File: in.FileName, Reason: err.Error()}
	}
	if h, ok := layout.(sheet.HeuristicHeaders); ok && s.scanRows > 0 {
		h.ScanRows = s.scanRows
		layout = h
	}

	parsed, err := sheet.Read(in.Body, in.FileName, layout)
	if err != nil {
		return nil, err
	}
	rows := Normalize(parsed)

	existing, err := s.catalog.ListExistingSKUs(ctx, division.ID)
	if err != nil {
		return nil, fmt.Errorf("imports: list skus: %w", err)
	}
	maxSeq, err := s.catalog.MaxAutoSKUSequence(ctx, division.ID)
	if err != nil {
		return nil, fmt.Errorf("imports: max auto sku: %w", err)
	}
	validated := s.validator.Validate(rows, existing, NewSKUGenerator(division.Code, maxSeq, existing))
	summary := Summarize(validated)

	now := s.now().UTC()
	batch := ImportBatch{
		ID:           uuid.New(),
		DivisionID:   division.ID,
		DivisionCode: division.Code,
		FileName:     in.FileName,
		Layout:       layout.Name(),
		Status:       BatchParsing,
		UploadedBy:   in.Actor,
		UploadedAt:   now,
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("imports: create batch: %w", err)
	}
	if err := s.repo.UpdateBatchStatus(ctx, batch.ID, BatchValidating, nil, ""); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateBatchCounts(ctx, batch.ID, summary); err != nil {
		return nil, err
	}

	sess := &ImportSession{
		BatchID:      batch.ID,
		DivisionID:   division.ID,
		DivisionCode: division.Code,
		FileName:     in.FileName,
		Layout:       layout.Name(),
		Step:         StepValidation,
		Rows:         validated,
		CreatedAt:    now,
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	s.metrics.ObserveRows(division.Code, string(RowValid), summary.Valid)
	s.metrics.ObserveRows(division.Code, string(RowWarning), summary.Warning)
	s.metrics.ObserveRows(division.Code, string(RowError), summary.Error)
	s.logger.Info("import uploaded",
		slog.String("batch_id", batch.ID.String()),
		slog.String("division", division.Code),
		slog.String("layout", batch.Layout),
		slog.Int("rows", summary.Total),
		slog.Int("errors", summary.Error),
		slog.Int("auto_sku", summary.AutoSKU),
	)
	return sess, nil
}

// Get loads a session.
func (s *Service) Get(ctx context.Context, batchID uuid.UUID) (*ImportSession, error) {
	return s.sessions.Load(ctx, batchID)
}

// Batch returns the audit record of a batch.
func (s *Service) Batch(ctx context.Context, batchID uuid.UUID) (ImportBatch, error) {
	return s.repo.GetBatch(ctx, batchID)
}

// RowResolution targets one row of a session.
type RowResolution struct {
	Row        int
	Resolution Resolution
}

// Resolve applies resolutions in order. Nothing is saved when any of them
// fails.
func (s *Service) Resolve(ctx context.Context, batchID uuid.UUID, items []RowResolution) (*ImportSession, error) {
	return s.mutate(ctx, batchID, func(sess *ImportSession) error {
		var catalog SKUSet
		for _, item := range items {
			if item.Resolution != ResolutionCreateNew || catalog != nil {
				continue
			}
			existing, err := s.catalog.ListExistingSKUs(ctx, sess.DivisionID)
			if err != nil {
				return fmt.Errorf("imports: list skus: %w", err)
			}
			catalog = NewSKUSet(existing...)
		}
		for _, item := range items {
			if err := sess.Resolve(item.Row, item.Resolution, catalog); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stage leaves validation: it builds the category assignments, writes the
// eligible rows to staging and moves the batch to reviewing.
func (s *Service) Stage(ctx context.Context, batchID uuid.UUID) (*ImportSession, error) {
	sess, err := s.sessions.Load(ctx, batchID)
	if err != nil {
		return nil, err
	}
	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status == BatchCommitted {
		return nil, ErrAlreadyCommitted
	}
	if err := sess.AdvanceToCategories(ctx, s.catalog); err != nil {
		return nil, err
	}
	if err := s.repo.InsertStagingRows(ctx, batchID, stagingRows(sess)); err != nil {
		return nil, fmt.Errorf("imports: stage rows: %w", err)
	}
	if err := s.advanceBatch(ctx, batch, BatchReviewing); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("import staged",
		slog.String("batch_id", batchID.String()),
		slog.Int("rows", len(sess.EligibleRows())),
		slog.Int("categories", len(sess.Assignments.Items)),
	)
	return sess, nil
}

func stagingRows(sess *ImportSession) []StagingRow {
	eligible := sess.EligibleRows()
	out := make([]StagingRow, 0, len(eligible))
	for _, r := range eligible {
		row := StagingRow{BatchID: sess.BatchID, ValidatedRow: r}
		if a, ok := sess.Assignments.Lookup(r.CategoryName); ok {
			row.AssignedCategoryID = a.ExistingCategoryID
			row.AssignedHSN = a.HSNCode
			row.AssignedGSTPercent = copyRate(a.GSTPercent)
		}
		out = append(out, row)
	}
	return out
}

func (s *Service) advanceBatch(ctx context.Context, batch ImportBatch, next BatchStatus) error {
	if batch.Status == next {
		return nil
	}
	if !batch.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, batch.Status, next)
	}
	return s.repo.UpdateBatchStatus(ctx, batch.ID, next, nil, "")
}

// CategoryTax is an HSN/GST edit for one category.
type CategoryTax struct {
	Category   string
	HSNCode    string
	GSTPercent *float64
}

// SetCategories edits categories during the categories step.
func (s *Service) SetCategories(ctx context.Context, batchID uuid.UUID, edits []CategoryTax) (*ImportSession, error) {
	sess, err := s.mutate(ctx, batchID, func(sess *ImportSession) error {
		for _, e := range edits {
			if err := sess.SetTax(e.Category, e.HSNCode, e.GSTPercent); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.syncAssignments(ctx, sess)
	return sess, nil
}

// ApplyInput is a quick-apply request: either a preset name or an explicit
// HSN/GST pair.
type ApplyInput struct {
	Preset     string
	HSNCode    string
	GSTPercent *float64
}

// ApplyCategories fills every category that still lacks a value and
// returns the number of categories changed.
func (s *Service) ApplyCategories(ctx context.Context, batchID uuid.UUID, in ApplyInput) (*ImportSession, int, error) {
	var changed int
	sess, err := s.mutate(ctx, batchID, func(sess *ImportSession) error {
		var err error
		if in.Preset != "" {
			changed, err = sess.ApplyPreset(in.Preset)
		} else {
			changed, err = sess.ApplyToUnfilled(in.HSNCode, in.GSTPercent)
		}
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	s.syncAssignments(ctx, sess)
	return sess, changed, nil
}

// syncAssignments mirrors the session taxes onto staging. The commit
// writes them again, so a failure here is only logged.
func (s *Service) syncAssignments(ctx context.Context, sess *ImportSession) {
	if sess.Assignments == nil {
		return
	}
	if err := s.repo.UpdateStagingAssignments(ctx, sess.BatchID, sess.Assignments.Items); err != nil {
		s.logger.Warn("sync staging assignments", slog.String("batch_id", sess.BatchID.String()), slog.Any("error", err))
	}
}

// Review enforces the category gate and moves to the review step.
func (s *Service) Review(ctx context.Context, batchID uuid.UUID) (*ImportSession, error) {
	return s.mutate(ctx, batchID, func(sess *ImportSession) error {
		return sess.AdvanceToReview()
	})
}

// Back returns the wizard to an earlier step.
func (s *Service) Back(ctx context.Context, batchID uuid.UUID, to Step) (*ImportSession, error) {
	return s.mutate(ctx, batchID, func(sess *ImportSession) error {
		return sess.Back(to)
	})
}

func (s *Service) mutate(ctx context.Context, batchID uuid.UUID, fn func(*ImportSession) error) (*ImportSession, error) {
	sess, err := s.sessions.Load(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Commit writes a reviewed batch into the catalog while holding the
// division lock.
func (s *Service) Commit(ctx context.Context, batchID uuid.UUID, actor string) (CommitResult, error) {
	start := s.now()
	result, err := s.commit(ctx, batchID, actor)
	if !errors.Is(err, ErrImportLocked) && !errors.Is(err, ErrAlreadyCommitted) {
		s.metrics.ObserveCommit(err, s.now().Sub(start))
	}
	if err != nil {
		s.logger.Warn("import commit failed", slog.String("batch_id", batchID.String()), slog.Any("error", err))
		return CommitResult{}, err
	}
	s.logger.Info("import committed",
		slog.String("batch_id", batchID.String()),
		slog.Int("products", result.ProductsWritten),
		slog.Int("replaced", result.ProductsReplaced),
		slog.Int("categories_created", result.CategoriesCreated),
		slog.Int("chunks", result.Chunks),
	)
	return result, nil
}

func (s *Service) commit(ctx context.Context, batchID uuid.UUID, actor string) (CommitResult, error) {
	sess, err := s.sessions.Load(ctx, batchID)
	if err != nil {
		return CommitResult{}, err
	}
	if sess.Step == StepDone {
		return CommitResult{}, ErrAlreadyCommitted
	}
	if err := sess.require(StepReview); err != nil {
		return CommitResult{}, err
	}

	release, err := s.lock(ctx, sess.DivisionID)
	if err != nil {
		return CommitResult{}, err
	}
	defer release()

	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return CommitResult{}, err
	}
	result, err := s.engine.Commit(ctx, batch, sess.Assignments, actor)
	if err != nil {
		var ce *CommitError
		if errors.As(err, &ce) {
			// Categories created before the failure keep their ids.
			if serr := s.sessions.Save(ctx, sess); serr != nil {
				s.logger.Warn("save session after failed commit", slog.Any("error", serr))
			}
		}
		return CommitResult{}, err
	}
	if err := sess.MarkDone(); err != nil {
		return CommitResult{}, err
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		s.logger.Warn("save committed session", slog.String("batch_id", batchID.String()), slog.Any("error", err))
	}
	s.record(ctx, actor, "import.commit", batchID, map[string]any{
		"division":           sess.DivisionCode,
		"file_name":          sess.FileName,
		"products_written":   result.ProductsWritten,
		"products_replaced":  result.ProductsReplaced,
		"categories_created": result.CategoriesCreated,
	})
	return result, nil
}

// Rollback reverts a committed batch. Batches that were never committed
// return a Noop result.
func (s *Service) Rollback(ctx context.Context, batchID uuid.UUID, actor string) (RollbackResult, error) {
	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return RollbackResult{}, err
	}
	release, err := s.lock(ctx, batch.DivisionID)
	if err != nil {
		return RollbackResult{}, err
	}
	defer release()

	result, err := s.engine.Rollback(ctx, batchID)
	if err == nil && result.Noop {
		return result, nil
	}
	s.metrics.ObserveRollback(err)
	if err != nil {
		s.logger.Warn("import rollback failed", slog.String("batch_id", batchID.String()), slog.Any("error", err))
		return RollbackResult{}, err
	}
	s.record(ctx, actor, "import.rollback", batchID, map[string]any{
		"division":          batch.DivisionCode,
		"products_deleted":  result.ProductsDeleted,
		"products_replaced": result.ProductsReplaced,
		"staging_reset":     result.StagingReset,
	})
	s.logger.Info("import rolled back",
		slog.String("batch_id", batchID.String()),
		slog.Int64("products", result.ProductsDeleted),
		slog.Int("replaced", result.ProductsReplaced),
	)
	return result, nil
}

// CommitBatch runs Commit for a background job.
func (s *Service) CommitBatch(ctx context.Context, batchID uuid.UUID, actor string) error {
	_, err := s.Commit(ctx, batchID, actor)
	return err
}

// RollbackBatch runs Rollback for a background job.
func (s *Service) RollbackBatch(ctx context.Context, batchID uuid.UUID, actor string) error {
	_, err := s.Rollback(ctx, batchID, actor)
	return err
}

func (s *Service) lock(ctx context.Context, divisionID int64) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	key := shared.DivisionImportLockKey(divisionID)
	release, err := s.locker.Acquire(ctx, key, s.lockTTL)
	if errors.Is(err, shared.ErrLockHeld) {
		return nil, ErrImportLocked
	}
	if err != nil {
		return nil, err
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("release import lock", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}

func (s *Service) record(ctx context.Context, actor, action string, batchID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   auditEntity,
		EntityID: batchID.String(),
		Meta:     meta,
		At:       s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

// ListBatches returns batch history newest first. An empty division lists
// every division.
func (s *Service) ListBatches(ctx context.Context, division string, page, perPage int) ([]ImportBatch, shared.Pagination, error) {
	var divisionID int64
	if strings.TrimSpace(division) != "" {
		d, err := s.catalog.FindDivisionByCode(ctx, division)
		if err != nil {
			return nil, shared.Pagination{}, err
		}
		divisionID = d.ID
	}
	p := shared.NewPagination(page, perPage, 0)
	result, err := s.repo.ListBatches(ctx, divisionID, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return result.Batches, shared.NewPagination(p.Page, p.PerPage, result.Total), nil
}

// Template returns the xlsx template of a division. Workbooks are built
// once per division.
func (s *Service) Template(ctx context.Context, division string) ([]byte, error) {
	key := strings.ToUpper(strings.TrimSpace(division))
	if key == "" {
		key = "APT"
	}
	if cached, ok := s.templates.Load(key); ok {
		return cached.([]byte), nil
	}
	ch := s.templateGroup.DoChan(key, func() (interface{}, error) {
		var buf bytes.Buffer
		if err := sheet.WriteTemplate(&buf, key); err != nil {
			return nil, err
		}
		out := buf.Bytes()
		s.templates.Store(key, out)
		return out, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// PresetCatalog lists the quick-apply options of the categories step.
type PresetCatalog struct {
	Presets  []taxes.Preset  `json:"presets"`
	HSNCodes []taxes.HSNCode `json:"hsn_codes"`
	GSTRates []float64       `json:"gst_rates"`
}

// Presets returns the tax presets and reference lists.
func (s *Service) Presets() PresetCatalog {
	return PresetCatalog{Presets: taxes.Presets(), HSNCodes: taxes.Reference(), GSTRates: taxes.GSTRates}
}
