package imports

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/equinox-erp/equinox/internal/imports/sheet"
	"github.com/equinox-erp/equinox/internal/shared"
)

type testEnv struct {
	svc      *Service
	catalog  *memoryCatalog
	repo     *memoryRepo
	sessions *memorySessions
	locker   *memoryLocker
	audit    *memoryAudit
}

func newTestEnv(t *testing.T, chunkSize int) *testEnv {
	t.Helper()
	env := &testEnv{
		catalog:  newMemoryCatalog(),
		sessions: newMemorySessions(),
		locker:   newMemoryLocker(),
		audit:    &memoryAudit{},
	}
	env.repo = newMemoryRepo(env.catalog)
	env.svc = NewService(ServiceConfig{
		Catalog:     env.catalog,
		Repo:        env.repo,
		Sessions:    env.sessions,
		Locker:      env.locker,
		Audit:       env.audit,
		Idempotency: newMemoryIdempotency(),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		ChunkSize:   chunkSize,
	})
	return env
}

// templateRow builds a row in FixedColumns order from the given fields.
func templateRow(values map[sheet.Field]any) []any {
	row := make([]any, len(sheet.FixedColumns))
	for i, c := range sheet.FixedColumns {
		if v, ok := values[c.Field]; ok {
			row[i] = v
		} else {
			row[i] = ""
		}
	}
	return row
}

func fixedWorkbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })
	require.NoError(t, f.SetSheetName("Sheet1", sheet.PreferredSheet))
	require.NoError(t, f.SetCellValue(sheet.PreferredSheet, "A1", "APT Product Import Template"))
	header := make([]any, len(sheet.FixedColumns))
	for i, c := range sheet.FixedColumns {
		header[i] = c.Header
	}
	require.NoError(t, f.SetSheetRow(sheet.PreferredSheet, "A2", &header))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet.PreferredSheet, cell, &r))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func paperCupsWorkbook(t *testing.T) *bytes.Buffer {
	return fixedWorkbook(t,
		templateRow(map[sheet.Field]any{
			sheet.FieldName:         "250 ML Paper Cup",
			sheet.FieldCategory:     "paper cups",
			sheet.FieldUnit:         "pcs",
			sheet.FieldSellingPrice: "₹1,234.50",
			sheet.FieldProductClass: "standard",
			sheet.FieldMOQ:          "500",
		}),
		templateRow(map[sheet.Field]any{
			sheet.FieldSKU:          "8901",
			sheet.FieldName:         "Ripple Cup 4 Color",
			sheet.FieldCategory:     "Paper Cups",
			sheet.FieldUnit:         "PCS",
			sheet.FieldSellingPrice: 2.5,
			sheet.FieldListPrice:    3,
			sheet.FieldProductClass: "standard",
		}),
	)
}

func (env *testEnv) upload(t *testing.T, body io.Reader) *ImportSession {
	t.Helper()
	sess, err := env.svc.Upload(context.Background(), UploadInput{
		Division: "APT",
		FileName: "prices.xlsx",
		Layout:   sheet.LayoutFixed,
		Body:     body,
		Actor:    "priya",
	})
	require.NoError(t, err)
	return sess
}

func (env *testEnv) prepare(t *testing.T, body io.Reader) *ImportSession {
	t.Helper()
	ctx := context.Background()
	sess := env.upload(t, body)
	_, err := env.svc.Stage(ctx, sess.BatchID)
	require.NoError(t, err)
	_, _, err = env.svc.ApplyCategories(ctx, sess.BatchID, ApplyInput{Preset: "Paper"})
	require.NoError(t, err)
	sess, err = env.svc.Review(ctx, sess.BatchID)
	require.NoError(t, err)
	return sess
}

func TestServicePaperCupsCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	sess := env.upload(t, paperCupsWorkbook(t))
	require.Equal(t, StepValidation, sess.Step)
	require.Len(t, sess.Rows, 2)

	auto := sess.Rows[0]
	require.Equal(t, 3, auto.RowNumber)
	require.True(t, auto.IsAutoSKU)
	require.Equal(t, "APT-AUTO-0001", auto.SKU)
	require.Equal(t, "Paper Cups", auto.CategoryName)
	require.True(t, auto.SellingPrice.Equal(decimal.RequireFromString("1234.50")))
	require.NotNil(t, auto.MOQ)
	require.Equal(t, 500, *auto.MOQ)
	require.Equal(t, RowValid, auto.Status())

	ripple := sess.Rows[1]
	require.Equal(t, "8901", ripple.SKU)
	require.NotNil(t, ripple.PrintType)
	require.Equal(t, "4 Color", *ripple.PrintType)

	batch, err := env.svc.Batch(ctx, sess.BatchID)
	require.NoError(t, err)
	require.Equal(t, BatchValidating, batch.Status)
	require.Equal(t, 2, batch.TotalRows)
	require.Equal(t, 2, batch.ValidCount)

	staged, err := env.svc.Stage(ctx, sess.BatchID)
	require.NoError(t, err)
	require.Equal(t, StepCategories, staged.Step)
	require.Len(t, staged.Assignments.Items, 1)
	require.Equal(t, "Paper Cups", staged.Assignments.Items[0].CategoryName)
	require.Equal(t, 2, staged.Assignments.Items[0].ProductCount)
	require.True(t, staged.Assignments.Items[0].IsNew)

	_, err = env.svc.Review(ctx, sess.BatchID)
	var incomplete *IncompleteError
	require.ErrorAs(t, err, &incomplete)
	require.Equal(t, []string{"Paper Cups"}, incomplete.Categories)

	_, changed, err := env.svc.ApplyCategories(ctx, sess.BatchID, ApplyInput{Preset: "paper"})
	require.NoError(t, err)
	require.Equal(t, 1, changed)
	_, err = env.svc.Review(ctx, sess.BatchID)
	require.NoError(t, err)

	result, err := env.svc.Commit(ctx, sess.BatchID, "priya")
	require.NoError(t, err)
	require.Equal(t, 2, result.ProductsWritten)
	require.Equal(t, 1, result.CategoriesCreated)
	require.Equal(t, 1, result.Chunks)
	require.EqualValues(t, 2, result.StagingLinked)
	require.False(t, env.locker.isHeld(shared.DivisionImportLockKey(1)))

	cat, ok := env.catalog.category("Paper Cups")
	require.True(t, ok)
	require.Equal(t, "4823", cat.HSNCode)
	require.Equal(t, 18.0, *cat.GSTPercent)

	written := env.catalog.productsSnapshot()
	require.Len(t, written, 2)
	require.Equal(t, "APT-AUTO-0001", written[0].SKU)
	require.True(t, written[0].IsAutoSKU)
	require.Equal(t, 3, written[0].SourceRowNumber)
	require.Equal(t, "Auto-generated SKU: APT-AUTO-0001", written[0].ImportNotes)
	require.Equal(t, cat.ID, written[1].CategoryID)
	require.Equal(t, "4823", written[1].HSNCode)

	batch, err = env.svc.Batch(ctx, sess.BatchID)
	require.NoError(t, err)
	require.Equal(t, BatchCommitted, batch.Status)
	require.NotNil(t, batch.CommittedAt)
	require.Equal(t, "priya", *batch.CommittedBy)

	done, err := env.svc.Get(ctx, sess.BatchID)
	require.NoError(t, err)
	require.Equal(t, StepDone, done.Step)

	_, err = env.svc.Commit(ctx, sess.BatchID, "priya")
	require.ErrorIs(t, err, ErrAlreadyCommitted)
	_, err = env.svc.Back(ctx, sess.BatchID, StepCategories)
	require.ErrorIs(t, err, ErrAlreadyCommitted)

	rb, err := env.svc.Rollback(ctx, sess.BatchID, "priya")
	require.NoError(t, err)
	require.False(t, rb.Noop)
	require.EqualValues(t, 2, rb.ProductsDeleted)
	require.EqualValues(t, 2, rb.StagingReset)
	require.Empty(t, env.catalog.productsSnapshot())

	batch, err = env.svc.Batch(ctx, sess.BatchID)
	require.NoError(t, err)
	require.Equal(t, BatchRolledBack, batch.Status)

	again, err := env.svc.Rollback(ctx, sess.BatchID, "priya")
	require.NoError(t, err)
	require.True(t, again.Noop)

	require.Equal(t, []string{"import.commit", "import.rollback"}, env.audit.actions())
}

func TestServiceExistingProductNeedsResolution(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	env.catalog.addProduct(1, "8901")

	sess := env.upload(t, paperCupsWorkbook(t))
	require.Equal(t, ConflictExistingProduct, sess.Rows[1].ConflictType)
	require.Equal(t, RowWarning, sess.Rows[1].Status())

	_, err := env.svc.Stage(ctx, sess.BatchID)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, []int{4}, conflict.Rows)

	_, err = env.svc.Resolve(ctx, sess.BatchID, []RowResolution{{Row: 4, Resolution: ResolutionOverwrite}})
	require.NoError(t, err)
	_, err = env.svc.Stage(ctx, sess.BatchID)
	require.NoError(t, err)
	_, _, err = env.svc.ApplyCategories(ctx, sess.BatchID, ApplyInput{Preset: "Paper"})
	require.NoError(t, err)
	_, err = env.svc.Review(ctx, sess.BatchID)
	require.NoError(t, err)

	result, err := env.svc.Commit(ctx, sess.BatchID, "priya")
	require.NoError(t, err)
	require.Equal(t, 2, result.ProductsWritten)
	require.Equal(t, 1, result.ProductsReplaced)

	written := env.catalog.productsSnapshot()
	require.Len(t, written, 2)
	require.Equal(t, "Ripple Cup 4 Color", written[0].Name)

	rb, err := env.svc.Rollback(ctx, sess.BatchID, "priya")
	require.NoError(t, err)
	require.Equal(t, int64(2), rb.ProductsDeleted)
	require.Equal(t, 1, rb.ProductsReplaced)
	require.Empty(t, env.catalog.productsSnapshot())
}

func TestServiceRollbackOfUncommittedBatchIsNoop(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	env.catalog.addProduct(1, "9999")

	sess := env.prepare(t, paperCupsWorkbook(t))
	rb, err := env.svc.Rollback(ctx, sess.BatchID, "priya")
	require.NoError(t, err)
	require.True(t, rb.Noop)
	require.Equal(t, BatchReviewing, rb.Status)
	require.Zero(t, rb.ProductsDeleted)
	require.Zero(t, rb.ProductsReplaced)
	require.Len(t, env.catalog.productsSnapshot(), 1)
	require.Empty(t, env.audit.actions())

	batch, err := env.repo.GetBatch(ctx, sess.BatchID)
	require.NoError(t, err)
	require.Equal(t, BatchReviewing, batch.Status)
}

func TestServiceOverwriteMatchesSKUIgnoringCase(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	env.catalog.addProduct(1, "box-a1")

	sess := env.upload(t, fixedWorkbook(t, boxRow("BOX-A1", "Box A", "10.00")))
	require.Equal(t, ConflictExistingProduct, sess.Rows[0].ConflictType)

	_, err := env.svc.Resolve(ctx, sess.BatchID, []RowResolution{{Row: 3, Resolution: ResolutionOverwrite}})
	require.NoError(t, err)
	_, err = env.svc.Stage(ctx, sess.BatchID)
	require.NoError(t, err)
	_, _, err = env.svc.ApplyCategories(ctx, sess.BatchID, ApplyInput{Preset: "Paper"})
	require.NoError(t, err)
	_, err = env.svc.Review(ctx, sess.BatchID)
	require.NoError(t, err)

	result, err := env.svc.Commit(ctx, sess.BatchID, "priya")
	require.NoError(t, err)
	require.Equal(t, 1, result.ProductsReplaced)

	written := env.catalog.productsSnapshot()
	require.Len(t, written, 1)
	require.Equal(t, "box-a1", written[0].SKU)
	require.Equal(t, "Box A", written[0].Name)
}

func TestServiceCreateNewKeepsExistingProduct(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	env.catalog.addProduct(1, "8901")

	sess := env.upload(t, paperCupsWorkbook(t))
	_, err := env.svc.Resolve(ctx, sess.BatchID, []RowResolution{{Row: 4, Resolution: ResolutionCreateNew}})
	require.NoError(t, err)
	_, err = env.svc.Stage(ctx, sess.BatchID)
	require.NoError(t, err)
	_, _, err = env.svc.ApplyCategories(ctx, sess.BatchID, ApplyInput{Preset: "Paper"})
	require.NoError(t, err)
	_, err = env.svc.Review(ctx, sess.BatchID)
	require.NoError(t, err)

	_, err = env.svc.Commit(ctx, sess.BatchID, "priya")
	require.NoError(t, err)

	skus := map[string]bool{}
	for _, p := range env.catalog.productsSnapshot() {
		skus[p.SKU] = true
	}
	require.Equal(t, map[string]bool{"8901": true, "8901-NEW": true, "APT-AUTO-0001": true}, skus)
}

func TestServiceCreateNewAvoidsEarlierImportSuffix(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	env.catalog.addProduct(1, "8901")
	env.catalog.addProduct(1, "8901-NEW")

	sess := env.upload(t, paperCupsWorkbook(t))
	sess, err := env.svc.Resolve(ctx, sess.BatchID, []RowResolution{{Row: 4, Resolution: ResolutionCreateNew}})
	require.NoError(t, err)
	require.Equal(t, "8901-NEW2", sess.Rows[1].SKU)

	_, err = env.svc.Stage(ctx, sess.BatchID)
	require.NoError(t, err)
	_, _, err = env.svc.ApplyCategories(ctx, sess.BatchID, ApplyInput{Preset: "Paper"})
	require.NoError(t, err)
	_, err = env.svc.Review(ctx, sess.BatchID)
	require.NoError(t, err)

	result, err := env.svc.Commit(ctx, sess.BatchID, "priya")
	require.NoError(t, err)
	require.Equal(t, 2, result.ProductsWritten)
	require.Len(t, env.catalog.productsSnapshot(), 4)
}

func TestServiceErrorRowsAreNotStaged(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	body := fixedWorkbook(t,
		templateRow(map[sheet.Field]any{
			sheet.FieldSKU: "1001", sheet.FieldName: "Tray", sheet.FieldCategory: "Trays",
			sheet.FieldSellingPrice: 0, sheet.FieldProductClass: "standard",
		}),
		templateRow(map[sheet.Field]any{
			sheet.FieldSKU: "1002", sheet.FieldName: "Plate", sheet.FieldCategory: "Plates",
			sheet.FieldSellingPrice: 4, sheet.FieldProductClass: "standard",
		}),
	)
	sess := env.upload(t, body)
	require.Equal(t, 1, sess.Summary().Error)

	staged, err := env.svc.Stage(ctx, sess.BatchID)
	require.NoError(t, err)
	require.Len(t, staged.Assignments.Items, 1)
	require.Equal(t, "Plates", staged.Assignments.Items[0].CategoryName)

	rows, err := env.repo.ListStagingRows(ctx, sess.BatchID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "1002", rows[0].SKU)
}

func TestServiceNothingToStage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	body := fixedWorkbook(t, templateRow(map[sheet.Field]any{
		sheet.FieldSKU: "1001", sheet.FieldName: "Tray", sheet.FieldCategory: "Trays",
		sheet.FieldSellingPrice: "free", sheet.FieldProductClass: "standard",
	}))
	sess := env.upload(t, body)

	_, err := env.svc.Stage(ctx, sess.BatchID)
	require.ErrorIs(t, err, ErrNothingToCommit)
}

func boxRow(sku, name, price string) []any {
	return templateRow(map[sheet.Field]any{
		sheet.FieldSKU: sku, sheet.FieldName: name, sheet.FieldCategory: "Boxes",
		sheet.FieldUnit: "PCS", sheet.FieldSellingPrice: price, sheet.FieldProductClass: "standard",
	})
}

func TestServiceDuplicateBarcodeSheetStagesNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	sess := env.upload(t, fixedWorkbook(t,
		boxRow("1001", "Box A", "10.00"),
		boxRow("1001", "Box B", "20.00"),
		boxRow("", "", "5.00"),
	))

	require.Len(t, sess.Rows, 3)
	for _, r := range sess.Rows {
		require.Equal(t, RowError, r.Status(), "row %d", r.RowNumber)
	}
	require.Equal(t, ConflictDuplicateInFile, sess.Rows[0].ConflictType)
	require.Equal(t, ConflictDuplicateInFile, sess.Rows[1].ConflictType)
	require.Equal(t, CodeNameRequired, sess.Rows[2].Messages[0].Code)
	require.Zero(t, sess.Summary().Eligible)

	_, err := env.svc.Stage(ctx, sess.BatchID)
	require.ErrorIs(t, err, ErrNothingToCommit)
}

func TestServiceBlankBarcodeGetsAutoSKU(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	env.catalog.maxAuto = 41
	sess := env.upload(t, fixedWorkbook(t,
		boxRow("1001", "Box A", "10.00"),
		boxRow("", "Box B", "20.00"),
	))

	row := sess.Rows[1]
	require.Equal(t, RowValid, row.Status())
	require.True(t, row.IsAutoSKU)
	require.Equal(t, "APT-AUTO-0042", row.SKU)
	require.Equal(t, SeverityInfo, row.Messages[0].Severity)
	require.Equal(t, CodeSKUGenerated, row.Messages[0].Code)

	_, err := env.svc.Stage(ctx, sess.BatchID)
	require.NoError(t, err)
	staged, err := env.repo.ListStagingRows(ctx, sess.BatchID)
	require.NoError(t, err)
	require.Len(t, staged, 2)
}

func TestServiceCommitRequiresReview(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	sess := env.upload(t, paperCupsWorkbook(t))

	_, err := env.svc.Commit(ctx, sess.BatchID, "priya")
	require.ErrorIs(t, err, ErrInvalidStep)
}

func TestServiceCommitLocked(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	sess := env.prepare(t, paperCupsWorkbook(t))

	release, err := env.locker.Acquire(ctx, shared.DivisionImportLockKey(1), 0)
	require.NoError(t, err)

	_, err = env.svc.Commit(ctx, sess.BatchID, "priya")
	require.ErrorIs(t, err, ErrImportLocked)
	require.Empty(t, env.catalog.productsSnapshot())

	require.NoError(t, release(ctx))
	_, err = env.svc.Commit(ctx, sess.BatchID, "priya")
	require.NoError(t, err)
}

func TestServiceChunkFailureLeavesCatalogUntouched(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 1)
	env.catalog.failOnInsert = 2
	sess := env.prepare(t, paperCupsWorkbook(t))

	_, err := env.svc.Commit(ctx, sess.BatchID, "priya")
	var commitErr *CommitError
	require.ErrorAs(t, err, &commitErr)
	require.Equal(t, StepInsertProducts, commitErr.Step)
	require.Contains(t, err.Error(), "chunk 2 (rows 4-4)")
	require.Empty(t, env.catalog.productsSnapshot())

	batch, err := env.svc.Batch(ctx, sess.BatchID)
	require.NoError(t, err)
	require.Equal(t, BatchReviewing, batch.Status)

	// Created categories survive and are reused by the retry.
	_, ok := env.catalog.category("Paper Cups")
	require.True(t, ok)
	reloaded, err := env.svc.Get(ctx, sess.BatchID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.Assignments.Items[0].ExistingCategoryID)

	result, err := env.svc.Commit(ctx, sess.BatchID, "priya")
	require.NoError(t, err)
	require.Equal(t, 0, result.CategoriesCreated)
	require.Equal(t, 2, result.Chunks)
	require.Len(t, env.catalog.productsSnapshot(), 2)
}

func TestServiceCommitRejectsSKUTakenAfterValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	sess := env.prepare(t, paperCupsWorkbook(t))

	env.catalog.addProduct(1, "APT-AUTO-0001")

	_, err := env.svc.Commit(ctx, sess.BatchID, "priya")
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, []int{3}, conflict.Rows)
	require.Equal(t, []string{"APT-AUTO-0001"}, conflict.SKUs)
	require.Len(t, env.catalog.productsSnapshot(), 1)
}

func TestServiceCommitAdoptsConcurrentCategory(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	sess := env.prepare(t, paperCupsWorkbook(t))
	env.catalog.raceCategory = "Paper Cups"

	result, err := env.svc.Commit(ctx, sess.BatchID, "priya")
	require.NoError(t, err)
	require.Equal(t, 0, result.CategoriesCreated)
	require.Equal(t, 1, result.CategoriesAdopted)

	cat, ok := env.catalog.category("paper cups")
	require.True(t, ok)
	require.Equal(t, "4823", cat.HSNCode)
}

func TestServiceExistingCategoryPrefillsTax(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	gst := 12.0
	id := env.catalog.addCategory(1, "PAPER CUPS", "4823", &gst)

	sess := env.upload(t, paperCupsWorkbook(t))
	staged, err := env.svc.Stage(ctx, sess.BatchID)
	require.NoError(t, err)
	a := staged.Assignments.Items[0]
	require.False(t, a.IsNew)
	require.Equal(t, id, *a.ExistingCategoryID)
	require.True(t, a.Complete())

	_, err = env.svc.Review(ctx, sess.BatchID)
	require.NoError(t, err)
}

func TestServiceBackAndRestageKeepsTaxes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	sess := env.prepare(t, paperCupsWorkbook(t))

	_, err := env.svc.Back(ctx, sess.BatchID, StepValidation)
	require.NoError(t, err)
	_, err = env.svc.Resolve(ctx, sess.BatchID, []RowResolution{{Row: 4, Resolution: ResolutionSkip}})
	require.NoError(t, err)

	staged, err := env.svc.Stage(ctx, sess.BatchID)
	require.NoError(t, err)
	require.Equal(t, 1, staged.Assignments.Items[0].ProductCount)
	require.Equal(t, "4823", staged.Assignments.Items[0].HSNCode)

	rows, err := env.repo.ListStagingRows(ctx, sess.BatchID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestServiceUploadIdempotency(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	_, err := env.svc.Upload(ctx, UploadInput{Division: "NOPE", FileName: "a.xlsx", Body: paperCupsWorkbook(t), IdempotencyKey: "k1"})
	require.ErrorIs(t, err, ErrDivisionNotFound)

	_, err = env.svc.Upload(ctx, UploadInput{Division: "APT", FileName: "a.xlsx", Body: paperCupsWorkbook(t), IdempotencyKey: "k1"})
	require.NoError(t, err)

	_, err = env.svc.Upload(ctx, UploadInput{Division: "APT", FileName: "a.xlsx", Body: paperCupsWorkbook(t), IdempotencyKey: "k1"})
	require.ErrorIs(t, err, ErrDuplicateUpload)
}

func TestServiceUploadRejectsUnknownLayout(t *testing.T) {
	env := newTestEnv(t, 0)
	_, err := env.svc.Upload(context.Background(), UploadInput{
		Division: "APT", FileName: "a.xlsx", Layout: "pdf", Body: paperCupsWorkbook(t),
	})
	require.True(t, sheet.IsParseError(err))
}

func TestServiceListBatches(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	first := env.upload(t, paperCupsWorkbook(t))
	second := env.upload(t, paperCupsWorkbook(t))

	batches, page, err := env.svc.ListBatches(ctx, "apt", 1, 1)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, 2, page.TotalPages)
	require.Len(t, batches, 1)
	require.Contains(t, []any{first.BatchID, second.BatchID}, batches[0].ID)

	batches, _, err = env.svc.ListBatches(ctx, "HOSPI", 1, 20)
	require.NoError(t, err)
	require.Empty(t, batches)

	_, _, err = env.svc.ListBatches(ctx, "XYZ", 1, 20)
	require.ErrorIs(t, err, ErrDivisionNotFound)
}

func TestServiceTemplateIsCached(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	first, err := env.svc.Template(ctx, "hospi")
	require.NoError(t, err)
	second, err := env.svc.Template(ctx, "HOSPI")
	require.NoError(t, err)
	require.Same(t, &first[0], &second[0])

	f, err := excelize.OpenReader(bytes.NewReader(first))
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, []string{sheet.PreferredSheet, sheet.InstructionsSheet}, f.GetSheetList())
}

func TestServiceTemplateHonoursContext(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := env.svc.Template(ctx, "APT")
	if err != nil {
		require.True(t, errors.Is(err, context.Canceled))
	}
}

func TestServicePresets(t *testing.T) {
	env := newTestEnv(t, 0)
	p := env.svc.Presets()
	require.Len(t, p.Presets, 3)
	require.Equal(t, []float64{0, 5, 12, 18, 28}, p.GSTRates)
	require.NotEmpty(t, p.HSNCodes)
}
