package imports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/equinox-erp/equinox/internal/masterdata/categories"
	"github.com/equinox-erp/equinox/internal/masterdata/divisions"
	"github.com/equinox-erp/equinox/internal/masterdata/products"
	mdshared "github.com/equinox-erp/equinox/internal/masterdata/shared"
	"github.com/equinox-erp/equinox/internal/shared"
)

var errUniqueSKU = errors.New("duplicate key value violates unique constraint \"products_division_sku_key\"")

type memoryCatalog struct {
	mu           sync.Mutex
	divisions    map[string]divisions.Division
	categories   []categories.Category
	products     []products.Product
	nextCategory int64
	nextProduct  int64
	maxAuto      int

	insertCalls  int
	failOnInsert int
	// raceCategory is created by "another session" right before CreateCategory.
	raceCategory string
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		divisions: map[string]divisions.Division{
			"APT":   {ID: 1, Code: "APT", Name: "Apt Packaging", IsActive: true},
			"HOSPI": {ID: 2, Code: "HOSPI", Name: "Hospitality", IsActive: true},
		},
	}
}

func (c *memoryCatalog) addProduct(divisionID int64, sku string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextProduct++
	c.products = append(c.products, products.Product{ID: c.nextProduct, DivisionID: divisionID, SKU: sku, Name: sku})
}

func (c *memoryCatalog) addCategory(divisionID int64, name, hsn string, gst *float64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertCategoryLocked(categories.Category{DivisionID: divisionID, Name: name, HSNCode: hsn, GSTPercent: gst, IsActive: true})
}

func (c *memoryCatalog) insertCategoryLocked(cat categories.Category) int64 {
	c.nextCategory++
	cat.ID = c.nextCategory
	c.categories = append(c.categories, cat)
	return cat.ID
}

func (c *memoryCatalog) productsSnapshot() []products.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]products.Product(nil), c.products...)
}

func (c *memoryCatalog) restoreProducts(p []products.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = p
}

func (c *memoryCatalog) category(name string) (categories.Category, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cat := range c.categories {
		if strings.EqualFold(cat.Name, name) {
			return cat, true
		}
	}
	return categories.Category{}, false
}

func (c *memoryCatalog) FindDivisionByCode(_ context.Context, code string) (divisions.Division, error) {
	d, ok := c.divisions[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return divisions.Division{}, fmt.Errorf("%w: %s", ErrDivisionNotFound, code)
	}
	return d, nil
}

func (c *memoryCatalog) ListExistingSKUs(_ context.Context, divisionID int64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, p := range c.products {
		if p.DivisionID == divisionID {
			out = append(out, p.SKU)
		}
	}
	return out, nil
}

func (c *memoryCatalog) MaxAutoSKUSequence(context.Context, int64) (int, error) {
	return c.maxAuto, nil
}

func (c *memoryCatalog) FindCategoryByName(_ context.Context, divisionID int64, name string) (categories.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cat := range c.categories {
		if cat.DivisionID == divisionID && strings.EqualFold(cat.Name, name) {
			return cat, nil
		}
	}
	return categories.Category{}, mdshared.ErrNotFound
}

func (c *memoryCatalog) CreateCategory(_ context.Context, cat categories.Category) (categories.Category, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.raceCategory != "" && strings.EqualFold(c.raceCategory, cat.Name) {
		c.insertCategoryLocked(categories.Category{DivisionID: cat.DivisionID, Name: cat.Name, IsActive: true})
		c.raceCategory = ""
	}
	for _, existing := range c.categories {
		if existing.DivisionID == cat.DivisionID && strings.EqualFold(existing.Name, cat.Name) {
			return existing, false, nil
		}
	}
	cat.ID = c.insertCategoryLocked(cat)
	return cat, true, nil
}

func (c *memoryCatalog) UpdateCategoryTax(_ context.Context, id int64, hsn string, gst *float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.categories {
		if c.categories[i].ID == id {
			c.categories[i].HSNCode = hsn
			c.categories[i].GSTPercent = copyRate(gst)
			return nil
		}
	}
	return mdshared.ErrNotFound
}

func (c *memoryCatalog) InsertProducts(_ context.Context, batch []products.Product) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertCalls++
	if c.failOnInsert > 0 && c.insertCalls == c.failOnInsert {
		return nil, errors.New("connection reset by peer")
	}
	ids := make([]int64, 0, len(batch))
	for _, p := range batch {
		idx := -1
		for i, existing := range c.products {
			if existing.DivisionID == p.DivisionID && strings.EqualFold(existing.SKU, p.SKU) {
				idx = i
				break
			}
		}
		if idx >= 0 && !p.ReplaceExisting {
			return nil, errUniqueSKU
		}
		c.nextProduct++
		p.ID = c.nextProduct
		if idx >= 0 {
			// The stored SKU spelling survives an upsert.
			p.SKU = c.products[idx].SKU
			c.products[idx] = p
		} else {
			c.products = append(c.products, p)
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (c *memoryCatalog) DeleteProductsByImportBatch(_ context.Context, batchID uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.products[:0:0]
	var deleted int64
	for _, p := range c.products {
		if p.ImportBatchID != nil && *p.ImportBatchID == batchID {
			deleted++
			continue
		}
		kept = append(kept, p)
	}
	c.products = kept
	return deleted, nil
}

type memoryRepo struct {
	mu      sync.Mutex
	catalog *memoryCatalog
	batches map[uuid.UUID]ImportBatch
	staging map[uuid.UUID][]StagingRow
}

func newMemoryRepo(catalog *memoryCatalog) *memoryRepo {
	return &memoryRepo{
		catalog: catalog,
		batches: make(map[uuid.UUID]ImportBatch),
		staging: make(map[uuid.UUID][]StagingRow),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	batches := make(map[uuid.UUID]ImportBatch, len(r.batches))
	for k, v := range r.batches {
		batches[k] = v
	}
	staging := make(map[uuid.UUID][]StagingRow, len(r.staging))
	for k, v := range r.staging {
		staging[k] = append([]StagingRow(nil), v...)
	}
	r.mu.Unlock()
	productsBefore := r.catalog.productsSnapshot()

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.mu.Lock()
		r.batches, r.staging = batches, staging
		r.mu.Unlock()
		r.catalog.restoreProducts(productsBefore)
		return err
	}
	return nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) InsertProducts(ctx context.Context, batch []products.Product) ([]int64, error) {
	return t.repo.catalog.InsertProducts(ctx, batch)
}

func (t *memoryTx) DeleteProductsByImportBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	return t.repo.catalog.DeleteProductsByImportBatch(ctx, batchID)
}

func (t *memoryTx) UpdateBatchStatus(ctx context.Context, id uuid.UUID, status BatchStatus, at *time.Time, by string) error {
	return t.repo.UpdateBatchStatus(ctx, id, status, at, by)
}

func (t *memoryTx) MarkStagingCommitted(ctx context.Context, batchID uuid.UUID) (int64, error) {
	return t.repo.MarkStagingCommitted(ctx, batchID)
}

func (t *memoryTx) ResetStagingCommitted(ctx context.Context, batchID uuid.UUID) (int64, error) {
	return t.repo.ResetStagingCommitted(ctx, batchID)
}

func (r *memoryRepo) CreateBatch(_ context.Context, b ImportBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batches[b.ID]; ok {
		return errors.New("duplicate batch")
	}
	r.batches[b.ID] = b
	return nil
}

func (r *memoryRepo) UpdateBatchStatus(_ context.Context, id uuid.UUID, status BatchStatus, at *time.Time, by string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return ErrBatchNotFound
	}
	if !b.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, b.Status, status)
	}
	b.Status = status
	if at != nil {
		t := *at
		b.CommittedAt = &t
	}
	if by != "" {
		b.CommittedBy = &by
	}
	r.batches[id] = b
	return nil
}

func (r *memoryRepo) UpdateBatchCounts(_ context.Context, id uuid.UUID, sum Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return ErrBatchNotFound
	}
	b.TotalRows, b.ValidCount, b.WarningCount, b.ErrorCount = sum.Total, sum.Valid, sum.Warning, sum.Error
	r.batches[id] = b
	return nil
}

func (r *memoryRepo) InsertStagingRows(_ context.Context, batchID uuid.UUID, rows []StagingRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staging[batchID] = append([]StagingRow(nil), rows...)
	return nil
}

func (r *memoryRepo) UpdateStagingAssignments(_ context.Context, batchID uuid.UUID, assignments []CategoryAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.staging[batchID]
	for _, a := range assignments {
		for i := range rows {
			if strings.EqualFold(rows[i].CategoryName, a.CategoryName) {
				rows[i].AssignedCategoryID = a.ExistingCategoryID
				rows[i].AssignedHSN = a.HSNCode
				rows[i].AssignedGSTPercent = copyRate(a.GSTPercent)
			}
		}
	}
	return nil
}

func (r *memoryRepo) MarkStagingCommitted(_ context.Context, batchID uuid.UUID) (int64, error) {
	all := r.catalog.productsSnapshot()
	r.mu.Lock()
	defer r.mu.Unlock()
	var linked int64
	rows := r.staging[batchID]
	for i := range rows {
		for _, p := range all {
			if p.ImportBatchID != nil && *p.ImportBatchID == batchID && p.SourceRowNumber == rows[i].RowNumber {
				id := p.ID
				rows[i].IsCommitted = true
				rows[i].CommittedProductID = &id
				linked++
			}
		}
	}
	return linked, nil
}

func (r *memoryRepo) ResetStagingCommitted(_ context.Context, batchID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var reset int64
	rows := r.staging[batchID]
	for i := range rows {
		if rows[i].IsCommitted {
			rows[i].IsCommitted = false
			rows[i].CommittedProductID = nil
			reset++
		}
	}
	return reset, nil
}

func (r *memoryRepo) GetBatch(_ context.Context, id uuid.UUID) (ImportBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return ImportBatch{}, ErrBatchNotFound
	}
	return b, nil
}

func (r *memoryRepo) ListBatches(_ context.Context, divisionID int64, limit, offset int) (BatchPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []ImportBatch
	for _, b := range r.batches {
		if divisionID == 0 || b.DivisionID == divisionID {
			all = append(all, b)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UploadedAt.After(all[j].UploadedAt) })
	page := BatchPage{Total: len(all)}
	if offset < len(all) {
		page.Batches = all[offset:min(offset+limit, len(all))]
	}
	return page, nil
}

func (r *memoryRepo) ListStagingRows(_ context.Context, batchID uuid.UUID) ([]StagingRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StagingRow(nil), r.staging[batchID]...), nil
}

// memorySessions round-trips through JSON like the redis store.
type memorySessions struct {
	mu   sync.Mutex
	data map[uuid.UUID][]byte
}

func newMemorySessions() *memorySessions {
	return &memorySessions{data: make(map[uuid.UUID][]byte)}
}

func (s *memorySessions) Save(_ context.Context, sess *ImportSession) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sess.BatchID] = payload
	return nil
}

func (s *memorySessions) Load(_ context.Context, id uuid.UUID) (*ImportSession, error) {
	s.mu.Lock()
	payload, ok := s.data[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	var sess ImportSession
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *memorySessions) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

type memoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{held: make(map[string]bool)}
}

func (l *memoryLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, shared.ErrLockHeld
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}

func (l *memoryLocker) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[key]
}

type memoryAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *memoryAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.logs))
	for i, l := range a.logs {
		out[i] = l.Action
	}
	return out
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: make(map[string]bool)}
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[module+"/"+key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[module+"/"+key] = true
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, module+"/"+key)
	return nil
}
