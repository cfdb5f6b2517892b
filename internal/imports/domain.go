// Package imports implements the product price-list import wizard: reading,
// normalization, validation, conflict resolution, tax assignment, and the
// reversible commit into the catalog.
package imports

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Severity grades a ValidationMessage.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Message codes. The resolver removes messages by code.
const (
	CodeNameRequired          = "name_required"
	CodeCategoryRequired      = "category_required"
	CodeUnitRequired          = "unit_required"
	CodeSellingPriceInvalid   = "selling_price_invalid"
	CodeProductClassRequired  = "product_class_required"
	CodeSKUGenerated          = "sku_generated"
	CodeUnitInvalid           = "unit_invalid"
	CodeProductClassInvalid   = "product_class_invalid"
	CodeStockTypeInvalid      = "stock_type_invalid"
	CodeListPriceBelowSelling = "list_price_below_selling"
	CodeSKUDuplicateInFile    = "sku_duplicate_in_file"
	CodeSKUExists             = "sku_exists"
	CodeMarkedSkip            = "marked_skip"
)

// ValidationMessage is one diagnostic attached to a row.
type ValidationMessage struct {
	Severity Severity `json:"severity"`
	Field    string   `json:"field"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
}

// RowStatus is derived from a row's messages.
type RowStatus string

const (
	RowValid   RowStatus = "valid"
	RowWarning RowStatus = "warning"
	RowError   RowStatus = "error"
)

// StatusOf folds messages into a status: error beats warning beats valid.
func StatusOf(messages []ValidationMessage) RowStatus {
	status := RowValid
	for _, m := range messages {
		switch m.Severity {
		case SeverityError:
			return RowError
		case SeverityWarning:
			status = RowWarning
		}
	}
	return status
}

// ConflictType classifies an identifier conflict.
type ConflictType string

const (
	ConflictNone            ConflictType = ""
	ConflictDuplicateInFile ConflictType = "duplicate_in_file"
	ConflictExistingProduct ConflictType = "existing_product"
)

// Resolution is the user's answer to an existing-product conflict.
type Resolution string

const (
	ResolutionNone      Resolution = ""
	ResolutionSkip      Resolution = "skip"
	ResolutionOverwrite Resolution = "overwrite"
	ResolutionCreateNew Resolution = "create_new"
)

// Valid reports whether r is a known resolution.
func (r Resolution) Valid() bool {
	switch r {
	case ResolutionSkip, ResolutionOverwrite, ResolutionCreateNew:
		return true
	}
	return false
}

// ParsedRow is the normalized projection of one product row. SKU is empty
// when the sheet supplied no identifier.
type ParsedRow struct {
	RowNumber      int                 `json:"row_number"`
	SKU            string              `json:"sku,omitempty"`
	Barcode        *string             `json:"barcode,omitempty"`
	Name           string              `json:"name"`
	CategoryName   string              `json:"category_name"`
	Specifications string              `json:"specifications,omitempty"`
	Unit           string              `json:"unit"`
	SellingPrice   decimal.Decimal     `json:"selling_price"`
	ListPrice      decimal.NullDecimal `json:"list_price"`
	ProductClass   string              `json:"product_class"`
	Customizable   bool                `json:"customizable"`
	PrintType      *string             `json:"print_type,omitempty"`
	MOQ            *int                `json:"moq,omitempty"`
	SleeveQty      *int                `json:"sleeve_qty,omitempty"`
	BoxQty         *int                `json:"box_qty,omitempty"`
	StockType      string              `json:"stock_type"`
	WarehouseZone  string              `json:"warehouse_zone,omitempty"`
	Remarks        string              `json:"remarks,omitempty"`
	Raw            map[string]string   `json:"raw,omitempty"`
}

// ValidatedRow is a ParsedRow with its diagnostics and conflict state.
type ValidatedRow struct {
	ParsedRow
	Messages     []ValidationMessage `json:"messages"`
	ConflictType ConflictType        `json:"conflict_type,omitempty"`
	IsAutoSKU    bool                `json:"is_auto_sku"`
	Resolution   Resolution          `json:"resolution,omitempty"`
	// ConflictSKU keeps the sheet identifier while create_new is applied.
	ConflictSKU string `json:"conflict_sku,omitempty"`
}

// Status is computed from Messages on every call.
func (r ValidatedRow) Status() RowStatus { return StatusOf(r.Messages) }

// Eligible reports whether the row may be staged and committed.
func (r ValidatedRow) Eligible() bool {
	return r.Status() != RowError && r.Resolution != ResolutionSkip
}

// NeedsResolution reports whether the row blocks staging until resolved.
func (r ValidatedRow) NeedsResolution() bool {
	return r.ConflictType == ConflictExistingProduct && r.Resolution == ResolutionNone && r.Status() != RowError
}

// Notes joins the row messages for import_notes.
func (r ValidatedRow) Notes() string {
	parts := make([]string, len(r.Messages))
	for i, m := range r.Messages {
		parts[i] = m.Message
	}
	return strings.Join(parts, "; ")
}

func (r *ValidatedRow) addMessage(sev Severity, field, code, text string) {
	r.Messages = append(r.Messages, ValidationMessage{Severity: sev, Field: field, Code: code, Message: text})
}

func (r *ValidatedRow) removeMessages(code string) {
	kept := make([]ValidationMessage, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.Code != code {
			kept = append(kept, m)
		}
	}
	r.Messages = kept
}

func (r ValidatedRow) hasMessage(code string) bool {
	for _, m := range r.Messages {
		if m.Code == code {
			return true
		}
	}
	return false
}

// BatchStatus is the persisted lifecycle of an import batch.
type BatchStatus string

const (
	BatchParsing    BatchStatus = "parsing"
	BatchValidating BatchStatus = "validating"
	BatchReviewing  BatchStatus = "reviewing"
	BatchCommitted  BatchStatus = "committed"
	BatchRolledBack BatchStatus = "rolled_back"
)

var batchNext = map[BatchStatus]BatchStatus{
	BatchParsing:    BatchValidating,
	BatchValidating: BatchReviewing,
	BatchReviewing:  BatchCommitted,
	BatchCommitted:  BatchRolledBack,
}

// CanTransition reports whether a batch in s may be written as next.
// Writing the current status again is allowed and has no effect.
func (s BatchStatus) CanTransition(next BatchStatus) bool {
	if s == next {
		return true
	}
	return batchNext[s] == next
}

// Previous returns the only status that may advance to s.
func (s BatchStatus) Previous() (BatchStatus, bool) {
	for from, to := range batchNext {
		if to == s {
			return from, true
		}
	}
	return "", false
}

// ImportBatch is the durable audit record of one import attempt.
type ImportBatch struct {
	ID           uuid.UUID   `json:"id"`
	DivisionID   int64       `json:"division_id"`
	DivisionCode string      `json:"division_code,omitempty"`
	FileName     string      `json:"file_name"`
	Layout       string      `json:"layout"`
	TotalRows    int         `json:"total_rows"`
	ValidCount   int         `json:"valid_count"`
	WarningCount int         `json:"warning_count"`
	ErrorCount   int         `json:"error_count"`
	Status       BatchStatus `json:"status"`
	UploadedBy   string      `json:"uploaded_by"`
	UploadedAt   time.Time   `json:"uploaded_at"`
	CommittedAt  *time.Time  `json:"committed_at,omitempty"`
	CommittedBy  *string     `json:"committed_by,omitempty"`
}

// StagingRow is the persisted form of an eligible ValidatedRow.
type StagingRow struct {
	BatchID uuid.UUID `json:"batch_id"`
	ValidatedRow
	AssignedCategoryID *int64   `json:"assigned_category_id,omitempty"`
	AssignedHSN        string   `json:"assigned_hsn,omitempty"`
	AssignedGSTPercent *float64 `json:"assigned_gst_percent,omitempty"`
	IsCommitted        bool     `json:"is_committed"`
	CommittedProductID *int64   `json:"committed_product_id,omitempty"`
}

// Summary counts rows of a session.
type Summary struct {
	Total     int `json:"total"`
	Valid     int `json:"valid"`
	Warning   int `json:"warning"`
	Error     int `json:"error"`
	Skipped   int `json:"skipped"`
	AutoSKU   int `json:"auto_sku"`
	Conflicts int `json:"conflicts"`
	Eligible  int `json:"eligible"`
}

// Summarize counts rows by status and conflict state.
func Summarize(rows []ValidatedRow) Summary {
	s := Summary{Total: len(rows)}
	for _, r := range rows {
		switch r.Status() {
		case RowError:
			s.Error++
		case RowWarning:
			s.Warning++
		default:
			s.Valid++
		}
		if r.Resolution == ResolutionSkip {
			s.Skipped++
		}
		if r.IsAutoSKU {
			s.AutoSKU++
		}
		if r.NeedsResolution() {
			s.Conflicts++
		}
		if r.Eligible() {
			s.Eligible++
		}
	}
	return s
}
