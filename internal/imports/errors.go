package imports

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/equinox-erp/equinox/internal/imports/sheet"
)

var (
	ErrSessionNotFound      = errors.New("imports: session not found")
	ErrBatchNotFound        = errors.New("imports: batch not found")
	ErrDivisionNotFound     = errors.New("imports: division not found")
	ErrInvalidStep          = errors.New("imports: operation not allowed at the current step")
	ErrCategoriesIncomplete = errors.New("imports: categories missing HSN code or GST rate")
	ErrAlreadyCommitted     = errors.New("imports: batch already committed")
	ErrInvalidTransition    = errors.New("imports: invalid batch status transition")
	ErrRowNotFound          = errors.New("imports: row not found")
	ErrRowNotResolvable     = errors.New("imports: row cannot be resolved")
	ErrInvalidResolution    = errors.New("imports: unknown resolution")
	ErrUnknownCategory      = errors.New("imports: category not part of this import")
	ErrNothingToCommit      = errors.New("imports: no eligible rows")
	ErrImportLocked         = errors.New("imports: another import is committing into this division")
	ErrJobQueued            = errors.New("imports: job already queued for this batch")
	ErrDuplicateUpload      = errors.New("imports: upload already processed")
)

// ParseError is returned when the uploaded workbook cannot be read.
type ParseError = sheet.ParseError

// ConflictError lists rows that need user action before the pipeline can
// continue.
type ConflictError struct {
	Reason string
	Rows   []int
	SKUs   []string
}

func (e *ConflictError) Error() string {
	nums := make([]string, len(e.Rows))
	for i, n := range e.Rows {
		nums[i] = strconv.Itoa(n)
	}
	return fmt.Sprintf("imports: %s (rows %s)", e.Reason, strings.Join(nums, ", "))
}

// Commit steps reported by CommitError.
const (
	StepCreateCategories = "create_categories"
	StepUpdateCategories = "update_categories"
	StepLoadStaging      = "load_staging"
	StepInsertProducts   = "insert_products"
	StepMarkStaging      = "mark_staging"
	StepMarkBatch        = "mark_batch"
)

// CommitError reports the commit step that failed. Nothing from the
// transactional steps is left behind; categories created before the failure
// remain.
type CommitError struct {
	Step string
	Err  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("imports: commit failed at %s: %v", e.Step, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// RollbackError reports a failed rollback. The batch stays committed.
type RollbackError struct {
	Err error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("imports: rollback failed: %v", e.Err)
}

func (e *RollbackError) Unwrap() error { return e.Err }

// IncompleteError names the categories that block the review step.
type IncompleteError struct {
	Categories []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCategoriesIncomplete, strings.Join(e.Categories, ", "))
}

func (e *IncompleteError) Unwrap() error { return ErrCategoriesIncomplete }
