package imports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Step is a wizard position.
type Step int

const (
	StepUpload Step = iota + 1
	StepValidation
	StepCategories
	StepReview
	StepDone
)

var stepNames = map[Step]string{
	StepUpload:     "upload",
	StepValidation: "validation",
	StepCategories: "categories",
	StepReview:     "review",
	StepDone:       "done",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// ImportSession is the state of one wizard run. Rows and assignments are
// owned by the session; every stage works through its methods.
type ImportSession struct {
	BatchID      uuid.UUID      `json:"batch_id"`
	DivisionID   int64          `json:"division_id"`
	DivisionCode string         `json:"division_code"`
	FileName     string         `json:"file_name"`
	Layout       string         `json:"layout"`
	Step         Step           `json:"step"`
	Rows         []ValidatedRow `json:"rows"`
	Assignments  *Assignments   `json:"assignments,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (s *ImportSession) require(steps ...Step) error {
	for _, st := range steps {
		if s.Step == st {
			return nil
		}
	}
	return fmt.Errorf("%w: session is at %s", ErrInvalidStep, s.Step)
}

// Summary counts the session rows.
func (s *ImportSession) Summary() Summary { return Summarize(s.Rows) }

// Row returns the row with the given source row number.
func (s *ImportSession) Row(number int) (*ValidatedRow, error) {
	for i := range s.Rows {
		if s.Rows[i].RowNumber == number {
			return &s.Rows[i], nil
		}
	}
	return nil, fmt.Errorf("row %d: %w", number, ErrRowNotFound)
}

// EligibleRows returns copies of rows that will be staged.
func (s *ImportSession) EligibleRows() []ValidatedRow {
	var out []ValidatedRow
	for _, r := range s.Rows {
		if r.Eligible() {
			out = append(out, r)
		}
	}
	return out
}

// Resolve applies a resolution to one row during validation. catalog holds
// the division's SKUs; create_new avoids them and every other row's SKU.
func (s *ImportSession) Resolve(rowNumber int, r Resolution, catalog SKUSet) error {
	if err := s.require(StepValidation); err != nil {
		return err
	}
	row, err := s.Row(rowNumber)
	if err != nil {
		return err
	}
	var taken SKUSet
	if r == ResolutionCreateNew {
		taken = s.takenSKUs(rowNumber, catalog)
	}
	return ApplyResolution(row, r, taken)
}

func (s *ImportSession) takenSKUs(except int, catalog SKUSet) SKUSet {
	taken := make(SKUSet, len(catalog)+len(s.Rows))
	for k := range catalog {
		taken[k] = struct{}{}
	}
	for _, r := range s.Rows {
		if r.RowNumber != except {
			taken.Add(r.SKU)
		}
	}
	return taken
}

// AdvanceToCategories leaves validation. Every existing-product conflict
// must be resolved and at least one row must remain eligible.
func (s *ImportSession) AdvanceToCategories(ctx context.Context, lookup CategoryLookup) error {
	if err := s.require(StepValidation); err != nil {
		return err
	}
	if pending := Unresolved(s.Rows); len(pending) > 0 {
		return &ConflictError{Reason: "existing products need a resolution", Rows: pending}
	}
	if len(s.EligibleRows()) == 0 {
		return ErrNothingToCommit
	}
	next, err := BuildAssignments(ctx, s.Rows, s.DivisionID, lookup)
	if err != nil {
		return err
	}
	next.CarryOver(s.Assignments)
	s.Assignments = next
	s.Step = StepCategories
	return nil
}

// SetTax edits one category during the categories step.
func (s *ImportSession) SetTax(name, hsn string, gst *float64) error {
	if err := s.require(StepCategories); err != nil {
		return err
	}
	return s.Assignments.SetTax(name, hsn, gst)
}

// ApplyToUnfilled quick-applies a tax pair during the categories step.
func (s *ImportSession) ApplyToUnfilled(hsn string, gst *float64) (int, error) {
	if err := s.require(StepCategories); err != nil {
		return 0, err
	}
	return s.Assignments.ApplyToUnfilled(hsn, gst)
}

// ApplyPreset quick-applies a named preset during the categories step.
func (s *ImportSession) ApplyPreset(name string) (int, error) {
	if err := s.require(StepCategories); err != nil {
		return 0, err
	}
	return s.Assignments.ApplyPreset(name)
}

// AdvanceToReview enforces the category gate.
func (s *ImportSession) AdvanceToReview() error {
	if err := s.require(StepCategories); err != nil {
		return err
	}
	if err := s.Assignments.CheckComplete(); err != nil {
		return err
	}
	s.Step = StepReview
	return nil
}

// Back returns to an earlier step. A finished session cannot go back.
func (s *ImportSession) Back(to Step) error {
	if s.Step == StepDone {
		return ErrAlreadyCommitted
	}
	if to < StepUpload || to > StepReview || to >= s.Step {
		return fmt.Errorf("%w: cannot go back from %s to %s", ErrInvalidStep, s.Step, to)
	}
	s.Step = to
	return nil
}

// MarkDone records a successful commit.
func (s *ImportSession) MarkDone() error {
	if err := s.require(StepReview); err != nil {
		return err
	}
	s.Step = StepDone
	return nil
}
