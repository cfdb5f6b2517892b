package imports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/equinox-erp/equinox/internal/masterdata/categories"
	mdshared "github.com/equinox-erp/equinox/internal/masterdata/shared"
	"github.com/equinox-erp/equinox/internal/masterdata/taxes"
)

// CategoryAssignment carries the tax classification of one category of the
// import.
type CategoryAssignment struct {
	CategoryName       string   `json:"category_name"`
	ProductCount       int      `json:"product_count"`
	ExistingCategoryID *int64   `json:"existing_category_id,omitempty"`
	HSNCode            string   `json:"hsn_code"`
	GSTPercent         *float64 `json:"gst_percent"`
	IsNew              bool     `json:"is_new"`
}

// Complete reports whether both the HSN code and the GST rate are set.
func (a CategoryAssignment) Complete() bool {
	return strings.TrimSpace(a.HSNCode) != "" && a.GSTPercent != nil
}

// CategoryLookup finds an existing category by case-insensitive name. A
// missing category is reported with masterdata shared.ErrNotFound.
type CategoryLookup interface {
	FindCategoryByName(ctx context.Context, divisionID int64, name string) (categories.Category, error)
}

// Assignments is the ordered set of category assignments of a session.
type Assignments struct {
	Items []CategoryAssignment `json:"items"`
}

func foldKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// BuildAssignments groups eligible rows by category in order of first
// appearance and pre-fills assignments from matching catalog categories.
func BuildAssignments(ctx context.Context, rows []ValidatedRow, divisionID int64, lookup CategoryLookup) (*Assignments, error) {
	out := &Assignments{}
	index := make(map[string]int)
	for _, row := range rows {
		if !row.Eligible() {
			continue
		}
		key := foldKey(row.CategoryName)
		if i, ok := index[key]; ok {
			out.Items[i].ProductCount++
			continue
		}
		index[key] = len(out.Items)
		out.Items = append(out.Items, CategoryAssignment{CategoryName: row.CategoryName, ProductCount: 1, IsNew: true})
	}

	for i := range out.Items {
		a := &out.Items[i]
		existing, err := lookup.FindCategoryByName(ctx, divisionID, a.CategoryName)
		if errors.Is(err, mdshared.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("imports: find category %q: %w", a.CategoryName, err)
		}
		id := existing.ID
		a.ExistingCategoryID = &id
		a.IsNew = false
		a.HSNCode = existing.HSNCode
		if existing.GSTPercent != nil {
			gst := *existing.GSTPercent
			a.GSTPercent = &gst
		}
	}
	return out, nil
}

// CarryOver copies tax values entered in prev into assignments that are
// still blank, so stepping back and re-staging keeps the user's work.
func (a *Assignments) CarryOver(prev *Assignments) {
	if a == nil || prev == nil {
		return
	}
	for i := range a.Items {
		old := prev.find(a.Items[i].CategoryName)
		if old == nil {
			continue
		}
		if a.Items[i].HSNCode == "" {
			a.Items[i].HSNCode = old.HSNCode
		}
		if a.Items[i].GSTPercent == nil && old.GSTPercent != nil {
			gst := *old.GSTPercent
			a.Items[i].GSTPercent = &gst
		}
	}
}

func (a *Assignments) find(name string) *CategoryAssignment {
	key := foldKey(name)
	for i := range a.Items {
		if foldKey(a.Items[i].CategoryName) == key {
			return &a.Items[i]
		}
	}
	return nil
}

// Lookup returns the assignment for a category name, ignoring case.
func (a *Assignments) Lookup(name string) (CategoryAssignment, bool) {
	if a == nil {
		return CategoryAssignment{}, false
	}
	if found := a.find(name); found != nil {
		return *found, true
	}
	return CategoryAssignment{}, false
}

// SetTax overwrites the HSN code and GST rate of one category.
func (a *Assignments) SetTax(name, hsn string, gst *float64) error {
	hsn = strings.TrimSpace(hsn)
	if err := validateTax(hsn, gst); err != nil {
		return err
	}
	target := a.find(name)
	if target == nil {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	target.HSNCode = hsn
	target.GSTPercent = copyRate(gst)
	return nil
}

// ApplyToUnfilled sets hsn and gst on every category where that field is
// still blank. It returns the number of categories changed.
func (a *Assignments) ApplyToUnfilled(hsn string, gst *float64) (int, error) {
	hsn = strings.TrimSpace(hsn)
	if err := validateTax(hsn, gst); err != nil {
		return 0, err
	}
	changed := 0
	for i := range a.Items {
		item := &a.Items[i]
		touched := false
		if hsn != "" && item.HSNCode == "" {
			item.HSNCode = hsn
			touched = true
		}
		if gst != nil && item.GSTPercent == nil {
			item.GSTPercent = copyRate(gst)
			touched = true
		}
		if touched {
			changed++
		}
	}
	return changed, nil
}

// ApplyPreset applies a named tax preset to every unfilled category.
func (a *Assignments) ApplyPreset(name string) (int, error) {
	preset, err := taxes.FindPreset(name)
	if err != nil {
		return 0, err
	}
	gst := preset.GSTPercent
	return a.ApplyToUnfilled(preset.HSNCode, &gst)
}

// CheckComplete returns an *IncompleteError naming every category that
// lacks an HSN code or a GST rate.
func (a *Assignments) CheckComplete() error {
	if a == nil {
		return ErrCategoriesIncomplete
	}
	var missing []string
	for _, item := range a.Items {
		if !item.Complete() {
			missing = append(missing, item.CategoryName)
		}
	}
	if len(missing) > 0 {
		return &IncompleteError{Categories: missing}
	}
	return nil
}

func validateTax(hsn string, gst *float64) error {
	if hsn != "" {
		if err := taxes.ValidateHSN(hsn); err != nil {
			return err
		}
	}
	if gst != nil {
		if err := taxes.ValidateRate(*gst); err != nil {
			return err
		}
	}
	return nil
}

func copyRate(gst *float64) *float64 {
	if gst == nil {
		return nil
	}
	v := *gst
	return &v
}
