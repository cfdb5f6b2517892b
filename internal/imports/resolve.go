package imports

import (
	"fmt"
	"strconv"
	"strings"
)

// NewSuffix is appended to the identifier of a create_new row.
const NewSuffix = "-NEW"

// SKUSet holds identifiers by lowercase key.
type SKUSet map[string]struct{}

// NewSKUSet builds a set from skus, ignoring blanks.
func NewSKUSet(skus ...string) SKUSet {
	set := make(SKUSet, len(skus))
	for _, s := range skus {
		set.Add(s)
	}
	return set
}

// Add inserts sku.
func (s SKUSet) Add(sku string) {
	if sku = strings.TrimSpace(sku); sku != "" {
		s[strings.ToLower(sku)] = struct{}{}
	}
}

// Has reports whether sku is in the set, ignoring case.
func (s SKUSet) Has(sku string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(sku))]
	return ok
}

// ApplyResolution sets r on row. Switching from another resolution first
// reverts that resolution's changes. Applying the current resolution again
// changes nothing. taken lists identifiers create_new must not produce; it
// may be nil.
func ApplyResolution(row *ValidatedRow, r Resolution, taken SKUSet) error {
	if !r.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidResolution, r)
	}
	if row.Status() == RowError {
		return fmt.Errorf("row %d: %w", row.RowNumber, ErrRowNotResolvable)
	}
	if row.Resolution == r {
		return nil
	}
	conflicted := row.ConflictType == ConflictExistingProduct || row.Resolution == ResolutionCreateNew
	if r != ResolutionSkip && !conflicted {
		return fmt.Errorf("row %d has no existing product to %s: %w", row.RowNumber, r, ErrRowNotResolvable)
	}

	undoResolution(row)

	switch r {
	case ResolutionSkip:
		row.addMessage(SeverityInfo, "sku", CodeMarkedSkip, "Marked to skip")
	case ResolutionCreateNew:
		row.ConflictSKU = row.SKU
		row.SKU = newSKU(row.SKU, taken)
		row.removeMessages(CodeSKUExists)
		row.ConflictType = ConflictNone
	case ResolutionOverwrite:
	}
	row.Resolution = r
	return nil
}

// newSKU appends NewSuffix to sku, numbering it from 2 when the plain
// suffix is already taken.
func newSKU(sku string, taken SKUSet) string {
	candidate := sku + NewSuffix
	for n := 2; taken.Has(candidate); n++ {
		candidate = sku + NewSuffix + strconv.Itoa(n)
	}
	return candidate
}

func undoResolution(row *ValidatedRow) {
	switch row.Resolution {
	case ResolutionSkip:
		row.removeMessages(CodeMarkedSkip)
	case ResolutionCreateNew:
		if row.ConflictSKU != "" {
			row.SKU = row.ConflictSKU
			row.ConflictSKU = ""
		}
		if !row.hasMessage(CodeSKUExists) {
			row.addMessage(SeverityWarning, "sku", CodeSKUExists, existsMessage(row.SKU))
		}
		if row.ConflictType == ConflictNone {
			row.ConflictType = ConflictExistingProduct
		}
	}
	row.Resolution = ResolutionNone
}

// Unresolved returns the row numbers still waiting for a resolution.
func Unresolved(rows []ValidatedRow) []int {
	var out []int
	for _, r := range rows {
		if r.NeedsResolution() {
			out = append(out, r.RowNumber)
		}
	}
	return out
}
