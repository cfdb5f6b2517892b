package sheet

import (
	"errors"
	"fmt"
	"strings"
)

// Layout locates the header and column mapping of a sheet.
type Layout interface {
	Name() string
	// Locate inspects the raw grid and returns where data begins.
	Locate(grid [][]string) (Frame, error)
	// Verify rejects sheets whose rows cannot be imported at all.
	Verify(s *Sheet) error
}

// Frame is the result of Locate. Indexes are 0-based.
type Frame struct {
	HeaderRow int
	DataStart int
	Columns   ColumnMap
}

// Layout names accepted by ParseLayout.
const (
	LayoutFixed     = "fixed"
	LayoutHeuristic = "heuristic"
)

// ParseLayout returns the layout registered under name. Heuristic layouts use
// the alias table of division.
func ParseLayout(name, division string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case LayoutFixed, "template", "":
		return FixedTemplate{}, nil
	case LayoutHeuristic, "auto", "freeform":
		return NewHeuristicHeaders(division), nil
	default:
		return nil, fmt.Errorf("sheet: unknown layout %q", name)
	}
}

// Column describes one positional column of the fixed template.
type Column struct {
	Field       Field
	Header      string
	Description string
	Required    bool
	Width       float64
}

// FixedColumns is the column order of the downloadable template. The fixed
// reader addresses cells purely by these positions.
var FixedColumns = []Column{
	{FieldSKU, "Barcode / SKU", "Product identifier. Leave blank to auto-generate", false, 18},
	{FieldName, "Product Name", "Product name", true, 36},
	{FieldCategory, "Category", "Category name (created on import when new)", true, 22},
	{FieldSpecifications, "Specifications", "Weight, GSM, micron or size", false, 20},
	{FieldUnit, "Unit", "PCS, KG, BOX, SET, PAIR, METER or ROLL", true, 10},
	{FieldSellingPrice, "Selling Price", "Selling price, numbers only", true, 14},
	{FieldListPrice, "List Price", "MRP; should not be below the selling price", false, 12},
	{FieldProductClass, "Product Class", "standard, custom_print or made_to_order", true, 16},
	{FieldCustomizable, "Customizable", "Yes or No", false, 13},
	{FieldPrintType, "Print Type", "1 Color, 2 Color, 4 Color, Plain or Custom", false, 13},
	{FieldMOQ, "MOQ", "Minimum order quantity", false, 10},
	{FieldSleeveQty, "Pieces / Sleeve", "Pieces per sleeve", false, 15},
	{FieldBoxQty, "Pieces / Box", "Pieces per box", false, 13},
	{FieldStockType, "Stock Type", "stocked or made_to_order", false, 15},
	{FieldWarehouseZone, "Warehouse Zone", "Storage zone, e.g. F-2", false, 15},
	{FieldRemarks, "Remarks", "Free text notes", false, 30},
}

// FixedTemplate reads sheets produced from the downloadable template: a
// title row, a header row, then data from row 3.
type FixedTemplate struct{}

// Name implements Layout.
func (FixedTemplate) Name() string { return LayoutFixed }

// Locate implements Layout.
func (FixedTemplate) Locate([][]string) (Frame, error) {
	cols := make(ColumnMap, len(FixedColumns))
	for idx, c := range FixedColumns {
		cols[c.Field] = idx
	}
	return Frame{HeaderRow: 1, DataStart: 2, Columns: cols}, nil
}

// Verify requires at least one row carrying both an identifier and a name.
func (FixedTemplate) Verify(s *Sheet) error {
	for _, row := range s.Rows {
		if s.Columns.Value(row, FieldSKU) != "" && s.Columns.Value(row, FieldName) != "" {
			return nil
		}
	}
	return errors.New("no row has both a barcode/SKU and a product name; is this the import template?")
}
