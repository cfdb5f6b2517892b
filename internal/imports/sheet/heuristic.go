package sheet

import (
	"errors"
	"strconv"
	"strings"
)

// Defaults for HeuristicHeaders.
const (
	DefaultScanRows = 10
	DefaultMinCells = 5
)

// HeaderKeywords mark a row as the header when any cell contains one.
var HeaderKeywords = []string{"product", "bar code", "barcode", "price"}

// fieldOrder fixes the order columns are claimed in, so a header never maps
// to two fields.
var fieldOrder = []Field{
	FieldSKU, FieldName, FieldCategory, FieldListPrice, FieldSellingPrice,
	FieldSpecifications, FieldCustomizable, FieldMOQ, FieldSleeveQty, FieldBoxQty,
	FieldStockType, FieldWarehouseZone, FieldUnit, FieldProductClass,
	FieldPrintType, FieldRemarks,
}

var commonAliases = map[Field][]string{
	FieldSKU:            {"Bar Code", "Barcode", "SKU", "Item Code"},
	FieldName:           {"Product", "Name", "Product Name", "Item"},
	FieldCategory:       {"Category", "Category Name"},
	FieldSpecifications: {"Weight / GSM / Micron", "Weight", "Specifications", "GSM", "Size"},
	FieldCustomizable:   {"Customizable", "Customisable"},
	FieldMOQ:            {"MOQ", "Min Order Qty", "Minimum Order Quantity"},
	FieldSleeveQty:      {"Pieces / Sleeve", "Sleeve Qty", "SLEEVE", "Pcs/Sleeve"},
	FieldBoxQty:         {"Pieces / Box", "Box Qty", "BOX", "Pcs/Box"},
	FieldStockType:      {"Always in Stock", "Stock", "In Stock", "Stock Type"},
	FieldSellingPrice:   {"Prices", "Price", "Selling Price", "Rate", "Offer Price"},
	FieldListPrice:      {"List Price", "MRP"},
	FieldWarehouseZone:  {"ZONE", "Zone", "Warehouse Zone", "FLOOR ZONE"},
	FieldUnit:           {"Unit", "UOM"},
	FieldProductClass:   {"Product Class", "Class"},
	FieldPrintType:      {"Print Type", "Printing"},
	FieldRemarks:        {"Remarks", "Notes"},
}

var divisionAliases = map[string]map[Field][]string{
	"HOSPI": {
		FieldSpecifications: {"Size", "Specifications", "Weight"},
		FieldSellingPrice:   {"Offer Price", "Price", "Prices", "Selling Price", "Rate"},
		FieldWarehouseZone:  {"FLOOR ZONE", "ZONE", "Zone", "Warehouse Zone"},
	},
}

// Aliases returns the header alias table used for division.
func Aliases(division string) map[Field][]string {
	out := make(map[Field][]string, len(commonAliases))
	for f, a := range commonAliases {
		out[f] = a
	}
	for f, a := range divisionAliases[strings.ToUpper(division)] {
		out[f] = a
	}
	return out
}

// HeuristicHeaders reads externally sourced price lists by finding the
// header row among the first rows and matching column titles to aliases.
type HeuristicHeaders struct {
	Division string
	ScanRows int
	MinCells int
	Aliases  map[Field][]string
}

// NewHeuristicHeaders returns the layout configured for division.
func NewHeuristicHeaders(division string) HeuristicHeaders {
	return HeuristicHeaders{
		Division: strings.ToUpper(division),
		ScanRows: DefaultScanRows,
		MinCells: DefaultMinCells,
		Aliases:  Aliases(division),
	}
}

// Name implements Layout.
func (HeuristicHeaders) Name() string { return LayoutHeuristic }

// Locate implements Layout.
func (h HeuristicHeaders) Locate(grid [][]string) (Frame, error) {
	if h.Aliases == nil {
		h.Aliases = Aliases(h.Division)
	}
	headerIdx := h.findHeaderRow(grid)
	header := trimCells(grid[headerIdx])
	cols := matchColumns(header, h.Aliases)

	if _, ok := cols.Index(FieldName); !ok {
		fallback := 0
		if idx, ok := cols.Index(FieldSKU); ok && idx == 0 {
			fallback = 1
		}
		cols[FieldName] = fallback
	}
	if _, ok := cols.Index(FieldSellingPrice); !ok {
		if idx := detectPriceColumn(header, grid, headerIdx, cols); idx >= 0 {
			cols[FieldSellingPrice] = idx
		}
	}
	return Frame{HeaderRow: headerIdx, DataStart: headerIdx + 1, Columns: cols}, nil
}

// Verify requires at least one data row below the header.
func (HeuristicHeaders) Verify(s *Sheet) error {
	if len(s.Rows) == 0 {
		return errors.New("no data rows below the header")
	}
	return nil
}

func (h HeuristicHeaders) findHeaderRow(grid [][]string) int {
	scan := h.ScanRows
	if scan <= 0 {
		scan = DefaultScanRows
	}
	minCells := h.MinCells
	if minCells <= 0 {
		minCells = DefaultMinCells
	}
	for i := 0; i < len(grid) && i < scan; i++ {
		nonEmpty := 0
		keyword := false
		for _, cell := range grid[i] {
			cell = strings.ToLower(strings.TrimSpace(cell))
			if cell == "" {
				continue
			}
			nonEmpty++
			for _, kw := range HeaderKeywords {
				if strings.Contains(cell, kw) {
					keyword = true
				}
			}
		}
		if nonEmpty >= minCells && keyword {
			return i
		}
	}
	return 0
}

// matchColumns claims exact case-insensitive matches first, then substring
// matches, skipping columns already claimed.
func matchColumns(header []string, aliases map[Field][]string) ColumnMap {
	lower := make([]string, len(header))
	for i, h := range header {
		lower[i] = strings.ToLower(h)
	}
	cols := make(ColumnMap)
	claimed := make(map[int]bool)

	claim := func(match func(cell, alias string) bool) {
		for _, f := range fieldOrder {
			if _, ok := cols[f]; ok {
				continue
			}
		aliasLoop:
			for _, alias := range aliases[f] {
				alias = strings.ToLower(alias)
				for idx, cell := range lower {
					if cell == "" || claimed[idx] {
						continue
					}
					if match(cell, alias) {
						cols[f] = idx
						claimed[idx] = true
						break aliasLoop
					}
				}
			}
		}
	}
	claim(func(cell, alias string) bool { return cell == alias })
	claim(func(cell, alias string) bool { return strings.Contains(cell, alias) })
	return cols
}

// detectPriceColumn picks the first header mentioning price or rate whose
// first data cell holds a plausible price. The SKU and name columns are never
// chosen; a list price column may be shared.
func detectPriceColumn(header []string, grid [][]string, headerIdx int, cols ColumnMap) int {
	reserved := make(map[int]bool, 2)
	for _, f := range []Field{FieldSKU, FieldName} {
		if idx, ok := cols.Index(f); ok {
			reserved[idx] = true
		}
	}
	if headerIdx+1 >= len(grid) {
		return -1
	}
	first := trimCells(grid[headerIdx+1])
	for idx, h := range header {
		h = strings.ToLower(h)
		if reserved[idx] || !(strings.Contains(h, "price") || strings.Contains(h, "rate")) {
			continue
		}
		if idx >= len(first) {
			continue
		}
		if v, ok := parseLoose(first[idx]); ok && v > 0 && v < 100000 {
			return idx
		}
	}
	return -1
}

func parseLoose(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	return v, err == nil
}
