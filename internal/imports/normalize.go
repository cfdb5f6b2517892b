package imports

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/equinox-erp/equinox/internal/imports/sheet"
)

// DefaultCategory is the category of heuristic rows seen before any marker.
const DefaultCategory = "Uncategorized"

// Normalizer maps raw rows onto ParsedRow. It is not safe for concurrent use.
type Normalizer struct {
	// Heuristic enables the defaults used for externally sourced price lists.
	Heuristic bool
	title     cases.Caser
}

// NewNormalizer returns the normalizer matching a sheet layout name.
func NewNormalizer(layout string) *Normalizer {
	return &Normalizer{
		Heuristic: layout == sheet.LayoutHeuristic,
		title:     cases.Title(language.English),
	}
}

// InitialCategory is the fold seed.
func (n *Normalizer) InitialCategory() string {
	if n.Heuristic {
		return DefaultCategory
	}
	return ""
}

// Normalize folds every row of s, dropping category markers.
func Normalize(s *sheet.Sheet) []ParsedRow {
	n := NewNormalizer(s.Layout)
	current := n.InitialCategory()
	out := make([]ParsedRow, 0, len(s.Rows))
	for _, raw := range s.Rows {
		var (
			row    ParsedRow
			marker bool
		)
		current, row, marker = n.FoldRow(current, raw, s.Columns)
		if !marker {
			out = append(out, row)
		}
	}
	return out
}

// FoldRow is one step of the category fold. A marker row returns the next
// category and marker=true; a product row returns the unchanged category and
// its ParsedRow.
func (n *Normalizer) FoldRow(current string, raw sheet.RawRow, cols sheet.ColumnMap) (string, ParsedRow, bool) {
	if label, ok := n.markerLabel(raw, cols); ok {
		return n.titleCase(label), ParsedRow{}, true
	}

	cell := func(f sheet.Field) string { return cols.Value(raw, f) }

	row := ParsedRow{
		RowNumber:      raw.Number,
		SKU:            cleanBarcode(cell(sheet.FieldSKU)),
		Name:           cleanString(cell(sheet.FieldName)),
		CategoryName:   current,
		Specifications: cleanString(cell(sheet.FieldSpecifications)),
		Unit:           cleanUnit(cell(sheet.FieldUnit)),
		Customizable:   cleanBool(cell(sheet.FieldCustomizable)),
		MOQ:            cleanInt(cell(sheet.FieldMOQ)),
		SleeveQty:      cleanInt(cell(sheet.FieldSleeveQty)),
		BoxQty:         cleanInt(cell(sheet.FieldBoxQty)),
		WarehouseZone:  cleanString(cell(sheet.FieldWarehouseZone)),
		Remarks:        cleanString(cell(sheet.FieldRemarks)),
		Raw:            raw.Raw,
	}
	if row.SKU != "" {
		barcode := row.SKU
		row.Barcode = &barcode
	}
	if c := cleanString(cell(sheet.FieldCategory)); c != "" {
		row.CategoryName = n.titleCase(c)
	}
	if price, ok := cleanPrice(cell(sheet.FieldSellingPrice)); ok {
		row.SellingPrice = price
	}
	if list, ok := cleanPrice(cell(sheet.FieldListPrice)); ok {
		row.ListPrice = decimal.NewNullDecimal(list)
	}

	row.ProductClass = strings.ToLower(cleanString(cell(sheet.FieldProductClass)))
	if row.ProductClass == "" && n.Heuristic {
		row.ProductClass = ClassStandard
		if row.Customizable {
			row.ProductClass = ClassCustomPrint
		}
	}

	stock := cell(sheet.FieldStockType)
	switch {
	case n.Heuristic && boolLike(stock):
		row.StockType = StockMadeToOrder
		if cleanBool(stock) {
			row.StockType = StockStocked
		}
	default:
		row.StockType = cleanStockType(stock)
	}

	if pt := cleanString(cell(sheet.FieldPrintType)); pt != "" {
		row.PrintType = &pt
	} else {
		row.PrintType = inferPrintType(row.Name)
	}
	return current, row, false
}

// markerLabel reports whether raw is a section heading and returns its
// label. Rows with a category cell or any identifier, price or quantity are
// products.
func (n *Normalizer) markerLabel(raw sheet.RawRow, cols sheet.ColumnMap) (string, bool) {
	label := cleanString(cols.Value(raw, sheet.FieldName))
	if label == "" {
		label = cleanString(raw.Cell(0))
	}
	if label == "" || cols.Value(raw, sheet.FieldCategory) != "" {
		return "", false
	}
	if id := cleanBarcode(cols.Value(raw, sheet.FieldSKU)); id != "" && (id != label || isNumeric(label)) {
		return "", false
	}
	if price, ok := cleanPrice(cols.Value(raw, sheet.FieldSellingPrice)); ok && price.IsPositive() {
		return "", false
	}
	for _, f := range []sheet.Field{sheet.FieldListPrice, sheet.FieldMOQ, sheet.FieldSleeveQty, sheet.FieldBoxQty} {
		if isNumeric(cols.Value(raw, f)) {
			return "", false
		}
	}
	return label, true
}

func (n *Normalizer) titleCase(s string) string {
	return n.title.String(s)
}
