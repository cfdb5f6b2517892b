// Package sheet turns uploaded price-list workbooks into ordered raw rows.
//
// A Layout decides where the header sits and which column holds which field;
// Read does the file handling and row extraction common to every layout.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// PreferredSheet is read when present; otherwise the first sheet is used.
const PreferredSheet = "Products"

// Field names a canonical product column.
type Field string

const (
	FieldSKU            Field = "sku"
	FieldName           Field = "name"
	FieldCategory       Field = "category"
	FieldSpecifications Field = "specifications"
	FieldUnit           Field = "unit"
	FieldSellingPrice   Field = "selling_price"
	FieldListPrice      Field = "list_price"
	FieldProductClass   Field = "product_class"
	FieldCustomizable   Field = "customizable"
	FieldPrintType      Field = "print_type"
	FieldMOQ            Field = "moq"
	FieldSleeveQty      Field = "sleeve_qty"
	FieldBoxQty         Field = "box_qty"
	FieldStockType      Field = "stock_type"
	FieldWarehouseZone  Field = "warehouse_zone"
	FieldRemarks        Field = "remarks"
)

// RawRow is one non-empty data row as read from the sheet.
type RawRow struct {
	// Number is the 1-based row number in the source sheet.
	Number int               `json:"number"`
	Cells  []string          `json:"cells"`
	Raw    map[string]string `json:"raw"`
}

// Cell returns the trimmed cell at idx, or "" when out of range.
func (r RawRow) Cell(idx int) string {
	if idx < 0 || idx >= len(r.Cells) {
		return ""
	}
	return r.Cells[idx]
}

// ColumnMap resolves fields to 0-based column indexes.
type ColumnMap map[Field]int

// Index returns the column of f and whether it is mapped.
func (m ColumnMap) Index(f Field) (int, bool) {
	idx, ok := m[f]
	return idx, ok && idx >= 0
}

// Value returns the cell for f in row, or "" when f is not mapped.
func (m ColumnMap) Value(row RawRow, f Field) string {
	idx, ok := m.Index(f)
	if !ok {
		return ""
	}
	return row.Cell(idx)
}

// Sheet is the reader output.
type Sheet struct {
	Name   string `json:"name"`
	Layout string `json:"layout"`
	// HeaderRow is the 1-based row holding column headings.
	HeaderRow int       `json:"header_row"`
	Header    []string  `json:"header"`
	Columns   ColumnMap `json:"columns"`
	Rows      []RawRow  `json:"rows"`
}

// ParseError reports a workbook that cannot be turned into rows. The upload
// must be fixed and retried.
type ParseError struct {
	File   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "sheet: " + e.Reason
	if e.File != "" {
		msg = fmt.Sprintf("sheet: %s: %s", e.File, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err is a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Read parses a workbook using layout. The file name selects the decoder.
func Read(r io.Reader, fileName string, layout Layout) (*Sheet, error) {
	if layout == nil {
		return nil, &ParseError{File: fileName, Reason: "no layout selected"}
	}
	name, grid, err := readGrid(r, fileName)
	if err != nil {
		return nil, err
	}
	if len(grid) < 2 {
		return nil, &ParseError{File: fileName, Reason: "sheet is empty or has no data rows"}
	}

	frame, err := layout.Locate(grid)
	if err != nil {
		return nil, &ParseError{File: fileName, Reason: "locate header", Err: err}
	}

	out := &Sheet{
		Name:      name,
		Layout:    layout.Name(),
		HeaderRow: frame.HeaderRow + 1,
		Columns:   frame.Columns,
	}
	if frame.HeaderRow >= 0 && frame.HeaderRow < len(grid) {
		out.Header = trimCells(grid[frame.HeaderRow])
	}
	for i := frame.DataStart; i < len(grid); i++ {
		cells := trimCells(grid[i])
		if allEmpty(cells) {
			continue
		}
		raw := make(map[string]string, len(cells))
		for idx, c := range cells {
			if c != "" {
				raw["col_"+strconv.Itoa(idx)] = c
			}
		}
		out.Rows = append(out.Rows, RawRow{Number: i + 1, Cells: cells, Raw: raw})
	}

	if err := layout.Verify(out); err != nil {
		return nil, &ParseError{File: fileName, Reason: err.Error()}
	}
	return out, nil
}

func readGrid(r io.Reader, fileName string) (string, [][]string, error) {
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".csv":
		grid, err := readCSV(r)
		if err != nil {
			return "", nil, &ParseError{File: fileName, Reason: "read csv", Err: err}
		}
		return strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName)), grid, nil
	case ".xlsx", ".xlsm", ".xltx":
		name, grid, err := readWorkbook(r)
		if err != nil {
			return "", nil, &ParseError{File: fileName, Reason: "open workbook", Err: err}
		}
		return name, grid, nil
	case ".xls":
		name, grid, err := readLegacyWorkbook(r)
		if err != nil {
			return "", nil, &ParseError{File: fileName, Reason: "open .xls workbook", Err: err}
		}
		return name, grid, nil
	default:
		return "", nil, &ParseError{File: fileName, Reason: fmt.Sprintf("unsupported file type %q", ext)}
	}
}

func readWorkbook(r io.Reader) (string, [][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, errors.New("workbook has no sheets")
	}
	target := sheets[0]
	for _, s := range sheets {
		if strings.EqualFold(s, PreferredSheet) {
			target = s
			break
		}
	}
	rows, err := f.GetRows(target, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", nil, err
	}
	return target, rows, nil
}

// readLegacyWorkbook reads BIFF (.xls) workbooks, which excelize cannot open.
func readLegacyWorkbook(r io.Reader) (name string, grid [][]string, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", nil, err
	}
	// The BIFF decoder panics on some malformed streams.
	defer func() {
		if p := recover(); p != nil {
			name, grid, err = "", nil, fmt.Errorf("malformed workbook: %v", p)
		}
	}()
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return "", nil, err
	}
	if wb.NumSheets() == 0 {
		return "", nil, errors.New("workbook has no sheets")
	}
	ws := wb.GetSheet(0)
	for i := 1; i < wb.NumSheets(); i++ {
		if s := wb.GetSheet(i); s != nil && strings.EqualFold(s.Name, PreferredSheet) {
			ws = s
			break
		}
	}
	if ws == nil {
		return "", nil, errors.New("workbook has no readable sheet")
	}
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := range cells {
			cells[j] = row.Col(j)
		}
		grid = append(grid, cells)
	}
	return ws.Name, grid, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader.ReadAll()
}

func trimCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
