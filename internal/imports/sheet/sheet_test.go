package sheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, sheetName string, rows map[int][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })
	if sheetName != "Sheet1" {
		require.NoError(t, f.SetSheetName("Sheet1", sheetName))
	}
	for num, values := range rows {
		cell, err := excelize.CoordinatesToCellName(1, num)
		require.NoError(t, err)
		row := values
		require.NoError(t, f.SetSheetRow(sheetName, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestTemplateRoundTripsThroughFixedReader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf, "apt"))

	s, err := Read(&buf, "template.xlsx", FixedTemplate{})
	require.NoError(t, err)
	require.Equal(t, PreferredSheet, s.Name)
	require.Equal(t, LayoutFixed, s.Layout)
	require.Equal(t, 2, s.HeaderRow)
	require.Len(t, s.Header, len(FixedColumns))
	require.Equal(t, "Product Name *", s.Header[1])
	require.Len(t, s.Rows, 2)

	first := s.Rows[0]
	require.Equal(t, 3, first.Number)
	require.Equal(t, "1000366", s.Columns.Value(first, FieldSKU))
	require.Equal(t, "450 ML Rec Bagasse Box", s.Columns.Value(first, FieldName))
	require.Equal(t, "Bagasse Containers", s.Columns.Value(first, FieldCategory))
	require.Equal(t, "F-2", s.Columns.Value(first, FieldWarehouseZone))

	require.Equal(t, "", s.Columns.Value(s.Rows[1], FieldSKU))
	require.Equal(t, "Paper Cups", s.Columns.Value(s.Rows[1], FieldCategory))
}

func TestTemplateHasInstructionsSheet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf, "HOSPI"))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{PreferredSheet, InstructionsSheet}, f.GetSheetList())
	title, err := f.GetCellValue(PreferredSheet, "A1")
	require.NoError(t, err)
	require.Equal(t, "HOSPI Product Import Template", title)

	rows, err := f.GetRows(InstructionsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4+len(FixedColumns))
	require.Equal(t, "Barcode / SKU", rows[4][0])
}

func TestFixedReaderSkipsEmptyRows(t *testing.T) {
	buf := workbook(t, PreferredSheet, map[int][]any{
		1: {"APT Product Import Template"},
		2: {"Barcode / SKU", "Product Name"},
		3: {"A-1", "Cup"},
		5: {"A-2", "Plate"},
	})

	s, err := Read(buf, "upload.xlsx", FixedTemplate{})
	require.NoError(t, err)
	require.Len(t, s.Rows, 2)
	require.Equal(t, 3, s.Rows[0].Number)
	require.Equal(t, 5, s.Rows[1].Number)
	require.Equal(t, "Plate", s.Rows[1].Raw["col_1"])
}

func TestFixedReaderRejectsForeignSheet(t *testing.T) {
	buf := workbook(t, "Data", map[int][]any{
		1: {"Title"},
		2: {"Name", "Price"},
		3: {"", "Cup", 5},
	})

	_, err := Read(buf, "upload.xlsx", FixedTemplate{})
	require.Error(t, err)
	require.True(t, IsParseError(err))
	require.Contains(t, err.Error(), "barcode/SKU")
}

func TestReadPrefersProductsSheet(t *testing.T) {
	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })
	_, err := f.NewSheet("Products")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"ignored"}))
	require.NoError(t, f.SetSheetRow("Products", "A2", &[]any{"Barcode / SKU", "Product Name"}))
	require.NoError(t, f.SetSheetRow("Products", "A3", &[]any{"X-1", "Bowl"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	s, err := Read(&buf, "upload.xlsx", FixedTemplate{})
	require.NoError(t, err)
	require.Equal(t, "Products", s.Name)
	require.Len(t, s.Rows, 1)
}

func TestHeuristicFindsHeaderAndAliases(t *testing.T) {
	buf := workbook(t, "Price List", map[int][]any{
		1: {"APT Price List 2024"},
		3: {"Bar Code", "Product", "Weight / GSM / Micron", "MOQ", "SLEEVE", "BOX", "Prices", "ZONE"},
		4: {"", "PAPER CUPS"},
		6: {"8901", "8 oz Cup", "210 GSM", 1000, 50, 1000, "₹1.20", "F-1"},
	})

	s, err := Read(buf, "apt.xlsx", NewHeuristicHeaders("APT"))
	require.NoError(t, err)
	require.Equal(t, LayoutHeuristic, s.Layout)
	require.Equal(t, 3, s.HeaderRow)

	want := ColumnMap{
		FieldSKU: 0, FieldName: 1, FieldSpecifications: 2, FieldMOQ: 3,
		FieldSleeveQty: 4, FieldBoxQty: 5, FieldSellingPrice: 6, FieldWarehouseZone: 7,
	}
	require.Equal(t, want, s.Columns)

	require.Len(t, s.Rows, 2)
	require.Equal(t, 4, s.Rows[0].Number)
	require.Equal(t, "PAPER CUPS", s.Columns.Value(s.Rows[0], FieldName))
	require.Equal(t, 6, s.Rows[1].Number)
	require.Equal(t, "₹1.20", s.Columns.Value(s.Rows[1], FieldSellingPrice))
}

func TestHeuristicSubstringMatchSkipsClaimedColumns(t *testing.T) {
	cols := matchColumns(
		[]string{"Item Code", "Product Name", "List Price", "Offer Price (INR)", "Stock Status"},
		Aliases("APT"),
	)
	require.Equal(t, 0, cols[FieldSKU])
	require.Equal(t, 1, cols[FieldName])
	require.Equal(t, 2, cols[FieldListPrice])
	require.Equal(t, 3, cols[FieldSellingPrice])
	require.Equal(t, 4, cols[FieldStockType])
}

func TestHeuristicDivisionAliases(t *testing.T) {
	require.Equal(t, "Offer Price", Aliases("hospi")[FieldSellingPrice][0])
	require.Equal(t, "Prices", Aliases("APT")[FieldSellingPrice][0])
}

func TestHeuristicNameFallback(t *testing.T) {
	h := NewHeuristicHeaders("APT")

	frame, err := h.Locate([][]string{
		{"Bar Code", "Description", "Qty", "Pack", "Price"},
		{"1", "Cup", "10", "5", "2.5"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, frame.Columns[FieldName])

	frame, err = h.Locate([][]string{
		{"Description", "Code", "Qty", "Pack", "Price"},
		{"Cup", "1", "10", "5", "2.5"},
	})
	require.NoError(t, err)
	require.Equal(t, 0, frame.Columns[FieldName])
}

func TestHeuristicDetectsPriceFromData(t *testing.T) {
	h := NewHeuristicHeaders("APT")
	frame, err := h.Locate([][]string{
		{"Bar Code", "Product", "MRP Price", "Pack", "Zone"},
		{"1", "Cup", "12.50", "5", "A"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, frame.Columns[FieldListPrice])
	require.Equal(t, 2, frame.Columns[FieldSellingPrice])
}

func TestHeuristicNoHeaderFallsBackToFirstRow(t *testing.T) {
	h := NewHeuristicHeaders("APT")
	frame, err := h.Locate([][]string{
		{"a", "b"},
		{"c", "d"},
	})
	require.NoError(t, err)
	require.Equal(t, 0, frame.HeaderRow)
	require.Equal(t, 1, frame.DataStart)
}

func TestReadCSVStripsBOM(t *testing.T) {
	data := "\xef\xbb\xbfBar Code,Product,Category,Unit,Price\n" +
		",,,,\n" +
		"C-1,\"Cup, 8 oz\",Paper Cups,PCS,\"1,200\"\n"

	s, err := Read(strings.NewReader(data), "list.csv", NewHeuristicHeaders("APT"))
	require.NoError(t, err)
	require.Equal(t, "list", s.Name)
	require.Equal(t, "Bar Code", s.Header[0])
	require.Len(t, s.Rows, 1)
	require.Equal(t, 3, s.Rows[0].Number)
	require.Equal(t, "Cup, 8 oz", s.Columns.Value(s.Rows[0], FieldName))
	require.Equal(t, "1,200", s.Columns.Value(s.Rows[0], FieldSellingPrice))
}

func TestReadParseErrors(t *testing.T) {
	cases := []struct {
		name   string
		file   string
		body   string
		reason string
	}{
		{"single row", "one.csv", "Bar Code,Product\n", "no data rows"},
		{"empty", "empty.csv", "", "no data rows"},
		{"unsupported", "list.pdf", "x", "unsupported file type"},
		{"corrupt workbook", "list.xlsx", "not a zip", "open workbook"},
		{"corrupt legacy workbook", "list.xls", "not a compound file", "open .xls workbook"},
		{"truncated legacy workbook", "list.xls", "\xd0\xcf\x11\xe0\xa1\xb1\x1a\xe1", "open .xls workbook"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tc.body), tc.file, NewHeuristicHeaders("APT"))
			require.Error(t, err)
			require.True(t, IsParseError(err))
			require.Contains(t, err.Error(), tc.reason)
			require.Contains(t, err.Error(), tc.file)
		})
	}
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout("", "APT")
	require.NoError(t, err)
	require.Equal(t, LayoutFixed, l.Name())

	l, err = ParseLayout("Heuristic", "hospi")
	require.NoError(t, err)
	h, ok := l.(HeuristicHeaders)
	require.True(t, ok)
	require.Equal(t, "HOSPI", h.Division)

	_, err = ParseLayout("pivot", "APT")
	require.Error(t, err)
}

func TestContentType(t *testing.T) {
	require.Equal(t, ContentTypeXLSX, ContentType("a.XLSX"))
	require.Equal(t, ContentTypeCSV, ContentType("a.csv"))
	require.Equal(t, "application/octet-stream", ContentType("a.pdf"))
	require.True(t, Supported("b.xlsm"))
	require.True(t, Supported("legacy.XLS"))
	require.False(t, Supported("b.txt"))
}
