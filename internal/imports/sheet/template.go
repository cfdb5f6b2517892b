package sheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// InstructionsSheet holds the column reference in generated templates.
const InstructionsSheet = "Instructions"

var sampleRows = map[string][][]any{
	"APT": {
		{"1000366", "450 ML Rec Bagasse Box", "Bagasse Containers", "15 g", "PCS", 7.50, 8.00, "standard", "No", "", 500, 50, 500, "stocked", "F-2", ""},
		{"", "8 oz Paper Cup 4 Color", "Paper Cups", "210 GSM", "PCS", 1.20, 1.50, "custom_print", "Yes", "4 Color", 10000, 50, 1000, "made_to_order", "", "Artwork needed"},
	},
	"HOSPI": {
		{"", "Bath Towel 27x54", "Linen", "27x54 in", "PCS", 420.00, 499.00, "standard", "No", "", 12, "", 24, "stocked", "B-1", ""},
		{"", "Dental Kit", "Amenities", "Pouch", "SET", 6.50, "", "custom_print", "Yes", "1 Color", 2000, "", 1000, "made_to_order", "", ""},
	},
}

// WriteTemplate writes the import workbook for division to w. The header row
// is generated from FixedColumns so the template always matches the fixed
// reader.
func WriteTemplate(w io.Writer, division string) error {
	division = strings.ToUpper(strings.TrimSpace(division))
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", PreferredSheet); err != nil {
		return fmt.Errorf("sheet: rename sheet: %w", err)
	}

	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return fmt.Errorf("sheet: title style: %w", err)
	}
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: border,
	})
	if err != nil {
		return fmt.Errorf("sheet: header style: %w", err)
	}
	requiredStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: border,
	})
	if err != nil {
		return fmt.Errorf("sheet: required style: %w", err)
	}

	title := "Product Import Template"
	if division != "" {
		title = division + " " + title
	}
	_ = f.SetCellValue(PreferredSheet, "A1", title)
	_ = f.SetCellStyle(PreferredSheet, "A1", "A1", titleStyle)

	for i, col := range FixedColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return fmt.Errorf("sheet: header cell: %w", err)
		}
		header := col.Header
		style := headerStyle
		if col.Required {
			header += " *"
			style = requiredStyle
		}
		_ = f.SetCellValue(PreferredSheet, cell, header)
		_ = f.SetCellStyle(PreferredSheet, cell, cell, style)

		colName, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("sheet: column name: %w", err)
		}
		_ = f.SetColWidth(PreferredSheet, colName, colName, col.Width)
	}

	samples, ok := sampleRows[division]
	if !ok {
		samples = sampleRows["APT"]
	}
	for r, values := range samples {
		cell, err := excelize.CoordinatesToCellName(1, r+3)
		if err != nil {
			return fmt.Errorf("sheet: sample cell: %w", err)
		}
		row := values
		if err := f.SetSheetRow(PreferredSheet, cell, &row); err != nil {
			return fmt.Errorf("sheet: sample row: %w", err)
		}
	}
	_ = f.SetPanes(PreferredSheet, &excelize.Panes{Freeze: true, YSplit: 2, TopLeftCell: "A3", ActivePane: "bottomLeft"})

	if _, err := f.NewSheet(InstructionsSheet); err != nil {
		return fmt.Errorf("sheet: instructions sheet: %w", err)
	}
	_ = f.SetCellValue(InstructionsSheet, "A1", "Product Import Instructions")
	_ = f.SetCellStyle(InstructionsSheet, "A1", "A1", titleStyle)
	_ = f.SetCellValue(InstructionsSheet, "A2", "Fill the Products sheet from row 3. Columns marked * are required. Do not reorder columns.")
	_ = f.SetCellValue(InstructionsSheet, "A4", "Column")
	_ = f.SetCellValue(InstructionsSheet, "B4", "Description")
	_ = f.SetCellValue(InstructionsSheet, "C4", "Required")
	_ = f.SetCellStyle(InstructionsSheet, "A4", "C4", headerStyle)
	for i, col := range FixedColumns {
		row := i + 5
		required := "No"
		if col.Required {
			required = "Yes"
		}
		_ = f.SetCellValue(InstructionsSheet, fmt.Sprintf("A%d", row), col.Header)
		_ = f.SetCellValue(InstructionsSheet, fmt.Sprintf("B%d", row), col.Description)
		_ = f.SetCellValue(InstructionsSheet, fmt.Sprintf("C%d", row), required)
	}
	_ = f.SetColWidth(InstructionsSheet, "A", "A", 20)
	_ = f.SetColWidth(InstructionsSheet, "B", "B", 60)
	_ = f.SetColWidth(InstructionsSheet, "C", "C", 12)

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("sheet: write template: %w", err)
	}
	return nil
}
