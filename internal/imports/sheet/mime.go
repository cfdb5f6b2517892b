package sheet

import (
	"path/filepath"
	"strings"
)

// Content types of the workbook formats Read accepts.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv"
)

var extensionTypes = map[string]string{
	".xlsx": ContentTypeXLSX,
	".xlsm": "application/vnd.ms-excel.sheet.macroEnabled.12",
	".xltx": "application/vnd.openxmlformats-officedocument.spreadsheetml.template",
	".xls":  "application/vnd.ms-excel",
	".csv":  ContentTypeCSV,
}

// ContentType returns the content type for fileName, or
// application/octet-stream when the extension is not a supported workbook.
func ContentType(fileName string) string {
	if ct, ok := extensionTypes[strings.ToLower(filepath.Ext(fileName))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Supported reports whether Read has a decoder for fileName.
func Supported(fileName string) bool {
	_, ok := extensionTypes[strings.ToLower(filepath.Ext(fileName))]
	return ok
}
