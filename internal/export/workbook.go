// Package export renders dataset previews as spreadsheet workbooks.
package export

import (
	"fmt"
	"strings"

	"practicelab/internal/preview"

	"github.com/xuri/excelize/v2"
)

const (
	ContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxSheetName = 31
)

var sheetNameReplacer = strings.NewReplacer(
	"[", "_", "]", "_", ":", "_", "*", "_", "?", "_", "/", "_", "\\", "_",
)

// SheetName makes label usable as a worksheet name.
func SheetName(label string) string {
	name := strings.Trim(sheetNameReplacer.Replace(strings.TrimSpace(label)), "'")
	if r := []rune(name); len(r) > maxSheetName {
		name = strings.TrimSpace(string(r[:maxSheetName]))
	}
	if name == "" {
		return "Dataset"
	}
	return name
}

// FileName derives a download name for label.
func FileName(label string) string {
	return strings.ReplaceAll(SheetName(label), " ", "_") + ".xlsx"
}

// Workbook writes p as a single sheet: a bold header row followed by the
// sample rows.
func Workbook(label string, p preview.Preview) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := SheetName(label)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("rename sheet failed: %w", err)
	}

	header := make([]any, len(p.Columns))
	for i, c := range p.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header failed: %w", err)
	}
	if len(p.Columns) > 0 {
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil, fmt.Errorf("create header style failed: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(len(p.Columns), 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return nil, fmt.Errorf("style header failed: %w", err)
		}
	}

	for i, row := range p.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := append([]any(nil), row...)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d failed: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook failed: %w", err)
	}
	return buf.Bytes(), nil
}
