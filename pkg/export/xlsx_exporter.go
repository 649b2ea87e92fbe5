package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxSheetNameLength = 31

// XLSXExporter renders each table into its own worksheet.
type XLSXExporter struct{}

// NewXLSXExporter constructs a spreadsheet exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render creates a workbook with one sheet per table.
func (e *XLSXExporter) Render(doc Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	defaultSheet := f.GetSheetName(0)
	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "center"}})
	if err != nil {
		return nil, fmt.Errorf("create cell style: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, Alignment: &excelize.Alignment{Horizontal: "center"}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	used := make(map[string]bool)
	for i, table := range doc.Tables {
		name := sheetName(table.Title, i, used)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return nil, fmt.Errorf("rename sheet %s: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}

		for col, header := range table.Header {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			if err := f.SetCellValue(name, cell, header); err != nil {
				return nil, fmt.Errorf("write header: %w", err)
			}
		}
		lastCol, _ := excelize.ColumnNumberToName(len(table.Header))
		_ = f.SetCellStyle(name, "A1", lastCol+"1", bold)
		_ = f.SetColWidth(name, "A", lastCol, 22)

		for r, row := range table.Rows {
			for col := 0; col < len(table.Header) && col < len(row); col++ {
				cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
				if err := f.SetCellValue(name, cell, row[col]); err != nil {
					return nil, fmt.Errorf("write cell %s: %w", cell, err)
				}
			}
		}
		if len(table.Rows) > 0 {
			end, _ := excelize.CoordinatesToCellName(len(table.Header), len(table.Rows)+1)
			_ = f.SetCellStyle(name, "A2", end, wrap)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetName returns a unique worksheet name within Excel's constraints.
func sheetName(title string, index int, used map[string]bool) string {
	base := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, strings.TrimSpace(title))
	if base == "" {
		base = fmt.Sprintf("Sheet %d", index+1)
	}
	if len(base) > maxSheetNameLength {
		base = base[:maxSheetNameLength]
	}
	name := base
	for n := 2; used[name]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		trimmed := base
		if len(trimmed)+len(suffix) > maxSheetNameLength {
			trimmed = trimmed[:maxSheetNameLength-len(suffix)]
		}
		name = trimmed + suffix
	}
	used[name] = true
	return name
}
