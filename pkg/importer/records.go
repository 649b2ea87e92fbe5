// Package importer reads subject catalogs from uploaded spreadsheets.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format is an accepted upload type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnsupportedFormat is returned for uploads that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported import format")

// Record is one subject line. Teacher is optional.
type Record struct {
	Line    int
	Code    string
	Name    string
	Teacher string
}

// LineError reports a line that could not be read.
type LineError struct {
	Line    int
	Message string
}

// FormatFromFilename picks the format from the upload's extension.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// ReadRecords parses every row of the upload. A leading header naming code, name
// and teacher columns is optional; without it columns are read in that order.
// Malformed lines are reported in the returned LineErrors and do not stop parsing.
func ReadRecords(r io.Reader, format Format) ([]Record, []LineError, error) {
	var (
		rows []sheetRow
		err  error
	)
	switch format {
	case FormatCSV:
		rows, err = readCSV(r)
	case FormatXLSX:
		rows, err = readXLSX(r)
	default:
		return nil, nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, nil, err
	}
	return parseRows(rows)
}

// sheetRow keeps the source line number of a row.
type sheetRow struct {
	line  int
	cells []string
}

func readCSV(r io.Reader) ([]sheetRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows []sheetRow
	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, sheetRow{line: line, cells: cells})
	}
}

func readXLSX(r io.Reader) ([]sheetRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	rows := make([]sheetRow, len(cells))
	for i, row := range cells {
		rows[i] = sheetRow{line: i + 1, cells: row}
	}
	return rows, nil
}

type columns struct {
	code, name, teacher int
}

var positional = columns{code: 0, name: 1, teacher: 2}

func detectHeader(row []string) (columns, bool) {
	cols := columns{code: -1, name: -1, teacher: -1}
	for i, cell := range row {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case "code", "subject_code", "subject code":
			cols.code = i
		case "name", "subject", "subject_name", "subject name":
			cols.name = i
		case "teacher", "teacher_name", "teacher name":
			cols.teacher = i
		}
	}
	return cols, cols.code >= 0 && cols.name >= 0
}

func parseRows(rows []sheetRow) ([]Record, []LineError, error) {
	var (
		records []Record
		errs    []LineError
	)
	cols := positional
	start := 0
	if len(rows) > 0 {
		if header, ok := detectHeader(rows[0].cells); ok {
			cols = header
			start = 1
		}
	}

	for i := start; i < len(rows); i++ {
		line, row := rows[i].line, rows[i].cells
		if blank(row) {
			continue
		}
		record := Record{
			Line:    line,
			Code:    cell(row, cols.code),
			Name:    cell(row, cols.name),
			Teacher: cell(row, cols.teacher),
		}
		switch {
		case record.Code == "":
			errs = append(errs, LineError{Line: line, Message: "subject code is required"})
		case strings.Contains(record.Code, "/"):
			errs = append(errs, LineError{Line: line, Message: "subject code must not contain '/'"})
		case record.Name == "":
			errs = append(errs, LineError{Line: line, Message: "subject name is required"})
		default:
			records = append(records, record)
		}
	}
	return records, errs, nil
}

func cell(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}

func blank(row []string) bool {
	for _, value := range row {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
