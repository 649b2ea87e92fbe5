package export

import (
	"fmt"
	"strings"
)

// Format identifies a rendered document type.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ParseFormat normalises a user supplied format name.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV, FormatPDF, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// Table is one titled grid: a PDF page, an XLSX sheet or a CSV block.
type Table struct {
	Title  string
	Header []string
	Rows   [][]string
}

// Document groups the tables rendered into a single file.
type Document struct {
	Title  string
	Tables []Table
}

func (d Document) validate() error {
	if len(d.Tables) == 0 {
		return fmt.Errorf("document has no tables")
	}
	for _, table := range d.Tables {
		if len(table.Header) == 0 {
			return fmt.Errorf("table %q requires at least one header", table.Title)
		}
	}
	return nil
}
