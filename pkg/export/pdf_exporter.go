package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth  = 297.0
	pdfMargin     = 10.0
	pdfLineHeight = 5.0
)

// PDFExporter renders each table on its own landscape A4 page.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with the document title on every page.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, 15, pdfMargin)
	pdf.SetTitle(doc.Title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, table := range doc.Tables {
		pdf.AddPage()
		if doc.Title != "" {
			pdf.SetFont("Arial", "B", 14)
			pdf.CellFormat(0, 10, tr(strings.ToUpper(doc.Title)), "", 1, "C", false, 0, "")
		}
		if table.Title != "" {
			pdf.SetFont("Arial", "B", 12)
			pdf.CellFormat(0, 8, tr(table.Title), "", 1, "C", false, 0, "")
		}
		pdf.Ln(3)

		colWidth := (pdfPageWidth - 2*pdfMargin) / float64(len(table.Header))
		pdf.SetFont("Arial", "B", 9)
		writePDFRow(pdf, tr, table.Header, colWidth, true)

		pdf.SetFont("Arial", "", 8)
		for _, row := range table.Rows {
			record := make([]string, len(table.Header))
			copy(record, row)
			writePDFRow(pdf, tr, record, colWidth, false)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// writePDFRow draws a row of wrapped cells sharing the height of the tallest one.
func writePDFRow(pdf *gofpdf.Fpdf, tr func(string) string, cells []string, colWidth float64, header bool) {
	lines := 1
	for _, cell := range cells {
		if n := len(pdf.SplitLines([]byte(tr(cell)), colWidth-2)); n > lines {
			lines = n
		}
	}
	height := float64(lines)*pdfLineHeight + 2

	x, y := pdf.GetXY()
	for i, cell := range cells {
		left := x + float64(i)*colWidth
		pdf.Rect(left, y, colWidth, height, "D")
		pdf.SetXY(left+1, y+1)
		align := "L"
		if header {
			align = "C"
		}
		pdf.MultiCell(colWidth-2, pdfLineHeight, tr(cell), "", align, false)
	}
	pdf.SetXY(x, y+height)
}
