package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfMargin     = 12.0
	pdfHeaderRow  = 8.0
	pdfBodyRow    = 7.0
	pdfFooterSize = 10.0
)

// PDFExporter renders tables as a printable A4 document with the header row repeated on every page.
type PDFExporter struct {
	orientation string
	now         func() time.Time
}

// NewPDFExporter constructs a PDF exporter. landscape selects the page orientation.
func NewPDFExporter(landscape bool) *PDFExporter {
	orientation := "P"
	if landscape {
		orientation = "L"
	}
	return &PDFExporter{orientation: orientation, now: time.Now}
}

// Render produces the PDF bytes for table.
func (e *PDFExporter) Render(table Table) ([]byte, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}
	pdf := gofpdf.New(e.orientation, "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageWidth, pageHeight := pdf.GetPageSize()
	contentWidth := pageWidth - 2*pdfMargin
	widths := columnWidths(table.Columns, contentWidth)

	generated := e.now().UTC().Format("2006-01-02 15:04 MST")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(contentWidth/2, 5, fmt.Sprintf("Generated %s", generated), "", 0, "L", false, 0, "")
		pdf.CellFormat(contentWidth/2, 5, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	headers := table.headers()

	writeHeader := func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for i, header := range headers {
			pdf.CellFormat(widths[i], pdfHeaderRow, tr(header), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}

	pdf.AddPage()
	if table.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(table.Title), "", 1, "C", false, 0, "")
	}
	if table.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(table.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)
	writeHeader()

	bottom := pageHeight - pdfMargin - pdfFooterSize
	for _, row := range table.Rows {
		if pdf.GetY()+pdfBodyRow > bottom {
			pdf.AddPage()
			writeHeader()
		}
		for i, value := range table.record(row) {
			pdf.CellFormat(widths[i], pdfBodyRow, tr(value), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(columns []Column, available float64) []float64 {
	total := 0.0
	for _, col := range columns {
		total += weightOf(col)
	}
	widths := make([]float64, len(columns))
	for i, col := range columns {
		widths[i] = available * weightOf(col) / total
	}
	return widths
}

func weightOf(col Column) float64 {
	if col.Weight <= 0 {
		return 1
	}
	return col.Weight
}
