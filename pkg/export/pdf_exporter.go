package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Relative column widths for the schedule layout. Time columns are narrow,
// identifier columns get the extra room. Unknown columns weigh 1.
var scheduleColumnWeights = map[string]float64{
	"Section":    1.25,
	"Course":     1.25,
	"Department": 1.0,
	"Day":        1.0,
	"Start":      0.55,
	"End":        0.55,
	"Day Part":   0.9,
	"Room":       1.0,
	"Building":   1.25,
}

const (
	pdfUsableWidth = 277.0
	pdfHeaderRowH  = 8.0
	pdfBodyRowH    = 7.0
	pdfBreakY      = 185.0
)

// PDFExporter renders schedule datasets into a tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a landscape PDF with the schedule table, repeating the
// header row after page breaks. Exam timetables are wide, hence landscape.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	columns := data.Columns()
	widths := columnWidths(columns)

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	writeHeader := func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for i, column := range columns {
			pdf.CellFormat(widths[i], pdfHeaderRowH, column, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}
	writeHeader()

	for _, row := range data.Rows {
		if pdf.GetY() > pdfBreakY {
			pdf.AddPage()
			writeHeader()
		}
		for i, column := range columns {
			pdf.CellFormat(widths[i], pdfBodyRowH, row[column], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(columns []string) []float64 {
	total := 0.0
	weights := make([]float64, len(columns))
	for i, column := range columns {
		w, ok := scheduleColumnWeights[column]
		if !ok {
			w = 1.0
		}
		weights[i] = w
		total += w
	}
	widths := make([]float64, len(columns))
	for i, w := range weights {
		widths[i] = pdfUsableWidth * w / total
	}
	return widths
}
