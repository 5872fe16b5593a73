package report

import (
	"fmt"
	"io"

	"github.com/couchcryptid/fertigation-mix/internal/domain"
	"github.com/phpdave11/gofpdf"
)

const (
	pageWidth   = 277.0 // A4 landscape minus default margins, mm
	labelWidth  = 22.0
	cellHeight  = 6.0
	titleHeight = 10.0
)

// WritePDF renders the final mix table on a landscape A4 page.
func WritePDF(w io.Writer, final domain.FinalReport) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Fertigation mix report", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, titleHeight, "Fertigation mix report")
	pdf.Ln(titleHeight + 2)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, cellHeight, fmt.Sprintf("pH target %.1f, applied %.1f", final.PHTarget, final.PHApplied))
	pdf.Ln(cellHeight)
	pdf.Cell(0, cellHeight, fmt.Sprintf("Volumes: A %.3f L, B %.3f L, water %.3f L (total %.3f L)",
		final.Volumes.A, final.Volumes.B, final.Volumes.Water, final.Volumes.Total()))
	pdf.Ln(cellHeight)
	pdf.Cell(0, cellHeight, fmt.Sprintf("EC total %.3f dS/m", final.ECTotal))
	pdf.Ln(cellHeight + 4)

	writeTable(pdf, mixTable(final))

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func writeTable(pdf *gofpdf.Fpdf, t table) {
	colWidth := (pageWidth - labelWidth) / float64(len(t.header)-1)

	pdf.SetFont("Helvetica", "B", 7)
	for i, h := range t.header {
		width := colWidth
		if i == 0 {
			width = labelWidth
		}
		pdf.CellFormat(width, cellHeight, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 7)
	for _, r := range t.rows {
		pdf.CellFormat(labelWidth, cellHeight, r.label, "1", 0, "L", false, 0, "")
		for _, c := range r.cells {
			pdf.CellFormat(colWidth, cellHeight, formatCell(c), "1", 0, "R", false, 0, "")
		}
		pdf.Ln(-1)
	}
}
