package tables

import (
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// WritePDF renders tables as bordered grids on landscape A4 pages, one titled
// section per table. The first row is set in bold. Cell text that does not fit
// its column is cut with an ellipsis.
func WritePDF(path, title string, tables []Table) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Helvetica", "B", 14)
	pdf.AddPage()
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")

	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageW - left - right

	for i, t := range tables {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 8, fmt.Sprintf("Table %d", i+1), "", 1, "L", false, 0, "")
		cols := t.Width()
		if cols == 0 {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.CellFormat(0, 6, "(empty)", "", 1, "L", false, 0, "")
			continue
		}
		colW := usable / float64(cols)
		for r, row := range t.Rows {
			style := ""
			if r == 0 {
				style = "B"
			}
			pdf.SetFont("Helvetica", style, 8)
			for c := 0; c < cols; c++ {
				text := ""
				if c < len(row) {
					text = fitWidth(pdf, tr(row[c]), colW-2)
				}
				pdf.CellFormat(colW, 6, text, "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}
	return pdf.OutputFileAndClose(path)
}

func fitWidth(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	const ellipsis = "..."
	for len(s) > 0 && pdf.GetStringWidth(s+ellipsis) > width {
		s = s[:len(s)-1]
	}
	return strings.TrimSpace(s) + ellipsis
}
