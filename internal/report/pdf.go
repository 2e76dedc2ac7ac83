package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// WritePDF renders a digest grouped by category: each article title links to
// its page and is followed by its bullets.
func WritePDF(path string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	// core fonts are cp1252; translate bullets and quotes
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("News digest", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	heading := "News digest"
	if !r.StartedAt.IsZero() {
		heading += " " + r.StartedAt.Format("2006-01-02")
	}
	pdf.CellFormat(0, 10, tr(heading), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("%d articles, %d persisted", r.Stats.Processed, r.Stats.Persisted)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	cats, groups := byCategory(r.Articles)
	for _, cat := range cats {
		name := cat
		if strings.TrimSpace(name) == "" {
			name = "Uncategorized"
		}
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 8, tr(name), "", 1, "L", false, 0, "")
		for _, a := range groups[cat] {
			pdf.SetFont("Helvetica", "B", 11)
			pdf.WriteLinkString(5, tr(a.Title), a.URL)
			pdf.Ln(6)
			pdf.SetFont("Helvetica", "I", 9)
			meta := a.Source
			if !a.Published.IsZero() {
				meta += " | " + a.Published.Format("2006-01-02 15:04")
			}
			if a.SummarizedBy != "" {
				meta += " | " + a.SummarizedBy
			}
			pdf.MultiCell(0, 4, tr(strings.TrimPrefix(meta, " | ")), "", "L", false)
			pdf.SetFont("Helvetica", "", 11)
			for _, b := range a.Summary {
				pdf.MultiCell(0, 5, tr("• "+string(b)), "", "L", false)
			}
			pdf.Ln(3)
		}
	}
	return pdf.OutputFileAndClose(path)
}
