// Package pdf renders a batch manifest into a booklet, one captured entity
// per page, as an alternative delivery format to the ZIP archive.
package pdf

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/jung-kurt/gofpdf"

	"github.com/yourusername/report-export-app/pkg/model"
)

const (
	pageMarginMM = 12.0
	headerGapMM  = 8.0
)

// BuildBooklet lays out the successful items of a manifest as an A4
// portrait PDF. Each page carries the entity name as a header and the
// captured PNG scaled to fit inside the page margins without distortion.
// Failed items are skipped. An empty manifest yields an error since a
// zero-page booklet is not a useful artifact.
func BuildBooklet(items []model.ExportItem) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetTitle("Report export", false)

	pages := 0
	for i, it := range items {
		if it.Failed() {
			continue
		}
		cfg, err := png.DecodeConfig(bytes.NewReader(it.Bytes))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", it.EntityID, err)
		}

		doc.AddPage()
		doc.SetFont("Helvetica", "B", 14)
		doc.CellFormat(0, 8, it.EntityID, "", 1, "L", false, 0, "")

		pageW, pageH := doc.GetPageSize()
		availW := pageW - 2*pageMarginMM
		availH := pageH - 2*pageMarginMM - headerGapMM

		// Fit the image preserving aspect ratio.
		w := availW
		h := w * float64(cfg.Height) / float64(cfg.Width)
		if h > availH {
			h = availH
			w = h * float64(cfg.Width) / float64(cfg.Height)
		}

		name := fmt.Sprintf("item-%d", i)
		doc.RegisterImageOptionsReader(name,
			gofpdf.ImageOptions{ImageType: "PNG"},
			bytes.NewReader(it.Bytes))
		doc.ImageOptions(name, pageMarginMM, pageMarginMM+headerGapMM, w, h, false,
			gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		pages++
	}

	if pages == 0 {
		return nil, fmt.Errorf("no successful items to lay out")
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render booklet: %w", err)
	}
	return buf.Bytes(), nil
}
