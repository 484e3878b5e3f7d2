package pdf

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/yourusername/report-export-app/pkg/model"
)

func capturedPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{B: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestBuildBooklet(t *testing.T) {
	items := []model.ExportItem{
		model.SuccessItem("Entity A", capturedPNG(t, 800, 400)),
		model.FailedItem("Entity B", model.ErrorKindCapture, errors.New("x")),
		model.SuccessItem("Entity C", capturedPNG(t, 200, 900)),
	}
	data, err := BuildBooklet(items)
	if err != nil {
		t.Fatalf("BuildBooklet: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}
}

func TestBuildBookletEmptyManifest(t *testing.T) {
	if _, err := BuildBooklet(nil); err == nil {
		t.Error("expected error for empty manifest")
	}
	onlyFailures := []model.ExportItem{
		model.FailedItem("x", model.ErrorKindCapture, errors.New("boom")),
	}
	if _, err := BuildBooklet(onlyFailures); err == nil {
		t.Error("expected error when no item succeeded")
	}
}

func TestBuildBookletRejectsCorruptImage(t *testing.T) {
	items := []model.ExportItem{model.SuccessItem("bad", []byte("not a png"))}
	if _, err := BuildBooklet(items); err == nil {
		t.Error("expected decode error")
	}
}
