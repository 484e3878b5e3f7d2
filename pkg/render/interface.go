package render

import (
	"context"
	"fmt"

	"github.com/yourusername/report-export-app/pkg/capture"
	"github.com/yourusername/report-export-app/pkg/model"
)

// Backend turns a normalized clone into a pixel buffer at a fixed device
// scale. Implementations own a browser instance and must be closed.
type Backend interface {
	// Rasterize loads the clone into a blank page and captures it at the
	// given scale. Fails with a CaptureError when the clone cannot be
	// measured or the raster primitive rejects the content.
	Rasterize(ctx context.Context, clone *capture.Clone, entityID string, scale float64) (*model.RasterResult, error)

	// Close cleans up resources used by the backend.
	Close() error

	// Name returns the name of the backend.
	Name() string
}

// CaptureError marks content the raster primitive rejected. It signals a
// normalizer defect (e.g. a still-tainted resource), not a user-recoverable
// condition.
type CaptureError struct {
	EntityID string
	Reason   string
	Err      error
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rasterize %s: %s: %v", e.EntityID, e.Reason, e.Err)
	}
	return fmt.Sprintf("rasterize %s: %s", e.EntityID, e.Reason)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// NewBackend creates a rasterization backend: "chromium" (go-rod, the
// default) or "playwright".
func NewBackend(cfg model.CaptureConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "chromium":
		return NewChromiumRasterizer(cfg), nil
	case "playwright":
		return NewPlaywrightRasterizer(cfg), nil
	default:
		return nil, fmt.Errorf("unknown rasterizer backend %q", cfg.Backend)
	}
}

// wrapDocument embeds the serialized clone in a minimal zero-margin page so
// layout starts at the origin and output dimensions match the region.
func wrapDocument(regionHTML string) string {
	return `<!DOCTYPE html><html><head><meta charset="utf-8"><style>` +
		`html,body{margin:0;padding:0;background:transparent}` +
		`</style></head><body>` + regionHTML + `</body></html>`
}

// measureJS reads the logical size of the clone root inside the capture page.
const measureJS = `() => {
	const el = document.body.firstElementChild;
	if (!el) return { w: 0, h: 0 };
	return { w: Math.max(el.scrollWidth, el.offsetWidth), h: Math.max(el.scrollHeight, el.offsetHeight) };
}`
