// Package export orchestrates the capture pipeline for single entities and
// for ordered batches, folding every per-item failure into the manifest so
// one bad entity never aborts a run.
package export

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"

	"github.com/yourusername/report-export-app/pkg/capture"
	"github.com/yourusername/report-export-app/pkg/model"
	"github.com/yourusername/report-export-app/pkg/render"
)

// Source produces a detached clone of the live visual region as it stands
// right now. The live region is only read, never mutated.
type Source interface {
	Snapshot(ctx context.Context) (*capture.Clone, error)
}

// SwitchFunc updates the live visual region to represent the given entity
// and returns only once the region has fully settled. It is the boundary to
// the report-rendering layer.
type SwitchFunc func(ctx context.Context, entityID string) error

// Exporter runs clone -> normalize -> rasterize -> encode for one entity at
// a time.
type Exporter struct {
	source     Source
	normalizer *capture.Normalizer
	backend    render.Backend
	scale      float64
	log        *slog.Logger
}

// NewExporter creates an exporter. A zero scale falls back to 2x.
func NewExporter(source Source, normalizer *capture.Normalizer, backend render.Backend, scale float64, log *slog.Logger) *Exporter {
	if scale <= 0 {
		scale = 2.0
	}
	if log == nil {
		log = slog.Default()
	}
	return &Exporter{
		source:     source,
		normalizer: normalizer,
		backend:    backend,
		scale:      scale,
		log:        log,
	}
}

// ExportOne captures the current region on behalf of entityID. It never
// returns an error: every failure is classified and folded into the item.
func (e *Exporter) ExportOne(ctx context.Context, entityID string) model.ExportItem {
	clone, err := e.source.Snapshot(ctx)
	if err != nil {
		e.log.Error("export: snapshot failed", "entity", entityID, "error", err)
		return model.FailedItem(entityID, model.ErrorKindCapture, err)
	}

	rep := e.normalizer.Normalize(ctx, clone)
	for _, skip := range rep.Skips {
		e.log.Warn("export: resource skipped", "entity", entityID, "url", skip.URL, "reason", skip.Reason)
	}

	result, err := e.backend.Rasterize(ctx, clone, entityID, e.scale)
	if err != nil {
		e.log.Error("export: rasterize failed", "entity", entityID, "error", err)
		return model.FailedItem(entityID, model.ErrorKindCapture, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, result.Image); err != nil {
		e.log.Error("export: encode failed", "entity", entityID, "error", err)
		return model.FailedItem(entityID, model.ErrorKindEncode, err)
	}

	e.log.Info("export: entity captured",
		"entity", entityID,
		"width", result.Width,
		"height", result.Height,
		"bytes", buf.Len())
	return model.SuccessItem(entityID, buf.Bytes())
}

// ExportToFile captures the current region and writes the PNG to path.
// Standalone mode: one entity, straight to disk.
func (e *Exporter) ExportToFile(ctx context.Context, entityID, path string) error {
	item := e.ExportOne(ctx, entityID)
	if item.Failed() {
		return fmt.Errorf("export %s: %s: %s", entityID, item.ErrorKind, item.Message)
	}
	if err := os.WriteFile(path, item.Bytes, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
