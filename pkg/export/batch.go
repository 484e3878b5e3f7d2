package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yourusername/report-export-app/pkg/model"
	"github.com/yourusername/report-export-app/pkg/progress"
)

// Batcher runs ordered batch exports over a shared live region. Items are
// processed strictly sequentially: every entity renders into the same
// region, so the switch hook must fully settle before the next capture.
type Batcher struct {
	exporter *Exporter
	reporter progress.Reporter
	log      *slog.Logger
}

// NewBatcher creates a batch orchestrator. A nil reporter discards events.
func NewBatcher(exporter *Exporter, reporter progress.Reporter, log *slog.Logger) *Batcher {
	if reporter == nil {
		reporter = progress.NullReporter{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Batcher{exporter: exporter, reporter: reporter, log: log}
}

// ExportAll processes entityIDs in order, switching the live region to each
// entity before capturing it, and packs the successes into a flat ZIP.
//
// Per-item failures are folded into the manifest and never abort the run.
// Cancellation is checked only between items so the shared region is never
// left half switched; an aborted run still yields an archive of the items
// finished so far. Only archive finalization errors are returned.
func (b *Batcher) ExportAll(ctx context.Context, entityIDs []string, switchTo SwitchFunc) (*model.BatchManifest, []byte, error) {
	manifest := &model.BatchManifest{Items: make([]model.ExportItem, 0, len(entityIDs))}
	if len(entityIDs) == 0 {
		return manifest, nil, nil
	}

	total := len(entityIDs)
	b.reporter.Report(progress.Event{Phase: progress.PhaseStart, Total: total})

	for i, id := range entityIDs {
		if err := ctx.Err(); err != nil {
			manifest.Aborted = true
			b.log.Warn("export: batch aborted", "processed", i, "total", total)
			b.reporter.Report(progress.Event{Phase: progress.PhaseAborted, Current: i, Total: total})
			break
		}

		var item model.ExportItem
		if err := switchTo(ctx, id); err != nil {
			item = model.FailedItem(id, model.ErrorKindSwitch, err)
			b.log.Error("export: switch failed", "entity", id, "error", err)
		} else {
			item = b.exporter.ExportOne(ctx, id)
		}
		manifest.Items = append(manifest.Items, item)

		b.reporter.Report(progress.Event{
			Phase:    progress.PhaseItem,
			Current:  i + 1,
			Total:    total,
			EntityID: id,
			Failed:   item.Failed(),
			Message:  item.Message,
		})
	}

	archive, err := BuildArchive(manifest.Items)
	if err != nil {
		b.reporter.Report(progress.Event{Phase: progress.PhaseFailed, Total: total, Message: err.Error()})
		return manifest, nil, fmt.Errorf("%s: %w", model.ErrorKindArchive, err)
	}

	if !manifest.Aborted {
		b.reporter.Report(progress.Event{Phase: progress.PhaseDone, Current: total, Total: total})
	}
	b.log.Info("export: batch finished",
		"total", total,
		"succeeded", manifest.Succeeded(),
		"failed", manifest.Failed(),
		"aborted", manifest.Aborted,
		"archive_bytes", len(archive))
	return manifest, archive, nil
}
