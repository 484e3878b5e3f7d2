// Package progress reports batch export lifecycle events to interested
// observers without coupling the exporter to a delivery channel.
package progress

import (
	"fmt"
	"log/slog"
)

// Phase identifies where in the batch lifecycle an event was emitted.
type Phase string

const (
	// PhaseStart fires once before the first item is processed.
	PhaseStart Phase = "start"
	// PhaseItem fires after each item completes, success or failure.
	PhaseItem Phase = "item"
	// PhaseDone fires once after the archive is finalized.
	PhaseDone Phase = "done"
	// PhaseAborted fires when the batch stops early on cancellation.
	PhaseAborted Phase = "aborted"
	// PhaseFailed fires when the batch cannot produce an archive at all.
	PhaseFailed Phase = "failed"
)

// Event describes one step of a batch export. Current counts processed
// items, so for PhaseItem it runs 1..Total.
type Event struct {
	Phase    Phase
	Current  int
	Total    int
	EntityID string
	Failed   bool
	Message  string
}

// Reporter receives progress events. Implementations must not block; slow
// consumers stall the export loop.
type Reporter interface {
	Report(ev Event)
}

// NullReporter discards all events.
type NullReporter struct{}

func (NullReporter) Report(Event) {}

// FuncReporter adapts a function to the Reporter interface.
type FuncReporter func(ev Event)

func (f FuncReporter) Report(ev Event) { f(ev) }

// LogReporter writes events to a structured logger.
type LogReporter struct {
	Log *slog.Logger
}

// NewLogReporter creates a reporter backed by the given logger. A nil
// logger falls back to slog.Default().
func NewLogReporter(log *slog.Logger) *LogReporter {
	if log == nil {
		log = slog.Default()
	}
	return &LogReporter{Log: log}
}

func (r *LogReporter) Report(ev Event) {
	switch ev.Phase {
	case PhaseStart:
		r.Log.Info("progress: batch started", "total", ev.Total)
	case PhaseItem:
		if ev.Failed {
			r.Log.Warn("progress: item failed",
				"entity", ev.EntityID,
				"progress", fmt.Sprintf("%d/%d", ev.Current, ev.Total),
				"reason", ev.Message)
		} else {
			r.Log.Info("progress: item exported",
				"entity", ev.EntityID,
				"progress", fmt.Sprintf("%d/%d", ev.Current, ev.Total))
		}
	case PhaseDone:
		r.Log.Info("progress: batch complete", "total", ev.Total)
	case PhaseAborted:
		r.Log.Warn("progress: batch aborted", "processed", ev.Current, "total", ev.Total)
	case PhaseFailed:
		r.Log.Error("progress: batch failed", "reason", ev.Message)
	}
}
