package progress

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestFuncReporterForwardsEvents(t *testing.T) {
	var got []Event
	r := FuncReporter(func(ev Event) { got = append(got, ev) })

	r.Report(Event{Phase: PhaseStart, Total: 3})
	r.Report(Event{Phase: PhaseItem, Current: 1, Total: 3, EntityID: "a"})
	r.Report(Event{Phase: PhaseDone, Total: 3})

	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	if got[0].Phase != PhaseStart || got[1].EntityID != "a" || got[2].Phase != PhaseDone {
		t.Errorf("events recorded out of order: %+v", got)
	}
}

func TestNullReporterDoesNotPanic(t *testing.T) {
	NullReporter{}.Report(Event{Phase: PhaseFailed, Message: "boom"})
}

func TestLogReporterPhases(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(slog.New(slog.NewTextHandler(&buf, nil)))

	r.Report(Event{Phase: PhaseStart, Total: 2})
	r.Report(Event{Phase: PhaseItem, Current: 1, Total: 2, EntityID: "dash-1"})
	r.Report(Event{Phase: PhaseItem, Current: 2, Total: 2, EntityID: "dash-2", Failed: true, Message: "capture_failure"})
	r.Report(Event{Phase: PhaseAborted, Current: 2, Total: 5})

	out := buf.String()
	for _, want := range []string{"batch started", "item exported", "dash-1", "item failed", "capture_failure", "batch aborted"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestNewLogReporterNilLoggerDefaults(t *testing.T) {
	if r := NewLogReporter(nil); r.Log == nil {
		t.Error("nil logger should default")
	}
}
