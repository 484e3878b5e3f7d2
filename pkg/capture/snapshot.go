package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"

	"github.com/yourusername/report-export-app/pkg/model"
)

// snapshotJS captures, in one atomic read-only evaluation, everything the
// Go side needs to build a detached clone: the region's markup, per-element
// bounding rects with computed background colors, and per-canvas pixel data.
// Elements are numbered in document order with the region root at 0, which
// matches the Go side's pre-order walk over the parsed markup.
const snapshotJS = `(sel) => {
	const root = document.querySelector(sel);
	if (!root) return null;
	const els = [root, ...root.querySelectorAll('*')];
	const out = { html: root.outerHTML, geometry: [], surfaces: [] };
	els.forEach((el, i) => {
		const r = el.getBoundingClientRect();
		const cs = getComputedStyle(el);
		out.geometry.push({ i: i, top: r.top, left: r.left, width: r.width, height: r.height, bg: cs.backgroundColor });
		if (el.tagName === 'CANVAS') {
			let url = '';
			try { url = el.toDataURL('image/png'); } catch (err) { /* tainted surface */ }
			out.surfaces.push({ i: i, url: url, width: el.width, height: el.height });
		}
	});
	return out;
}`

// Region identifies the live visual region on a rod page. It is the
// pipeline's handle onto the report-rendering layer: Snapshot reads it,
// Switcher asks the surrounding application to show a different entity.
// The region itself is never mutated by this package.
type Region struct {
	page     *rod.Page
	selector string
	cfg      model.CaptureConfig
	log      *slog.Logger
}

// NewRegion wraps a live page region for capture.
func NewRegion(page *rod.Page, selector string, cfg model.CaptureConfig, logger *slog.Logger) *Region {
	if cfg.TimeoutMS <= 0 {
		cfg.TimeoutMS = 30000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Region{page: page, selector: selector, cfg: cfg, log: logger}
}

// Snapshot captures a detached clone of the region. The live page is only
// read; every later mutation happens on the returned clone.
func (r *Region) Snapshot(ctx context.Context) (*Clone, error) {
	res, err := r.page.Context(ctx).Timeout(time.Duration(r.cfg.TimeoutMS) * time.Millisecond).
		Eval(snapshotJS, r.selector)
	if err != nil {
		return nil, fmt.Errorf("capture: snapshot region %q: %w", r.selector, err)
	}
	if res.Value.Nil() {
		return nil, fmt.Errorf("capture: region %q not found", r.selector)
	}

	regionHTML := res.Value.Get("html").Str()
	geometry := make(map[int]Geometry)
	for _, g := range res.Value.Get("geometry").Arr() {
		geometry[g.Get("i").Int()] = Geometry{
			Rect: Rect{
				Top:    g.Get("top").Num(),
				Left:   g.Get("left").Num(),
				Width:  g.Get("width").Num(),
				Height: g.Get("height").Num(),
			},
			Background: g.Get("bg").Str(),
		}
	}
	surfaces := make(map[int]Surface)
	for _, s := range res.Value.Get("surfaces").Arr() {
		surfaces[s.Get("i").Int()] = Surface{
			DataURL: s.Get("url").Str(),
			Width:   s.Get("width").Int(),
			Height:  s.Get("height").Int(),
		}
	}

	r.log.Debug("capture: snapshot complete",
		"selector", r.selector, "elements", len(geometry), "surfaces", len(surfaces))
	return NewClone(regionHTML, geometry, surfaces)
}

// Switcher returns a hook that runs the job's switch script for an entity
// and waits for the region to settle before the next capture begins. The
// script receives the entity id as its argument, e.g.
// `(id) => window.reportApp.showEntity(id)`.
func (r *Region) Switcher(script string) func(ctx context.Context, entityID string) error {
	return func(ctx context.Context, entityID string) error {
		page := r.page.Context(ctx).Timeout(time.Duration(r.cfg.TimeoutMS) * time.Millisecond)
		if _, err := page.Eval(script, entityID); err != nil {
			return fmt.Errorf("capture: switch to entity %q: %w", entityID, err)
		}
		// Let async sub-renders (charts redrawing) finish before capture.
		page.WaitIdle(time.Duration(r.cfg.TimeoutMS) * time.Millisecond)
		if r.cfg.DelayMS > 0 {
			time.Sleep(time.Duration(r.cfg.DelayMS) * time.Millisecond)
		}
		return nil
	}
}
