package capture

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/yourusername/report-export-app/pkg/model"
)

// Fallback dimensions substituted for drawn surfaces that report zero
// width or height. A captured surface is never dropped for having unset
// dimensions.
const (
	fallbackSurfaceWidth  = 400
	fallbackSurfaceHeight = 200
)

// transparentPixel stands in for canvases whose pixels could not be read
// (e.g. cross-origin tainted surfaces).
const transparentPixel = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// Normalizer rewrites a detached clone so every element type that cannot be
// captured directly is replaced or repaired in place. All passes operate
// only on the clone; they are idempotent and tolerate missing sub-elements.
type Normalizer struct {
	cfg    model.CaptureConfig
	client *http.Client
	log    *slog.Logger
}

// NewNormalizer creates a normalizer. Zero-value config fields get defaults:
// 10s per-fetch timeout, "report-title" significant class, white background
// shade for the stacking heuristic.
func NewNormalizer(cfg model.CaptureConfig, logger *slog.Logger) *Normalizer {
	if cfg.FetchTimeoutMS <= 0 {
		cfg.FetchTimeoutMS = 10000
	}
	if cfg.SignificantClass == "" {
		cfg.SignificantClass = "report-title"
	}
	if cfg.BackgroundShade == "" {
		cfg.BackgroundShade = "rgb(255, 255, 255)"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.FetchTimeoutMS) * time.Millisecond},
		log:    logger,
	}
}

// Normalize runs all repair passes on the clone in place and reports what
// the remote-resource pass did. Safe to call on an empty clone; never
// aborts on a single bad element.
func (nz *Normalizer) Normalize(ctx context.Context, c *Clone) *InlineReport {
	if c == nil || c.Root == nil {
		return &InlineReport{}
	}
	nz.materializeSurfaces(c)
	report := nz.inlineRemoteImages(ctx, c)
	nz.repairTransforms(c)
	nz.repairStacking(c)
	return report
}

// materializeSurfaces converts every drawn canvas into a static image node
// carrying the pixels captured from the live page. The replacement keeps
// the canvas's index, id and class so later passes and page CSS still apply.
func (nz *Normalizer) materializeSurfaces(c *Clone) {
	for _, n := range collectElements(c.Root) {
		if n.DataAtom != atom.Canvas {
			continue
		}
		var surf Surface
		if idx, ok := nodeIndex(n); ok {
			surf = c.Surfaces[idx]
		}
		w, h := surf.Width, surf.Height
		if w <= 0 || h <= 0 {
			w, h = fallbackSurfaceWidth, fallbackSurfaceHeight
		}
		src := surf.DataURL
		if src == "" {
			src = transparentPixel
		}

		img := &html.Node{Type: html.ElementNode, Data: "img", DataAtom: atom.Img}
		for _, key := range []string{indexAttr, "id", "class"} {
			if v, ok := getAttr(n, key); ok {
				setAttr(img, key, v)
			}
		}
		setAttr(img, "src", src)
		setAttr(img, "width", fmt.Sprintf("%d", w))
		setAttr(img, "height", fmt.Sprintf("%d", h))
		decls := styleOf(n)
		decls = putDecl(decls, "width", fmt.Sprintf("%dpx", w))
		decls = putDecl(decls, "height", fmt.Sprintf("%dpx", h))
		applyStyle(img, decls)

		parent := n.Parent
		if parent == nil {
			// Root itself is a canvas: graft the img's identity onto it.
			n.Data = img.Data
			n.DataAtom = img.DataAtom
			n.Attr = img.Attr
			for n.FirstChild != nil {
				n.RemoveChild(n.FirstChild)
			}
			continue
		}
		parent.InsertBefore(img, n)
		parent.RemoveChild(n)
	}
}

var (
	translateRe = regexp.MustCompile(`translate(?:3d|X|Y)?\([^)]*\)`)
	scaleRe     = regexp.MustCompile(`scale(?:3d|X|Y)?\([^)]*\)`)
)

// repairTransforms strips translation components from elements that combine
// a scale transform with a translation offset, and zeroes the compensating
// margins. Scale is resolution-preserving and stays; translations would be
// re-applied on top of the rasterizer's own layout and misplace content.
// Elements without a combined scale+translate transform are left untouched.
func (nz *Normalizer) repairTransforms(c *Clone) {
	walkElements(c.Root, func(n *html.Node) {
		decls := styleOf(n)
		tf, ok := getDecl(decls, "transform")
		if !ok || !scaleRe.MatchString(tf) || !translateRe.MatchString(tf) {
			return
		}
		stripped := strings.TrimSpace(translateRe.ReplaceAllString(tf, ""))
		stripped = strings.Join(strings.Fields(stripped), " ")
		decls = putDecl(decls, "transform", stripped)
		decls = putDecl(decls, "margin-left", "0")
		decls = putDecl(decls, "margin-top", "0")
		applyStyle(n, decls)
	})
}

// repairStacking demotes elements whose painted background collides
// on-screen with the designated significant element (the report title).
// Only same-color-background candidates that vertically overlap the title
// are demoted, so unrelated layering stays intact. The significant element
// itself is never demoted.
//
// The background-shade equality check is a placeholder heuristic inherited
// from the capture pipeline's origins; it protects the title on the default
// color scheme and nothing more.
func (nz *Normalizer) repairStacking(c *Clone) {
	sig := nz.findSignificant(c.Root)
	if sig == nil {
		return
	}
	sigIdx, ok := nodeIndex(sig)
	if !ok {
		return
	}
	sigGeom, ok := c.Geometry[sigIdx]
	if !ok {
		return
	}

	walkElements(c.Root, func(n *html.Node) {
		if n == sig || isAncestor(n, sig) {
			return
		}
		idx, ok := nodeIndex(n)
		if !ok {
			return
		}
		g, ok := c.Geometry[idx]
		if !ok {
			return
		}
		if g.Background != nz.cfg.BackgroundShade {
			return
		}
		if !g.Rect.OverlapsVertically(sigGeom.Rect) {
			return
		}
		decls := styleOf(n)
		decls = putDecl(decls, "z-index", "-1")
		if _, has := getDecl(decls, "position"); !has {
			decls = putDecl(decls, "position", "relative")
		}
		applyStyle(n, decls)
	})
}

// findSignificant locates the stacking-significant element: the first node
// carrying the configured class, falling back to the first heading.
func (nz *Normalizer) findSignificant(root *html.Node) *html.Node {
	var byClass, byHeading *html.Node
	walkElements(root, func(n *html.Node) {
		if byClass == nil && hasClass(n, nz.cfg.SignificantClass) {
			byClass = n
		}
		if byHeading == nil {
			switch n.DataAtom {
			case atom.H1, atom.H2:
				byHeading = n
			}
		}
	})
	if byClass != nil {
		return byClass
	}
	return byHeading
}
