// Package capture implements the snapshot-and-repair pipeline: it takes a
// detached copy of a live visual region and rewrites it in place so every
// element survives rasterization (drawn canvases, remote images, transformed
// or overlapping nodes). The live page is only ever read, never mutated.
package capture

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// indexAttr stamps each element with its document-order index so repair
// passes can correlate tree nodes with live-page geometry even after the
// tree structure changes.
const indexAttr = "data-snap-index"

// Rect is an on-screen bounding box in CSS pixels, live-page coordinates.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bottom returns the lower edge of the box.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// OverlapsVertically reports whether two boxes share any vertical span.
// Zero-height boxes never overlap.
func (r Rect) OverlapsVertically(o Rect) bool {
	if r.Height <= 0 || o.Height <= 0 {
		return false
	}
	return r.Top < o.Bottom() && o.Top < r.Bottom()
}

// Geometry is the layout observed for one element on the live page.
type Geometry struct {
	Rect       Rect
	Background string // computed background-color, e.g. "rgb(255, 255, 255)"
}

// Surface is a drawn canvas captured as a PNG data URL. Width/Height are
// the canvas's reported pixel dimensions, which may be zero.
type Surface struct {
	DataURL string
	Width   int
	Height  int
}

// Clone is a disposable, detached copy of one entity's visual region.
// It is owned exclusively by a single export operation: normalization
// mutates it freely and rasterization consumes it. Mutations are never
// observable on the live region it was copied from.
type Clone struct {
	Root     *html.Node
	Geometry map[int]Geometry
	Surfaces map[int]Surface
}

// NewClone parses serialized region HTML into a detached clone and stamps
// every element with its document-order index (root = 0). Geometry and
// surface maps are keyed by that same indexing.
func NewClone(regionHTML string, geometry map[int]Geometry, surfaces map[int]Surface) (*Clone, error) {
	root, err := parseRegion(regionHTML)
	if err != nil {
		return nil, err
	}
	if geometry == nil {
		geometry = map[int]Geometry{}
	}
	if surfaces == nil {
		surfaces = map[int]Surface{}
	}
	c := &Clone{Root: root, Geometry: geometry, Surfaces: surfaces}
	idx := 0
	walkElements(root, func(n *html.Node) {
		setAttr(n, indexAttr, strconv.Itoa(idx))
		idx++
	})
	return c, nil
}

// parseRegion parses an HTML fragment and returns its first element node,
// fully detached from any parent document.
func parseRegion(regionHTML string) (*html.Node, error) {
	ctxNode := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(regionHTML), ctxNode)
	if err != nil {
		return nil, fmt.Errorf("capture: parse region: %w", err)
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			n.Parent = nil
			n.PrevSibling = nil
			n.NextSibling = nil
			return n, nil
		}
	}
	return nil, fmt.Errorf("capture: region contains no element")
}

// HTML serializes the clone back to markup, dropping the internal index
// attributes. Called once, after normalization, to feed the rasterizer.
func (c *Clone) HTML() (string, error) {
	if c == nil || c.Root == nil {
		return "", fmt.Errorf("capture: empty clone")
	}
	walkElements(c.Root, func(n *html.Node) {
		removeAttr(n, indexAttr)
	})
	var buf bytes.Buffer
	if err := html.Render(&buf, c.Root); err != nil {
		return "", fmt.Errorf("capture: render clone: %w", err)
	}
	return buf.String(), nil
}

// nodeIndex returns the stamped document-order index of an element.
func nodeIndex(n *html.Node) (int, bool) {
	v, ok := getAttr(n, indexAttr)
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// walkElements visits every element under root in pre-order document order,
// root included. The visit callback may mutate the visited node's attributes
// but must not restructure the tree.
func walkElements(root *html.Node, visit func(n *html.Node)) {
	if root == nil {
		return
	}
	if root.Type == html.ElementNode {
		visit(root)
	}
	for ch := root.FirstChild; ch != nil; ch = ch.NextSibling {
		walkElements(ch, visit)
	}
}

// collectElements snapshots the element list before a structural pass so
// replacements do not disturb iteration.
func collectElements(root *html.Node) []*html.Node {
	var out []*html.Node
	walkElements(root, func(n *html.Node) { out = append(out, n) })
	return out
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// hasClass reports whether an element's class attribute contains name.
func hasClass(n *html.Node, name string) bool {
	cls, ok := getAttr(n, "class")
	if !ok || name == "" {
		return false
	}
	for _, c := range strings.Fields(cls) {
		if c == name {
			return true
		}
	}
	return false
}

// isAncestor reports whether a is an ancestor of b (or a == b).
func isAncestor(a, b *html.Node) bool {
	for n := b; n != nil; n = n.Parent {
		if n == a {
			return true
		}
	}
	return false
}
