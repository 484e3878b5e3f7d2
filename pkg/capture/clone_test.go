package capture

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func mustClone(t *testing.T, markup string, geometry map[int]Geometry, surfaces map[int]Surface) *Clone {
	t.Helper()
	c, err := NewClone(markup, geometry, surfaces)
	if err != nil {
		t.Fatalf("NewClone: %v", err)
	}
	return c
}

// findByClass returns the first element carrying the given class.
func findByClass(root *html.Node, class string) *html.Node {
	var found *html.Node
	walkElements(root, func(n *html.Node) {
		if found == nil && hasClass(n, class) {
			found = n
		}
	})
	return found
}

func findByTag(root *html.Node, tag string) *html.Node {
	var found *html.Node
	walkElements(root, func(n *html.Node) {
		if found == nil && n.Data == tag {
			found = n
		}
	})
	return found
}

func TestNewCloneStampsDocumentOrderIndexes(t *testing.T) {
	c := mustClone(t, `<div><h1>t</h1><section><p>a</p></section><span>b</span></div>`, nil, nil)

	want := map[string]int{"div": 0, "h1": 1, "section": 2, "p": 3, "span": 4}
	walkElements(c.Root, func(n *html.Node) {
		idx, ok := nodeIndex(n)
		if !ok {
			t.Fatalf("element %s has no index", n.Data)
		}
		if expected, found := want[n.Data]; found && idx != expected {
			t.Errorf("element %s stamped %d, want %d", n.Data, idx, expected)
		}
	})
}

func TestNewCloneRejectsEmptyRegion(t *testing.T) {
	if _, err := NewClone("   ", nil, nil); err == nil {
		t.Error("expected error for region with no element")
	}
	if _, err := NewClone("just text", nil, nil); err == nil {
		t.Error("expected error for text-only region")
	}
}

func TestCloneHTMLStripsIndexAttributes(t *testing.T) {
	c := mustClone(t, `<div class="report"><p>hello</p></div>`, nil, nil)
	out, err := c.HTML()
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if strings.Contains(out, indexAttr) {
		t.Errorf("serialized clone leaks %s: %s", indexAttr, out)
	}
	if !strings.Contains(out, `class="report"`) || !strings.Contains(out, "hello") {
		t.Errorf("serialized clone lost content: %s", out)
	}
}

func TestRectOverlapsVertically(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Rect
		expected bool
	}{
		{"clear overlap", Rect{Top: 0, Height: 50}, Rect{Top: 25, Height: 50}, true},
		{"contained", Rect{Top: 0, Height: 100}, Rect{Top: 40, Height: 10}, true},
		{"disjoint", Rect{Top: 0, Height: 50}, Rect{Top: 60, Height: 50}, false},
		{"touching edges", Rect{Top: 0, Height: 50}, Rect{Top: 50, Height: 50}, false},
		{"zero height never overlaps", Rect{Top: 0, Height: 0}, Rect{Top: 0, Height: 50}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.OverlapsVertically(tt.b); got != tt.expected {
				t.Errorf("OverlapsVertically = %v, want %v", got, tt.expected)
			}
			if got := tt.b.OverlapsVertically(tt.a); got != tt.expected {
				t.Errorf("overlap not symmetric: %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseStyleRoundTrip(t *testing.T) {
	decls := parseStyle("transform: scale(0.8) translateX(-10px); margin-left: -40px;;")
	if len(decls) != 2 {
		t.Fatalf("parseStyle returned %d decls, want 2", len(decls))
	}
	if v, _ := getDecl(decls, "transform"); v != "scale(0.8) translateX(-10px)" {
		t.Errorf("transform = %q", v)
	}
	decls = putDecl(decls, "margin-left", "0")
	if got := renderStyle(decls); got != "transform: scale(0.8) translateX(-10px); margin-left: 0" {
		t.Errorf("renderStyle = %q", got)
	}
}
