package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

// tinyPNG returns a valid 2x2 PNG.
func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func imgSources(root *html.Node) []string {
	var srcs []string
	walkElements(root, func(n *html.Node) {
		if n.Data == "img" {
			src, _ := getAttr(n, "src")
			srcs = append(srcs, src)
		}
	})
	return srcs
}

func TestInlineRemoteImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chart.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(tinyPNG(t))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := mustClone(t,
		`<div>`+
			`<img src="`+srv.URL+`/chart.png">`+
			`<img src="data:image/png;base64,AA==">`+
			`<img src="logo.png">`+
			`<img src="`+srv.URL+`/missing.png">`+
			`</div>`, nil, nil)

	rep := testNormalizer().inlineRemoteImages(context.Background(), c)

	if rep.Inlined != 1 {
		t.Errorf("Inlined = %d, want 1", rep.Inlined)
	}
	if len(rep.Skips) != 1 {
		t.Fatalf("Skips = %v, want exactly one", rep.Skips)
	}
	if !strings.Contains(rep.Skips[0].URL, "/missing.png") {
		t.Errorf("skip recorded for wrong URL: %s", rep.Skips[0].URL)
	}
	if !strings.Contains(rep.Skips[0].Reason, "404") {
		t.Errorf("skip reason %q should mention the status", rep.Skips[0].Reason)
	}

	srcs := imgSources(c.Root)
	if !strings.HasPrefix(srcs[0], "data:image/png;base64,") {
		t.Errorf("remote image not inlined: %s", srcs[0])
	}
	if srcs[1] != "data:image/png;base64,AA==" {
		t.Errorf("embedded image rewritten: %s", srcs[1])
	}
	if srcs[2] != "logo.png" {
		t.Errorf("relative image rewritten: %s", srcs[2])
	}
	if !strings.Contains(srcs[3], "/missing.png") {
		t.Errorf("failed image should be left as-is: %s", srcs[3])
	}
}

func TestInlineRemoteImagesIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(tinyPNG(t))
	}))
	defer srv.Close()

	c := mustClone(t, `<div><img src="`+srv.URL+`/a.png"></div>`, nil, nil)
	nz := testNormalizer()

	first := nz.inlineRemoteImages(context.Background(), c)
	if first.Inlined != 1 {
		t.Fatalf("first pass Inlined = %d, want 1", first.Inlined)
	}
	after := imgSources(c.Root)[0]

	second := nz.inlineRemoteImages(context.Background(), c)
	if second.Inlined != 0 || len(second.Skips) != 0 {
		t.Errorf("second pass should be a no-op, got %+v", second)
	}
	if imgSources(c.Root)[0] != after {
		t.Error("second pass rewrote an already-inlined image")
	}
}

func TestInlineRemoteImagesRejectsNonImagePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>login required</body></html>"))
	}))
	defer srv.Close()

	c := mustClone(t, `<div><img src="`+srv.URL+`/a.png"></div>`, nil, nil)
	rep := testNormalizer().inlineRemoteImages(context.Background(), c)

	if rep.Inlined != 0 {
		t.Errorf("non-image payload was inlined")
	}
	if len(rep.Skips) != 1 || !strings.Contains(rep.Skips[0].Reason, "not an image") {
		t.Errorf("expected not-an-image skip, got %v", rep.Skips)
	}
}

func TestIsRemoteURL(t *testing.T) {
	tests := []struct {
		src      string
		expected bool
	}{
		{"http://host/a.png", true},
		{"https://host/a.png", true},
		{"data:image/png;base64,AA==", false},
		{"logo.png", false},
		{"/static/logo.png", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isRemoteURL(tt.src); got != tt.expected {
			t.Errorf("isRemoteURL(%q) = %v, want %v", tt.src, got, tt.expected)
		}
	}
}
