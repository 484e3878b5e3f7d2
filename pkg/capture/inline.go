package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html/atom"

	// Broaden the set of remote image formats that can be re-encoded.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	_ "image/gif"
	_ "image/jpeg"
)

// maxImageBytes caps how much of a remote image is read. Anything larger
// is skipped rather than inlined.
const maxImageBytes = 20 << 20

// InlineSkip records one remote image that was left un-inlined and why.
// The image node itself is untouched; a single unreachable image never
// fails the capture.
type InlineSkip struct {
	URL    string
	Reason string
}

// InlineReport is the outcome of the remote-resource inlining pass.
type InlineReport struct {
	Inlined int
	Skips   []InlineSkip
}

// inlineRemoteImages fetches every image node whose source is a network URL
// and re-encodes it as an embedded data URI. Local and already-embedded
// sources pass through unchanged. Fetch or decode problems are recorded as
// skips and the node is left as-is.
func (nz *Normalizer) inlineRemoteImages(ctx context.Context, c *Clone) *InlineReport {
	report := &InlineReport{}
	for _, n := range collectElements(c.Root) {
		if n.DataAtom != atom.Img {
			continue
		}
		src, ok := getAttr(n, "src")
		if !ok || !isRemoteURL(src) {
			continue
		}
		uri, err := nz.fetchAsDataURI(ctx, src)
		if err != nil {
			report.Skips = append(report.Skips, InlineSkip{URL: src, Reason: err.Error()})
			nz.log.Warn("capture: remote image skipped", "url", src, "error", err)
			continue
		}
		setAttr(n, "src", uri)
		report.Inlined++
	}
	return report
}

// isRemoteURL reports whether src needs fetching before capture.
func isRemoteURL(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// fetchAsDataURI downloads one image and converts it to a data URI. The
// bytes are re-encoded to PNG when the format is decodable; otherwise they
// are embedded raw under the sniffed MIME type.
func (nz *Normalizer) fetchAsDataURI(ctx context.Context, src string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := nz.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxImageBytes {
		return "", fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty response body")
	}

	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err == nil {
			return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
		}
	}
	// Not a format we can decode; embed the raw bytes under the sniffed type.
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("not an image: %s", mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
