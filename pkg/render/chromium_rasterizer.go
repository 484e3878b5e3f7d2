package render

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/yourusername/report-export-app/pkg/capture"
	"github.com/yourusername/report-export-app/pkg/model"
)

// ChromiumRasterizer captures clones using a headless Chromium via go-rod.
type ChromiumRasterizer struct {
	cfg        model.CaptureConfig
	browser    *rod.Browser
	instanceID string // unique ID for this rasterizer instance
	profileDir string // unique profile directory for this instance
	log        *slog.Logger
}

// generateInstanceID creates a unique identifier for a rasterizer instance.
func generateInstanceID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// NewChromiumRasterizer creates a new Chromium rasterizer. The browser is
// launched lazily on first use.
func NewChromiumRasterizer(cfg model.CaptureConfig) *ChromiumRasterizer {
	if cfg.Scale <= 0 {
		cfg.Scale = 2.0
	}
	if cfg.TimeoutMS <= 0 {
		cfg.TimeoutMS = 30000
	}
	if !cfg.Headless {
		cfg.Headless = true
	}

	instanceID := generateInstanceID()
	return &ChromiumRasterizer{
		cfg:        cfg,
		browser:    nil, // lazy initialization
		instanceID: instanceID,
		profileDir: fmt.Sprintf("/tmp/.chromium-profile-%s", instanceID),
		log:        slog.Default(),
	}
}

// findChromeBinary tries to locate a Chrome binary in common locations.
func (r *ChromiumRasterizer) findChromeBinary() string {
	candidatePaths := []string{
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/snap/bin/chromium",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
	}
	for _, path := range candidatePaths {
		if info, err := os.Stat(path); err == nil && info.Mode()&0111 != 0 {
			return path
		}
	}
	return ""
}

// getBrowser initializes or returns the existing browser instance.
func (r *ChromiumRasterizer) getBrowser() (*rod.Browser, error) {
	if r.browser != nil {
		return r.browser, nil
	}

	os.MkdirAll(r.profileDir, 0755)

	l := launcher.New()

	chromePath := r.cfg.ChromiumPath
	if chromePath == "" {
		chromePath = r.findChromeBinary()
	}
	if chromePath != "" {
		l = l.Bin(chromePath)
		r.log.Info("render: using chrome binary", "path", chromePath)
	}

	if r.cfg.NoSandbox {
		l = l.Set("no-sandbox")
		l = l.Set("disable-setuid-sandbox")
	}
	l = l.Set("disable-dev-shm-usage")
	l = l.Set("disable-gpu")
	l = l.Set("no-first-run")
	l = l.Set("no-default-browser-check")
	l = l.Set("user-data-dir", r.profileDir)
	l = l.Headless(true)
	l = l.Set("headless", "new")
	if r.cfg.SkipTLSVerify {
		l = l.Set("ignore-certificate-errors")
		r.log.Warn("render: TLS certificate verification disabled")
	}

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	r.browser = browser
	r.log.Info("render: chromium browser initialized", "instance", r.instanceID)
	return browser, nil
}

// Rasterize loads the normalized clone into a blank page sized to its
// logical dimensions, captures a screenshot at the configured device scale
// and decodes it into a pixel buffer. Output dimensions are the logical
// size times scale, floored, so repeated calls on an unchanged clone are
// deterministic.
func (r *ChromiumRasterizer) Rasterize(ctx context.Context, clone *capture.Clone, entityID string, scale float64) (*model.RasterResult, error) {
	if scale <= 0 {
		scale = r.cfg.Scale
	}
	docHTML, err := clone.HTML()
	if err != nil {
		return nil, &CaptureError{EntityID: entityID, Reason: "serialize clone", Err: err}
	}

	browser, err := r.getBrowser()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	timeout := time.Duration(r.cfg.TimeoutMS) * time.Millisecond
	page = page.Context(ctx).Timeout(timeout)

	if err := page.SetDocumentContent(wrapDocument(docHTML)); err != nil {
		return nil, &CaptureError{EntityID: entityID, Reason: "load clone", Err: err}
	}

	size, err := page.Eval(measureJS)
	if err != nil {
		return nil, &CaptureError{EntityID: entityID, Reason: "measure clone", Err: err}
	}
	w := size.Value.Get("w").Int()
	h := size.Value.Get("h").Int()
	if w <= 0 || h <= 0 {
		return nil, &CaptureError{EntityID: entityID, Reason: fmt.Sprintf("zero-size root (%dx%d)", w, h)}
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             w,
		Height:            h,
		DeviceScaleFactor: scale,
		Mobile:            false,
	}); err != nil {
		return nil, &CaptureError{EntityID: entityID, Reason: "set viewport", Err: err}
	}

	// Let embedded data-URI images decode before the screenshot.
	page.WaitIdle(timeout)

	shot, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, &CaptureError{EntityID: entityID, Reason: "screenshot", Err: err}
	}

	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, &CaptureError{EntityID: entityID, Reason: "decode screenshot", Err: err}
	}

	return &model.RasterResult{
		EntityID: entityID,
		Image:    img,
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
		Scale:    scale,
	}, nil
}

// Close closes the browser instance and removes its profile directory.
func (r *ChromiumRasterizer) Close() error {
	if r.browser != nil {
		err := r.browser.Close()
		if r.profileDir != "" {
			os.RemoveAll(r.profileDir)
		}
		r.browser = nil
		return err
	}
	return nil
}

// Name returns the backend name.
func (r *ChromiumRasterizer) Name() string {
	return "chromium"
}
