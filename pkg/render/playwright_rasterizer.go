package render

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/yourusername/report-export-app/pkg/capture"
	"github.com/yourusername/report-export-app/pkg/model"
)

// PlaywrightRasterizer captures clones using Playwright. Requires the
// Node.js driver; the chromium backend is the default for environments
// where that is unavailable.
type PlaywrightRasterizer struct {
	cfg        model.CaptureConfig
	pw         *playwright.Playwright
	browser    playwright.Browser
	instanceID string
	log        *slog.Logger
}

// NewPlaywrightRasterizer creates a new Playwright rasterizer. Playwright
// and the browser are started lazily on first use.
func NewPlaywrightRasterizer(cfg model.CaptureConfig) *PlaywrightRasterizer {
	if cfg.Scale <= 0 {
		cfg.Scale = 2.0
	}
	if cfg.TimeoutMS <= 0 {
		cfg.TimeoutMS = 30000
	}
	if !cfg.Headless {
		cfg.Headless = true
	}
	return &PlaywrightRasterizer{
		cfg:        cfg,
		pw:         nil, // lazy initialization
		browser:    nil,
		instanceID: generateInstanceID(),
		log:        slog.Default(),
	}
}

// getBrowser initializes or returns the existing browser instance.
func (r *PlaywrightRasterizer) getBrowser() (playwright.Browser, error) {
	if r.browser != nil {
		return r.browser, nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start Playwright: %w", err)
	}
	r.pw = pw

	// Prefer system Chromium when present.
	chromiumPath := r.cfg.ChromiumPath
	if chromiumPath == "" {
		for _, path := range []string{
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
		} {
			if _, err := os.Stat(path); err == nil {
				chromiumPath = path
				break
			}
		}
	}

	args := []string{
		"--disable-dev-shm-usage",
		"--disable-gpu",
		"--no-first-run",
		"--no-default-browser-check",
	}
	if r.cfg.NoSandbox {
		args = append(args, "--no-sandbox", "--disable-setuid-sandbox")
	}
	if r.cfg.SkipTLSVerify {
		args = append(args, "--ignore-certificate-errors")
	}

	launchOptions := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(r.cfg.Headless),
		Args:     args,
	}
	if chromiumPath != "" {
		launchOptions.ExecutablePath = playwright.String(chromiumPath)
	}

	browser, err := pw.Chromium.Launch(launchOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to launch Chromium: %w", err)
	}

	r.browser = browser
	r.log.Info("render: playwright browser initialized", "instance", r.instanceID)
	return browser, nil
}

// Rasterize loads the clone into a fresh browser context created with the
// requested device scale factor, sizes the viewport to the clone root and
// captures a PNG screenshot.
func (r *PlaywrightRasterizer) Rasterize(ctx context.Context, clone *capture.Clone, entityID string, scale float64) (*model.RasterResult, error) {
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

	browserContext, err := browser.NewContext(playwright.BrowserNewContextOptions{
		DeviceScaleFactor: playwright.Float(scale),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	defer browserContext.Close()

	page, err := browserContext.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	page.SetDefaultTimeout(float64(r.cfg.TimeoutMS))

	if err := page.SetContent(wrapDocument(docHTML), playwright.PageSetContentOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	}); err != nil {
		return nil, &CaptureError{EntityID: entityID, Reason: "load clone", Err: err}
	}

	sizeResult, err := page.Evaluate(measureJS)
	if err != nil {
		return nil, &CaptureError{EntityID: entityID, Reason: "measure clone", Err: err}
	}
	w, h := 0, 0
	if m, ok := sizeResult.(map[string]interface{}); ok {
		if v, ok := m["w"].(float64); ok {
			w = int(v)
		} else if v, ok := m["w"].(int); ok {
			w = v
		}
		if v, ok := m["h"].(float64); ok {
			h = int(v)
		} else if v, ok := m["h"].(int); ok {
			h = v
		}
	}
	if w <= 0 || h <= 0 {
		return nil, &CaptureError{EntityID: entityID, Reason: fmt.Sprintf("zero-size root (%dx%d)", w, h)}
	}

	if err := page.SetViewportSize(w, h); err != nil {
		return nil, &CaptureError{EntityID: entityID, Reason: "set viewport", Err: err}
	}
	if r.cfg.DelayMS > 0 {
		time.Sleep(time.Duration(r.cfg.DelayMS) * time.Millisecond)
	}

	shot, err := page.Screenshot(playwright.PageScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
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

// Close closes the browser and stops Playwright.
func (r *PlaywrightRasterizer) Close() error {
	if r.browser != nil {
		if err := r.browser.Close(); err != nil {
			return err
		}
		r.browser = nil
	}
	if r.pw != nil {
		if err := r.pw.Stop(); err != nil {
			return err
		}
		r.pw = nil
	}
	return nil
}

// Name returns the backend name.
func (r *PlaywrightRasterizer) Name() string {
	return "playwright"
}
