package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/yourusername/report-export-app/pkg/model"
)

// Session owns the browser showing the live report page. The batch
// pipeline reads regions from it and switches entities on it; closing the
// session closes the browser.
type Session struct {
	browser *rod.Browser
	page    *rod.Page
	cfg     model.CaptureConfig
	log     *slog.Logger
}

// OpenSession launches a browser, navigates to the report page at url and
// waits for it to load.
func OpenSession(ctx context.Context, url string, cfg model.CaptureConfig, logger *slog.Logger) (*Session, error) {
	if cfg.TimeoutMS <= 0 {
		cfg.TimeoutMS = 30000
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := launcher.New()
	if cfg.ChromiumPath != "" {
		l = l.Bin(cfg.ChromiumPath)
	}
	if cfg.NoSandbox {
		l = l.Set("no-sandbox")
	}
	l = l.Set("disable-dev-shm-usage")
	l = l.Set("disable-gpu")
	l = l.Headless(true)
	if cfg.SkipTLSVerify {
		l = l.Set("ignore-certificate-errors")
	}

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("capture: launch browser: %w", err)
	}
	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("capture: connect browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("capture: open page: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	page = page.Context(ctx).Timeout(timeout)
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  cfg.ViewportWidth,
			Height: cfg.ViewportHeight,
		}); err != nil {
			logger.Warn("capture: failed to size viewport", "error", err)
		}
	}
	if err := page.Navigate(url); err != nil {
		browser.Close()
		return nil, fmt.Errorf("capture: navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		browser.Close()
		return nil, fmt.Errorf("capture: load %s: %w", url, err)
	}
	page.WaitIdle(timeout)

	logger.Info("capture: session ready", "url", url)
	return &Session{browser: browser, page: page, cfg: cfg, log: logger}, nil
}

// Region returns a capture handle on the element matched by selector.
func (s *Session) Region(selector string) *Region {
	return NewRegion(s.page, selector, s.cfg, s.log)
}

// Close shuts down the browser.
func (s *Session) Close() error {
	return s.browser.Close()
}
