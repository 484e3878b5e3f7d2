// Command report-exporter captures per-entity report regions from a live
// page and exports them as PNG archives, on demand or on a schedule.
//
// Usage:
//
//	report-exporter -config config.yaml                    # serve API + scheduled jobs
//	report-exporter -config config.yaml -export class-a    # one-shot export to disk
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourusername/report-export-app/pkg/api"
	"github.com/yourusername/report-export-app/pkg/capture"
	"github.com/yourusername/report-export-app/pkg/config"
	"github.com/yourusername/report-export-app/pkg/cron"
	"github.com/yourusername/report-export-app/pkg/export"
	"github.com/yourusername/report-export-app/pkg/mail"
	"github.com/yourusername/report-export-app/pkg/model"
	"github.com/yourusername/report-export-app/pkg/progress"
	"github.com/yourusername/report-export-app/pkg/render"
	"github.com/yourusername/report-export-app/pkg/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	exportEntity := flag.String("export", "", "export a single entity and exit")
	outPath := flag.String("out", "", "output file for -export (default <entity>.png)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *exportEntity, *outPath); err != nil {
		logger.Error("report-exporter: fatal", "error", err)
		os.Exit(1)
	}
}

// pipeline bundles the capture stack built from one config.
type pipeline struct {
	session  *capture.Session
	region   *capture.Region
	backend  render.Backend
	exporter *export.Exporter
	script   string
}

func newPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	session, err := capture.OpenSession(ctx, cfg.SourceURL, cfg.Capture, logger)
	if err != nil {
		return nil, err
	}

	backend, err := render.NewBackend(cfg.Capture)
	if err != nil {
		session.Close()
		return nil, err
	}

	region := session.Region(cfg.RegionSelector)
	normalizer := capture.NewNormalizer(cfg.Capture, logger)
	exporter := export.NewExporter(region, normalizer, backend, cfg.Capture.Scale, logger)

	return &pipeline{
		session:  session,
		region:   region,
		backend:  backend,
		exporter: exporter,
		script:   cfg.SwitchScript,
	}, nil
}

func (p *pipeline) Close() {
	if err := p.backend.Close(); err != nil {
		slog.Warn("report-exporter: backend close failed", "error", err)
	}
	if err := p.session.Close(); err != nil {
		slog.Warn("report-exporter: session close failed", "error", err)
	}
}

// batchRunner adapts the batch orchestrator to the scheduler's Runner
// boundary.
type batchRunner struct {
	batcher *export.Batcher
	region  *capture.Region
	script  string
}

func (r *batchRunner) Run(ctx context.Context, job model.Job) (*model.BatchManifest, []byte, error) {
	switchTo := export.SwitchFunc(r.region.Switcher(r.script))
	return r.batcher.ExportAll(ctx, job.EntityIDs, switchTo)
}

func run(ctx context.Context, logger *slog.Logger, configPath, exportEntity, outPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if exportEntity != "" {
		return runOnce(ctx, cfg, logger, exportEntity, outPath)
	}
	return serve(ctx, cfg, logger)
}

// runOnce performs a single standalone export straight to disk.
func runOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger, entityID, outPath string) error {
	p, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	if cfg.SwitchScript != "" {
		switchTo := p.region.Switcher(cfg.SwitchScript)
		if err := switchTo(ctx, entityID); err != nil {
			return err
		}
	}

	if outPath == "" {
		outPath = model.SanitizeEntityName(entityID) + ".png"
	}
	if err := p.exporter.ExportToFile(ctx, entityID, outPath); err != nil {
		return err
	}
	logger.Info("report-exporter: exported", "entity", entityID, "path", outPath)
	return nil
}

// serve runs the scheduler and the HTTP API until the context is canceled.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	batcher := export.NewBatcher(p.exporter, progress.NewLogReporter(logger), logger)
	runner := &batchRunner{batcher: batcher, region: p.region, script: p.script}

	var mailer *mail.Mailer
	if cfg.SMTP != nil {
		mailer = mail.NewMailer(*cfg.SMTP)
	}

	scheduler := cron.NewScheduler(st, runner, mailer, cfg.Jobs, cfg.MaxConcurrentJobs)
	scheduler.SetContext(ctx)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	handler := api.NewHandler(st, scheduler, cfg.Jobs)
	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("report-exporter: listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("report-exporter: shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
