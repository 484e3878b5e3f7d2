// Package cron runs configured export jobs on their schedules.
package cron

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/robfig/cron/v3"

	"github.com/yourusername/report-export-app/pkg/mail"
	"github.com/yourusername/report-export-app/pkg/model"
	"github.com/yourusername/report-export-app/pkg/pdf"
	"github.com/yourusername/report-export-app/pkg/store"
)

// Runner executes the batch export for a job and returns the manifest plus
// the finished ZIP archive. The scheduler stays decoupled from the capture
// pipeline through this boundary.
type Runner interface {
	Run(ctx context.Context, job model.Job) (*model.BatchManifest, []byte, error)
}

// Scheduler checks configured jobs every minute and executes the due ones
// through a bounded worker pool.
type Scheduler struct {
	store      *store.Store
	runner     Runner
	mailer     *mail.Mailer
	jobs       []model.Job
	cron       *cron.Cron
	workerPool chan struct{}
	baseCtx    context.Context

	mu       sync.Mutex
	nextRuns map[string]time.Time
	log      *slog.Logger
}

// NewScheduler creates a scheduler for the given jobs. A nil mailer
// disables email delivery.
func NewScheduler(st *store.Store, runner Runner, mailer *mail.Mailer, jobs []model.Job, maxConcurrent int) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Scheduler{
		store:      st,
		runner:     runner,
		mailer:     mailer,
		jobs:       jobs,
		cron:       cron.New(cron.WithSeconds()),
		workerPool: make(chan struct{}, maxConcurrent),
		baseCtx:    context.Background(),
		nextRuns:   make(map[string]time.Time),
		log:        slog.Default(),
	}
}

// SetContext sets the base context used for job executions.
func (s *Scheduler) SetContext(ctx context.Context) {
	s.baseCtx = ctx
}

// Start seeds next-run times and begins the minute tick.
func (s *Scheduler) Start() error {
	now := time.Now()
	s.mu.Lock()
	for _, job := range s.jobs {
		if job.Enabled {
			s.nextRuns[job.Name] = s.calculateNextRun(job, now)
		}
	}
	s.mu.Unlock()

	// Every minute at second 0.
	cronExpr := "0 * * * * *"
	entryID, err := s.cron.AddFunc(cronExpr, s.checkDueJobs)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.log.Info("cron: scheduler started", "jobs", len(s.jobs), "entry", int(entryID))
	return nil
}

// Stop stops the minute tick. In-flight executions finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info("cron: scheduler stopped")
}

// checkDueJobs executes every enabled job whose next run has passed.
func (s *Scheduler) checkDueJobs() {
	now := time.Now()
	for _, job := range s.jobs {
		if !job.Enabled {
			continue
		}

		s.mu.Lock()
		next, ok := s.nextRuns[job.Name]
		due := ok && !now.Before(next)
		if due {
			// Advance immediately to prevent duplicate execution.
			s.nextRuns[job.Name] = s.calculateNextRun(job, now)
		}
		s.mu.Unlock()

		if !due {
			continue
		}
		s.log.Info("cron: job due", "job", job.Name, "next", s.NextRun(job.Name).Format(time.RFC3339))
		go s.executeJob(job)
	}
}

// NextRun returns the scheduled next run for a job, zero if unknown.
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRuns[name]
}

// ExecuteJob runs a job immediately, outside its schedule.
func (s *Scheduler) ExecuteJob(job model.Job) {
	go s.executeJob(job)
}

func (s *Scheduler) executeJob(job model.Job) {
	// Acquire worker slot.
	s.workerPool <- struct{}{}
	defer func() { <-s.workerPool }()

	s.log.Info("cron: executing job", "job", job.Name)

	batch := &model.Batch{
		JobName:   job.Name,
		Status:    "running",
		Format:    job.Format,
		StartedAt: time.Now(),
		Total:     len(job.EntityIDs),
	}
	if batch.Format == "" {
		batch.Format = "zip"
	}
	if err := s.store.CreateBatch(batch); err != nil {
		s.log.Error("cron: failed to create batch record", "job", job.Name, "error", err)
		return
	}

	manifest, artifact, err := s.executeWithRetry(job, 3)
	if err != nil {
		now := time.Now()
		batch.FinishedAt = &now
		batch.Status = "failed"
		batch.ErrorText = err.Error()
		if uerr := s.store.UpdateBatch(batch); uerr != nil {
			s.log.Error("cron: failed to update batch record", "job", job.Name, "error", uerr)
		}
		s.log.Error("cron: job failed", "job", job.Name, "error", err)
		return
	}

	// PDF jobs deliver a booklet built from the same manifest.
	if batch.Format == "pdf" {
		booklet, err := pdf.BuildBooklet(manifest.Items)
		if err != nil {
			s.log.Error("cron: booklet build failed, delivering zip instead", "job", job.Name, "error", err)
			batch.Format = "zip"
		} else {
			artifact = booklet
		}
	}

	batch.Checksum = fmt.Sprintf("%x", sha256.Sum256(artifact))
	if err := s.store.RecordManifest(batch, manifest, artifact); err != nil {
		s.log.Error("cron: failed to record manifest", "job", job.Name, "error", err)
		return
	}

	s.log.Info("cron: job finished",
		"job", job.Name,
		"succeeded", manifest.Succeeded(),
		"failed", manifest.Failed(),
		"bytes", len(artifact),
		"checksum", batch.Checksum)

	s.deliverByEmail(job, batch, manifest, artifact)
}

// executeWithRetry runs the job with exponential backoff. Per-item failures
// inside a run do not trigger retries, only whole-run failures do.
func (s *Scheduler) executeWithRetry(job model.Job, maxRetries int) (*model.BatchManifest, []byte, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * time.Second
			s.log.Warn("cron: retrying job", "job", job.Name, "attempt", attempt+1, "backoff", backoff)
			time.Sleep(backoff)
		}
		manifest, artifact, err := s.runner.Run(s.baseCtx, job)
		if err == nil {
			return manifest, artifact, nil
		}
		lastErr = err
		s.log.Warn("cron: job attempt failed", "job", job.Name, "attempt", attempt+1, "error", err)
	}
	return nil, nil, fmt.Errorf("all %d attempts failed: %w", maxRetries, lastErr)
}

// deliverByEmail sends the artifact to the job's recipients. Delivery is
// optional: the artifact is already stored, so failures are only logged.
func (s *Scheduler) deliverByEmail(job model.Job, batch *model.Batch, manifest *model.BatchManifest, artifact []byte) {
	if s.mailer == nil || len(job.Recipients.To) == 0 {
		return
	}

	vars := map[string]string{
		"job.name":        job.Name,
		"batch.total":     fmt.Sprintf("%d", len(manifest.Items)),
		"batch.succeeded": fmt.Sprintf("%d", manifest.Succeeded()),
		"batch.failed":    fmt.Sprintf("%d", manifest.Failed()),
		"run.started_at":  batch.StartedAt.Format(time.RFC1123),
	}
	subject := mail.InterpolateTemplate(job.EmailSubject, vars)
	body := mail.InterpolateTemplate(job.EmailBody, vars)

	ext := "zip"
	if batch.Format == "pdf" {
		ext = "pdf"
	}
	filename := fmt.Sprintf("%s-%s.%s", model.SanitizeEntityName(job.Name),
		batch.StartedAt.Format("2006-01-02-150405"), ext)

	if err := s.mailer.SendArchive(job.Recipients, subject, body, artifact, filename); err != nil {
		s.log.Error("cron: email delivery failed, artifact available for download",
			"job", job.Name, "batch", batch.ID, "error", err)
		return
	}
	s.log.Info("cron: artifact emailed", "job", job.Name, "recipients", len(job.Recipients.All()))
}

// calculateNextRun computes a job's next run in its timezone. Jobs without
// a cron expression derive one from IntervalType; unparsable expressions
// fall back to one hour from now.
func (s *Scheduler) calculateNextRun(job model.Job, now time.Time) time.Time {
	loc, err := time.LoadLocation(job.Timezone)
	if err != nil {
		s.log.Warn("cron: failed to load timezone, using UTC", "job", job.Name, "timezone", job.Timezone)
		loc = time.UTC
	}
	localNow := now.In(loc)

	cronExpression := job.CronExpr
	if cronExpression == "" {
		switch job.IntervalType {
		case "weekly":
			cronExpression = "0 0 * * 1"
		case "monthly":
			cronExpression = "0 0 1 * *"
		default:
			cronExpression = "0 0 * * *"
		}
	}

	expr, err := cronexpr.Parse(cronExpression)
	if err != nil {
		s.log.Warn("cron: failed to parse expression, falling back to 1 hour",
			"job", job.Name, "expr", cronExpression, "error", err)
		return localNow.Add(1 * time.Hour).UTC().Truncate(time.Second)
	}

	// Strip monotonic clock reading, store in UTC.
	return expr.Next(localNow).UTC().Truncate(time.Second)
}
