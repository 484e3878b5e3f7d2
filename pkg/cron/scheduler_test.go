package cron

import (
	"log/slog"
	"testing"
	"time"

	"github.com/yourusername/report-export-app/pkg/model"
)

func testScheduler() *Scheduler {
	return &Scheduler{
		nextRuns: make(map[string]time.Time),
		log:      slog.Default(),
	}
}

func TestCalculateNextRunTimezone(t *testing.T) {
	now := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		cronExpr string
		timezone string
		validate func(t *testing.T, nextRun time.Time, tz string)
	}{
		{
			name:     "daily at midnight in America/New_York",
			cronExpr: "0 0 * * *",
			timezone: "America/New_York",
			validate: func(t *testing.T, nextRun time.Time, tz string) {
				loc, _ := time.LoadLocation(tz)
				local := nextRun.In(loc)
				if local.Hour() != 0 || local.Minute() != 0 {
					t.Errorf("expected midnight in %s, got %02d:%02d", tz, local.Hour(), local.Minute())
				}
			},
		},
		{
			name:     "weekly Monday at midnight in Asia/Tokyo",
			cronExpr: "0 0 * * 1",
			timezone: "Asia/Tokyo",
			validate: func(t *testing.T, nextRun time.Time, tz string) {
				loc, _ := time.LoadLocation(tz)
				local := nextRun.In(loc)
				if local.Weekday() != time.Monday {
					t.Errorf("expected Monday in %s, got %s", tz, local.Weekday())
				}
				if local.Hour() != 0 || local.Minute() != 0 {
					t.Errorf("expected midnight in %s, got %02d:%02d", tz, local.Hour(), local.Minute())
				}
			},
		},
		{
			name:     "monthly 1st at midnight in UTC",
			cronExpr: "0 0 1 * *",
			timezone: "UTC",
			validate: func(t *testing.T, nextRun time.Time, tz string) {
				if nextRun.Day() != 1 || nextRun.Hour() != 0 {
					t.Errorf("expected 1st at midnight UTC, got %s", nextRun)
				}
			},
		},
		{
			name:     "invalid timezone falls back to UTC",
			cronExpr: "0 0 * * *",
			timezone: "Invalid/Timezone",
			validate: func(t *testing.T, nextRun time.Time, tz string) {
				if nextRun.Hour() != 0 || nextRun.Minute() != 0 {
					t.Errorf("expected midnight UTC fallback, got %02d:%02d", nextRun.Hour(), nextRun.Minute())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := model.Job{Name: "test", CronExpr: tt.cronExpr, Timezone: tt.timezone}
			nextRun := testScheduler().calculateNextRun(job, now)

			if !nextRun.After(now) {
				t.Errorf("next run %s not after now %s", nextRun, now)
			}
			if nextRun.Location() != time.UTC {
				t.Error("next run must be stored in UTC")
			}
			tt.validate(t, nextRun, tt.timezone)
		})
	}
}

func TestCalculateNextRunAutogeneratesExpression(t *testing.T) {
	now := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		intervalType string
		validate     func(t *testing.T, nextRun time.Time)
	}{
		{"daily", func(t *testing.T, nextRun time.Time) {
			if nextRun.Hour() != 0 || nextRun.Day() != 5 {
				t.Errorf("daily job should run next midnight, got %s", nextRun)
			}
		}},
		{"weekly", func(t *testing.T, nextRun time.Time) {
			if nextRun.Weekday() != time.Monday {
				t.Errorf("weekly job should run Monday, got %s", nextRun.Weekday())
			}
		}},
		{"monthly", func(t *testing.T, nextRun time.Time) {
			if nextRun.Day() != 1 {
				t.Errorf("monthly job should run on the 1st, got day %d", nextRun.Day())
			}
		}},
		{"unknown", func(t *testing.T, nextRun time.Time) {
			if nextRun.Hour() != 0 {
				t.Errorf("unknown interval should default to daily, got %s", nextRun)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.intervalType, func(t *testing.T) {
			job := model.Job{Name: "test", IntervalType: tt.intervalType, Timezone: "UTC"}
			nextRun := testScheduler().calculateNextRun(job, now)
			if !nextRun.After(now) {
				t.Fatalf("next run %s not after now %s", nextRun, now)
			}
			tt.validate(t, nextRun)
		})
	}
}

func TestCalculateNextRunInvalidExpressionFallsBack(t *testing.T) {
	now := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
	job := model.Job{Name: "broken", CronExpr: "not a cron", Timezone: "UTC"}

	nextRun := testScheduler().calculateNextRun(job, now)
	want := now.Add(1 * time.Hour)
	if !nextRun.Equal(want) {
		t.Errorf("fallback next run = %s, want %s", nextRun, want)
	}
}

func TestStartSeedsNextRunsForEnabledJobsOnly(t *testing.T) {
	s := NewScheduler(nil, nil, nil, []model.Job{
		{Name: "on", CronExpr: "0 0 * * *", Timezone: "UTC", Enabled: true},
		{Name: "off", CronExpr: "0 0 * * *", Timezone: "UTC", Enabled: false},
	}, 1)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if s.NextRun("on").IsZero() {
		t.Error("enabled job has no next run")
	}
	if !s.NextRun("off").IsZero() {
		t.Error("disabled job was scheduled")
	}
}
