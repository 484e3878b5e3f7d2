package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
source_url: http://localhost:3000/reports
region_selector: "#report"
capture:
  scale: 2.0
  backend: chromium
smtp:
  host: smtp.example.com
  port: 587
  from: reports@example.com
jobs:
  - name: weekly
    cron_expr: "0 6 * * 1"
    timezone: Europe/Berlin
    entity_ids: [class-a, class-b]
    format: zip
    enabled: true
    recipients:
      to: [teacher@example.com]
    email_subject: "Weekly export {{job.name}}"
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SourceURL != "http://localhost:3000/reports" {
		t.Errorf("source_url = %q", cfg.SourceURL)
	}
	if len(cfg.Jobs) != 1 || cfg.Jobs[0].Name != "weekly" {
		t.Fatalf("jobs = %+v", cfg.Jobs)
	}
	if len(cfg.Jobs[0].EntityIDs) != 2 {
		t.Errorf("entity_ids = %v", cfg.Jobs[0].EntityIDs)
	}
	if cfg.SMTP == nil || cfg.SMTP.Host != "smtp.example.com" {
		t.Errorf("smtp = %+v", cfg.SMTP)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "source_url: http://localhost:3000\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("listen_addr default = %q", cfg.ListenAddr)
	}
	if cfg.DBPath != "exports.db" {
		t.Errorf("db_path default = %q", cfg.DBPath)
	}
	if cfg.Capture.Scale != 2.0 {
		t.Errorf("scale default = %v", cfg.Capture.Scale)
	}
	if cfg.MaxConcurrentJobs != 2 {
		t.Errorf("max_concurrent_jobs default = %d", cfg.MaxConcurrentJobs)
	}
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing source url",
			content: "listen_addr: :9090\n",
			wantErr: "source_url",
		},
		{
			name: "bad cron expression",
			content: "source_url: http://x\njobs:\n" +
				"  - name: j\n    cron_expr: \"broken\"\n",
			wantErr: "cron",
		},
		{
			name: "duplicate job name",
			content: "source_url: http://x\njobs:\n" +
				"  - name: j\n  - name: j\n",
			wantErr: "duplicate",
		},
		{
			name: "bad format",
			content: "source_url: http://x\njobs:\n" +
				"  - name: j\n    format: docx\n",
			wantErr: "format",
		},
		{
			name: "recipients without smtp",
			content: "source_url: http://x\njobs:\n" +
				"  - name: j\n    recipients:\n      to: [a@b.com]\n",
			wantErr: "smtp",
		},
		{
			name: "blank entity id",
			content: "source_url: http://x\njobs:\n" +
				"  - name: j\n    entity_ids: [ok, \"\"]\n",
			wantErr: "entity id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadEnforcesDomainWhitelist(t *testing.T) {
	content := `
source_url: http://x
allowed_domains: ["example.com"]
smtp:
  host: smtp.example.com
  port: 587
  from: r@example.com
jobs:
  - name: j
    recipients:
      to: [someone@other.org]
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Error("expected whitelist rejection")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
