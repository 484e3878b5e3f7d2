package mail

import (
	"testing"

	"github.com/yourusername/report-export-app/pkg/model"
)

func TestInterpolateTemplate(t *testing.T) {
	vars := map[string]string{
		"job.name":    "weekly",
		"batch.total": "12",
	}
	tests := []struct {
		name     string
		tpl      string
		expected string
	}{
		{"single", "Export {{job.name}} finished", "Export weekly finished"},
		{"multiple", "{{job.name}}: {{batch.total}} items", "weekly: 12 items"},
		{"unknown left alone", "hello {{missing}}", "hello {{missing}}"},
		{"no placeholders", "plain text", "plain text"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InterpolateTemplate(tt.tpl, vars); got != tt.expected {
				t.Errorf("InterpolateTemplate(%q) = %q, want %q", tt.tpl, got, tt.expected)
			}
		})
	}
}

func TestSendArchiveValidatesConfig(t *testing.T) {
	rcpt := model.Recipients{To: []string{"a@example.com"}}

	tests := []struct {
		name string
		cfg  SMTPConfig
		to   model.Recipients
	}{
		{"missing host", SMTPConfig{From: "x@example.com"}, rcpt},
		{"missing from", SMTPConfig{Host: "smtp.example.com", Port: 587}, rcpt},
		{"no recipients", SMTPConfig{Host: "smtp.example.com", Port: 587, From: "x@example.com"}, model.Recipients{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMailer(tt.cfg)
			if err := m.SendArchive(tt.to, "s", "b", []byte("zip"), "export.zip"); err == nil {
				t.Error("expected configuration error")
			}
		})
	}
}
