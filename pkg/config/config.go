// Package config loads the application configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yourusername/report-export-app/pkg/mail"
	"github.com/yourusername/report-export-app/pkg/model"
)

// Config is the root configuration structure.
type Config struct {
	// ListenAddr is the HTTP API bind address.
	ListenAddr string `yaml:"listen_addr"`
	// DBPath is the SQLite database file for batch run history.
	DBPath string `yaml:"db_path"`
	// SourceURL is the page hosting the live visual region.
	SourceURL string `yaml:"source_url"`
	// RegionSelector locates the visual region on the page.
	RegionSelector string `yaml:"region_selector"`
	// SwitchScript is a JS snippet, invoked with an entity id, that makes
	// the region represent that entity.
	SwitchScript string `yaml:"switch_script"`

	MaxConcurrentJobs int `yaml:"max_concurrent_jobs"`

	// AllowedDomains restricts which email domains may receive archives.
	// Empty means no restriction.
	AllowedDomains model.DomainWhitelist `yaml:"allowed_domains"`

	Capture model.CaptureConfig `yaml:"capture"`
	SMTP    *mail.SMTPConfig    `yaml:"smtp"`
	Jobs    []model.Job         `yaml:"jobs"`
}

// defaults fills in unset fields.
func (c *Config) defaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.DBPath == "" {
		c.DBPath = "exports.db"
	}
	if c.RegionSelector == "" {
		c.RegionSelector = "#report"
	}
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = 2
	}
	if c.Capture.Scale <= 0 {
		c.Capture.Scale = 2.0
	}
	if c.Capture.TimeoutMS <= 0 {
		c.Capture.TimeoutMS = 30000
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.defaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks job definitions for broken cron expressions, missing
// entity lists and malformed recipients.
func (c *Config) Validate() error {
	if c.SourceURL == "" {
		return fmt.Errorf("source_url is required")
	}
	seen := make(map[string]bool)
	for i, job := range c.Jobs {
		if job.Name == "" {
			return fmt.Errorf("job %d: name is required", i)
		}
		if seen[job.Name] {
			return fmt.Errorf("job %q: duplicate name", job.Name)
		}
		seen[job.Name] = true

		if err := model.ValidateEntityIDs(job.EntityIDs); err != nil {
			return fmt.Errorf("job %q: %w", job.Name, err)
		}
		if job.CronExpr != "" {
			if err := model.ValidateCronExpression(job.CronExpr); err != nil {
				return fmt.Errorf("job %q: %w", job.Name, err)
			}
		}
		if job.Format != "" && job.Format != "zip" && job.Format != "pdf" {
			return fmt.Errorf("job %q: format must be zip or pdf", job.Name)
		}
		if len(job.Recipients.To) > 0 {
			if c.SMTP == nil {
				return fmt.Errorf("job %q: recipients configured but smtp is not", job.Name)
			}
			if err := model.ValidateRecipients(job.Recipients, c.AllowedDomains); err != nil {
				return fmt.Errorf("job %q: %w", job.Name, err)
			}
		}
	}
	return nil
}
