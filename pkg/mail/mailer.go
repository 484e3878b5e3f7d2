// Package mail delivers finished export artifacts over SMTP.
package mail

import (
	"crypto/tls"
	"fmt"
	"io"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/yourusername/report-export-app/pkg/model"
)

// SMTPConfig holds the SMTP server settings for artifact delivery.
type SMTPConfig struct {
	Host          string `json:"host" yaml:"host"`
	Port          int    `json:"port" yaml:"port"`
	Username      string `json:"username" yaml:"username"`
	Password      string `json:"password" yaml:"password"`
	From          string `json:"from" yaml:"from"`
	UseTLS        bool   `json:"use_tls" yaml:"use_tls"`
	SkipTLSVerify bool   `json:"skip_tls_verify" yaml:"skip_tls_verify"`
}

// Mailer sends export artifacts as attachments.
type Mailer struct {
	cfg SMTPConfig
}

// NewMailer creates a mailer for the given SMTP configuration.
func NewMailer(cfg SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// SendArchive emails the artifact bytes as an attachment named filename to
// the given recipients.
func (m *Mailer) SendArchive(recipients model.Recipients, subject, body string, data []byte, filename string) error {
	if m.cfg.Host == "" {
		return fmt.Errorf("SMTP host is not configured")
	}
	if m.cfg.From == "" {
		return fmt.Errorf("SMTP from address is not configured")
	}
	if len(recipients.To) == 0 {
		return fmt.Errorf("no recipients")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", recipients.To...)
	if len(recipients.CC) > 0 {
		msg.SetHeader("Cc", recipients.CC...)
	}
	if len(recipients.BCC) > 0 {
		msg.SetHeader("Bcc", recipients.BCC...)
	}
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)
	msg.Attach(filename, gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}))

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	if m.cfg.UseTLS {
		dialer.TLSConfig = &tls.Config{
			InsecureSkipVerify: m.cfg.SkipTLSVerify,
			ServerName:         m.cfg.Host,
		}
	}

	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send to %d recipient(s): %w", len(recipients.All()), err)
	}
	return nil
}

// InterpolateTemplate replaces {{key}} placeholders in tpl with their
// values. Unknown placeholders are left untouched.
func InterpolateTemplate(tpl string, vars map[string]string) string {
	out := tpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}
