package model

import (
	"database/sql/driver"
	"encoding/json"
	"image"
	"time"
)

// ErrorKind classifies a failed export item.
type ErrorKind string

const (
	// ErrorKindCapture means the clone could not be snapshotted or rasterized.
	ErrorKindCapture ErrorKind = "capture_failure"
	// ErrorKindEncode means rasterization succeeded but PNG encoding failed.
	ErrorKindEncode ErrorKind = "encode_failure"
	// ErrorKindSwitch means the rendering layer failed to switch entities.
	ErrorKindSwitch ErrorKind = "switch_failure"
	// ErrorKindArchive means the archive could not be finalized. Fatal for the batch.
	ErrorKindArchive ErrorKind = "archive_failure"
)

// ExportItem is the outcome of one entity's export attempt. Immutable once
// created: either Bytes is set (success) or ErrorKind/Message are (failure).
type ExportItem struct {
	EntityID  string    `json:"entity_id"`
	Bytes     []byte    `json:"-"`
	Size      int64     `json:"size"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Failed reports whether the item is a failure record.
func (it ExportItem) Failed() bool { return it.ErrorKind != "" }

// SuccessItem builds a successful export item.
func SuccessItem(entityID string, data []byte) ExportItem {
	return ExportItem{EntityID: entityID, Bytes: data, Size: int64(len(data))}
}

// FailedItem builds a failure export item.
func FailedItem(entityID string, kind ErrorKind, err error) ExportItem {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return ExportItem{EntityID: entityID, ErrorKind: kind, Message: msg}
}

// BatchManifest is the ordered collection of export items for one batch run.
type BatchManifest struct {
	Items   []ExportItem `json:"items"`
	Aborted bool         `json:"aborted,omitempty"`
}

// Succeeded returns the number of successful items.
func (m *BatchManifest) Succeeded() int {
	n := 0
	for _, it := range m.Items {
		if !it.Failed() {
			n++
		}
	}
	return n
}

// Failed returns the number of failed items.
func (m *BatchManifest) Failed() int { return len(m.Items) - m.Succeeded() }

// FailedIDs returns the entity ids of failed items, in manifest order.
func (m *BatchManifest) FailedIDs() []string {
	ids := make([]string, 0)
	for _, it := range m.Items {
		if it.Failed() {
			ids = append(ids, it.EntityID)
		}
	}
	return ids
}

// RasterResult is an immutable pixel buffer with capture metadata.
type RasterResult struct {
	EntityID string
	Image    image.Image
	Width    int     // pixels, = floor(logical width * Scale)
	Height   int     // pixels
	Scale    float64 // device scale factor used for the capture
}

// CaptureConfig configures the snapshot and rasterization pipeline.
type CaptureConfig struct {
	Backend        string  `json:"backend" yaml:"backend"`   // "chromium" (default) or "playwright"
	Scale          float64 `json:"scale" yaml:"scale"`       // output multiplier, default 2.0
	TimeoutMS      int     `json:"timeout_ms" yaml:"timeout_ms"`
	DelayMS        int     `json:"delay_ms" yaml:"delay_ms"` // settle delay after switch
	ViewportWidth  int     `json:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int     `json:"viewport_height" yaml:"viewport_height"`
	FetchTimeoutMS int     `json:"fetch_timeout_ms" yaml:"fetch_timeout_ms"` // per remote-image fetch

	// Stacking repair heuristic inputs. Candidates painted with
	// BackgroundShade that overlap the significant element are demoted.
	SignificantClass string `json:"significant_class" yaml:"significant_class"`
	BackgroundShade  string `json:"background_shade" yaml:"background_shade"`

	// Chromium backend options.
	ChromiumPath  string `json:"chromium_path" yaml:"chromium_path"`
	Headless      bool   `json:"headless" yaml:"headless"`
	NoSandbox     bool   `json:"no_sandbox" yaml:"no_sandbox"`
	SkipTLSVerify bool   `json:"skip_tls_verify" yaml:"skip_tls_verify"`
}

// Job is a configured, optionally scheduled batch export. Jobs without a
// cron expression derive one from IntervalType.
type Job struct {
	Name         string     `json:"name" yaml:"name"`
	CronExpr     string     `json:"cron_expr" yaml:"cron_expr"`
	IntervalType string     `json:"interval_type" yaml:"interval_type"` // daily, weekly, monthly
	Timezone     string     `json:"timezone" yaml:"timezone"`
	EntityIDs    []string   `json:"entity_ids" yaml:"entity_ids"`
	Format       string     `json:"format" yaml:"format"` // zip (default) or pdf
	Enabled      bool       `json:"enabled" yaml:"enabled"`
	Recipients   Recipients `json:"recipients" yaml:"recipients"`
	EmailSubject string     `json:"email_subject" yaml:"email_subject"`
	EmailBody    string     `json:"email_body" yaml:"email_body"`
}

// Batch represents one batch export run.
type Batch struct {
	ID         int64       `json:"id"`
	JobName    string      `json:"job_name"`
	Status     string      `json:"status"` // running, completed, aborted, failed
	Format     string      `json:"format"` // zip or pdf
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Total      int         `json:"total"`
	Succeeded  int         `json:"succeeded"`
	Failed     int         `json:"failed"`
	FailedIDs  StringSlice `json:"failed_ids,omitempty"`
	ErrorText  string      `json:"error_text,omitempty"`
	Bytes      int64       `json:"bytes"`
	Checksum   string      `json:"checksum,omitempty"`
	// ArtifactData holds the finished archive (or booklet) as a BLOB.
	ArtifactData []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// BatchItem is the persisted per-entity record of a batch run.
type BatchItem struct {
	ID        int64     `json:"id"`
	BatchID   int64     `json:"batch_id"`
	EntityID  string    `json:"entity_id"`
	Status    string    `json:"status"` // ok or failed
	ErrorKind string    `json:"error_kind,omitempty"`
	ErrorText string    `json:"error_text,omitempty"`
	Bytes     int64     `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Recipients holds email recipient information for archive delivery.
type Recipients struct {
	To  []string `json:"to" yaml:"to"`
	CC  []string `json:"cc,omitempty" yaml:"cc,omitempty"`
	BCC []string `json:"bcc,omitempty" yaml:"bcc,omitempty"`
}

// All returns every address across To, CC and BCC.
func (r Recipients) All() []string {
	all := make([]string, 0, len(r.To)+len(r.CC)+len(r.BCC))
	all = append(all, r.To...)
	all = append(all, r.CC...)
	all = append(all, r.BCC...)
	return all
}

// StringSlice is a custom type for storing string slices as JSON in SQLite.
type StringSlice []string

// Scan implements sql.Scanner for StringSlice.
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// Value implements driver.Valuer for StringSlice.
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return json.Marshal(s)
}
