// Package store persists batch export runs and their artifacts in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Register SQLite driver

	"github.com/yourusername/report-export-app/pkg/model"
)

// parseTimestamp parses a timestamp string from SQLite, handling multiple
// formats ("2006-01-02 15:04:05" with or without timezone suffix, RFC3339).
func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05 -0700 MST",
		"2006-01-02 15:04:05 -0700",
		time.RFC3339,
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return &t
		}
	}
	slog.Warn("store: failed to parse timestamp", "value", s)
	return nil
}

// Store handles database operations. All writes go through a single queue
// goroutine so SQLite never sees concurrent writers.
type Store struct {
	db         *sql.DB
	writeQueue *writeQueue
	log        *slog.Logger
}

// NewStore opens (or creates) the database at dbPath and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL allows concurrent readers alongside the single writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, log: slog.Default()}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	store.writeQueue = newWriteQueue(store)
	store.log.Info("store: sqlite ready", "path", dbPath)
	return store, nil
}

// migrate runs database migrations.
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS batches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job_name TEXT NOT NULL,
			status TEXT NOT NULL,
			format TEXT NOT NULL DEFAULT 'zip',
			started_at DATETIME NOT NULL,
			finished_at DATETIME,
			total INTEGER NOT NULL DEFAULT 0,
			succeeded INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			failed_ids TEXT,
			error_text TEXT,
			bytes INTEGER NOT NULL DEFAULT 0,
			checksum TEXT,
			artifact_data BLOB,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_job_name ON batches(job_name)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status)`,
		`CREATE TABLE IF NOT EXISTS batch_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			batch_id INTEGER NOT NULL,
			entity_id TEXT NOT NULL,
			status TEXT NOT NULL,
			error_kind TEXT,
			error_text TEXT,
			bytes INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (batch_id) REFERENCES batches(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batch_items_batch_id ON batch_items(batch_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			// Ignore "duplicate column" errors on re-runs against old databases.
			if !strings.Contains(err.Error(), "duplicate column name") {
				return fmt.Errorf("migration failed: %w", err)
			}
			s.log.Warn("store: migration warning (ignored)", "error", err)
		}
	}
	return nil
}

// CreateBatch inserts a batch record (queued for serialized execution).
func (s *Store) CreateBatch(batch *model.Batch) error {
	return s.writeQueue.enqueue(opCreateBatch, batch)
}

func (s *Store) createBatchDirect(batch *model.Batch) error {
	batch.CreatedAt = time.Now()
	result, err := s.db.Exec(`
		INSERT INTO batches (job_name, status, format, started_at, total, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		batch.JobName, batch.Status, batch.Format,
		batch.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		batch.Total, batch.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	batch.ID = id
	return nil
}

// UpdateBatch updates a batch record (queued for serialized execution).
func (s *Store) UpdateBatch(batch *model.Batch) error {
	return s.writeQueue.enqueue(opUpdateBatch, batch)
}

func (s *Store) updateBatchDirect(batch *model.Batch) error {
	var finishedAtStr interface{}
	if batch.FinishedAt != nil {
		finishedAtStr = batch.FinishedAt.UTC().Format("2006-01-02 15:04:05")
	}
	_, err := s.db.Exec(`
		UPDATE batches SET
			status = ?, finished_at = ?, total = ?, succeeded = ?, failed = ?,
			failed_ids = ?, error_text = ?, bytes = ?, checksum = ?, artifact_data = ?
		WHERE id = ?`,
		batch.Status, finishedAtStr, batch.Total, batch.Succeeded, batch.Failed,
		batch.FailedIDs, batch.ErrorText, batch.Bytes, batch.Checksum,
		batch.ArtifactData, batch.ID,
	)
	return err
}

// CreateBatchItem inserts a per-entity record (queued for serialized execution).
func (s *Store) CreateBatchItem(item *model.BatchItem) error {
	return s.writeQueue.enqueue(opCreateBatchItem, item)
}

func (s *Store) createBatchItemDirect(item *model.BatchItem) error {
	item.CreatedAt = time.Now()
	result, err := s.db.Exec(`
		INSERT INTO batch_items (batch_id, entity_id, status, error_kind, error_text, bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.BatchID, item.EntityID, item.Status, item.ErrorKind, item.ErrorText,
		item.Bytes, item.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	item.ID = id
	return nil
}

// GetBatch retrieves a batch by ID, without its artifact BLOB.
func (s *Store) GetBatch(id int64) (*model.Batch, error) {
	batch := &model.Batch{}
	var startedAtStr string
	var finishedAtStr, errorText, checksum sql.NullString

	err := s.db.QueryRow(`
		SELECT id, job_name, status, format, started_at, finished_at, total,
		       succeeded, failed, failed_ids, error_text, bytes, checksum, created_at
		FROM batches WHERE id = ?`, id,
	).Scan(
		&batch.ID, &batch.JobName, &batch.Status, &batch.Format,
		&startedAtStr, &finishedAtStr, &batch.Total,
		&batch.Succeeded, &batch.Failed, &batch.FailedIDs,
		&errorText, &batch.Bytes, &checksum, &batch.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("batch not found")
	}
	if err != nil {
		return nil, err
	}

	batch.ErrorText = errorText.String
	batch.Checksum = checksum.String
	if t := parseTimestamp(startedAtStr); t != nil {
		batch.StartedAt = *t
	}
	if finishedAtStr.Valid {
		batch.FinishedAt = parseTimestamp(finishedAtStr.String)
	}
	return batch, nil
}

// GetArtifact returns the stored archive bytes for a batch.
func (s *Store) GetArtifact(id int64) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT artifact_data FROM batches WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("batch not found")
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("batch has no artifact")
	}
	return data, nil
}

// ListBatches retrieves recent batches, newest first, without artifact BLOBs.
func (s *Store) ListBatches(limit int) ([]*model.Batch, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, job_name, status, format, started_at, finished_at, total,
		       succeeded, failed, failed_ids, error_text, bytes, checksum, created_at
		FROM batches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := make([]*model.Batch, 0)
	for rows.Next() {
		batch := &model.Batch{}
		var startedAtStr string
		var finishedAtStr, errorText, checksum sql.NullString

		if err := rows.Scan(
			&batch.ID, &batch.JobName, &batch.Status, &batch.Format,
			&startedAtStr, &finishedAtStr, &batch.Total,
			&batch.Succeeded, &batch.Failed, &batch.FailedIDs,
			&errorText, &batch.Bytes, &checksum, &batch.CreatedAt,
		); err != nil {
			return nil, err
		}

		batch.ErrorText = errorText.String
		batch.Checksum = checksum.String
		if t := parseTimestamp(startedAtStr); t != nil {
			batch.StartedAt = *t
		}
		if finishedAtStr.Valid {
			batch.FinishedAt = parseTimestamp(finishedAtStr.String)
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// ListBatchItems retrieves the per-entity records of a batch in insert order.
func (s *Store) ListBatchItems(batchID int64) ([]*model.BatchItem, error) {
	rows, err := s.db.Query(`
		SELECT id, batch_id, entity_id, status, error_kind, error_text, bytes, created_at
		FROM batch_items WHERE batch_id = ? ORDER BY id`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*model.BatchItem, 0)
	for rows.Next() {
		item := &model.BatchItem{}
		var kind, text sql.NullString
		if err := rows.Scan(
			&item.ID, &item.BatchID, &item.EntityID, &item.Status,
			&kind, &text, &item.Bytes, &item.CreatedAt,
		); err != nil {
			return nil, err
		}
		item.ErrorKind = kind.String
		item.ErrorText = text.String
		items = append(items, item)
	}
	return items, rows.Err()
}

// RecordManifest persists a finished batch run and its per-entity outcomes.
// The artifact bytes are stored inline so no filesystem path needs to
// survive restarts.
func (s *Store) RecordManifest(batch *model.Batch, manifest *model.BatchManifest, artifact []byte) error {
	now := time.Now()
	batch.FinishedAt = &now
	batch.Total = len(manifest.Items)
	batch.Succeeded = manifest.Succeeded()
	batch.Failed = manifest.Failed()
	batch.FailedIDs = manifest.FailedIDs()
	batch.Bytes = int64(len(artifact))
	batch.ArtifactData = artifact
	if manifest.Aborted {
		batch.Status = "aborted"
	} else {
		batch.Status = "completed"
	}

	if err := s.UpdateBatch(batch); err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	for _, it := range manifest.Items {
		item := &model.BatchItem{
			BatchID:  batch.ID,
			EntityID: it.EntityID,
			Status:   "ok",
			Bytes:    it.Size,
		}
		if it.Failed() {
			item.Status = "failed"
			item.ErrorKind = string(it.ErrorKind)
			item.ErrorText = it.Message
		}
		if err := s.CreateBatchItem(item); err != nil {
			return fmt.Errorf("record item %s: %w", it.EntityID, err)
		}
	}
	return nil
}

// Close shuts down the write queue and closes the database.
func (s *Store) Close() error {
	if s.writeQueue != nil {
		s.writeQueue.shutdown()
	}
	return s.db.Close()
}
