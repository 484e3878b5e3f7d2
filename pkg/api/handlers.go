// Package api exposes batch export history and job control over HTTP.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yourusername/report-export-app/pkg/cron"
	"github.com/yourusername/report-export-app/pkg/model"
	"github.com/yourusername/report-export-app/pkg/store"
)

// Handler serves the export API.
type Handler struct {
	store     *store.Store
	scheduler *cron.Scheduler
	jobs      []model.Job
	router    chi.Router
	log       *slog.Logger
}

// NewHandler creates the API handler. A nil scheduler disables the
// trigger endpoints.
func NewHandler(st *store.Store, scheduler *cron.Scheduler, jobs []model.Job) *Handler {
	h := &Handler{
		store:     st,
		scheduler: scheduler,
		jobs:      jobs,
		log:       slog.Default(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/api/health", h.handleHealth)
	r.Route("/api/exports", func(r chi.Router) {
		r.Get("/", h.handleListBatches)
		r.Post("/", h.handleCreateExport)
		r.Get("/{id}", h.handleGetBatch)
		r.Get("/{id}/items", h.handleListItems)
		r.Get("/{id}/artifact", h.handleGetArtifact)
	})
	r.Route("/api/jobs", func(r chi.Router) {
		r.Get("/", h.handleListJobs)
		r.Post("/{name}/run", h.handleRunJob)
	})

	h.router = r
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("api: failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListBatches handles GET /api/exports
func (h *Handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	batches, err := h.store.ListBatches(limit)
	if err != nil {
		h.log.Error("api: list batches failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list exports")
		return
	}
	h.writeJSON(w, http.StatusOK, batches)
}

// createExportRequest is the body of POST /api/exports.
type createExportRequest struct {
	JobName   string   `json:"job_name"`
	EntityIDs []string `json:"entity_ids"`
	Format    string   `json:"format"`
}

// handleCreateExport handles POST /api/exports: an ad-hoc batch run.
func (h *Handler) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		h.writeError(w, http.StatusServiceUnavailable, "export execution is not available")
		return
	}

	var req createExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.EntityIDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "entity_ids is required")
		return
	}
	if err := model.ValidateEntityIDs(req.EntityIDs); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Format != "" && req.Format != "zip" && req.Format != "pdf" {
		h.writeError(w, http.StatusBadRequest, "format must be zip or pdf")
		return
	}
	if req.JobName == "" {
		req.JobName = "adhoc"
	}

	job := model.Job{
		Name:      req.JobName,
		EntityIDs: req.EntityIDs,
		Format:    req.Format,
		Enabled:   true,
	}
	h.scheduler.ExecuteJob(job)
	h.log.Info("api: ad-hoc export accepted", "job", job.Name, "entities", len(job.EntityIDs))
	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":   "accepted",
		"job_name": job.Name,
		"total":    len(job.EntityIDs),
	})
}

func (h *Handler) batchID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid export id")
		return 0, false
	}
	return id, true
}

// handleGetBatch handles GET /api/exports/{id}
func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.batchID(w, r)
	if !ok {
		return
	}
	batch, err := h.store.GetBatch(id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "export not found")
		return
	}
	h.writeJSON(w, http.StatusOK, batch)
}

// handleListItems handles GET /api/exports/{id}/items
func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	id, ok := h.batchID(w, r)
	if !ok {
		return
	}
	if _, err := h.store.GetBatch(id); err != nil {
		h.writeError(w, http.StatusNotFound, "export not found")
		return
	}
	items, err := h.store.ListBatchItems(id)
	if err != nil {
		h.log.Error("api: list items failed", "batch", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}

// handleGetArtifact handles GET /api/exports/{id}/artifact
func (h *Handler) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := h.batchID(w, r)
	if !ok {
		return
	}
	batch, err := h.store.GetBatch(id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "export not found")
		return
	}
	data, err := h.store.GetArtifact(id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "export has no artifact")
		return
	}

	contentType := "application/zip"
	ext := "zip"
	if batch.Format == "pdf" {
		contentType = "application/pdf"
		ext = "pdf"
	}
	filename := fmt.Sprintf("%s-%d.%s", model.SanitizeEntityName(batch.JobName), batch.ID, ext)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// jobStatus is the GET /api/jobs response element.
type jobStatus struct {
	model.Job
	NextRunAt string `json:"next_run_at,omitempty"`
}

// handleListJobs handles GET /api/jobs
func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	out := make([]jobStatus, 0, len(h.jobs))
	for _, job := range h.jobs {
		js := jobStatus{Job: job}
		if h.scheduler != nil {
			if next := h.scheduler.NextRun(job.Name); !next.IsZero() {
				js.NextRunAt = next.Format("2006-01-02T15:04:05Z07:00")
			}
		}
		out = append(out, js)
	}
	h.writeJSON(w, http.StatusOK, out)
}

// handleRunJob handles POST /api/jobs/{name}/run: manual trigger.
func (h *Handler) handleRunJob(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		h.writeError(w, http.StatusServiceUnavailable, "export execution is not available")
		return
	}
	name := chi.URLParam(r, "name")
	for _, job := range h.jobs {
		if job.Name == name {
			h.scheduler.ExecuteJob(job)
			h.log.Info("api: manual job run triggered", "job", name)
			h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "job_name": name})
			return
		}
	}
	h.writeError(w, http.StatusNotFound, "job not found")
}
