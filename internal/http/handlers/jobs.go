package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mediagen/internal/domain"
)

// DefaultModel is used when a generation request names no model.
const DefaultModel = "flux-schnell"

type generateRequest struct {
	Prompt     string          `json:"prompt"`
	Model      string          `json:"model"`
	Parameters json.RawMessage `json:"parameters"`
}

type jobView struct {
	ID           string          `json:"id"`
	Prompt       string          `json:"prompt"`
	Model        string          `json:"model"`
	Parameters   json.RawMessage `json:"parameters,omitempty"`
	Status       string          `json:"status"`
	RetryCount   int             `json:"retry_count"`
	ErrorMessage string          `json:"error_message,omitempty"`
	ResultURL    string          `json:"result_url,omitempty"`
	FileSize     int64           `json:"file_size,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

func viewOf(job *domain.Job) jobView {
	return jobView{
		ID:           job.ID,
		Prompt:       job.Prompt,
		Model:        job.Model,
		Parameters:   job.Parameters,
		Status:       string(job.Status),
		RetryCount:   job.RetryCount,
		ErrorMessage: job.ErrorMessage,
		ResultURL:    job.Result.ResultURL,
		FileSize:     job.Result.SizeBytes,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
	}
}

func (a *App) GenerateMedia(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := domain.ValidatePrompt(req.Prompt); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_prompt", err.Error())
		return
	}
	if len(req.Parameters) > 0 && !json.Valid(req.Parameters) {
		a.error(w, http.StatusBadRequest, "bad_request", "parameters must be valid JSON")
		return
	}
	if req.Model == "" {
		req.Model = DefaultModel
	}

	job := domain.NewJob(req.Prompt, req.Model, req.Parameters)
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Msg("api: failed to enqueue job")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		return
	}
	a.Metrics.RecordEnqueued()
	a.Logger.Info().Str("job_id", job.ID).Str("model", job.Model).Msg("api: job queued")
	a.json(w, http.StatusAccepted, map[string]string{"job_id": job.ID, "status": string(job.Status)})
}

func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("api: failed to load job")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, viewOf(job))
}

func (a *App) JobsList(w http.ResponseWriter, r *http.Request) {
	filter := domain.JobFilter{Limit: 50}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.JobStatus(raw)
		if !status.Valid() {
			a.error(w, http.StatusBadRequest, "bad_request", "unknown status "+raw)
			return
		}
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		if n > 200 {
			n = 200
		}
		filter.Limit = n
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	jobs, err := a.Jobs.List(r.Context(), filter)
	if err != nil {
		a.Logger.Error().Err(err).Msg("api: failed to list jobs")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}
	views := make([]jobView, 0, len(jobs))
	for i := range jobs {
		views = append(views, viewOf(&jobs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": views, "count": len(views)})
}

func (a *App) JobCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	err := a.Jobs.RequestCancel(r.Context(), jobID)
	switch {
	case err == nil:
		a.Metrics.RecordCancelled()
		a.Logger.Info().Str("job_id", jobID).Msg("api: job cancelled")
		a.json(w, http.StatusOK, map[string]string{"job_id": jobID, "status": string(domain.JobStatusCancelled)})
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		a.error(w, http.StatusConflict, "conflict", "job already finished")
	default:
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("api: failed to cancel job")
		a.error(w, http.StatusInternalServerError, "internal", "failed to cancel job")
	}
}

func (a *App) JobDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	if job.Status != domain.JobStatusCompleted {
		a.error(w, http.StatusBadRequest, "not_ready", "job is "+string(job.Status))
		return
	}
	if !job.Result.Present() {
		a.error(w, http.StatusNotFound, "expired", "artifact has been reclaimed")
		return
	}
	data, err := a.Store.Get(r.Context(), jobID, "png")
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "expired", "artifact has been reclaimed")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("api: failed to read artifact")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read artifact")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+".png"))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (a *App) JobMetadata(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	if _, err := a.Jobs.GetByID(r.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	meta, err := a.Store.GetMetadata(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "metadata not recorded yet")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("api: failed to read metadata")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read metadata")
		return
	}
	a.json(w, http.StatusOK, meta)
}
