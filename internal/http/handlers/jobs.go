package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"adcraft/internal/domain"
	"adcraft/internal/middleware"
	"adcraft/internal/storage"
	"adcraft/pkg/zip"
)

type createJobRequest struct {
	ID      string          `json:"id"`
	Type    domain.JobType  `json:"type"`
	Input   json.RawMessage `json:"input"`
	DevMode bool            `json:"dev_mode"`
}

type jobResponse struct {
	ID        string           `json:"id"`
	Type      domain.JobType   `json:"type"`
	Status    domain.JobStatus `json:"status"`
	ResultKey string           `json:"result_key,omitempty"`
	Error     string           `json:"error,omitempty"`
	DevMode   bool             `json:"dev_mode,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func toJobResponse(job *domain.Job) jobResponse {
	return jobResponse{
		ID:        job.ID,
		Type:      job.Type,
		Status:    job.Status,
		ResultKey: job.ResultKey,
		Error:     job.ErrorMessage,
		DevMode:   job.DevMode,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}

// CreateJob validates the submission, persists it as SUBMITTED and returns
// 202. Workers pick the job up asynchronously; re-submitting an existing id
// re-runs it.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Type.Valid() {
		a.error(w, http.StatusBadRequest, "unsupported job type")
		return
	}
	// Input is validated once here; the worker trusts stored jobs.
	if _, err := domain.DecodeInput(req.Type, req.Input); err != nil {
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID := req.ID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	job := &domain.Job{
		ID:         jobID,
		Type:       req.Type,
		Status:     domain.JobStatusSubmitted,
		InputJSON:  req.Input,
		DevMode:    req.DevMode,
		APIVersion: "v1",
		Locale:     middleware.LocaleFromContext(r.Context()),
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("create job failed")
		a.error(w, http.StatusInternalServerError, "could not create job")
		return
	}

	a.bumpCounter(r.Context(), "jobs_submitted")
	a.json(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"status": domain.JobStatusSubmitted,
	})
}

// GetJob returns the job's current status.
func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := a.lookupJob(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, toJobResponse(job))
}

// GetJobResult streams the stored terminal result of a succeeded job.
func (a *App) GetJobResult(w http.ResponseWriter, r *http.Request) {
	job, ok := a.lookupJob(w, r)
	if !ok {
		return
	}
	if job.Status != domain.JobStatusSucceeded {
		a.json(w, http.StatusConflict, map[string]any{
			"job_id": job.ID,
			"status": job.Status,
			"error":  job.ErrorMessage,
		})
		return
	}

	data, err := a.Results.LoadRaw(r.Context(), job.ID, job.Type.TerminalStage())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			a.error(w, http.StatusNotFound, "result not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("load result failed")
		a.error(w, http.StatusInternalServerError, "could not load result")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// GetJobBundle packages the result document plus any generated images into
// one zip download.
func (a *App) GetJobBundle(w http.ResponseWriter, r *http.Request) {
	job, ok := a.lookupJob(w, r)
	if !ok {
		return
	}
	if job.Status != domain.JobStatusSucceeded {
		a.json(w, http.StatusConflict, map[string]any{"job_id": job.ID, "status": job.Status})
		return
	}

	stage := job.Type.TerminalStage()
	doc, err := a.Results.LoadRaw(r.Context(), job.ID, stage)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			a.error(w, http.StatusNotFound, "result not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("load result failed")
		a.error(w, http.StatusInternalServerError, "could not load result")
		return
	}

	assets := []zip.Asset{{Filename: stage + ".json", Data: doc}}
	if job.Type == domain.JobTypeImageGen {
		var result domain.ImageGenResult
		if err := json.Unmarshal(doc, &result); err == nil {
			for _, img := range result.Images {
				data, err := a.Results.LoadObject(r.Context(), img.Key)
				if err != nil {
					a.Logger.Warn().Err(err).Str("key", img.Key).Msg("bundle: skipping missing image")
					continue
				}
				assets = append(assets, zip.Asset{Filename: path.Base(img.Key), Data: data})
			}
		}
	}

	archive, err := zip.Archive(assets)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("bundle archive failed")
		a.error(w, http.StatusInternalServerError, "could not build bundle")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="job-`+job.ID+`.zip"`)
	_, _ = w.Write(archive)
}

func (a *App) lookupJob(w http.ResponseWriter, r *http.Request) (*domain.Job, bool) {
	id := chi.URLParam(r, "id")
	job, err := a.Jobs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "job not found")
			return nil, false
		}
		a.Logger.Error().Err(err).Str("job_id", id).Msg("get job failed")
		a.error(w, http.StatusInternalServerError, "could not load job")
		return nil, false
	}
	return job, true
}
