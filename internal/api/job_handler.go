package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/storyloom/storyboard-api/internal/api/shared"
	"github.com/storyloom/storyboard-api/internal/domain"
	"github.com/storyloom/storyboard-api/internal/resultcache"
	"github.com/storyloom/storyboard-api/internal/service"
)

// CreateJobRequest represents the request body for submitting a new
// storyboard generation job.
type CreateJobRequest struct {
	VideoID      string `json:"video_id"      validate:"required,min=1"`
	Mode         string `json:"mode"          validate:"omitempty,oneof=standard detailed"`
	TotalBatches int    `json:"total_batches" validate:"required,gt=0,lte=100"`
}

// JobResponse represents the response data for a job.
type JobResponse struct {
	ID               string    `json:"id"`
	VideoID          string    `json:"video_id"`
	Mode             string    `json:"mode"`
	Status           string    `json:"status"`
	CompletedBatches int       `json:"completed_batches"`
	TotalBatches     int       `json:"total_batches"`
	LastError        string    `json:"last_error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// JobHandler handles job-related HTTP requests.
type JobHandler struct {
	jobService service.JobService
	results    *resultcache.Cache
	logger     *slog.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobService service.JobService, results *resultcache.Cache, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{
		jobService: jobService,
		results:    results,
		logger:     logger.With(slog.String("component", "job_handler")),
	}
}

// CreateJob handles POST /api/jobs requests. Processing happens
// asynchronously, so a successful submission returns 202 Accepted with
// the pending job.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	mode := domain.WorkflowMode(req.Mode)
	if req.Mode == "" {
		mode = domain.WorkflowModeStandard
	}

	job, err := h.jobService.CreateJobAndEnqueue(r.Context(), req.VideoID, mode, req.TotalBatches)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, jobToDTOResponse(job))
}

// GetJob handles GET /api/jobs/{id} requests.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobIDFromURL(w, r)
	if !ok {
		return
	}

	job, err := h.jobService.GetJob(r.Context(), jobID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, jobToDTOResponse(job))
}

// DeleteJob handles DELETE /api/jobs/{id} requests. In-progress jobs
// cannot be deleted and get 409 Conflict.
func (h *JobHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.jobService.DeleteJob(r.Context(), jobID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetJobResult handles GET /api/jobs/{id}/result requests. The result is
// the cached storyboard artifact of a completed job; jobs that have not
// finished, or whose cached result has expired, get 404.
func (h *JobHandler) GetJobResult(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobIDFromURL(w, r)
	if !ok {
		return
	}

	entry, err := h.results.Get(r.Context(), jobID.String())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), "Result not found", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resultToDTOResponse(entry))
}

// jobIDFromURL parses the {id} URL parameter. On failure it writes a 400
// response and returns ok=false.
func (h *JobHandler) jobIDFromURL(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return uuid.Nil, false
	}
	return jobID, true
}

// jobToDTOResponse converts a domain.Job to a JobResponse.
func jobToDTOResponse(job *domain.Job) JobResponse {
	return JobResponse{
		ID:               job.ID.String(),
		VideoID:          job.VideoID,
		Mode:             string(job.Mode),
		Status:           string(job.Status),
		CompletedBatches: job.CompletedBatches,
		TotalBatches:     job.TotalBatches,
		LastError:        job.LastError,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
	}
}
