package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storyloom/storyboard-api/internal/api/shared"
	"github.com/storyloom/storyboard-api/internal/resultcache"
)

// ResultResponse represents one cached storyboard artifact.
type ResultResponse struct {
	JobID    string          `json:"job_id"`
	VideoID  string          `json:"video_id,omitempty"`
	Payload  json.RawMessage `json:"payload"`
	CachedAt time.Time       `json:"cached_at"`
}

// ResultListResponse wraps a list of cached results.
type ResultListResponse struct {
	Results []ResultResponse `json:"results"`
	Count   int              `json:"count"`
}

// ResultsHandler serves read access to the result cache.
type ResultsHandler struct {
	results *resultcache.Cache
	logger  *slog.Logger
}

// NewResultsHandler creates a new ResultsHandler.
func NewResultsHandler(results *resultcache.Cache, logger *slog.Logger) *ResultsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultsHandler{
		results: results,
		logger:  logger.With(slog.String("component", "results_handler")),
	}
}

// ListResults handles GET /api/results requests, returning every live
// cached artifact, most recent first.
func (h *ResultsHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	entries, err := h.results.List(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to list results", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, entriesToListResponse(entries))
}

// ListVideoResults handles GET /api/videos/{id}/results requests,
// returning the cached artifacts produced from one source video.
func (h *ResultsHandler) ListVideoResults(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	if videoID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid video ID")
		return
	}

	entries, err := h.results.ListForParent(r.Context(), videoID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to list results", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, entriesToListResponse(entries))
}

// resultToDTOResponse converts a cache entry to a ResultResponse.
func resultToDTOResponse(entry *resultcache.Entry) ResultResponse {
	return ResultResponse{
		JobID:    entry.ID,
		VideoID:  entry.ParentID,
		Payload:  entry.Payload,
		CachedAt: entry.Timestamp,
	}
}

func entriesToListResponse(entries []resultcache.Entry) ResultListResponse {
	results := make([]ResultResponse, 0, len(entries))
	for i := range entries {
		results = append(results, resultToDTOResponse(&entries[i]))
	}
	return ResultListResponse{Results: results, Count: len(results)}
}
