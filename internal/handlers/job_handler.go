package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
)

// JobHandler serves the analysis job endpoints.
type JobHandler struct {
	scheduler interfaces.SchedulerService
	cache     interfaces.CacheService
	validate  *validator.Validate
	logger    arbor.ILogger
}

// NewJobHandler creates the job endpoint handler.
func NewJobHandler(scheduler interfaces.SchedulerService, cache interfaces.CacheService, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		scheduler: scheduler,
		cache:     cache,
		validate:  validator.New(),
		logger:    logger,
	}
}

// createJobRequest is the POST /api/jobs body.
type createJobRequest struct {
	PostID     string   `json:"post_id" validate:"required"`
	UserID     string   `json:"user_id" validate:"required"`
	CommentIDs []string `json:"comment_ids"`
}

// CreateJobHandler queues an analysis job for a post. A fresh cached
// result short-circuits the queue entirely.
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if cached := h.cache.CheckDurableFreshness(r.Context(), req.PostID); cached != nil {
		h.logger.Debug().Str("post_id", req.PostID).Msg("Serving analysis from cache, no job queued")
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"cached": true,
			"result": cached,
		})
		return
	}

	jobID, err := h.scheduler.QueueAnalysisJob(r.Context(), req.PostID, req.UserID, req.CommentIDs)
	if err != nil {
		h.logger.Error().Err(err).Str("post_id", req.PostID).Msg("Failed to queue job")
		WriteError(w, http.StatusInternalServerError, "failed to queue analysis job")
		return
	}

	// Detached context: result caching outlives this request.
	h.cache.ScheduleResultCaching(context.Background(), jobID, req.PostID)

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(models.JobStatusPending),
	})
}

// GetJobHandler serves GET /api/jobs/{id}.
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if cached := h.cache.Get("job:" + jobID); cached != nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"cached": true,
			"result": cached,
		})
		return
	}

	view, err := h.scheduler.GetJobStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "job not found: "+jobID)
			return
		}
		WriteError(w, http.StatusInternalServerError, "failed to read job status")
		return
	}

	WriteJSON(w, http.StatusOK, view)
}

// CancelJobHandler serves POST /api/jobs/{id}/cancel.
func (h *JobHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.scheduler.CancelJob(r.Context(), jobID); err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "job not found: "+jobID)
			return
		}
		WriteError(w, http.StatusConflict, err.Error())
		return
	}

	WriteSuccess(w, "job cancelled")
}

// UserJobsHandler serves GET /api/users/{id}/jobs.
func (h *JobHandler) UserJobsHandler(w http.ResponseWriter, r *http.Request, userID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	views, err := h.scheduler.GetUserJobs(r.Context(), userID, QueryLimit(r, 20))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  views,
		"count": len(views),
	})
}

// QueueStatsHandler serves GET /api/queue/stats.
func (h *JobHandler) QueueStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, h.scheduler.GetQueueStats())
}
