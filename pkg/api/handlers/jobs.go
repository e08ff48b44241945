package handlers

import (
	"errors"
	"net/http"

	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/pkg/models"
	"github.com/filemill/filemill/pkg/store"
)

// JobsHandler serves job state lookups.
type JobsHandler struct {
	store *store.GORMStore
}

// NewJobsHandler creates a new JobsHandler.
func NewJobsHandler(s *store.GORMStore) *JobsHandler {
	return &JobsHandler{store: s}
}

// Get handles GET /api/v1/jobs/{id}.
//
// Unlike files, a job that exists but belongs to someone else answers 403:
// job ids are not enumerable resources, so there is nothing to hide.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := requestClaims(w, r)
	if claims == nil {
		return
	}
	jobID := pathID(r)

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			NotFound(w, "Job not found")
			return
		}
		logger.ErrorCtx(r.Context(), "job lookup failed", logger.JobID(jobID), logger.Err(err))
		InternalServerError(w, "Failed to load job")
		return
	}

	file, err := h.store.GetFile(r.Context(), job.FileID)
	if err != nil {
		logger.ErrorCtx(r.Context(), "job owner lookup failed", logger.JobID(jobID), logger.Err(err))
		InternalServerError(w, "Failed to load job")
		return
	}
	if file.OwnerID != claims.UserID {
		Forbidden(w, "Not authorized to view this job")
		return
	}

	WriteJSONOK(w, job)
}

// List handles GET /api/v1/jobs.
// Returns every job on the owner's files, newest first.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := requestClaims(w, r)
	if claims == nil {
		return
	}

	jobs, err := h.store.ListJobsByOwner(r.Context(), claims.UserID)
	if err != nil {
		logger.ErrorCtx(r.Context(), "job listing failed", logger.OwnerID(claims.UserID), logger.Err(err))
		InternalServerError(w, "Failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []*models.Job{}
	}

	WriteJSONOK(w, jobs)
}
