package handler

import (
	"errors"
	"net/http"
	"strconv"

	"gowa-broadcast/internal/dispatch"

	"github.com/labstack/echo/v4"
)

// GET /api/dispatch/jobs
func (h *Handler) ListJobs(c echo.Context) error {
	jobs := h.Jobs.List()
	return SuccessResponse(c, http.StatusOK, "Dispatch jobs", map[string]any{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// GET /api/dispatch/jobs/:id
func (h *Handler) GetJob(c echo.Context) error {
	job, err := h.Jobs.Get(c.Param("id"))
	if errors.Is(err, dispatch.ErrJobNotFound) {
		return ErrorResponse(c, http.StatusNotFound, "Job not found", "JOB_NOT_FOUND", "")
	}
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to load job", "JOB_ERROR", err.Error())
	}
	return SuccessResponse(c, http.StatusOK, "Dispatch job", job)
}

// DELETE /api/dispatch/jobs/:id
func (h *Handler) CancelJob(c echo.Context) error {
	id := c.Param("id")
	err := h.Jobs.Cancel(id)
	switch {
	case errors.Is(err, dispatch.ErrJobNotFound):
		return ErrorResponse(c, http.StatusNotFound, "Job not found", "JOB_NOT_FOUND", "")
	case errors.Is(err, dispatch.ErrJobFinished):
		return ErrorResponse(c, http.StatusConflict, "Job already finished", "JOB_FINISHED", "")
	case err != nil:
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to cancel job", "JOB_ERROR", err.Error())
	}
	h.Log.Info().Str("job_id", id).Msg("dispatch job cancelled")
	return SuccessResponse(c, http.StatusOK, "Job cancelled", map[string]any{"id": id})
}

// GET /api/dispatch/history?limit=50
func (h *Handler) JobHistory(c echo.Context) error {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}
	jobs, err := h.History.Recent(c.Request().Context(), limit)
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to load job history", "DATABASE_ERROR", err.Error())
	}
	return SuccessResponse(c, http.StatusOK, "Dispatch history", map[string]any{
		"jobs":  jobs,
		"total": len(jobs),
	})
}
