package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/repository"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/runner"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/scheduler"
)

type JobsHandler struct {
	Repo      repository.Repository
	Runner    *runner.Runner
	Scheduler *scheduler.Scheduler
	Logger    *zap.Logger
}

func (h *JobsHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1")
	group.GET("/jobs", h.list)
	group.POST("/jobs/:type/run", h.runNow)
	group.PATCH("/jobs/:type", h.update)
	group.POST("/scheduler/reload", h.reload)
}

func (h *JobsHandler) list(c *gin.Context) {
	jobs, err := h.Repo.ListJobs(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, jobs, map[string]any{"total": len(jobs)})
}

// runNow shares the single-flight guard with scheduled fires, so a job
// already ticking comes back skipped("already running").
func (h *JobsHandler) runNow(c *gin.Context) {
	jobType := strings.TrimSpace(c.Param("type"))
	if jobType == "" {
		Error(c, http.StatusBadRequest, "invalid job type", nil)
		return
	}
	outcome := h.Runner.Run(c.Request.Context(), jobType)
	Ok(c, outcome, nil)
}

type updateJobRequest struct {
	Name            *string `json:"name"`
	Enabled         *bool   `json:"enabled"`
	Cron            *string `json:"cron"`
	IntervalSeconds *int    `json:"interval_seconds"`
}

func (h *JobsHandler) update(c *gin.Context) {
	jobType := strings.TrimSpace(c.Param("type"))
	job, err := h.Repo.GetJobByType(c.Request.Context(), jobType)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if job == nil {
		Error(c, http.StatusNotFound, "job not found", nil)
		return
	}

	var req updateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body: "+err.Error(), nil)
		return
	}
	if req.Cron != nil && req.IntervalSeconds != nil {
		Error(c, http.StatusBadRequest, "cron and interval_seconds are mutually exclusive", nil)
		return
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		job.Name = strings.TrimSpace(*req.Name)
	}
	if req.Enabled != nil {
		job.Enabled = *req.Enabled
	}
	// Cadence is one of cron or interval; setting either clears the other.
	if req.Cron != nil {
		expr := strings.TrimSpace(*req.Cron)
		if expr == "" {
			Error(c, http.StatusBadRequest, "cron must not be empty", nil)
			return
		}
		job.CronExpr = &expr
		job.IntervalSeconds = nil
	}
	if req.IntervalSeconds != nil {
		if *req.IntervalSeconds <= 0 {
			Error(c, http.StatusBadRequest, "interval_seconds must be positive", nil)
			return
		}
		interval := *req.IntervalSeconds
		job.IntervalSeconds = &interval
		job.CronExpr = nil
	}

	if err := h.Repo.SaveJob(c.Request.Context(), job); err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	if h.Scheduler != nil {
		if err := h.Scheduler.Reload(c.Request.Context()); err != nil {
			h.Logger.Warn("scheduler reload after job update failed", zap.Error(err))
		}
	}
	Ok(c, job, nil)
}

func (h *JobsHandler) reload(c *gin.Context) {
	if h.Scheduler == nil {
		Error(c, http.StatusServiceUnavailable, "scheduler disabled", nil)
		return
	}
	if err := h.Scheduler.Reload(c.Request.Context()); err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"reloaded": true}, nil)
}
