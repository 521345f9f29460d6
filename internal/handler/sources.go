package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/repository"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/runner"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/scheduler"
	"github.com/chuckles-the-dancing-clown91/cockpit-sub000/internal/syncer"
)

type SourcesHandler struct {
	Repo      repository.Repository
	Syncer    *syncer.Service
	Runner    *runner.Runner
	Scheduler *scheduler.Scheduler
	Logger    *zap.Logger
}

func (h *SourcesHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1")
	group.GET("/sources", h.list)
	group.POST("/sources", h.create)
	group.DELETE("/sources/:id", h.delete)
	group.POST("/sources/:id/sync", h.syncOne)
	group.POST("/sources/:id/test", h.test)
	group.GET("/sources/:id/items", h.items)
	group.POST("/sync", h.syncAll)
}

func (h *SourcesHandler) list(c *gin.Context) {
	sources, err := h.Repo.ListSources(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, sources, map[string]any{"total": len(sources)})
}

func (h *SourcesHandler) create(c *gin.Context) {
	var params syncer.CreateSourceParams
	if err := c.ShouldBindJSON(&params); err != nil {
		Error(c, http.StatusBadRequest, "invalid body: "+err.Error(), nil)
		return
	}
	source, err := h.Syncer.CreateSource(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	// The new job only starts ticking once the trigger set is rebuilt.
	if h.Scheduler != nil {
		if err := h.Scheduler.Reload(c.Request.Context()); err != nil {
			h.Logger.Warn("scheduler reload after source create failed", zap.Error(err))
		}
	}
	Ok(c, source, nil)
}

func (h *SourcesHandler) delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid source id", nil)
		return
	}
	if err := h.Syncer.DeleteSource(c.Request.Context(), id); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if h.Scheduler != nil {
		if err := h.Scheduler.Reload(c.Request.Context()); err != nil {
			h.Logger.Warn("scheduler reload after source delete failed", zap.Error(err))
		}
	}
	Ok(c, gin.H{"deleted": id}, nil)
}

// syncOne routes through the task runner so manual syncs share the
// single-flight guard and outcome recording with scheduled ones.
func (h *SourcesHandler) syncOne(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid source id", nil)
		return
	}
	outcome := h.Runner.Run(c.Request.Context(), syncer.SourceJobType(id))
	Ok(c, outcome, nil)
}

func (h *SourcesHandler) syncAll(c *gin.Context) {
	outcome := h.Runner.Run(c.Request.Context(), runner.JobTypeSyncAll)
	Ok(c, outcome, nil)
}

func (h *SourcesHandler) test(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid source id", nil)
		return
	}
	result, err := h.Syncer.TestSource(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

func (h *SourcesHandler) items(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid source id", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	items, err := h.Repo.ListItems(c.Request.Context(), repository.ListItemsParams{
		SourceID: &id,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"limit": limit, "offset": offset})
}
