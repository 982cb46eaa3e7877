package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// intQuery returns def when the parameter is absent and false when it is not
// a positive integer.
func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// GetRecentActions godoc
// @Summary      Recent trading actions
// @Description  Returns stored signals from the last N hours, newest first
// @Tags         history
// @Produce      json
// @Param        hours  query  int  false  "Look-back window in hours (max 720)"  default(24)
// @Param        limit  query  int  false  "Max rows (max 1000)"  default(100)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/history/actions [get]
func (h *Handler) GetRecentActions(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history unavailable (no database configured)"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-recent-actions")
	defer span.End()

	hours, ok := intQuery(c, "hours", 0)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
		return
	}
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	actions, err := h.history.RecentActions(ctx, hours, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(actions), "actions": actions})
}

// GetPerformance godoc
// @Summary      Position performance
// @Description  Returns tracked positions and statistics over the closed ones
// @Tags         history
// @Produce      json
// @Param        limit  query  int  false  "Max positions (max 500)"  default(50)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/history/performance [get]
func (h *Handler) GetPerformance(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history unavailable (no database configured)"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-performance")
	defer span.End()

	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	positions, stats, err := h.history.Performance(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions, "stats": stats})
}
