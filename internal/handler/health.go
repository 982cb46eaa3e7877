package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary      Health check
// @Description  Returns the health status of the service and when the last cycle started
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{"status": "healthy"}
	if h.cycles != nil {
		if latest, err := h.cycles.Latest(c.Request.Context()); err == nil && latest != nil {
			body["last_cycle_at"] = latest.StartedAt
			body["used_fallback"] = latest.UsedFallback
		}
	}
	c.JSON(http.StatusOK, body)
}
