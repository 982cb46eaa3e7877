package handler

import (
	"net/http"
	"strconv"

	"memebot/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// TriggerAnalysisRun godoc
// @Summary      Run analysis now
// @Description  Runs fetch, classify and persist, then the notify step. With force=true the minute gate is bypassed.
// @Tags         analysis
// @Produce      json
// @Param        force  query  bool  false  "Send the alert even when the gate is closed"  default(false)
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/analysis/run [post]
func (h *Handler) TriggerAnalysisRun(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-analysis-run")
	defer span.End()

	force := false
	if raw := c.Query("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "force must be a boolean"})
			return
		}
		force = v
	}
	span.SetAttributes(attribute.Bool("force", force))

	outcome := h.cycles.RunNotify(ctx, service.TriggerManual, force)
	status := http.StatusOK
	if outcome == service.NotifyFailed {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"outcome": string(outcome)})
}
