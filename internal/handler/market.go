package handler

import (
	"net/http"
	"strconv"

	"memebot/internal/analysis"
	"memebot/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// latestOrAbort writes a 503 and returns nil when no cycle is available.
func (h *Handler) latestOrAbort(c *gin.Context) *domain.CycleResult {
	latest, err := h.cycles.Latest(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil
	}
	if latest == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no analysis has run yet"})
		return nil
	}
	return latest
}

// GetMarket godoc
// @Summary      Latest market snapshot
// @Description  Returns the snapshots used by the most recent analysis cycle
// @Tags         market
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/market [get]
func (h *Handler) GetMarket(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-market")
	defer span.End()

	latest := h.latestOrAbort(c)
	if latest == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cycle_id":      latest.CycleID,
		"started_at":    latest.StartedAt,
		"used_fallback": latest.UsedFallback,
		"snapshots":     latest.Snapshots,
	})
}

// GetSignals godoc
// @Summary      Latest signals
// @Description  Returns the latest cycle's signals with confidence above min_confidence, in snapshot order
// @Tags         signals
// @Produce      json
// @Param        min_confidence  query  int  false  "Only signals with confidence strictly above this value (0-100)"  default(0)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/signals [get]
func (h *Handler) GetSignals(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-signals")
	defer span.End()

	minConfidence := 0
	if raw := c.Query("min_confidence"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_confidence must be an integer between 0 and 100"})
			return
		}
		minConfidence = n
	}
	span.SetAttributes(attribute.Int("min_confidence", minConfidence))

	latest := h.latestOrAbort(c)
	if latest == nil {
		return
	}

	signals := make([]domain.Signal, 0, len(latest.Signals))
	for _, s := range latest.Signals {
		if s.Confidence > minConfidence {
			signals = append(signals, s)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"cycle_id":      latest.CycleID,
		"used_fallback": latest.UsedFallback,
		"count":         len(signals),
		"signals":       signals,
	})
}

// GetSentiment godoc
// @Summary      Market sentiment
// @Description  Scores the breadth of the latest snapshot on a 0-100 scale
// @Tags         market
// @Produce      json
// @Success      200  {object}  analysis.SentimentScore
// @Failure      503  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/sentiment [get]
func (h *Handler) GetSentiment(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-sentiment")
	defer span.End()

	latest := h.latestOrAbort(c)
	if latest == nil {
		return
	}
	c.JSON(http.StatusOK, analysis.Sentiment(latest.Snapshots))
}
