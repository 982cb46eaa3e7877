package handler

import (
	"context"

	"memebot/internal/domain"
	"memebot/internal/metrics"
	"memebot/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

type CycleSource interface {
	Latest(ctx context.Context) (*domain.CycleResult, error)
	RunNotify(ctx context.Context, trigger string, force bool) service.NotifyOutcome
}

type HistorySource interface {
	RecentActions(ctx context.Context, hours, limit int) ([]domain.PersistedAction, error)
	Performance(ctx context.Context, limit int) ([]domain.Position, domain.PerformanceStats, error)
}

type Handler struct {
	tracer  trace.Tracer
	cycles  CycleSource
	history HistorySource
	metrics *metrics.Metrics
}

func New(tracer trace.Tracer, cycles CycleSource, m *metrics.Metrics) *Handler {
	return &Handler{tracer: tracer, cycles: cycles, metrics: m}
}

// SetHistorySource enables the history routes; they answer 503 without it.
func (h *Handler) SetHistorySource(history HistorySource) {
	h.history = history
}

func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string, gatherer prometheus.Gatherer) {
	r.GET("/health", h.Health)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api", RequestMetrics(h.metrics), APIKeyAuth(apiKey))
	api.GET("/market", h.GetMarket)
	api.GET("/signals", h.GetSignals)
	api.GET("/sentiment", h.GetSentiment)
	api.GET("/history/actions", h.GetRecentActions)
	api.GET("/history/performance", h.GetPerformance)
	api.POST("/analysis/run", h.TriggerAnalysisRun)
}
