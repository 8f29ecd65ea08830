package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "stockdash/internal/errors"
)

// MetricsHandler serves runtime statistics as JSON. Prometheus metrics are
// served separately at /metrics.
type MetricsHandler struct {
	stats        SystemStatsProvider
	errorHandler *apierrors.ErrorHandler
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(stats SystemStatsProvider, errorHandler *apierrors.ErrorHandler) *MetricsHandler {
	return &MetricsHandler{stats: stats, errorHandler: errorHandler}
}

// Routes sets up the metrics routes
func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetStats)
	return r
}

// GetStats returns upload, cache, websocket and runtime statistics
func (h *MetricsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.SystemStats(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   stats,
	})
}
