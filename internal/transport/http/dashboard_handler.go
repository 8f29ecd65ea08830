package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "stockdash/internal/errors"
	"stockdash/internal/exporter"
	custommw "stockdash/internal/middleware"
	"stockdash/internal/services"
	api "stockdash/pkg/contracts/api/v1"
	"stockdash/pkg/contracts/domain"
)

// DashboardHandler serves filtered views, charts, statistics and exports as JSON,
// PNG and file downloads, with RFC 7807 errors.
type DashboardHandler struct {
	service      DashboardServiceInterface
	validator    *custommw.ValidationMiddleware
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardServiceInterface, validator *custommw.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// RegisterRoutes registers the dashboard routes on an /api router
func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/datasets", h.GetDatasets)
	r.Get("/view", h.GetView)
	r.Get("/stats", h.GetStats)
	r.Get("/charts/{kind}", h.GetChart)
	r.Get("/export/{format}", h.Export)
}

// GetDatasets handles GET /api/datasets
func (h *DashboardHandler) GetDatasets(w http.ResponseWriter, r *http.Request) {
	req := api.SourceRequest{CSVUpload: r.URL.Query().Get("csv"), XLSXUpload: r.URL.Query().Get("xlsx")}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	catalog, err := h.service.Datasets(r.Context(), req.Ref())
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceProblem(err, "", services.HaltNotices(err, domain.DefaultDataset)))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   catalog,
	})
}

// GetView handles GET /api/view
func (h *DashboardHandler) GetView(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	h.logger.DebugContext(r.Context(), "building view",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("dataset", string(req.DatasetName())),
		slog.Int("columns", len(req.Columns)),
		slog.Int("charts", len(req.Charts)),
	)

	view, _, err := h.service.BuildView(r.Context(), viewQuery(req, r.URL.Query()))
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceProblem(err, "", view.Notices))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   view,
	})
}

// GetStats handles GET /api/stats
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), viewQuery(req, r.URL.Query()))
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceProblem(err, "", services.HaltNotices(err, req.DatasetName())))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   stats,
	})
}

// GetChart handles GET /api/charts/{kind} and answers with a PNG
func (h *DashboardHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	view, ok := h.decode(w, r)
	if !ok {
		return
	}
	chartReq := api.ChartRequest{
		ViewRequest: view,
		Kind:        chi.URLParam(r, "kind"),
		X:           r.URL.Query().Get("x"),
		Y:           r.URL.Query().Get("y"),
	}
	if err := h.validator.ValidateStruct(chartReq); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var buf bytes.Buffer
	spec, err := h.service.RenderChart(r.Context(), viewQuery(view, r.URL.Query()), chartReq.Chart(), &buf)
	if err != nil {
		detail := ""
		if errors.Is(err, services.ErrChartUnavailable) && spec.Reason != "" {
			detail = spec.Reason
		}
		h.errorHandler.HandleError(w, r, serviceProblem(err, detail, services.HaltNotices(err, view.DatasetName())))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Chart-Title", spec.Title)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write chart",
			slog.String("error", err.Error()),
			slog.String("kind", string(spec.Kind)))
	}
}

// Export handles GET /api/export/{format} and answers with a download
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	view, ok := h.decode(w, r)
	if !ok {
		return
	}
	exportReq := api.ExportRequest{ViewRequest: view, Format: chi.URLParam(r, "format")}
	if err := h.validator.ValidateStruct(exportReq); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	format := exporter.Format(exportReq.Format)
	var buf bytes.Buffer
	filename, err := h.service.Export(r.Context(), viewQuery(view, r.URL.Query()), format, &buf)
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceProblem(err, "", services.HaltNotices(err, view.DatasetName())))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write export",
			slog.String("error", err.Error()),
			slog.String("format", string(format)))
	}
}

// decode reads and validates the view selection, answering with a problem on failure
func (h *DashboardHandler) decode(w http.ResponseWriter, r *http.Request) (api.ViewRequest, bool) {
	req, err := decodeViewRequest(r)
	if err == nil {
		err = h.validator.ValidateStruct(req)
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return req, false
	}
	return req, true
}
