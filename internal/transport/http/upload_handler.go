package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "stockdash/internal/errors"
	custommw "stockdash/internal/middleware"
	api "stockdash/pkg/contracts/api/v1"
	"stockdash/pkg/contracts/domain"
)

// UploadHandler stores user CSV and XLSX files and manages the load cache
type UploadHandler struct {
	service      UploadServiceInterface
	validator    *custommw.ValidationMiddleware
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(service UploadServiceInterface, validator *custommw.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *UploadHandler {
	return &UploadHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "upload_handler")),
		errorHandler: errorHandler,
	}
}

// RegisterRoutes registers the upload and cache routes on an /api router
func (h *UploadHandler) RegisterRoutes(r chi.Router) {
	r.Route("/uploads", func(r chi.Router) {
		r.With(h.validator.LimitBody, custommw.ContentTypeValidator("multipart/form-data")).
			Post("/", h.Upload)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.Delete)
	})
	r.Delete("/cache", h.InvalidateCache)
}

// Upload handles POST /api/uploads. Every file part of the multipart body is
// stored; other parts are ignored.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	reader, err := r.MultipartReader()
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewValidationError("request body must be multipart/form-data"))
		return
	}

	var stored []domain.Upload
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.errorHandler.HandleError(w, r, bodyProblem(err))
			return
		}
		if part.FileName() == "" {
			part.Close()
			continue
		}

		upload, err := h.service.Store(r.Context(), part.FileName(), part)
		part.Close()
		if err != nil {
			h.logger.WarnContext(r.Context(), "Failed to store upload",
				slog.String("filename", part.FileName()),
				slog.String("error", err.Error()))
			h.errorHandler.HandleError(w, r, uploadProblem(err))
			return
		}
		stored = append(stored, upload)
	}

	if len(stored) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.NewValidationErrors([]apierrors.ValidationError{
			{Field: "file", Message: "at least one .csv or .xlsx file is required"},
		}))
		return
	}

	h.logger.InfoContext(r.Context(), "Uploads stored", slog.Int("count", len(stored)))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   api.UploadResponse{Uploads: stored},
	})
}

// List handles GET /api/uploads
func (h *UploadHandler) List(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.service.List(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if uploads == nil {
		uploads = []domain.Upload{}
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   api.UploadResponse{Uploads: uploads},
	})
}

// Get handles GET /api/uploads/{id}
func (h *UploadHandler) Get(w http.ResponseWriter, r *http.Request) {
	req := api.UploadIDRequest{ID: chi.URLParam(r, "id")}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	upload, err := h.service.Get(r.Context(), req.ID)
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceProblem(err, "", nil))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   upload,
	})
}

// Delete handles DELETE /api/uploads/{id}
func (h *UploadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	req := api.UploadIDRequest{ID: chi.URLParam(r, "id")}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), req.ID); err != nil {
		h.errorHandler.HandleError(w, r, serviceProblem(err, "", nil))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InvalidateCache handles DELETE /api/cache
func (h *UploadHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	n := h.service.InvalidateCache(r.Context(), "api")

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   api.CacheInvalidationResponse{Entries: n},
	})
}

func uploadProblem(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return bodyProblem(err)
	}
	return serviceProblem(err, "", nil)
}

// bodyProblem reports a body that could not be read, distinguishing one cut
// off by the size limit.
func bodyProblem(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apierrors.NewWithDetails(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			"Upload exceeds the maximum allowed size", err.Error())
	}
	return apierrors.InvalidRequestWithError(err)
}
