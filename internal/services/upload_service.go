package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"stockdash/internal/files"
	"stockdash/internal/infrastructure"
	"stockdash/internal/validation"
	"stockdash/pkg/contracts/domain"
	"stockdash/pkg/contracts/events"
)

// Broadcaster pushes a message to every connected dashboard page
type Broadcaster interface {
	Broadcast(messageType string, data interface{})
}

// CacheInvalidator drops memoized loads
type CacheInvalidator interface {
	InvalidateCache() int
}

// UploadService stores user files and announces changes to open dashboards
type UploadService struct {
	store     *files.UploadStore
	validator *validation.FileValidator
	cache     CacheInvalidator
	hub       Broadcaster
	metrics   *infrastructure.BusinessMetrics
	logger    *slog.Logger
}

// NewUploadService creates an upload service. hub and metrics may be nil.
func NewUploadService(store *files.UploadStore, validator *validation.FileValidator, cache CacheInvalidator, hub Broadcaster, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *UploadService {
	if logger == nil {
		logger = slog.Default()
	}
	if validator == nil {
		validator = validation.NewFileValidator(logger)
	}
	return &UploadService{
		store:     store,
		validator: validator,
		cache:     cache,
		hub:       hub,
		metrics:   metrics,
		logger:    infrastructure.WithComponent(logger, "upload_service"),
	}
}

// Store validates and saves one uploaded file
func (s *UploadService) Store(ctx context.Context, filename string, r io.Reader) (domain.Upload, error) {
	kind, err := files.KindFromName(filename)
	if err != nil {
		return domain.Upload{}, err
	}

	content, err := s.validator.Sniff(kind, r)
	if err != nil {
		s.logger.WarnContext(ctx, "Upload rejected",
			slog.String("filename", filename),
			slog.String("error", err.Error()))
		return domain.Upload{}, fmt.Errorf("%w: %w", files.ErrUnsupportedFileType, err)
	}

	upload, err := s.store.Save(filename, content)
	if err != nil {
		return domain.Upload{}, err
	}

	s.metrics.RecordUpload(ctx, string(upload.Kind), upload.Size)
	s.broadcast(events.MessageTypeUploadStored, events.UploadStoredEvent{Upload: upload})

	return upload, nil
}

// List returns the stored uploads, newest first
func (s *UploadService) List(ctx context.Context) ([]domain.Upload, error) {
	return s.store.List()
}

// Get returns a stored upload by ID
func (s *UploadService) Get(ctx context.Context, id string) (domain.Upload, error) {
	return s.store.Get(id)
}

// Delete removes a stored upload
func (s *UploadService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Upload deleted", slog.String("upload_id", id))
	return nil
}

// InvalidateCache drops memoized loads and tells open dashboards to reload
func (s *UploadService) InvalidateCache(ctx context.Context, reason string) int {
	n := s.cache.InvalidateCache()
	s.logger.InfoContext(ctx, "Cache invalidation requested",
		slog.String("reason", reason),
		slog.Int("entries", n))
	s.broadcast(events.MessageTypeCacheInvalidated, events.CacheInvalidatedEvent{Entries: n, Reason: reason})
	return n
}

func (s *UploadService) broadcast(messageType events.MessageType, data interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(string(messageType), data)
}
