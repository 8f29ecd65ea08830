package http

import (
	"context"
	"io"

	"stockdash/internal/dataprocessing"
	"stockdash/internal/exporter"
	"stockdash/internal/services"
	"stockdash/pkg/contracts/domain"
)

// DashboardServiceInterface defines the dashboard operations used by handlers
type DashboardServiceInterface interface {
	Datasets(ctx context.Context, ref domain.SourceRef) (domain.DatasetCatalog, error)
	BuildView(ctx context.Context, q services.ViewQuery) (*domain.View, *dataprocessing.Dataset, error)
	RenderChart(ctx context.Context, q services.ViewQuery, req domain.ChartRequest, w io.Writer) (domain.ChartSpec, error)
	Stats(ctx context.Context, q services.ViewQuery) (*domain.Statistics, error)
	Export(ctx context.Context, q services.ViewQuery, format exporter.Format, w io.Writer) (string, error)
}

// UploadServiceInterface defines the upload operations used by handlers
type UploadServiceInterface interface {
	Store(ctx context.Context, filename string, r io.Reader) (domain.Upload, error)
	List(ctx context.Context) ([]domain.Upload, error)
	Get(ctx context.Context, id string) (domain.Upload, error)
	Delete(ctx context.Context, id string) error
	InvalidateCache(ctx context.Context, reason string) int
}

// SystemStatsProvider reports runtime statistics
type SystemStatsProvider interface {
	SystemStats(ctx context.Context) (services.SystemStats, error)
}
