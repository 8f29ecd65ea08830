package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stockdash/internal/dataprocessing"
	apierrors "stockdash/internal/errors"
	"stockdash/internal/exporter"
	custommw "stockdash/internal/middleware"
	"stockdash/internal/services"
	"stockdash/internal/shared/testutil"
	"stockdash/pkg/contracts/domain"
)

// MockDashboardService is a mock for DashboardServiceInterface
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) Datasets(ctx context.Context, ref domain.SourceRef) (domain.DatasetCatalog, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(domain.DatasetCatalog), args.Error(1)
}

func (m *MockDashboardService) BuildView(ctx context.Context, q services.ViewQuery) (*domain.View, *dataprocessing.Dataset, error) {
	args := m.Called(ctx, q)
	var ds *dataprocessing.Dataset
	if v := args.Get(1); v != nil {
		ds = v.(*dataprocessing.Dataset)
	}
	return args.Get(0).(*domain.View), ds, args.Error(2)
}

func (m *MockDashboardService) RenderChart(ctx context.Context, q services.ViewQuery, req domain.ChartRequest, w io.Writer) (domain.ChartSpec, error) {
	args := m.Called(ctx, q, req, w)
	return args.Get(0).(domain.ChartSpec), args.Error(1)
}

func (m *MockDashboardService) Stats(ctx context.Context, q services.ViewQuery) (*domain.Statistics, error) {
	args := m.Called(ctx, q)
	if v := args.Get(0); v != nil {
		return v.(*domain.Statistics), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDashboardService) Export(ctx context.Context, q services.ViewQuery, format exporter.Format, w io.Writer) (string, error) {
	args := m.Called(ctx, q, format, w)
	return args.String(0), args.Error(1)
}

// MockUploadService is a mock for UploadServiceInterface
type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) Store(ctx context.Context, filename string, r io.Reader) (domain.Upload, error) {
	args := m.Called(ctx, filename, r)
	return args.Get(0).(domain.Upload), args.Error(1)
}

func (m *MockUploadService) List(ctx context.Context) ([]domain.Upload, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]domain.Upload), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUploadService) Get(ctx context.Context, id string) (domain.Upload, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Upload), args.Error(1)
}

func (m *MockUploadService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUploadService) InvalidateCache(ctx context.Context, reason string) int {
	args := m.Called(ctx, reason)
	return args.Int(0)
}

// MockStatsProvider is a mock for SystemStatsProvider
type MockStatsProvider struct {
	mock.Mock
}

func (m *MockStatsProvider) SystemStats(ctx context.Context) (services.SystemStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(services.SystemStats), args.Error(1)
}

type handlerDeps struct {
	logger       *slog.Logger
	logs         *testutil.BufferedSlogHandler
	validator    *custommw.ValidationMiddleware
	errorHandler *apierrors.ErrorHandler
}

func newHandlerDeps(t *testing.T) handlerDeps {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	errorHandler := apierrors.NewErrorHandler(logger, false)
	return handlerDeps{
		logger:       logger,
		logs:         logs,
		validator:    custommw.NewValidationMiddleware(logger, errorHandler, 1<<20),
		errorHandler: errorHandler,
	}
}

// decodeBody unmarshals a JSON response body into a generic map
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}
