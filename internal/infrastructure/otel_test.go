package infrastructure

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func testOTelConfig() *OTelConfig {
	cfg := DefaultOTelConfig()
	cfg.TraceExporter = "stdout"
	return cfg
}

// TestOTelInitialization tests OpenTelemetry initialization
func TestOTelInitialization(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	providers, err := InitializeOTel(testOTelConfig(), logger)
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelDisabledExporters(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cfg := DefaultOTelConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "none"

	providers, err := InitializeOTel(cfg, logger)
	require.NoError(t, err)

	assert.Nil(t, providers.TracerProvider)
	assert.Nil(t, providers.PrometheusHTTP)
	// Callers can still create instruments
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Tracer)
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestOTelUnsupportedExporter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cfg := DefaultOTelConfig()
	cfg.TraceExporter = "jaeger"

	_, err := InitializeOTel(cfg, logger)
	assert.Error(t, err)
}

// TestTraceCorrelation tests trace ID correlation
func TestTraceCorrelation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(testOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := otel.Tracer("test").Start(context.Background(), "test-operation")
	defer span.End()

	traceID := TraceIDFromContext(ctx)
	assert.NotEmpty(t, traceID)
	assert.Equal(t, span.SpanContext().TraceID().String(), traceID)

	RecordError(ctx, errors.New("boom"))
}

// TestBusinessMetrics tests business metrics creation
func TestBusinessMetrics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(testOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	assert.NotNil(t, metrics.HTTPRequestsTotal)
	assert.NotNil(t, metrics.HTTPActiveRequests)
	assert.NotNil(t, metrics.DatasetLoads)
	assert.NotNil(t, metrics.CacheHits)
	assert.NotNil(t, metrics.ChartRenders)
	assert.NotNil(t, metrics.UploadsStored)

	ctx := context.Background()
	metrics.RecordChartRender(ctx, "line", time.Millisecond, nil)
	metrics.RecordDatasetLoad(ctx, "default", time.Millisecond, errors.New("x"))
	metrics.RecordCacheLookup(ctx, true)
	metrics.RecordCacheLookup(ctx, false)
	metrics.RecordView(ctx, "1d", "sheet", false)
	metrics.RecordChartSkipped(ctx, "candlestick")
	metrics.RecordUpload(ctx, "csv", 128)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *BusinessMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordChartRender(ctx, "bar", time.Second, nil)
		m.RecordDatasetLoad(ctx, "upload", time.Second, nil)
		m.RecordCacheLookup(ctx, true)
		m.RecordView(ctx, "All", "csv", true)
		m.RecordChartSkipped(ctx, "heatmap")
		m.RecordUpload(ctx, "xlsx", 1)
	})
	assert.NotNil(t, NoopBusinessMetrics())
}

// TestPrometheusEndpoint tests the Prometheus metrics endpoint
func TestPrometheusEndpoint(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(testOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	metrics.RecordChartRender(context.Background(), "heatmap", 10*time.Millisecond, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chart_renders_total")
}
