package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stockdash/internal/files"
	"stockdash/internal/services"
	"stockdash/pkg/contracts/domain"
)

func newPageRouter(t *testing.T, dashboard *MockDashboardService, uploads *MockUploadService) chi.Router {
	t.Helper()
	deps := newHandlerDeps(t)
	handler, err := NewPageHandler(dashboard, uploads, deps.validator, 1<<20, deps.logger)
	require.NoError(t, err)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func stockView() *domain.View {
	columns := []domain.Column{
		{Name: "Date", Kind: domain.ColumnDate},
		{Name: "Open", Kind: domain.ColumnNumeric},
		{Name: "Close", Kind: domain.ColumnNumeric},
	}
	return &domain.View{
		Dataset:    domain.Dataset5D,
		Source:     domain.SourceSheet,
		Sheets:     []string{"1d", "5d"},
		AllColumns: columns,
		Columns:    columns,
		Rows:       [][]string{{"2024-01-02", "10.25", "11.5"}, {"2024-01-03", "11.5", "12.75"}},
		RowCount:   2,
		DateColumn: "Date",
		DateBounds: domain.DateRange{From: day("2024-01-02"), To: day("2024-01-03")},
		Notices:    []domain.Notice{},
		Charts: []domain.ChartSpec{
			{Kind: domain.ChartLine, Title: "Line Chart", X: "Date", Y: "Close", Available: true},
			{Kind: domain.ChartCandlestick, Title: "Candlestick Chart", Reason: "Candlestick chart requires High and Low columns."},
		},
	}
}

func TestPageHandler_Dashboard(t *testing.T) {
	dashboard := new(MockDashboardService)
	view := stockView()
	view.Notices = append(view.Notices, domain.Notice{
		Severity: domain.SeverityWarning, Code: domain.NoticeChartSkipped, Message: view.Charts[1].Reason,
	})
	dashboard.On("BuildView", mock.Anything, mock.MatchedBy(func(q services.ViewQuery) bool {
		return q.Dataset == domain.Dataset5D && len(q.Charts) == 2
	})).Return(view, nil, nil)
	r := newPageRouter(t, dashboard, new(MockUploadService))

	rec := serve(r, http.MethodGet, "/?dataset=5d&charts=line&charts=candlestick")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	page := rec.Body.String()
	assert.Contains(t, page, "<title>Stock Data Visualization</title>")
	assert.Contains(t, page, "Visualize Yahoo Stock Datasets: 1d, 5d, 1m, 6m, 1y, 5y, and All.")
	assert.Contains(t, page, `<option value="5d" selected>5d</option>`)
	assert.Contains(t, page, `<option value="Open" selected>Open</option>`, "columns default to all selected")
	assert.Contains(t, page, `value="2024-01-02" min="2024-01-02" max="2024-01-03"`)
	assert.Contains(t, page, `<td>12.75</td>`)
	assert.Contains(t, page, `src="/api/charts/line?`)
	assert.NotContains(t, page, `src="/api/charts/candlestick?`)
	assert.Contains(t, page, "Candlestick chart requires High and Low columns.")
	assert.Contains(t, page, `name="charts" value="line" checked`)
	assert.Contains(t, page, `name="charts" value="heatmap">`)
	assert.Contains(t, page, `href="/api/export/csv?`)
	dashboard.AssertNotCalled(t, "Stats", mock.Anything, mock.Anything)
}

func TestPageHandler_DashboardColumnSelection(t *testing.T) {
	dashboard := new(MockDashboardService)
	view := stockView()
	view.Columns = view.Columns[2:]
	view.Charts = []domain.ChartSpec{}
	dashboard.On("BuildView", mock.Anything, mock.Anything).Return(view, nil, nil)
	r := newPageRouter(t, dashboard, new(MockUploadService))

	rec := serve(r, http.MethodGet, "/?dataset=5d&columns=Close")

	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, `<option value="Close" selected>Close</option>`)
	assert.Contains(t, page, `<option value="Open">Open</option>`)
	assert.Contains(t, page, "2 rows")
}

func TestPageHandler_DashboardHalted(t *testing.T) {
	dashboard := new(MockDashboardService)
	view := &domain.View{
		Dataset: domain.Dataset1D,
		Halted:  true,
		Notices: []domain.Notice{
			{Severity: domain.SeverityWarning, Code: domain.NoticeSourcesUnavailable, Message: "Default files not found. Please upload CSV and XLSX files to proceed."},
		},
	}
	dashboard.On("BuildView", mock.Anything, mock.Anything).
		Return(view, nil, fmt.Errorf("%w: %w", services.ErrSourcesUnavailable, files.ErrDefaultFileMissing))
	r := newPageRouter(t, dashboard, new(MockUploadService))

	rec := serve(r, http.MethodGet, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, `class="notice warning"`)
	assert.Contains(t, page, "Default files not found. Please upload CSV and XLSX files to proceed.")
	assert.Contains(t, page, `action="/uploads"`)
	assert.NotContains(t, page, "<table>")
	assert.NotContains(t, page, `src="/api/charts/`)
}

func TestPageHandler_DashboardInvalidRequest(t *testing.T) {
	dashboard := new(MockDashboardService)
	r := newPageRouter(t, dashboard, new(MockUploadService))

	rec := serve(r, http.MethodGet, "/?dataset=2w")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, `class="notice error"`)
	assert.Contains(t, page, "dataset must be one of: 1d, 5d, 1m, 6m, 1y, 5y, All")
	dashboard.AssertNotCalled(t, "BuildView", mock.Anything, mock.Anything)
}

func TestPageHandler_DashboardStats(t *testing.T) {
	dashboard := new(MockDashboardService)
	view := stockView()
	view.Charts = []domain.ChartSpec{}
	dashboard.On("BuildView", mock.Anything, mock.Anything).Return(view, nil, nil)
	mean, one := 11.0, 1.0
	dashboard.On("Stats", mock.Anything, mock.Anything).Return(&domain.Statistics{
		Dataset:   domain.Dataset5D,
		RowCount:  2,
		Summaries: []domain.ColumnSummary{{Column: "Close", Count: 2, Mean: &mean}},
		Correlation: domain.CorrelationMatrix{
			Columns: []string{"Close"},
			Values:  [][]*float64{{&one}},
		},
	}, nil)
	r := newPageRouter(t, dashboard, new(MockUploadService))

	rec := serve(r, http.MethodGet, "/?stats=1")

	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, "Summary statistics</h2>")
	assert.Contains(t, page, "<td>11</td>")
	assert.Contains(t, page, "<td>1.00</td>")
	dashboard.AssertExpectations(t)
}

func TestPageHandler_Upload(t *testing.T) {
	t.Run("redirects with upload ids", func(t *testing.T) {
		uploads := new(MockUploadService)
		uploads.On("Store", mock.Anything, "prices.xlsx", mock.Anything).
			Return(domain.Upload{ID: testUploadID, Kind: domain.UploadXLSX, Filename: "prices.xlsx"}, nil)
		r := newPageRouter(t, new(MockDashboardService), uploads)

		body, contentType := multipartBody(t,
			map[string][2]string{"xlsx_file": {"prices.xlsx", "PK\x03\x04"}},
			map[string]string{"dataset": "6m"})
		req := httptest.NewRequest(http.MethodPost, "/uploads", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
		location, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/", location.Path)
		assert.Equal(t, testUploadID, location.Query().Get("xlsx"))
		assert.Equal(t, "6m", location.Query().Get("dataset"))
		assert.Empty(t, location.Query().Get("csv"))
		uploads.AssertExpectations(t)
	})

	t.Run("no file chosen", func(t *testing.T) {
		dashboard := new(MockDashboardService)
		dashboard.On("BuildView", mock.Anything, mock.Anything).Return(stockView(), nil, nil)
		uploads := new(MockUploadService)
		r := newPageRouter(t, dashboard, uploads)

		body, contentType := multipartBody(t, nil, map[string]string{"dataset": "5d"})
		req := httptest.NewRequest(http.MethodPost, "/uploads", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Choose a CSV or XLSX file to upload.")
		uploads.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unsupported file", func(t *testing.T) {
		dashboard := new(MockDashboardService)
		dashboard.On("BuildView", mock.Anything, mock.Anything).Return(stockView(), nil, nil)
		uploads := new(MockUploadService)
		uploads.On("Store", mock.Anything, "prices.csv", mock.Anything).
			Return(domain.Upload{}, fmt.Errorf("%w: binary content", files.ErrUnsupportedFileType))
		r := newPageRouter(t, dashboard, uploads)

		body, contentType := multipartBody(t, map[string][2]string{"csv_file": {"prices.csv", "\x00\x01"}}, nil)
		req := httptest.NewRequest(http.MethodPost, "/uploads", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Contains(t, rec.Body.String(), "Only .csv and .xlsx files are accepted")
	})
}
