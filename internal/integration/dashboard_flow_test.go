package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/app"
	"stockdash/internal/config"
	"stockdash/internal/shared/testutil"
)

type dashboard struct {
	app    *app.Application
	server *httptest.Server
	client *http.Client
}

// newDashboard starts the full application over an empty data directory
func newDashboard(t *testing.T) *dashboard {
	t.Helper()
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "data"), config.DirPermission))

	cfg := config.Default()
	cfg.Paths = config.PathsConfig{BaseDir: base, DataDir: "data", UploadsDir: "uploads", LogsDir: "logs"}
	cfg.Security.RateLimit.Enabled = false

	application, err := app.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	server := httptest.NewServer(application.Router)
	t.Cleanup(func() {
		server.Close()
		application.Stop(context.Background())
	})

	return &dashboard{
		app:    application,
		server: server,
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}
}

func (d *dashboard) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := d.client.Get(d.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

// uploadForm posts both files through the page's upload form
func (d *dashboard) uploadForm(t *testing.T, csvData, xlsxData []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range []struct {
		field, name string
		data        []byte
	}{
		{"csv_file", "prices.csv", csvData},
		{"xlsx_file", "prices.xlsx", xlsxData},
	} {
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("dataset", "1d"))
	require.NoError(t, mw.Close())

	resp, err := d.client.Post(d.server.URL+"/uploads", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func csvFixture(rows int) []byte {
	var b strings.Builder
	for _, record := range testutil.StockRecords(testutil.StockRows(rows)) {
		b.WriteString(strings.Join(record, ","))
		b.WriteString("\n")
	}
	return []byte(b.String())
}

func workbookFixture(t *testing.T) []byte {
	t.Helper()
	path := testutil.WriteWorkbook(t, t.TempDir(), "fixture.xlsx",
		testutil.StockSheet("1d", testutil.StockRows(4)),
		testutil.StockSheet("5d", testutil.StockRows(8)),
		testutil.StockSheet("6m", nil),
	)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func decode(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func TestDashboardFlow(t *testing.T) {
	d := newDashboard(t)

	// Nothing to show until files arrive
	resp, body := d.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Default files not found. Please upload CSV and XLSX files to proceed.")

	resp = d.uploadForm(t, csvFixture(20), workbookFixture(t))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	sources := location.Query()
	require.NotEmpty(t, sources.Get("csv"))
	require.NotEmpty(t, sources.Get("xlsx"))

	resp, body = d.get(t, location.String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(body), "Default files not found")

	view := func(t *testing.T, extra string) (int, map[string]interface{}) {
		t.Helper()
		q := url.Values{"csv": {sources.Get("csv")}, "xlsx": {sources.Get("xlsx")}}
		resp, body := d.get(t, "/api/view?"+q.Encode()+"&"+extra)
		return resp.StatusCode, decode(t, body)
	}

	t.Run("sheet per dataset with csv fallback", func(t *testing.T) {
		for dataset, rows := range map[string]float64{"1d": 4, "5d": 8, "1y": 20, "All": 20} {
			status, body := view(t, "dataset="+dataset)
			require.Equal(t, http.StatusOK, status, body)
			assert.Equal(t, rows, body["data"].(map[string]interface{})["row_count"], dataset)
		}
	})

	t.Run("column filter keeps row count", func(t *testing.T) {
		status, body := view(t, "dataset=5d&columns=Close&columns=Volume")
		require.Equal(t, http.StatusOK, status)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, float64(8), data["row_count"])
		assert.Len(t, data["columns"], 2)
	})

	t.Run("inclusive date range", func(t *testing.T) {
		status, body := view(t, "dataset=1y&from=2024-01-03&to=2024-01-05")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(3), body["data"].(map[string]interface{})["row_count"])
	})

	t.Run("inclusive date range on a sheet", func(t *testing.T) {
		status, body := view(t, "dataset=5d&from=2024-01-03&to=2024-01-05")
		require.Equal(t, http.StatusOK, status, body)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, "Date", data["date_column"])
		assert.Equal(t, float64(3), data["row_count"])
	})

	t.Run("chart without its columns is skipped", func(t *testing.T) {
		status, body := view(t, "dataset=5d&columns=Close&charts=candlestick&charts=line")
		require.Equal(t, http.StatusOK, status)
		data := body["data"].(map[string]interface{})

		specs := data["charts"].([]interface{})
		require.Len(t, specs, 2)
		candle := specs[0].(map[string]interface{})
		assert.Equal(t, false, candle["available"])
		assert.Contains(t, candle["reason"], "Missing: Open, High, Low")
		assert.Equal(t, true, specs[1].(map[string]interface{})["available"])

		found := false
		for _, n := range data["notices"].([]interface{}) {
			if n.(map[string]interface{})["code"] == "chart_skipped" {
				found = true
			}
		}
		assert.True(t, found, "expected a chart_skipped notice")
	})

	t.Run("empty sheet halts", func(t *testing.T) {
		status, body := view(t, "dataset=6m")
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, "EMPTY_DATASET", body["error_code"])
		assert.Equal(t, "The dataset '6m' is empty.", body["detail"])
	})

	t.Run("loads are memoized", func(t *testing.T) {
		before := d.app.Services.Dashboard.CacheStats()
		status, _ := view(t, "dataset=1d")
		require.Equal(t, http.StatusOK, status)
		after := d.app.Services.Dashboard.CacheStats()

		assert.Greater(t, after.Hits, before.Hits)
		assert.Equal(t, before.Misses, after.Misses)
	})

	t.Run("chart image", func(t *testing.T) {
		q := url.Values{"csv": {sources.Get("csv")}, "xlsx": {sources.Get("xlsx")}, "dataset": {"5d"}}
		resp, body := d.get(t, "/api/charts/heatmap?"+q.Encode())
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG")))
	})
}

func TestDashboardFlow_CorruptWorkbook(t *testing.T) {
	d := newDashboard(t)

	// A zip that is not a workbook passes the content sniff but fails to parse
	var zipped bytes.Buffer
	zipped.Write([]byte("PK\x03\x04"))
	zipped.Write(bytes.Repeat([]byte{0}, 64))

	resp := d.uploadForm(t, csvFixture(5), zipped.Bytes())
	if resp.StatusCode != http.StatusSeeOther {
		// Rejected at upload time; nothing more to check
		assert.GreaterOrEqual(t, resp.StatusCode, http.StatusBadRequest)
		return
	}

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	q := location.Query()
	resp, body := d.get(t, "/api/view?"+q.Encode())

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	problem := decode(t, body)
	assert.Equal(t, "LOAD_FAILED", problem["error_code"])
	assert.True(t, strings.HasPrefix(problem["detail"].(string), "Error loading files: "), problem["detail"])
}
