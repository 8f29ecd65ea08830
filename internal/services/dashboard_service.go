package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stockdash/internal/charts"
	"stockdash/internal/config"
	"stockdash/internal/dataprocessing"
	"stockdash/internal/exporter"
	"stockdash/internal/files"
	"stockdash/internal/infrastructure"
	"stockdash/pkg/contracts/domain"
)

// ViewQuery selects a dataset and the filters applied to it
type ViewQuery struct {
	Source  domain.SourceRef
	Dataset domain.DatasetName
	Columns []string
	Range   domain.DateRange
	Charts  []domain.ChartRequest

	// Limit caps the rows copied into the view; zero uses the configured limit
	Limit int
}

// sourceError keeps the cause of a failed load next to its category
type sourceError struct {
	kind  error
	cause error
}

func (e *sourceError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *sourceError) Unwrap() []error {
	return []error{e.kind, e.cause}
}

// DashboardService turns source files into filtered views, charts,
// statistics and exports.
type DashboardService struct {
	data      config.DataConfig
	discovery *files.Discovery
	uploads   *files.UploadStore
	cache     *files.LoadCache[*dataprocessing.Bundle]
	renderer  *charts.Renderer
	metrics   *infrastructure.BusinessMetrics
	tracer    trace.Tracer
	logger    *slog.Logger
}

// NewDashboardService creates a dashboard service. uploads and metrics may be nil.
func NewDashboardService(data config.DataConfig, discovery *files.Discovery, uploads *files.UploadStore, renderer *charts.Renderer, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("DashboardService initialized",
		slog.String("data_dir", discovery.DataDir()),
		slog.String("default_csv", data.DefaultCSV),
		slog.String("default_xlsx", data.DefaultXLSX),
		slog.Duration("cache_ttl", data.CacheTTL),
		slog.Int("cache_max_entries", data.CacheMaxEntries))

	return &DashboardService{
		data:      data,
		discovery: discovery,
		uploads:   uploads,
		cache:     files.NewLoadCache[*dataprocessing.Bundle](data.CacheTTL, data.CacheMaxEntries),
		renderer:  renderer,
		metrics:   metrics,
		tracer:    otel.Tracer("stockdash.dashboard"),
		logger:    infrastructure.WithComponent(logger, "dashboard_service"),
	}
}

// Datasets lists the dataset names and where each resolves for the given sources
func (s *DashboardService) Datasets(ctx context.Context, ref domain.SourceRef) (domain.DatasetCatalog, error) {
	bundle, err := s.loadBundle(ctx, ref)
	if err != nil {
		return domain.DatasetCatalog{}, err
	}
	return dataprocessing.Catalog(bundle), nil
}

// BuildView loads the sources, selects the dataset and applies the date and
// column filters. The returned view is never nil; when err is non-nil the view
// is halted and its notices say why.
func (s *DashboardService) BuildView(ctx context.Context, q ViewQuery) (*domain.View, *dataprocessing.Dataset, error) {
	if q.Dataset == "" {
		q.Dataset = domain.DefaultDataset
	}

	view := &domain.View{
		Dataset: q.Dataset,
		Sheets:  []string{},
		Rows:    [][]string{},
		Notices: []domain.Notice{},
		Charts:  []domain.ChartSpec{},
	}

	filtered, err := s.buildView(ctx, q, view)
	s.metrics.RecordView(ctx, string(view.Dataset), string(view.Source), view.Halted)
	if err != nil {
		view.Halted = true
		return view, nil, err
	}
	return view, filtered, nil
}

func (s *DashboardService) buildView(ctx context.Context, q ViewQuery, view *domain.View) (*dataprocessing.Dataset, error) {
	bundle, err := s.loadBundle(ctx, q.Source)
	if err != nil {
		haltOnLoad(view, err)
		return nil, err
	}

	ds, source, err := dataprocessing.SelectDataset(bundle, q.Dataset)
	if err != nil {
		haltOnLoad(view, &sourceError{kind: ErrLoadFailed, cause: err})
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	view.Source = source
	view.Sheets = append(view.Sheets, bundle.Workbook.SheetNames()...)
	view.AllColumns = ds.Columns()

	if ds.Empty() {
		view.Warn(domain.NoticeEmptyDataset, fmt.Sprintf(msgEmptyDataset, q.Dataset))
		return nil, fmt.Errorf("%w: %s", ErrEmptyDataset, q.Dataset)
	}

	filtered, err := s.applyDateRange(ds, q, view)
	if err != nil {
		return nil, err
	}

	selected := knownColumns(filtered, q.Columns, view)
	projected, err := dataprocessing.SelectColumns(filtered, selected)
	if err != nil {
		return nil, err
	}

	view.Columns = projected.Columns()
	view.RowCount = projected.Nrow()

	limit := q.Limit
	if limit <= 0 {
		limit = s.data.MaxDisplayRows
	}
	display := projected
	if limit > 0 && projected.Nrow() > limit {
		if display, err = projected.Head(limit); err != nil {
			return nil, err
		}
		view.Truncated = true
		view.Inform(domain.NoticeRowsTruncated,
			fmt.Sprintf("Showing the first %d of %d rows.", limit, projected.Nrow()))
	}
	view.Rows = display.Rows()

	chartDate := ""
	if view.DateColumn != "" && projected.Has(view.DateColumn) {
		chartDate = view.DateColumn
	}
	for _, req := range q.Charts {
		spec := s.planChart(projected, chartDate, req)
		if !spec.Available {
			view.Warn(domain.NoticeChartSkipped, spec.Reason)
			s.metrics.RecordChartSkipped(ctx, string(spec.Kind))
		} else if spec.Kind == domain.ChartBar && s.renderer.BarsTruncated(projected.Nrow()) {
			view.Inform(domain.NoticeBarsTruncated,
				fmt.Sprintf("The bar chart shows the last %d of %d rows.", s.renderer.MaxBars, projected.Nrow()))
		}
		view.Charts = append(view.Charts, spec)
	}

	s.logger.DebugContext(ctx, "View built",
		slog.String("dataset", string(view.Dataset)),
		slog.String("source", string(view.Source)),
		slog.Int("rows", view.RowCount),
		slog.Int("columns", len(view.Columns)),
		slog.Int("charts", len(view.Charts)))

	return projected, nil
}

// applyDateRange records the date column and its bounds on the view and
// filters ds by the requested range.
func (s *DashboardService) applyDateRange(ds *dataprocessing.Dataset, q ViewQuery, view *domain.View) (*dataprocessing.Dataset, error) {
	r := q.Range
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		view.Warn(domain.NoticeInvalidRange, "The start date must not be after the end date.")
		return nil, fmt.Errorf("%w: start date %s is after end date %s", ErrInvalidInput,
			r.From.Format(time.DateOnly), r.To.Format(time.DateOnly))
	}

	view.DateColumn = dataprocessing.DetectDateColumn(ds)
	if view.DateColumn == "" {
		if !r.IsZero() {
			view.Inform(domain.NoticeNoDateColumn, "No date column found; the date range was not applied.")
		}
		return ds, nil
	}

	bounds, err := dataprocessing.DateBounds(ds, view.DateColumn)
	if err != nil {
		return nil, err
	}
	view.DateBounds = bounds

	filtered, err := dataprocessing.FilterDateRange(ds, view.DateColumn, r)
	if err != nil {
		return nil, err
	}
	view.Applied = r

	if filtered.Empty() {
		view.Warn(domain.NoticeEmptyDataset, fmt.Sprintf(msgEmptyDataset, q.Dataset))
		view.Inform(domain.NoticeEmptyDataset, "No rows fall within the selected date range.")
		return nil, fmt.Errorf("%w: %s has no rows in the selected range", ErrEmptyDataset, q.Dataset)
	}
	return filtered, nil
}

// knownColumns drops requested columns the dataset lacks, noting them on the view
func knownColumns(ds *dataprocessing.Dataset, requested []string, view *domain.View) []string {
	var known, unknown []string
	for _, name := range requested {
		if ds.Has(name) {
			known = append(known, name)
		} else {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		view.Warn(domain.NoticeUnknownColumns, fmt.Sprintf("Ignored columns not present in dataset '%s': %s.",
			view.Dataset, strings.Join(unknown, ", ")))
	}
	return known
}

// haltOnLoad adds the notices shown when the sources cannot be read
func haltOnLoad(view *domain.View, err error) {
	var se *sourceError
	if !errors.As(err, &se) {
		view.Fail(domain.NoticeLoadFailed, fmt.Sprintf(msgLoadFailed, err))
		return
	}

	switch {
	case errors.Is(se.cause, files.ErrDefaultFileMissing):
		view.Warn(domain.NoticeSourcesUnavailable, msgDefaultsMissing)
	case errors.Is(se.cause, files.ErrUploadNotFound):
		view.Warn(domain.NoticeSourcesUnavailable, "An uploaded file is no longer available. Please upload it again.")
	default:
		view.Fail(domain.NoticeLoadFailed, fmt.Sprintf(msgLoadFailed, se.cause))
	}
	view.Warn(domain.NoticeSourcesUnavailable, msgNoData)
}

// HaltNotices returns the notices a halted view carries for err. RenderChart,
// Stats and Export return no view, so callers use it to explain their errors.
func HaltNotices(err error, dataset domain.DatasetName) []domain.Notice {
	view := &domain.View{Notices: []domain.Notice{}}
	switch {
	case errors.Is(err, ErrSourcesUnavailable), errors.Is(err, ErrLoadFailed):
		haltOnLoad(view, err)
	case errors.Is(err, ErrEmptyDataset):
		view.Warn(domain.NoticeEmptyDataset, fmt.Sprintf(msgEmptyDataset, dataset))
	}
	return view.Notices
}

// RenderChart builds the view for q and draws the requested chart as a PNG.
// The returned spec describes the chart even when it is unavailable.
func (s *DashboardService) RenderChart(ctx context.Context, q ViewQuery, req domain.ChartRequest, w io.Writer) (domain.ChartSpec, error) {
	q.Charts = []domain.ChartRequest{req}
	q.Limit = 1

	view, filtered, err := s.BuildView(ctx, q)
	if err != nil {
		return domain.ChartSpec{Kind: req.Kind}, err
	}

	spec := view.Charts[0]
	if !spec.Available {
		return spec, fmt.Errorf("%w: %s", ErrChartUnavailable, spec.Reason)
	}

	ctx, span := s.tracer.Start(ctx, "dashboard.render_chart", trace.WithAttributes(
		attribute.String("chart.kind", string(spec.Kind)),
		attribute.String("dataset.name", string(view.Dataset)),
		attribute.Int("dataset.rows", filtered.Nrow()),
	))
	defer span.End()

	start := time.Now()
	err = s.draw(w, filtered, spec)
	s.metrics.RecordChartRender(ctx, string(spec.Kind), time.Since(start), err)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		if isChartDataError(err) {
			return spec, fmt.Errorf("%w: %w", ErrChartUnavailable, err)
		}
		logServiceError(ctx, s.logger, "render_chart", "Chart rendering failed",
			slog.String("kind", string(spec.Kind)),
			slog.String("error", err.Error()))
		return spec, fmt.Errorf("failed to render %s chart: %w", spec.Kind, err)
	}
	return spec, nil
}

func (s *DashboardService) draw(w io.Writer, ds *dataprocessing.Dataset, spec domain.ChartSpec) error {
	switch spec.Kind {
	case domain.ChartLine:
		return s.renderer.Line(w, ds, spec.X, spec.Y)
	case domain.ChartBar:
		return s.renderer.Bar(w, ds, spec.X, spec.Y)
	case domain.ChartScatter:
		return s.renderer.Scatter(w, ds, spec.X, spec.Y)
	case domain.ChartCandlestick:
		return s.renderer.Candlestick(w, ds, spec.X)
	case domain.ChartHeatmap:
		return s.renderer.Heatmap(w, ds)
	default:
		return fmt.Errorf("%w: unknown chart kind %q", ErrInvalidInput, spec.Kind)
	}
}

func isChartDataError(err error) bool {
	return errors.Is(err, charts.ErrMissingColumns) ||
		errors.Is(err, charts.ErrNoNumericData) ||
		errors.Is(err, charts.ErrNotNumeric) ||
		errors.Is(err, charts.ErrNoPlottableData) ||
		errors.Is(err, charts.ErrTooManyColumns)
}

// Stats returns the describe table and correlation matrix of the filtered view
func (s *DashboardService) Stats(ctx context.Context, q ViewQuery) (*domain.Statistics, error) {
	q.Charts = nil
	q.Limit = 1

	view, filtered, err := s.BuildView(ctx, q)
	if err != nil {
		return nil, err
	}

	stats := &domain.Statistics{
		Dataset:     view.Dataset,
		RowCount:    filtered.Nrow(),
		Summaries:   dataprocessing.Summarize(filtered),
		Correlation: domain.CorrelationMatrix{Columns: []string{}, Values: [][]*float64{}},
	}
	if numeric := dataprocessing.NumericColumns(filtered); len(numeric) > 0 {
		matrix, err := dataprocessing.Correlation(filtered, numeric)
		if err != nil {
			return nil, err
		}
		stats.Correlation = matrix
	}
	return stats, nil
}

// Export writes the filtered view in the given format and returns the
// download file name.
func (s *DashboardService) Export(ctx context.Context, q ViewQuery, format exporter.Format, w io.Writer) (string, error) {
	q.Charts = nil
	q.Limit = 1

	view, filtered, err := s.BuildView(ctx, q)
	if err != nil {
		return "", err
	}

	if err := exporter.Write(w, filtered, format, string(view.Dataset)); err != nil {
		logServiceError(ctx, s.logger, "export", "Export failed",
			slog.String("format", string(format)),
			slog.String("error", err.Error()))
		return "", err
	}

	s.logger.InfoContext(ctx, "Dataset exported",
		slog.String("dataset", string(view.Dataset)),
		slog.String("format", string(format)),
		slog.Int("rows", filtered.Nrow()))

	return format.FileName(string(view.Dataset)), nil
}

// InvalidateCache drops every memoized load and returns how many were dropped
func (s *DashboardService) InvalidateCache() int {
	n := s.cache.Invalidate()
	s.logger.Info("Load cache invalidated", slog.Int("entries", n))
	return n
}

// CacheStats returns statistics of the memoized load cache
func (s *DashboardService) CacheStats() files.CacheStats {
	return s.cache.Stats()
}

// DefaultsPresent reports whether both default files exist
func (s *DashboardService) DefaultsPresent() bool {
	return s.discovery.DefaultsPresent(s.data.DefaultCSV, s.data.DefaultXLSX)
}

// loadBundle resolves the sources for ref and reads them through the cache.
// Errors match ErrSourcesUnavailable or ErrLoadFailed.
func (s *DashboardService) loadBundle(ctx context.Context, ref domain.SourceRef) (*dataprocessing.Bundle, error) {
	csvSource, xlsxSource, err := s.sources(ref)
	if err != nil {
		s.logger.WarnContext(ctx, "Data sources unavailable", slog.String("error", err.Error()))
		return nil, &sourceError{kind: ErrSourcesUnavailable, cause: err}
	}

	key, err := cacheKey(csvSource, xlsxSource)
	if err != nil {
		return nil, &sourceError{kind: ErrLoadFailed, cause: err}
	}

	origin := "default"
	if ref.CSVUpload != "" || ref.XLSXUpload != "" {
		origin = "upload"
	}

	bundle, hit, err := s.cache.GetOrLoad(ctx, key, func(ctx context.Context) (*dataprocessing.Bundle, error) {
		return s.readBundle(ctx, csvSource, xlsxSource, origin)
	})
	s.metrics.RecordCacheLookup(ctx, hit)
	if err != nil {
		return nil, &sourceError{kind: ErrLoadFailed, cause: err}
	}
	return bundle, nil
}

// sources picks the uploaded file for each kind when one is referenced and
// the default file otherwise.
func (s *DashboardService) sources(ref domain.SourceRef) (files.Source, files.Source, error) {
	csvSource, csvErr := s.source(ref.CSVUpload, s.data.DefaultCSV, domain.UploadCSV)
	xlsxSource, xlsxErr := s.source(ref.XLSXUpload, s.data.DefaultXLSX, domain.UploadXLSX)
	if err := errors.Join(csvErr, xlsxErr); err != nil {
		return nil, nil, err
	}
	return csvSource, xlsxSource, nil
}

func (s *DashboardService) source(uploadID, defaultName string, kind domain.UploadKind) (files.Source, error) {
	if uploadID == "" {
		src, err := s.discovery.Default(defaultName, kind)
		if err != nil {
			return nil, err
		}
		return src, nil
	}

	if s.uploads == nil {
		return nil, fmt.Errorf("%w: %s", files.ErrUploadNotFound, uploadID)
	}
	src, err := s.uploads.Source(uploadID, kind)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// cacheKey identifies a pair of sources by their content
func cacheKey(csvSource, xlsxSource files.Source) (string, error) {
	csvSum, err := csvSource.Fingerprint()
	if err != nil {
		return "", fmt.Errorf("%s: %w", csvSource.Name(), err)
	}
	xlsxSum, err := xlsxSource.Fingerprint()
	if err != nil {
		return "", fmt.Errorf("%s: %w", xlsxSource.Name(), err)
	}
	return csvSum + ":" + xlsxSum, nil
}

func (s *DashboardService) readBundle(ctx context.Context, csvSource, xlsxSource files.Source, origin string) (*dataprocessing.Bundle, error) {
	ctx, span := s.tracer.Start(ctx, "dashboard.load_sources", trace.WithAttributes(
		attribute.String("source.csv", csvSource.Name()),
		attribute.String("source.xlsx", xlsxSource.Name()),
		attribute.String("source.origin", origin),
	))
	defer span.End()

	start := time.Now()
	bundle, err := readSources(csvSource, xlsxSource)
	duration := time.Since(start)
	s.metrics.RecordDatasetLoad(ctx, origin, duration, err)

	if err != nil {
		infrastructure.RecordError(ctx, err)
		logServiceError(ctx, s.logger, "load_sources", "Failed to load data sources",
			slog.String("csv", csvSource.Name()),
			slog.String("xlsx", xlsxSource.Name()),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.InfoContext(ctx, "Data sources loaded",
		slog.String("csv", csvSource.Name()),
		slog.String("xlsx", xlsxSource.Name()),
		slog.String("origin", origin),
		slog.Int("csv_rows", bundle.CSV.Nrow()),
		slog.Any("sheets", bundle.Workbook.SheetNames()),
		slog.Duration("duration", duration))

	return bundle, nil
}

func readSources(csvSource, xlsxSource files.Source) (*dataprocessing.Bundle, error) {
	csvFile, err := csvSource.Open()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", csvSource.Name(), err)
	}
	defer csvFile.Close()

	csvData, err := dataprocessing.ParseCSV(csvFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", csvSource.Name(), err)
	}

	xlsxFile, err := xlsxSource.Open()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", xlsxSource.Name(), err)
	}
	defer xlsxFile.Close()

	workbook, err := dataprocessing.ParseWorkbook(xlsxFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", xlsxSource.Name(), err)
	}

	return &dataprocessing.Bundle{CSV: csvData, Workbook: workbook}, nil
}
