package http

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "stockdash/internal/errors"
	custommw "stockdash/internal/middleware"
	api "stockdash/pkg/contracts/api/v1"
	"stockdash/pkg/contracts/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageTitle    = "Stock Data Visualization"
	pageSubtitle = "Visualize Yahoo Stock Datasets: 1d, 5d, 1m, 6m, 1y, 5y, and All."

	noticeInvalidInput = "invalid_input"
	noticeUploadFailed = "upload_failed"
)

type uploadField struct {
	Name  string
	Label string
	Kind  domain.UploadKind
}

// uploadFields are the file inputs of the upload form, in display order
var uploadFields = []uploadField{
	{Name: "csv_file", Label: "Upload CSV file", Kind: domain.UploadCSV},
	{Name: "xlsx_file", Label: "Upload XLSX file", Kind: domain.UploadXLSX},
}

// PageHandler renders the dashboard page and accepts uploads from its form
type PageHandler struct {
	dashboard  DashboardServiceInterface
	uploads    UploadServiceInterface
	validator  *custommw.ValidationMiddleware
	tmpl       *template.Template
	maxMemory  int64
	maxRequest int64
	logger     *slog.Logger
}

// NewPageHandler parses the embedded templates. maxUploadBytes bounds each
// uploaded file; a form may carry one CSV and one XLSX file.
func NewPageHandler(dashboard DashboardServiceInterface, uploads UploadServiceInterface, validator *custommw.ValidationMiddleware, maxUploadBytes int64, logger *slog.Logger) (*PageHandler, error) {
	tmpl, err := template.New("dashboard.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page templates: %w", err)
	}

	return &PageHandler{
		dashboard:  dashboard,
		uploads:    uploads,
		validator:  validator,
		tmpl:       tmpl,
		maxMemory:  8 << 20,
		maxRequest: 2*maxUploadBytes + 1<<20,
		logger:     logger.With(slog.String("component", "page_handler")),
	}, nil
}

// RegisterRoutes registers the page routes on the root router
func (h *PageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Dashboard)
	r.Post("/uploads", h.Upload)
}

// Dashboard handles GET /
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	req, err := decodeViewRequest(r)
	if err == nil {
		err = h.validator.ValidateStruct(req)
	}
	if err != nil {
		page := h.newPage(req, r.URL.Query())
		page.View.Halted = true
		page.View.Notices = validationNotices(err)
		h.render(w, r, http.StatusBadRequest, page)
		return
	}

	h.render(w, r, http.StatusOK, h.buildPage(r, req, r.URL.Query()))
}

// Upload handles POST /uploads from the page's upload form. Stored files
// replace the sources of the current selection and the browser is sent back
// to the dashboard.
func (h *PageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequest)
	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		h.uploadFailed(w, r, api.ViewRequest{}, bodyProblem(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := formViewRequest(r.MultipartForm.Value)
	stored := 0
	for _, field := range uploadFields {
		fh := firstFile(r.MultipartForm, field.Name)
		if fh == nil {
			continue
		}

		upload, err := h.storeFile(r, fh)
		if err != nil {
			h.uploadFailed(w, r, req, uploadProblem(err))
			return
		}
		switch upload.Kind {
		case domain.UploadCSV:
			req.CSVUpload = upload.ID
		case domain.UploadXLSX:
			req.XLSXUpload = upload.ID
		}
		stored++
	}

	if stored == 0 {
		h.uploadFailed(w, r, req, apierrors.NewValidationError("Choose a CSV or XLSX file to upload."))
		return
	}

	h.logger.InfoContext(r.Context(), "Uploads stored from page form",
		slog.Int("count", stored),
		slog.String("csv_upload", req.CSVUpload),
		slog.String("xlsx_upload", req.XLSXUpload))

	http.Redirect(w, r, "/?"+viewValues(req).Encode(), http.StatusSeeOther)
}

func (h *PageHandler) storeFile(r *http.Request, fh *multipart.FileHeader) (domain.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.Upload{}, err
	}
	defer f.Close()
	return h.uploads.Store(r.Context(), fh.Filename, f)
}

// uploadFailed renders the dashboard for the previous selection with the
// upload error on top.
func (h *PageHandler) uploadFailed(w http.ResponseWriter, r *http.Request, req api.ViewRequest, err error) {
	h.logger.WarnContext(r.Context(), "Upload from page form failed", slog.String("error", err.Error()))

	status := http.StatusInternalServerError
	message := "The upload could not be stored."
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
		message = apiErr.Message
	}

	if h.validator.ValidateStruct(req) != nil {
		req = api.ViewRequest{}
	}
	page := h.buildPage(r, req, nil)
	page.View.Notices = append([]domain.Notice{{
		Severity: domain.SeverityError,
		Code:     noticeUploadFailed,
		Message:  message,
	}}, page.View.Notices...)
	h.render(w, r, status, page)
}

// buildPage builds the view for a validated request and prepares the chart,
// export and statistics sections around it.
func (h *PageHandler) buildPage(r *http.Request, req api.ViewRequest, q url.Values) *page {
	p := h.newPage(req, q)

	view, _, err := h.dashboard.BuildView(r.Context(), viewQuery(req, q))
	p.View = view
	if err != nil {
		if len(view.Notices) == 0 {
			view.Fail(domain.NoticeLoadFailed, err.Error())
		}
		return p
	}

	p.defaults()
	base := viewValues(req)
	for _, spec := range view.Charts {
		if spec.X != "" || spec.Y != "" {
			p.Axes[spec.Kind] = axisChoice{X: spec.X, Y: spec.Y}
		}
		if !spec.Available {
			continue
		}
		v := cloneValues(base)
		setNonEmpty(v, "x", spec.X)
		setNonEmpty(v, "y", spec.Y)
		p.Charts = append(p.Charts, pageChart{
			Spec: spec,
			URL:  "/api/charts/" + string(spec.Kind) + "?" + v.Encode(),
		})
	}
	p.ExportCSV = "/api/export/csv?" + base.Encode()
	p.ExportXLSX = "/api/export/xlsx?" + base.Encode()

	if p.ShowStats {
		stats, err := h.dashboard.Stats(r.Context(), viewQuery(req, q))
		if err != nil {
			h.logger.WarnContext(r.Context(), "Statistics unavailable", slog.String("error", err.Error()))
			view.Warn(domain.NoticeLoadFailed, "Summary statistics are unavailable for this selection.")
		} else {
			p.Stats = stats
		}
	}
	return p
}

func (h *PageHandler) newPage(req api.ViewRequest, q url.Values) *page {
	p := &page{
		Title:      pageTitle,
		Subtitle:   pageSubtitle,
		Request:    req,
		Dataset:    req.DatasetName(),
		Datasets:   domain.AllDatasetNames(),
		ChartKinds: domain.AllChartKinds(),
		Uploads:    uploadFields,
		Selected:   make(map[string]bool, len(req.Columns)),
		Enabled:    make(map[domain.ChartKind]bool, len(req.Charts)),
		Axes:       make(map[domain.ChartKind]axisChoice),
		From:       req.From,
		To:         req.To,
		ShowStats:  q.Get("stats") == "1",
		View:       &domain.View{Dataset: req.DatasetName(), Notices: []domain.Notice{}},
	}
	for _, c := range req.Columns {
		p.Selected[c] = true
	}
	for _, k := range req.Charts {
		p.Enabled[domain.ChartKind(k)] = true
	}
	for _, k := range p.ChartKinds {
		p.Axes[k] = axisChoice{X: q.Get(string(k) + "_x"), Y: q.Get(string(k) + "_y")}
	}
	return p
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, p *page) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "dashboard.html", p); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to render dashboard page", slog.String("error", err.Error()))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to write dashboard page", slog.String("error", err.Error()))
	}
}

// page is the data behind templates/dashboard.html
type page struct {
	Title      string
	Subtitle   string
	Request    api.ViewRequest
	Dataset    domain.DatasetName
	Datasets   []domain.DatasetName
	ChartKinds []domain.ChartKind
	Uploads    []uploadField
	View       *domain.View

	// Selected holds the requested columns; none means every column
	Selected map[string]bool
	Enabled  map[domain.ChartKind]bool
	Axes     map[domain.ChartKind]axisChoice

	Charts     []pageChart
	ExportCSV  string
	ExportXLSX string
	ShowStats  bool
	Stats      *domain.Statistics
	From       string
	To         string
}

type axisChoice struct {
	X string
	Y string
}

type pageChart struct {
	Spec domain.ChartSpec
	URL  string
}

// defaults fills the date inputs from the dataset's date bounds
func (p *page) defaults() {
	if p.From == "" {
		p.From = formatDate(p.View.DateBounds.From)
	}
	if p.To == "" {
		p.To = formatDate(p.View.DateBounds.To)
	}
}

// ColumnSelected reports whether the column multi-select marks name
func (p *page) ColumnSelected(name string) bool {
	return len(p.Selected) == 0 || p.Selected[name]
}

// NumericColumns lists the columns offered as a chart y axis
func (p *page) NumericColumns() []string {
	return p.View.NumericColumns()
}

// AxisOptions reports whether a chart kind takes x/y selects
func (p *page) AxisOptions(kind domain.ChartKind) bool {
	return kind == domain.ChartLine || kind == domain.ChartBar || kind == domain.ChartScatter
}

var templateFuncs = template.FuncMap{
	"date": formatDate,
	"float": func(v *float64) string {
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%.4g", *v)
	},
	"cell": func(m domain.CorrelationMatrix, i, j int) string {
		v, ok := m.At(i, j)
		if !ok {
			return ""
		}
		return fmt.Sprintf("%.2f", v)
	},
	"title": func(k domain.ChartKind) string {
		s := string(k)
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(api.DateLayout)
}

// formViewRequest reads the hidden selection fields posted with the upload form
func formViewRequest(values map[string][]string) api.ViewRequest {
	get := func(key string) string {
		if v := values[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	return api.ViewRequest{
		SourceRequest:    api.SourceRequest{CSVUpload: get("csv"), XLSXUpload: get("xlsx")},
		DateRangeRequest: api.DateRangeRequest{From: get("from"), To: get("to")},
		Dataset:          get("dataset"),
		Columns:          nonEmpty(values["columns"]),
	}
}

func firstFile(form *multipart.Form, field string) *multipart.FileHeader {
	if form == nil || len(form.File[field]) == 0 {
		return nil
	}
	if fh := form.File[field][0]; fh.Filename != "" {
		return fh
	}
	return nil
}

// validationNotices turns a request validation error into page notices
func validationNotices(err error) []domain.Notice {
	var apiErr *apierrors.APIError
	if !errors.As(err, &apiErr) {
		return []domain.Notice{{Severity: domain.SeverityError, Code: noticeInvalidInput, Message: err.Error()}}
	}

	details, ok := apiErr.Details.(apierrors.ValidationErrors)
	if !ok || len(details.Errors) == 0 {
		return []domain.Notice{{Severity: domain.SeverityError, Code: noticeInvalidInput, Message: apiErr.Message}}
	}

	notices := make([]domain.Notice, 0, len(details.Errors))
	for _, fe := range details.Errors {
		notices = append(notices, domain.Notice{
			Severity: domain.SeverityError,
			Code:     noticeInvalidInput,
			Message:  fe.Message,
		})
	}
	return notices
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func setNonEmpty(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
