package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	apierrors "stockdash/internal/errors"
	"stockdash/internal/files"
	"stockdash/internal/services"
	api "stockdash/pkg/contracts/api/v1"
	"stockdash/pkg/contracts/domain"
)

// decodeViewRequest reads the dashboard selection from the query string.
// columns and charts may repeat.
func decodeViewRequest(r *http.Request) (api.ViewRequest, error) {
	q := r.URL.Query()
	req := api.ViewRequest{
		SourceRequest:    api.SourceRequest{CSVUpload: q.Get("csv"), XLSXUpload: q.Get("xlsx")},
		DateRangeRequest: api.DateRangeRequest{From: q.Get("from"), To: q.Get("to")},
		Dataset:          q.Get("dataset"),
		Columns:          nonEmpty(q["columns"]),
		Charts:           nonEmpty(q["charts"]),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, apierrors.NewValidationErrors([]apierrors.ValidationError{
				{Field: "limit", Message: "limit must be a valid integer"},
			})
		}
		req.Limit = n
	}
	return req, nil
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// viewQuery converts a validated request. Chart axes come from
// <kind>_x and <kind>_y parameters.
func viewQuery(req api.ViewRequest, q url.Values) services.ViewQuery {
	charts := make([]domain.ChartRequest, 0, len(req.Charts))
	for _, kind := range req.Charts {
		charts = append(charts, domain.ChartRequest{
			Kind: domain.ChartKind(kind),
			X:    q.Get(kind + "_x"),
			Y:    q.Get(kind + "_y"),
		})
	}

	return services.ViewQuery{
		Source:  req.Ref(),
		Dataset: req.DatasetName(),
		Columns: req.Columns,
		Range:   req.Bounds(),
		Charts:  charts,
		Limit:   req.Limit,
	}
}

// viewValues encodes the selection shared by the page, chart and export URLs
func viewValues(req api.ViewRequest) url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("csv", req.CSVUpload)
	set("xlsx", req.XLSXUpload)
	set("dataset", string(req.DatasetName()))
	set("from", req.From)
	set("to", req.To)
	for _, c := range req.Columns {
		v.Add("columns", c)
	}
	return v
}

// serviceProblem maps service errors to API errors. detail overrides the
// message taken from the notices.
func serviceProblem(err error, detail string, notices []domain.Notice) error {
	if detail == "" {
		detail = haltMessage(notices)
	}
	if detail == "" {
		detail = err.Error()
	}

	var apiErr *apierrors.APIError
	switch {
	case errors.Is(err, services.ErrSourcesUnavailable):
		apiErr = apierrors.SourcesUnavailableError(detail)
	case errors.Is(err, services.ErrLoadFailed):
		apiErr = apierrors.LoadFailedError(detail, err)
	case errors.Is(err, services.ErrEmptyDataset):
		apiErr = apierrors.EmptyDatasetError(detail)
	case errors.Is(err, services.ErrChartUnavailable):
		apiErr = apierrors.ChartUnavailableError(detail)
	case errors.Is(err, services.ErrInvalidInput):
		apiErr = apierrors.NewValidationError(detail)
	case errors.Is(err, files.ErrUploadNotFound):
		apiErr = apierrors.NotFoundError("upload")
	case errors.Is(err, files.ErrUnsupportedFileType):
		apiErr = apierrors.NewWithDetails(http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE",
			"Only .csv and .xlsx files are accepted", err.Error())
	case errors.Is(err, files.ErrUploadTooLarge):
		apiErr = apierrors.NewWithDetails(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			"Upload exceeds the maximum allowed size", err.Error())
	default:
		return err
	}

	if len(notices) > 0 {
		apiErr.Details = notices
	}
	return apiErr
}

// haltMessage returns the first warning or error notice
func haltMessage(notices []domain.Notice) string {
	for _, n := range notices {
		if n.Severity != domain.SeverityInfo {
			return n.Message
		}
	}
	return ""
}
