// Package api contains API contract definitions for the stock dashboard.
// Version v1 represents the current stable API version.
package api

import (
	"time"

	"stockdash/pkg/contracts/domain"
)

// DateLayout is the layout of the from/to query parameters
const DateLayout = "2006-01-02"

// DateRangeRequest represents an inclusive date range in requests
type DateRangeRequest struct {
	From string `json:"from" query:"from" validate:"omitempty,isodate"`
	To   string `json:"to" query:"to" validate:"omitempty,isodate"`
}

// Bounds parses the range. It must only be called after validation.
func (d DateRangeRequest) Bounds() domain.DateRange {
	var out domain.DateRange
	if t, err := time.Parse(DateLayout, d.From); err == nil {
		out.From = &t
	}
	if t, err := time.Parse(DateLayout, d.To); err == nil {
		out.To = &t
	}
	return out
}

// SourceRequest selects uploaded files instead of the defaults
type SourceRequest struct {
	CSVUpload  string `json:"csv_upload,omitempty" query:"csv" validate:"omitempty,uuid"`
	XLSXUpload string `json:"xlsx_upload,omitempty" query:"xlsx" validate:"omitempty,uuid"`
}

// Ref converts the request into a domain source reference
func (s SourceRequest) Ref() domain.SourceRef {
	return domain.SourceRef{CSVUpload: s.CSVUpload, XLSXUpload: s.XLSXUpload}
}

// ViewRequest selects a dataset and filters it
type ViewRequest struct {
	SourceRequest
	DateRangeRequest
	Dataset string   `json:"dataset" query:"dataset" validate:"omitempty,dataset"`
	Columns []string `json:"columns,omitempty" query:"columns" validate:"omitempty,dive,required,max=256"`
	Charts  []string `json:"charts,omitempty" query:"charts" validate:"omitempty,dive,chartkind"`
	Limit   int      `json:"limit,omitempty" query:"limit" validate:"omitempty,min=1,max=100000"`
}

// DatasetName returns the requested dataset or the default one
func (v ViewRequest) DatasetName() domain.DatasetName {
	if v.Dataset == "" {
		return domain.DefaultDataset
	}
	return domain.DatasetName(v.Dataset)
}

// ChartRequest asks for one rendered chart of a filtered view
type ChartRequest struct {
	ViewRequest
	Kind string `json:"kind" param:"kind" validate:"required,chartkind"`
	X    string `json:"x,omitempty" query:"x" validate:"omitempty,max=256"`
	Y    string `json:"y,omitempty" query:"y" validate:"omitempty,max=256"`
}

// Chart converts the request into a domain chart request
func (c ChartRequest) Chart() domain.ChartRequest {
	return domain.ChartRequest{Kind: domain.ChartKind(c.Kind), X: c.X, Y: c.Y}
}

// ExportRequest asks for a download of a filtered view
type ExportRequest struct {
	ViewRequest
	Format string `json:"format" param:"format" validate:"required,oneof=csv xlsx"`
}

// UploadResponse is returned after files are stored
type UploadResponse struct {
	Uploads []domain.Upload `json:"uploads"`
}

// UploadIDRequest addresses one stored upload
type UploadIDRequest struct {
	ID string `json:"id" param:"id" validate:"required,uuid"`
}

// CacheInvalidationResponse reports how many memoized loads were dropped
type CacheInvalidationResponse struct {
	Entries int `json:"entries"`
}
