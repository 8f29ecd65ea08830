package exporter

import (
	"fmt"
	"io"

	"stockdash/internal/dataprocessing"
)

// Format is a download file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// FileName returns the download name for a dataset export
func (f Format) FileName(dataset string) string {
	return fmt.Sprintf("stock_%s.%s", dataset, f)
}

// Write exports ds in the given format. sheet names the XLSX worksheet.
func Write(w io.Writer, ds *dataprocessing.Dataset, format Format, sheet string) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, ds, WriteOptions{BOMPrefix: true})
	case FormatXLSX:
		return WriteXLSX(w, ds, sheet)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
