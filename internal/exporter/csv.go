package exporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"stockdash/internal/dataprocessing"
)

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes the dataset, header first, as comma separated values
func WriteCSV(w io.Writer, ds *dataprocessing.Dataset, opts WriteOptions) error {
	if opts.BOMPrefix {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(ds.Names()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, record := range ds.Rows() {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
