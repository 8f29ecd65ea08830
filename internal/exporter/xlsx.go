package exporter

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"stockdash/internal/dataprocessing"
	"stockdash/pkg/contracts/domain"
)

const defaultSheet = "Sheet1"

// sheetName makes name usable as a worksheet name
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		return defaultSheet
	}
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}

// WriteXLSX writes the dataset as a single worksheet. Numeric columns are
// stored as numbers and missing cells are left blank.
func WriteXLSX(w io.Writer, ds *dataprocessing.Dataset, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet = sheetName(sheet)
	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open sheet writer: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	names := ds.Names()
	header := make([]interface{}, len(names))
	for i, name := range names {
		header[i] = name
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{StyleID: headerStyle}); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	numeric := make(map[int][]float64)
	for i, c := range ds.Columns() {
		if c.Kind != domain.ColumnNumeric {
			continue
		}
		values, err := ds.Float(c.Name)
		if err != nil {
			return err
		}
		numeric[i] = values
	}

	for r, record := range ds.Rows() {
		row := make([]interface{}, len(record))
		for c, cell := range record {
			if values, ok := numeric[c]; ok {
				if v := values[r]; !math.IsNaN(v) && !math.IsInf(v, 0) {
					row[c] = v
				}
				continue
			}
			if cell != "" {
				row[c] = cell
			}
		}

		addr, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(addr, row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", r, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
