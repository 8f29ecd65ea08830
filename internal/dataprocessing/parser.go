package dataprocessing

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"stockdash/pkg/contracts/domain"
)

// dateLayouts are tried in order when a cell is parsed as a date
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05Z07:00",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
	"1/2/2006",
	"1/2/06 15:04",
	"1/2/06",
	"2006/01/02",
	"02-Jan-2006",
	"Jan 2, 2006",
}

// ParseDate parses a cell using the supported date layouts
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseCSV reads a comma separated file whose first record is the header.
// An empty file yields a dataset without columns.
func ParseCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return NewDataset(records)
}

// Workbook holds every sheet of an XLSX file in sheet order
type Workbook struct {
	names  []string
	sheets map[string]*Dataset
}

// NewWorkbook builds a workbook from datasets in the given order
func NewWorkbook(names []string, sheets map[string]*Dataset) *Workbook {
	return &Workbook{names: names, sheets: sheets}
}

// ParseWorkbook reads every sheet of an XLSX file. Cells are read raw so
// numbers keep full precision; serial numbers in date styled cells become
// ISO dates.
func ParseWorkbook(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	dates, err := newCellDates(f)
	if err != nil {
		return nil, err
	}

	names := f.GetSheetList()
	wb := &Workbook{names: names, sheets: make(map[string]*Dataset, len(names))}
	for _, name := range names {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		if err := dates.convert(name, rows); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		ds, err := NewDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		wb.sheets[name] = ds
	}
	return wb, nil
}

// cellDates rewrites date styled serial numbers, caching the verdict per style
type cellDates struct {
	f        *excelize.File
	date1904 bool
	styles   map[int]bool
}

func newCellDates(f *excelize.File) (*cellDates, error) {
	props, err := f.GetWorkbookProps()
	if err != nil {
		return nil, fmt.Errorf("read workbook properties: %w", err)
	}
	return &cellDates{
		f:        f,
		date1904: props.Date1904 != nil && *props.Date1904,
		styles:   make(map[int]bool),
	}, nil
}

// convert rewrites data rows in place; the header row is left alone
func (c *cellDates) convert(sheet string, rows [][]string) error {
	for r := 1; r < len(rows); r++ {
		for col, v := range rows[r] {
			serial, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, r+1)
			if err != nil {
				return err
			}
			isDate, err := c.dateStyled(sheet, cell)
			if err != nil {
				return err
			}
			if !isDate {
				continue
			}
			t, err := excelize.ExcelDateToTime(serial, c.date1904)
			if err != nil {
				continue
			}
			rows[r][col] = formatCellTime(t)
		}
	}
	return nil
}

func (c *cellDates) dateStyled(sheet, cell string) (bool, error) {
	idx, err := c.f.GetCellStyle(sheet, cell)
	if err != nil {
		return false, fmt.Errorf("style of %s: %w", cell, err)
	}
	if idx == 0 {
		return false, nil
	}
	if isDate, ok := c.styles[idx]; ok {
		return isDate, nil
	}
	style, err := c.f.GetStyle(idx)
	if err != nil {
		return false, fmt.Errorf("style %d: %w", idx, err)
	}
	var isDate bool
	if style.CustomNumFmt != nil {
		isDate = isDateFormatCode(*style.CustomNumFmt)
	} else {
		isDate = isDateNumFmt(style.NumFmt)
	}
	c.styles[idx] = isDate
	return isDate, nil
}

// isDateNumFmt reports whether a built-in format id shows a calendar date.
// Pure time and duration formats are not dates.
func isDateNumFmt(id int) bool {
	switch {
	case id >= 14 && id <= 17, id == 22:
		return true
	case id >= 27 && id <= 36, id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode reports whether a custom format code carries a year or a
// day token outside literals and bracketed sections
func isDateFormatCode(code string) bool {
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case inQuote:
			inQuote = ch != '"'
		case inBracket:
			inBracket = ch != ']'
		case ch == '"':
			inQuote = true
		case ch == '[':
			inBracket = true
		case ch == '\\':
			i++
		case ch == 'y', ch == 'Y', ch == 'd', ch == 'D':
			return true
		}
	}
	return false
}

func formatCellTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// SheetNames returns the sheet names in workbook order
func (w *Workbook) SheetNames() []string {
	if w == nil {
		return nil
	}
	out := make([]string, len(w.names))
	copy(out, w.names)
	return out
}

// Sheet returns the dataset of the sheet with the exact name
func (w *Workbook) Sheet(name string) (*Dataset, bool) {
	if w == nil {
		return nil, false
	}
	ds, ok := w.sheets[name]
	return ds, ok
}

// Bundle is the pair of sources a dashboard session reads from
type Bundle struct {
	CSV      *Dataset
	Workbook *Workbook
}

// ErrNoSource is returned when a bundle holds neither source
var ErrNoSource = errors.New("no data source loaded")

// SelectDataset resolves a dataset name to the sheet of the same name, or to
// the CSV dataset when the workbook has no such sheet.
func SelectDataset(b *Bundle, name domain.DatasetName) (*Dataset, domain.SourceKind, error) {
	if b == nil {
		return nil, "", ErrNoSource
	}
	if ds, ok := b.Workbook.Sheet(string(name)); ok {
		return ds, domain.SourceSheet, nil
	}
	if b.CSV == nil {
		return nil, "", ErrNoSource
	}
	return b.CSV, domain.SourceCSV, nil
}

// Catalog lists every dataset name with the source it resolves to
func Catalog(b *Bundle) domain.DatasetCatalog {
	catalog := domain.DatasetCatalog{
		Sheets:  b.Workbook.SheetNames(),
		CSVRows: b.CSV.Nrow(),
	}
	for _, name := range domain.AllDatasetNames() {
		ds, source, err := SelectDataset(b, name)
		if err != nil {
			continue
		}
		catalog.Datasets = append(catalog.Datasets, domain.DatasetEntry{
			Name:   name,
			Source: source,
			Rows:   ds.Nrow(),
		})
	}
	return catalog
}
