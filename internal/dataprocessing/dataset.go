package dataprocessing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"stockdash/pkg/contracts/domain"
)

var (
	// ErrUnknownColumn is returned when a requested column does not exist
	ErrUnknownColumn = errors.New("unknown column")
	// ErrNotNumeric is returned when a numeric operation targets a text column
	ErrNotNumeric = errors.New("column is not numeric")
	// ErrNotDate is returned when a date operation targets a non-date column
	ErrNotDate = errors.New("column is not a date column")
)

// missingTokens are the cell values treated as missing data
var missingTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-NaN": {}, "-nan": {},
	"<NA>": {}, "N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {},
	"n/a": {}, "nan": {}, "null": {}, "#VALUE!": {}, "#DIV/0!": {},
}

func isMissing(v string) bool {
	_, ok := missingTokens[v]
	return ok
}

// Dataset is a table of named, typed columns
type Dataset struct {
	df    dataframe.DataFrame
	kinds []domain.ColumnKind
}

// NewDataset builds a dataset from records whose first row is the header.
// Fully blank rows are dropped and short rows are padded with missing cells.
func NewDataset(records [][]string) (*Dataset, error) {
	if len(records) == 0 {
		return &Dataset{}, nil
	}

	width := len(records[0])
	body := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if blankRow(rec) {
			continue
		}
		if len(rec) > width {
			width = len(rec)
		}
		body = append(body, rec)
	}

	header := normalizeHeader(records[0], width)
	if len(header) == 0 {
		return &Dataset{}, nil
	}

	cols := make([]series.Series, len(header))
	kinds := make([]domain.ColumnKind, len(header))
	for c, name := range header {
		raw := make([]string, len(body))
		for r, rec := range body {
			if c < len(rec) {
				raw[r] = strings.TrimSpace(rec[c])
			}
		}

		kind, typ := inferKind(raw)
		for r, v := range raw {
			if isMissing(v) {
				raw[r] = "NaN"
			}
		}

		s := series.New(raw, typ, name)
		if s.Err != nil {
			return nil, fmt.Errorf("column %q: %w", name, s.Err)
		}
		cols[c] = s
		kinds[c] = kind
	}

	df := dataframe.New(cols...)
	if df.Err != nil {
		return nil, fmt.Errorf("build dataset: %w", df.Err)
	}
	return &Dataset{df: df, kinds: kinds}, nil
}

func blankRow(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// normalizeHeader trims names, fills blanks as Column_<n> and suffixes
// duplicates with .1, .2 and so on.
func normalizeHeader(raw []string, width int) []string {
	header := make([]string, width)
	used := make(map[string]bool, width)
	for i := range header {
		name := ""
		if i < len(raw) {
			name = strings.TrimSpace(raw[i])
		}
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			name = "Column_" + strconv.Itoa(i+1)
		}
		candidate := name
		for n := 1; used[candidate]; n++ {
			candidate = name + "." + strconv.Itoa(n)
		}
		used[candidate] = true
		header[i] = candidate
	}
	return header
}

// inferKind classifies a column from its raw values. Integer columns keep an
// Int series so that counts such as volume render without a fraction.
func inferKind(values []string) (domain.ColumnKind, series.Type) {
	seen := 0
	ints, floats, dates := true, true, true
	for _, v := range values {
		if isMissing(v) {
			continue
		}
		seen++
		if ints {
			if _, err := strconv.Atoi(v); err != nil {
				ints = false
			}
		}
		if floats {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				floats = false
			}
		}
		if dates {
			if _, ok := ParseDate(v); !ok {
				dates = false
			}
		}
	}

	switch {
	case seen == 0:
		return domain.ColumnString, series.String
	case ints:
		return domain.ColumnNumeric, series.Int
	case floats:
		return domain.ColumnNumeric, series.Float
	case dates:
		return domain.ColumnDate, series.String
	default:
		return domain.ColumnString, series.String
	}
}

// Names returns the column names in order
func (d *Dataset) Names() []string {
	if d == nil {
		return nil
	}
	return d.df.Names()
}

// Nrow returns the number of data rows
func (d *Dataset) Nrow() int {
	if d == nil {
		return 0
	}
	return d.df.Nrow()
}

// Ncol returns the number of columns
func (d *Dataset) Ncol() int {
	return len(d.Names())
}

// Empty reports whether the dataset has no rows
func (d *Dataset) Empty() bool {
	return d.Nrow() == 0
}

// Columns describes every column with its inferred kind
func (d *Dataset) Columns() []domain.Column {
	names := d.Names()
	cols := make([]domain.Column, len(names))
	for i, name := range names {
		cols[i] = domain.Column{Name: name, Kind: d.kinds[i]}
	}
	return cols
}

func (d *Dataset) index(name string) int {
	for i, n := range d.Names() {
		if n == name {
			return i
		}
	}
	return -1
}

// Has reports whether the dataset has a column with the exact name
func (d *Dataset) Has(name string) bool {
	return d.index(name) >= 0
}

// Kind returns the kind of the named column
func (d *Dataset) Kind(name string) (domain.ColumnKind, bool) {
	i := d.index(name)
	if i < 0 {
		return "", false
	}
	return d.kinds[i], true
}

// Float returns a numeric column with missing cells as NaN
func (d *Dataset) Float(name string) ([]float64, error) {
	kind, ok := d.Kind(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	if kind != domain.ColumnNumeric {
		return nil, fmt.Errorf("%w: %s", ErrNotNumeric, name)
	}
	return d.df.Col(name).Float(), nil
}

// Dates parses a date column. valid[i] is false where the cell is missing or
// does not parse.
func (d *Dataset) Dates(name string) (dates []time.Time, valid []bool, err error) {
	kind, ok := d.Kind(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	if kind != domain.ColumnDate {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotDate, name)
	}

	s := d.df.Col(name)
	dates = make([]time.Time, s.Len())
	valid = make([]bool, s.Len())
	for i := 0; i < s.Len(); i++ {
		e := s.Elem(i)
		if e.IsNA() {
			continue
		}
		dates[i], valid[i] = ParseDate(e.String())
	}
	return dates, valid, nil
}

// Rows renders every cell as display text. Missing cells are empty strings.
func (d *Dataset) Rows() [][]string {
	n, names := d.Nrow(), d.Names()
	out := make([][]string, n)
	for r := range out {
		out[r] = make([]string, len(names))
	}
	for c, name := range names {
		s := d.df.Col(name)
		for r := 0; r < n; r++ {
			e := s.Elem(r)
			if e.IsNA() {
				continue
			}
			if s.Type() == series.Float {
				out[r][c] = strconv.FormatFloat(e.Float(), 'f', -1, 64)
			} else {
				out[r][c] = e.String()
			}
		}
	}
	return out
}

// Records returns the header followed by Rows
func (d *Dataset) Records() [][]string {
	return append([][]string{d.Names()}, d.Rows()...)
}

// Subset returns the rows at the given positions, in that order
func (d *Dataset) Subset(rows []int) (*Dataset, error) {
	if d.Ncol() == 0 {
		return d, nil
	}
	if len(rows) == 0 {
		return d.emptyLike()
	}
	df := d.df.Subset(rows)
	if df.Err != nil {
		return nil, fmt.Errorf("subset rows: %w", df.Err)
	}
	return &Dataset{df: df, kinds: d.kinds}, nil
}

// Head returns the first n rows
func (d *Dataset) Head(n int) (*Dataset, error) {
	if n >= d.Nrow() {
		return d, nil
	}
	return d.Subset(seq(0, n))
}

// Select projects the dataset onto the named columns in the order given.
// An empty selection keeps every column.
func (d *Dataset) Select(names []string) (*Dataset, error) {
	if len(names) == 0 {
		return d, nil
	}

	picked := make([]string, 0, len(names))
	kinds := make([]domain.ColumnKind, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		i := d.index(name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
		seen[name] = true
		picked = append(picked, name)
		kinds = append(kinds, d.kinds[i])
	}

	df := d.df.Select(picked)
	if df.Err != nil {
		return nil, fmt.Errorf("select columns: %w", df.Err)
	}
	return &Dataset{df: df, kinds: kinds}, nil
}

func (d *Dataset) emptyLike() (*Dataset, error) {
	names := d.Names()
	cols := make([]series.Series, len(names))
	for i, name := range names {
		cols[i] = series.New([]string{}, d.df.Col(name).Type(), name)
	}
	df := dataframe.New(cols...)
	if df.Err != nil {
		return nil, fmt.Errorf("empty dataset: %w", df.Err)
	}
	return &Dataset{df: df, kinds: d.kinds}, nil
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}
