package dataprocessing

import (
	"strings"
	"time"

	"stockdash/pkg/contracts/domain"
)

// preferredDateColumns are matched case-insensitively before any other date column
var preferredDateColumns = []string{"date", "datetime", "timestamp"}

// DetectDateColumn returns the column used for date filtering and as the
// chart x-axis, or "" when the dataset has no date column.
func DetectDateColumn(ds *Dataset) string {
	cols := ds.Columns()
	for _, want := range preferredDateColumns {
		for _, c := range cols {
			if c.Kind == domain.ColumnDate && strings.EqualFold(c.Name, want) {
				return c.Name
			}
		}
	}
	for _, c := range cols {
		if c.Kind == domain.ColumnDate {
			return c.Name
		}
	}
	return ""
}

// day truncates t to its calendar day, keeping the wall clock date
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateBounds returns the first and last calendar day in the column
func DateBounds(ds *Dataset, column string) (domain.DateRange, error) {
	dates, valid, err := ds.Dates(column)
	if err != nil {
		return domain.DateRange{}, err
	}

	var bounds domain.DateRange
	for i, t := range dates {
		if !valid[i] {
			continue
		}
		d := day(t)
		if bounds.From == nil || d.Before(*bounds.From) {
			from := d
			bounds.From = &from
		}
		if bounds.To == nil || d.After(*bounds.To) {
			to := d
			bounds.To = &to
		}
	}
	return bounds, nil
}

// FilterDateRange keeps rows whose date falls inside the inclusive range.
// Rows with a missing or unparseable date are dropped once any bound is set.
// A zero range returns the dataset unchanged.
func FilterDateRange(ds *Dataset, column string, r domain.DateRange) (*Dataset, error) {
	if r.IsZero() {
		return ds, nil
	}

	dates, valid, err := ds.Dates(column)
	if err != nil {
		return nil, err
	}

	var from, to time.Time
	if r.From != nil {
		from = day(*r.From)
	}
	if r.To != nil {
		to = day(*r.To)
	}

	keep := make([]int, 0, len(dates))
	for i, t := range dates {
		if !valid[i] {
			continue
		}
		d := day(t)
		if r.From != nil && d.Before(from) {
			continue
		}
		if r.To != nil && d.After(to) {
			continue
		}
		keep = append(keep, i)
	}
	if len(keep) == len(dates) {
		return ds, nil
	}
	return ds.Subset(keep)
}

// SelectColumns projects ds onto names in order; nil or empty keeps all columns.
// The row count is never changed.
func SelectColumns(ds *Dataset, names []string) (*Dataset, error) {
	return ds.Select(names)
}
