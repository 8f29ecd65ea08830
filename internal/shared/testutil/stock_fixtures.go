package testutil

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

// StockHeader is the column layout of the Yahoo Finance export used in fixtures
var StockHeader = []string{"Date", "Open", "High", "Low", "Close", "Adj Close", "Volume"}

// StockRow is one trading day in a fixture
type StockRow struct {
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   int64
}

// Sheet is a named worksheet with a header row followed by data rows
type Sheet struct {
	Name string
	Rows [][]interface{}
}

// FixtureStart is the date of the first row produced by StockRows
var FixtureStart = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// StockRows returns n deterministic daily rows starting at FixtureStart
func StockRows(n int) []StockRow {
	rows := make([]StockRow, n)
	for i := range rows {
		base := 100 + float64(i)
		rows[i] = StockRow{
			Date:     FixtureStart.AddDate(0, 0, i),
			Open:     base,
			High:     base + 2.5,
			Low:      base - 1.5,
			Close:    base + 1,
			AdjClose: base + 0.75,
			Volume:   int64(1000 + 10*i),
		}
	}
	return rows
}

// Record formats the row in StockHeader order
func (r StockRow) Record() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []string{
		r.Date.Format("2006-01-02"),
		f(r.Open), f(r.High), f(r.Low), f(r.Close), f(r.AdjClose),
		strconv.FormatInt(r.Volume, 10),
	}
}

// StockRecords renders rows as CSV records including the header
func StockRecords(rows []StockRow) [][]string {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, StockHeader)
	for _, r := range rows {
		records = append(records, r.Record())
	}
	return records
}

// StockSheet builds a worksheet holding rows under StockHeader. Dates are
// written as spreadsheet dates, the way a real export stores them.
func StockSheet(name string, rows []StockRow) Sheet {
	out := make([][]interface{}, 0, len(rows)+1)
	header := make([]interface{}, len(StockHeader))
	for i, h := range StockHeader {
		header[i] = h
	}
	out = append(out, header)
	for _, r := range rows {
		out = append(out, []interface{}{
			r.Date, r.Open, r.High, r.Low, r.Close, r.AdjClose, r.Volume,
		})
	}
	return Sheet{Name: name, Rows: out}
}

// WriteCSV writes records to dir/name and returns the path
func WriteCSV(t *testing.T, dir, name string, records [][]string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create csv fixture: %v", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(records); err != nil {
		t.Fatalf("write csv fixture: %v", err)
	}
	return path
}

// WriteStockCSV writes rows as a CSV file named like the default export
func WriteStockCSV(t *testing.T, dir string, rows []StockRow) string {
	t.Helper()
	return WriteCSV(t, dir, "yahoo_stock_data_extraction.csv", StockRecords(rows))
}

// WriteWorkbook saves sheets, in order, to dir/name and returns the path
func WriteWorkbook(t *testing.T, dir, name string, sheets ...Sheet) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	keepDefault := false
	for _, sheet := range sheets {
		if sheet.Name == "Sheet1" {
			keepDefault = true
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			t.Fatalf("create sheet %s: %v", sheet.Name, err)
		}

		for i, row := range sheet.Rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			values := row
			if err := f.SetSheetRow(sheet.Name, cell, &values); err != nil {
				t.Fatalf("write sheet %s row %d: %v", sheet.Name, i, err)
			}
		}
	}
	if !keepDefault && len(sheets) > 0 {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			t.Fatalf("delete default sheet: %v", err)
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook fixture: %v", err)
	}
	return path
}

// WriteStockWorkbook saves sheets under the default export file name
func WriteStockWorkbook(t *testing.T, dir string, sheets ...Sheet) string {
	t.Helper()
	return WriteWorkbook(t, dir, "yahoo_stock_data_extraction.xlsx", sheets...)
}
