package dataprocessing

import (
	"bytes"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"stockdash/internal/shared/testutil"
	"stockdash/pkg/contracts/domain"
)

func TestParseCSV(t *testing.T) {
	path := testutil.WriteStockCSV(t, t.TempDir(), testutil.StockRows(5))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	ds, err := ParseCSV(f)
	require.NoError(t, err)

	assert.Equal(t, testutil.StockHeader, ds.Names())
	assert.Equal(t, 5, ds.Nrow())

	kinds := map[string]domain.ColumnKind{}
	for _, c := range ds.Columns() {
		kinds[c.Name] = c.Kind
	}
	assert.Equal(t, domain.ColumnDate, kinds["Date"])
	assert.Equal(t, domain.ColumnNumeric, kinds["Open"])
	assert.Equal(t, domain.ColumnNumeric, kinds["Volume"])

	rows := ds.Rows()
	assert.Equal(t, []string{"2024-01-01", "100", "102.5", "98.5", "101", "100.75", "1000"}, rows[0])
}

func TestParseCSVEdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCols  []string
		wantRows  int
		checkRows func(*testing.T, [][]string)
	}{
		{
			name:     "empty file",
			input:    "",
			wantCols: nil,
			wantRows: 0,
		},
		{
			name:     "header only",
			input:    "Date,Close\n",
			wantCols: []string{"Date", "Close"},
			wantRows: 0,
		},
		{
			name:     "ragged rows are padded",
			input:    "Date,Open,Close\n2024-01-01,1\n2024-01-02,2,3\n",
			wantCols: []string{"Date", "Open", "Close"},
			wantRows: 2,
			checkRows: func(t *testing.T, rows [][]string) {
				assert.Equal(t, []string{"2024-01-01", "1", ""}, rows[0])
				assert.Equal(t, []string{"2024-01-02", "2", "3"}, rows[1])
			},
		},
		{
			name:     "blank and duplicate headers",
			input:    "Date,,Close,Close\n2024-01-01,a,1,2\n",
			wantCols: []string{"Date", "Column_2", "Close", "Close.1"},
			wantRows: 1,
		},
		{
			name:     "missing tokens become empty cells",
			input:    "Date,Close\n2024-01-01,NA\n2024-01-02,5.5\n",
			wantCols: []string{"Date", "Close"},
			wantRows: 2,
			checkRows: func(t *testing.T, rows [][]string) {
				assert.Equal(t, "", rows[0][1])
				assert.Equal(t, "5.5", rows[1][1])
			},
		},
		{
			name:     "byte order mark is stripped",
			input:    "\ufeffDate,Close\n2024-01-01,1\n",
			wantCols: []string{"Date", "Close"},
			wantRows: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := ParseCSV(strings.NewReader(tt.input))
			require.NoError(t, err)

			if tt.wantCols == nil {
				assert.Empty(t, ds.Names())
			} else {
				assert.Equal(t, tt.wantCols, ds.Names())
			}
			assert.Equal(t, tt.wantRows, ds.Nrow())
			if tt.checkRows != nil {
				tt.checkRows(t, ds.Rows())
			}
		})
	}
}

func TestParseCSVReadError(t *testing.T) {
	_, err := ParseCSV(iotest.ErrReader(errors.New("disk gone")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

func TestParseWorkbook(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteStockWorkbook(t, dir,
		testutil.StockSheet("1d", testutil.StockRows(3)),
		testutil.StockSheet("1m", testutil.StockRows(20)),
		testutil.Sheet{Name: "5y"},
	)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	wb, err := ParseWorkbook(f)
	require.NoError(t, err)

	assert.Equal(t, []string{"1d", "1m", "5y"}, wb.SheetNames())

	oneDay, ok := wb.Sheet("1d")
	require.True(t, ok)
	assert.Equal(t, 3, oneDay.Nrow())
	assert.Equal(t, testutil.StockHeader, oneDay.Names())

	month, ok := wb.Sheet("1m")
	require.True(t, ok)
	assert.Equal(t, 20, month.Nrow())

	empty, ok := wb.Sheet("5y")
	require.True(t, ok)
	assert.True(t, empty.Empty())

	_, ok = wb.Sheet("1M")
	assert.False(t, ok, "sheet lookup is case sensitive")
}

// Spreadsheet dates are serial numbers behind a date number format
func TestParseWorkbookNativeDates(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "1d"))
	require.NoError(t, f.SetSheetRow("1d", "A1", &[]interface{}{"Date", "Close", "Stamp", "Settled", "Clock"}))

	isoCode := "yyyy-mm-dd"
	isoStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &isoCode})
	require.NoError(t, err)
	priceStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	require.NoError(t, err)
	clockStyle, err := f.NewStyle(&excelize.Style{NumFmt: 20})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		day := testutil.FixtureStart.AddDate(0, 0, i)
		row := strconv.Itoa(i + 2)
		// Built-in formats 17 (first of month) and 14 come from SetCellValue
		require.NoError(t, f.SetCellValue("1d", "A"+row, day))
		require.NoError(t, f.SetCellValue("1d", "B"+row, 100.5+float64(i)))
		require.NoError(t, f.SetCellStyle("1d", "B"+row, "B"+row, priceStyle))
		require.NoError(t, f.SetCellValue("1d", "C"+row, day.Add(9*time.Hour+30*time.Minute)))
		require.NoError(t, f.SetCellValue("1d", "D"+row, day))
		require.NoError(t, f.SetCellStyle("1d", "D"+row, "D"+row, isoStyle))
		require.NoError(t, f.SetCellFloat("1d", "E"+row, 0.375, -1, 64))
		require.NoError(t, f.SetCellStyle("1d", "E"+row, "E"+row, clockStyle))
	}

	var buf bytes.Buffer
	_, err = f.WriteTo(&buf)
	require.NoError(t, err)

	wb, err := ParseWorkbook(&buf)
	require.NoError(t, err)
	ds, ok := wb.Sheet("1d")
	require.True(t, ok)

	assert.Equal(t, []domain.Column{
		{Name: "Date", Kind: domain.ColumnDate},
		{Name: "Close", Kind: domain.ColumnNumeric},
		{Name: "Stamp", Kind: domain.ColumnDate},
		{Name: "Settled", Kind: domain.ColumnDate},
		{Name: "Clock", Kind: domain.ColumnNumeric},
	}, ds.Columns())
	assert.Equal(t, []string{"2024-01-01", "100.5", "2024-01-01 09:30:00", "2024-01-01", "0.375"}, ds.Rows()[0])
	assert.Equal(t, "2024-01-02", ds.Rows()[1][0])
	assert.Equal(t, "Date", DetectDateColumn(ds))

	from := testutil.FixtureStart.AddDate(0, 0, 1)
	to := testutil.FixtureStart.AddDate(0, 0, 3)
	filtered, err := FilterDateRange(ds, "Date", domain.DateRange{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, 3, filtered.Nrow())
	assert.Equal(t, "2024-01-02", filtered.Rows()[0][0])
}

func TestIsDateFormatCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"yyyy-mm-dd", true},
		{"d-mmm-yy", true},
		{"[$-409]mmmm d, yyyy", true},
		{"dd/mm/yyyy hh:mm", true},
		{"hh:mm:ss", false},
		{"[h]:mm", false},
		{"0.00", false},
		{`"day "0`, false},
		{`\d0`, false},
		{"General", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isDateFormatCode(tt.code), tt.code)
	}
}

func TestParseWorkbookRejectsGarbage(t *testing.T) {
	_, err := ParseWorkbook(strings.NewReader("not a workbook"))
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-03-05", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{"2024-03-05 09:30:00", time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC), true},
		{"03/05/2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{"05-Mar-2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{" 2024/03/05 ", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{"yesterday", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %v", got)
			}
		})
	}
}

func TestSelectDataset(t *testing.T) {
	csv, err := NewDataset(testutil.StockRecords(testutil.StockRows(7)))
	require.NoError(t, err)
	sheet, err := NewDataset(testutil.StockRecords(testutil.StockRows(2)))
	require.NoError(t, err)

	bundle := &Bundle{
		CSV:      csv,
		Workbook: NewWorkbook([]string{"1d"}, map[string]*Dataset{"1d": sheet}),
	}

	ds, source, err := SelectDataset(bundle, domain.Dataset1D)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceSheet, source)
	assert.Equal(t, 2, ds.Nrow())

	ds, source, err = SelectDataset(bundle, domain.Dataset1Y)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCSV, source)
	assert.Equal(t, 7, ds.Nrow())

	_, _, err = SelectDataset(nil, domain.Dataset1D)
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestCatalog(t *testing.T) {
	csv, err := NewDataset(testutil.StockRecords(testutil.StockRows(4)))
	require.NoError(t, err)
	sheet, err := NewDataset(testutil.StockRecords(testutil.StockRows(1)))
	require.NoError(t, err)

	catalog := Catalog(&Bundle{
		CSV:      csv,
		Workbook: NewWorkbook([]string{"All"}, map[string]*Dataset{"All": sheet}),
	})

	require.Len(t, catalog.Datasets, len(domain.AllDatasetNames()))
	assert.Equal(t, []string{"All"}, catalog.Sheets)
	assert.Equal(t, 4, catalog.CSVRows)
	for _, entry := range catalog.Datasets {
		if entry.Name == domain.DatasetAll {
			assert.Equal(t, domain.SourceSheet, entry.Source)
			assert.Equal(t, 1, entry.Rows)
		} else {
			assert.Equal(t, domain.SourceCSV, entry.Source)
			assert.Equal(t, 4, entry.Rows)
		}
	}
}
