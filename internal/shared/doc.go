// Package shared holds helpers used across the dashboard's packages.
//
// The testutil subpackage provides captured-slog loggers and stock data
// fixtures (CSV files and multi-sheet workbooks) for tests:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    csvPath := testutil.WriteStockCSV(t, t.TempDir(), testutil.StockRows(5))
//	    ...
//	}
package shared
