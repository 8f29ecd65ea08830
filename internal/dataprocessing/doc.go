// Package dataprocessing turns the stock data exports into typed datasets and
// derives the filtered views, summaries and correlations shown on the dashboard.
//
// # Components
//
//  1. Parser: reads a CSV file or every sheet of an XLSX workbook into Datasets
//  2. Dataset: a gota DataFrame plus the inferred kind of each column
//  3. Filters: date range filtering and column projection
//  4. Analytics: descriptive statistics and pairwise correlation (gonum)
//
// # Usage
//
//	csv, err := dataprocessing.ParseCSV(csvFile)
//	if err != nil {
//	    return err
//	}
//	wb, err := dataprocessing.ParseWorkbook(xlsxFile)
//	if err != nil {
//	    return err
//	}
//	bundle := &dataprocessing.Bundle{CSV: csv, Workbook: wb}
//	ds, source := dataprocessing.SelectDataset(bundle, domain.Dataset1M)
//
// # Data Flow
//
//	CSV / XLSX → Parser → Bundle → SelectDataset → FilterDateRange → SelectColumns → View
//
// Sheet lookup is by exact name. When the workbook has no sheet for the
// requested dataset, the CSV dataset is used instead.
//
// Missing cells ("", "NA", "NaN", "null" and similar) are stored as NaN and
// rendered as empty strings.
package dataprocessing
