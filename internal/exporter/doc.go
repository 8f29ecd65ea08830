// Package exporter writes filtered datasets as downloadable files.
//
// CSV exports are written with encoding/csv and an optional UTF-8 BOM so that
// Excel detects the encoding. XLSX exports use an excelize stream writer with
// a bold header row; numeric columns are stored as numbers.
//
// Example usage:
//
//	w.Header().Set("Content-Type", exporter.FormatXLSX.ContentType())
//	err := exporter.Write(w, view, exporter.FormatXLSX, "1m")
package exporter
