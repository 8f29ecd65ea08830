package services

import "errors"

// Dashboard errors
var (
	// Source errors
	ErrSourcesUnavailable = errors.New("data sources unavailable")
	ErrLoadFailed         = errors.New("failed to load data sources")

	// Dataset errors
	ErrEmptyDataset = errors.New("dataset is empty")

	// Chart errors
	ErrChartUnavailable = errors.New("chart unavailable")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
)

// User-facing messages
const (
	msgDefaultsMissing = "Default files not found. Please upload CSV and XLSX files to proceed."
	msgNoData          = "No data available to display. Please upload valid files or ensure default files are present."
	msgLoadFailed      = "Error loading files: %v"
	msgEmptyDataset    = "The dataset '%s' is empty."
	msgHeatmapNumeric  = "Heatmap requires numeric data."
)
