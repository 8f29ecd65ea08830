package domain

import "time"

// DatasetName identifies one of the fixed time windows of a stock export
type DatasetName string

const (
	Dataset1D  DatasetName = "1d"
	Dataset5D  DatasetName = "5d"
	Dataset1M  DatasetName = "1m"
	Dataset6M  DatasetName = "6m"
	Dataset1Y  DatasetName = "1y"
	Dataset5Y  DatasetName = "5y"
	DatasetAll DatasetName = "All"
)

// DefaultDataset is selected when a request names none
const DefaultDataset = Dataset1D

// AllDatasetNames returns the dataset names in selector order
func AllDatasetNames() []DatasetName {
	return []DatasetName{Dataset1D, Dataset5D, Dataset1M, Dataset6M, Dataset1Y, Dataset5Y, DatasetAll}
}

// IsValid reports whether n is one of the known dataset names
func (n DatasetName) IsValid() bool {
	for _, known := range AllDatasetNames() {
		if n == known {
			return true
		}
	}
	return false
}

// SourceKind tells where a dataset's rows came from
type SourceKind string

const (
	// SourceSheet means the workbook had a sheet named after the dataset
	SourceSheet SourceKind = "sheet"
	// SourceCSV means the CSV file was used as the fallback
	SourceCSV SourceKind = "csv"
)

// ColumnKind is the inferred type of a column
type ColumnKind string

const (
	ColumnNumeric ColumnKind = "numeric"
	ColumnDate    ColumnKind = "date"
	ColumnString  ColumnKind = "string"
)

// Column describes one column of a dataset
type Column struct {
	Name string     `json:"name"`
	Kind ColumnKind `json:"kind"`
}

// DateRange is an inclusive range of calendar days
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// IsZero reports whether neither bound is set
func (r DateRange) IsZero() bool {
	return r.From == nil && r.To == nil
}

// SourceRef selects the files a view is built from.
// Empty IDs fall back to the default files in the data directory.
type SourceRef struct {
	CSVUpload  string `json:"csv_upload,omitempty"`
	XLSXUpload string `json:"xlsx_upload,omitempty"`
}

// DatasetCatalog lists what can be selected for a pair of sources
type DatasetCatalog struct {
	Datasets []DatasetEntry `json:"datasets"`
	Sheets   []string       `json:"sheets"`
	CSVRows  int            `json:"csv_rows"`
}

// DatasetEntry tells where a dataset name resolves to
type DatasetEntry struct {
	Name   DatasetName `json:"name"`
	Source SourceKind  `json:"source"`
	Rows   int         `json:"rows"`
}
