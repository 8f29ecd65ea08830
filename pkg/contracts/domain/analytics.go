package domain

// ColumnSummary holds descriptive statistics for one numeric column.
// Fields are nil when the column has too few values to compute them.
type ColumnSummary struct {
	Column string   `json:"column"`
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean,omitempty"`
	Std    *float64 `json:"std,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Q25    *float64 `json:"q25,omitempty"`
	Median *float64 `json:"median,omitempty"`
	Q75    *float64 `json:"q75,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

// CorrelationMatrix holds pairwise Pearson coefficients.
// A nil cell means the coefficient is undefined, e.g. for a constant column.
type CorrelationMatrix struct {
	Columns []string     `json:"columns"`
	Values  [][]*float64 `json:"values"`
}

// At returns the coefficient for columns i and j
func (m CorrelationMatrix) At(i, j int) (float64, bool) {
	if i < 0 || j < 0 || i >= len(m.Values) || j >= len(m.Values[i]) || m.Values[i][j] == nil {
		return 0, false
	}
	return *m.Values[i][j], true
}

// Statistics bundles the summaries and correlations of a view
type Statistics struct {
	Dataset     DatasetName       `json:"dataset"`
	RowCount    int               `json:"row_count"`
	Summaries   []ColumnSummary   `json:"summaries"`
	Correlation CorrelationMatrix `json:"correlation"`
}
