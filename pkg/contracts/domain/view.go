package domain

// Severity classifies a user-visible notice
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice codes
const (
	NoticeSourcesUnavailable = "sources_unavailable"
	NoticeLoadFailed         = "load_failed"
	NoticeEmptyDataset       = "empty_dataset"
	NoticeChartSkipped       = "chart_skipped"
	NoticeRowsTruncated      = "rows_truncated"
	NoticeBarsTruncated      = "bars_truncated"
	NoticeNoDateColumn       = "no_date_column"
	NoticeInvalidRange       = "invalid_range"
	NoticeUnknownColumns     = "unknown_columns"
)

// Notice is a message shown to the user alongside (or instead of) the data
type Notice struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
}

// View is a filtered projection of a dataset, prepared for display
type View struct {
	Dataset    DatasetName `json:"dataset"`
	Source     SourceKind  `json:"source,omitempty"`
	Sheets     []string    `json:"sheets"`
	AllColumns []Column    `json:"all_columns"`
	Columns    []Column    `json:"columns"`
	Rows       [][]string  `json:"rows"`
	RowCount   int         `json:"row_count"`
	Truncated  bool        `json:"truncated"`
	DateColumn string      `json:"date_column,omitempty"`
	DateBounds DateRange   `json:"date_bounds"`
	Applied    DateRange   `json:"applied_range"`
	Notices    []Notice    `json:"notices"`
	Charts     []ChartSpec `json:"charts"`

	// Halted is set when nothing past the notices can be shown
	Halted bool `json:"halted"`
}

// Inform appends an informational notice
func (v *View) Inform(code, message string) {
	v.Notices = append(v.Notices, Notice{Severity: SeverityInfo, Code: code, Message: message})
}

// Warn appends a warning notice
func (v *View) Warn(code, message string) {
	v.Notices = append(v.Notices, Notice{Severity: SeverityWarning, Code: code, Message: message})
}

// Fail appends an error notice
func (v *View) Fail(code, message string) {
	v.Notices = append(v.Notices, Notice{Severity: SeverityError, Code: code, Message: message})
}

// NumericColumns returns the names of the view's numeric columns
func (v *View) NumericColumns() []string {
	var out []string
	for _, c := range v.Columns {
		if c.Kind == ColumnNumeric {
			out = append(out, c.Name)
		}
	}
	return out
}
