package domain

// ChartKind names a visualization the dashboard can draw
type ChartKind string

const (
	ChartLine        ChartKind = "line"
	ChartBar         ChartKind = "bar"
	ChartScatter     ChartKind = "scatter"
	ChartCandlestick ChartKind = "candlestick"
	ChartHeatmap     ChartKind = "heatmap"
)

// AllChartKinds returns the chart kinds in display order
func AllChartKinds() []ChartKind {
	return []ChartKind{ChartLine, ChartBar, ChartScatter, ChartCandlestick, ChartHeatmap}
}

// IsValid reports whether k is a known chart kind
func (k ChartKind) IsValid() bool {
	for _, known := range AllChartKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// ChartRequest selects a chart and, where relevant, its axes
type ChartRequest struct {
	Kind ChartKind `json:"kind"`
	X    string    `json:"x,omitempty"`
	Y    string    `json:"y,omitempty"`
}

// ChartSpec describes a chart resolved against a view
type ChartSpec struct {
	Kind      ChartKind `json:"kind"`
	Title     string    `json:"title"`
	X         string    `json:"x,omitempty"`
	Y         string    `json:"y,omitempty"`
	Available bool      `json:"available"`
	Reason    string    `json:"reason,omitempty"`
}

// CandlestickColumns are the price columns drawn by the candlestick chart
var CandlestickColumns = []string{"Open", "High", "Low", "Close"}
