package services

import (
	"fmt"
	"strings"

	"stockdash/internal/charts"
	"stockdash/internal/dataprocessing"
	"stockdash/pkg/contracts/domain"
)

// planChart resolves the axes of a requested chart against the filtered
// dataset. Charts that cannot be drawn come back with Available unset and a
// user-facing Reason.
func (s *DashboardService) planChart(ds *dataprocessing.Dataset, dateColumn string, req domain.ChartRequest) domain.ChartSpec {
	spec := domain.ChartSpec{Kind: req.Kind}
	numeric := dataprocessing.NumericColumns(ds)

	unavailable := func(format string, args ...interface{}) domain.ChartSpec {
		spec.Available = false
		spec.Reason = fmt.Sprintf(format, args...)
		spec.Title = charts.Title(spec.Kind, spec.X, spec.Y)
		return spec
	}

	switch req.Kind {
	case domain.ChartLine, domain.ChartBar:
		spec.X = req.X
		if spec.X == "" {
			spec.X = dateColumn
		}
		if reason := axisProblem(ds, spec.X); reason != "" {
			return unavailable("%s", reason)
		}

		spec.Y = req.Y
		if spec.Y == "" {
			if len(numeric) == 0 {
				return unavailable("%s chart requires a numeric column.", chartLabel(req.Kind))
			}
			spec.Y = numeric[0]
		}
		if reason := valueProblem(ds, spec.Y); reason != "" {
			return unavailable("%s", reason)
		}

	case domain.ChartScatter:
		if len(numeric) == 0 {
			return unavailable("Scatter chart requires numeric data.")
		}
		spec.X = req.X
		if spec.X == "" {
			spec.X = numeric[0]
		}
		if reason := axisProblem(ds, spec.X); reason != "" {
			return unavailable("%s", reason)
		}

		spec.Y = req.Y
		if spec.Y == "" {
			spec.Y = numeric[0]
			for _, name := range numeric {
				if name != spec.X {
					spec.Y = name
					break
				}
			}
		}
		if reason := valueProblem(ds, spec.Y); reason != "" {
			return unavailable("%s", reason)
		}

	case domain.ChartCandlestick:
		spec.X = dateColumn
		if _, missing := dataprocessing.CandlestickColumns(ds); len(missing) > 0 {
			return unavailable("Candlestick chart requires %s columns. Missing: %s.",
				strings.Join(domain.CandlestickColumns, ", "), strings.Join(missing, ", "))
		}

	case domain.ChartHeatmap:
		if len(numeric) == 0 {
			return unavailable(msgHeatmapNumeric)
		}
		if limit := s.renderer.HeatmapCapacity(numeric); len(numeric) > limit {
			return unavailable("Heatmap can show at most %d numeric columns; %d are selected.", limit, len(numeric))
		}

	default:
		return unavailable("Unknown chart type %q.", req.Kind)
	}

	spec.Available = true
	spec.Title = charts.Title(spec.Kind, spec.X, spec.Y)
	return spec
}

// axisProblem explains why column cannot be an x axis. Empty means the row index.
func axisProblem(ds *dataprocessing.Dataset, column string) string {
	if column == "" {
		return ""
	}
	kind, ok := ds.Kind(column)
	if !ok {
		return fmt.Sprintf("Column '%s' is not in the filtered data.", column)
	}
	if kind == domain.ColumnString {
		return fmt.Sprintf("Column '%s' cannot be used as the x axis.", column)
	}
	return ""
}

// valueProblem explains why column cannot be plotted as values
func valueProblem(ds *dataprocessing.Dataset, column string) string {
	kind, ok := ds.Kind(column)
	if !ok {
		return fmt.Sprintf("Column '%s' is not in the filtered data.", column)
	}
	if kind != domain.ColumnNumeric {
		return fmt.Sprintf("Column '%s' is not numeric.", column)
	}
	return ""
}

func chartLabel(kind domain.ChartKind) string {
	switch kind {
	case domain.ChartBar:
		return "Bar"
	case domain.ChartScatter:
		return "Scatter"
	case domain.ChartCandlestick:
		return "Candlestick"
	case domain.ChartHeatmap:
		return "Heatmap"
	default:
		return "Line"
	}
}
