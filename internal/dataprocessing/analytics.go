package dataprocessing

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"stockdash/pkg/contracts/domain"
)

// NumericColumns returns the names of the numeric columns in order
func NumericColumns(ds *Dataset) []string {
	var out []string
	for _, c := range ds.Columns() {
		if c.Kind == domain.ColumnNumeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// finite drops NaN and infinite values
func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func ptr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Summarize computes count, mean, sample standard deviation, min, quartiles
// and max for every numeric column. Missing cells are ignored.
func Summarize(ds *Dataset) []domain.ColumnSummary {
	names := NumericColumns(ds)
	out := make([]domain.ColumnSummary, 0, len(names))
	for _, name := range names {
		raw, err := ds.Float(name)
		if err != nil {
			continue
		}
		values := finite(raw)
		summary := domain.ColumnSummary{Column: name, Count: len(values)}
		if len(values) == 0 {
			out = append(out, summary)
			continue
		}

		sort.Float64s(values)
		summary.Mean = ptr(stat.Mean(values, nil))
		if len(values) > 1 {
			summary.Std = ptr(stat.StdDev(values, nil))
		}
		summary.Min = ptr(floats.Min(values))
		summary.Q25 = ptr(stat.Quantile(0.25, stat.LinInterp, values, nil))
		summary.Median = ptr(stat.Quantile(0.5, stat.LinInterp, values, nil))
		summary.Q75 = ptr(stat.Quantile(0.75, stat.LinInterp, values, nil))
		summary.Max = ptr(floats.Max(values))
		out = append(out, summary)
	}
	return out
}

// Correlation computes the Pearson coefficient of every pair of the given
// columns over the rows where both are present. Undefined coefficients, such
// as those involving a constant column, are nil.
func Correlation(ds *Dataset, columns []string) (domain.CorrelationMatrix, error) {
	data := make([][]float64, len(columns))
	for i, name := range columns {
		values, err := ds.Float(name)
		if err != nil {
			return domain.CorrelationMatrix{}, err
		}
		data[i] = values
	}

	matrix := domain.CorrelationMatrix{
		Columns: append([]string(nil), columns...),
		Values:  make([][]*float64, len(columns)),
	}
	for i := range columns {
		matrix.Values[i] = make([]*float64, len(columns))
	}
	for i := range columns {
		for j := i; j < len(columns); j++ {
			r := pairwise(data[i], data[j])
			matrix.Values[i][j] = r
			matrix.Values[j][i] = r
		}
	}
	return matrix, nil
}

func pairwise(a, b []float64) *float64 {
	x := make([]float64, 0, len(a))
	y := make([]float64, 0, len(a))
	for k := range a {
		if math.IsNaN(a[k]) || math.IsNaN(b[k]) || math.IsInf(a[k], 0) || math.IsInf(b[k], 0) {
			continue
		}
		x = append(x, a[k])
		y = append(y, b[k])
	}
	if len(x) < 2 {
		return nil
	}
	return ptr(stat.Correlation(x, y, nil))
}

// CandlestickColumns maps each of Open, High, Low and Close to the
// dataset column with the same name ignoring case. Missing holds the
// price columns that could not be found.
func CandlestickColumns(ds *Dataset) (matched []string, missing []string) {
	cols := ds.Columns()
	for _, want := range domain.CandlestickColumns {
		found := ""
		for _, c := range cols {
			if c.Name == want {
				found = c.Name
				break
			}
			if found == "" && strings.EqualFold(c.Name, want) {
				found = c.Name
			}
		}
		if found == "" {
			missing = append(missing, want)
			continue
		}
		matched = append(matched, found)
	}
	return matched, missing
}
