package charts

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"stockdash/internal/dataprocessing"
	"stockdash/pkg/contracts/domain"
)

// axis is the resolved x-axis of a chart: a date column, a numeric column
// or the row index.
type axis struct {
	name  string
	index bool
	times []time.Time
	xs    []float64
	valid []bool
}

func resolveAxis(ds *dataprocessing.Dataset, column string) (axis, error) {
	n := ds.Nrow()
	if column == "" {
		a := axis{name: "Index", index: true, xs: make([]float64, n), valid: make([]bool, n)}
		for i := range a.xs {
			a.xs[i] = float64(i)
			a.valid[i] = true
		}
		return a, nil
	}

	kind, ok := ds.Kind(column)
	if !ok {
		return axis{}, fmt.Errorf("%w: %s", dataprocessing.ErrUnknownColumn, column)
	}

	switch kind {
	case domain.ColumnDate:
		dates, valid, err := ds.Dates(column)
		if err != nil {
			return axis{}, err
		}
		xs := make([]float64, n)
		for i, t := range dates {
			if valid[i] {
				xs[i] = chart.TimeToFloat64(t)
			}
		}
		return axis{name: column, times: dates, xs: xs, valid: valid}, nil

	case domain.ColumnNumeric:
		xs, err := ds.Float(column)
		if err != nil {
			return axis{}, err
		}
		valid := make([]bool, n)
		for i, v := range xs {
			valid[i] = finite(v)
		}
		return axis{name: column, xs: xs, valid: valid}, nil

	default:
		return axis{}, fmt.Errorf("%w: %s", ErrNotNumeric, column)
	}
}

// label renders the x value of row i for bar captions
func (a axis) label(i int) string {
	switch {
	case a.times != nil:
		return a.times[i].Format("2006-01-02")
	case a.index:
		return strconv.Itoa(i)
	default:
		return strconv.FormatFloat(a.xs[i], 'g', 6, 64)
	}
}

// plot accumulates series over a shared x-axis and tracks their bounds
type plot struct {
	axis   axis
	series []chart.Series
	points int

	minX, maxX float64
	minY, maxY float64
}

func newPlot(a axis) *plot {
	return &plot{
		axis: a,
		minX: math.Inf(1), maxX: math.Inf(-1),
		minY: math.Inf(1), maxY: math.Inf(-1),
	}
}

// add appends a series of the rows where both x and y are present.
// Series without any such row are left out.
func (p *plot) add(name string, ys []float64, style chart.Style) {
	var xs []float64
	var times []time.Time
	var vals []float64
	for i, y := range ys {
		if !p.axis.valid[i] || !finite(y) {
			continue
		}
		x := p.axis.xs[i]
		if p.axis.times != nil {
			times = append(times, p.axis.times[i])
		} else {
			xs = append(xs, x)
		}
		vals = append(vals, y)

		p.minX, p.maxX = math.Min(p.minX, x), math.Max(p.maxX, x)
		p.minY, p.maxY = math.Min(p.minY, y), math.Max(p.maxY, y)
	}
	if len(vals) == 0 {
		return
	}
	p.points += len(vals)

	if p.axis.times != nil {
		p.series = append(p.series, chart.TimeSeries{Name: name, XValues: times, YValues: vals, Style: style})
		return
	}
	p.series = append(p.series, chart.ContinuousSeries{Name: name, XValues: xs, YValues: vals, Style: style})
}
