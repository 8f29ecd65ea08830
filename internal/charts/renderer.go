package charts

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"stockdash/internal/config"
	"stockdash/internal/dataprocessing"
	"stockdash/pkg/contracts/domain"
)

var (
	// ErrMissingColumns is returned when a chart needs columns the dataset lacks
	ErrMissingColumns = errors.New("missing required columns")
	// ErrNoNumericData is returned when a chart needs at least one numeric column
	ErrNoNumericData = errors.New("no numeric data")
	// ErrNotNumeric is returned when a plotted value column is not numeric
	ErrNotNumeric = dataprocessing.ErrNotNumeric
	// ErrNoPlottableData is returned when no row has both an x and a y value
	ErrNoPlottableData = errors.New("no plottable data")
	// ErrTooManyColumns is returned when a heatmap cannot fit every column
	ErrTooManyColumns = errors.New("too many columns")
)

var seriesColors = []drawing.Color{
	chart.ColorBlue,
	chart.ColorGreen,
	chart.ColorRed,
	chart.ColorAlternateGray,
	chart.ColorOrange,
}

// Renderer draws dashboard charts as PNG images
type Renderer struct {
	Width   int
	Height  int
	MaxBars int
}

// NewRenderer creates a renderer sized from the chart configuration
func NewRenderer(cfg config.ChartsConfig) *Renderer {
	return &Renderer{Width: cfg.Width, Height: cfg.Height, MaxBars: cfg.MaxBars}
}

// Title returns the heading shown above a chart
func Title(kind domain.ChartKind, x, y string) string {
	switch kind {
	case domain.ChartLine:
		return y + " over Time"
	case domain.ChartBar:
		return y + " Distribution"
	case domain.ChartScatter:
		return y + " vs " + x
	case domain.ChartCandlestick:
		return "Candlestick Chart"
	case domain.ChartHeatmap:
		return "Correlation Heatmap"
	default:
		return string(kind)
	}
}

// BarsTruncated reports whether a bar chart of n rows drops the oldest rows
func (r *Renderer) BarsTruncated(n int) bool {
	return r.MaxBars > 0 && n > r.MaxBars
}

// pointStyle renders points only, without connecting lines
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 1,
		StrokeColor: chart.ColorTransparent,
		DotWidth:    3,
		DotColor:    col,
	}
}

func lineStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 2,
		StrokeColor: col,
	}
}

// Line draws y against x. An empty x uses the row index.
func (r *Renderer) Line(w io.Writer, ds *dataprocessing.Dataset, x, y string) error {
	ax, err := resolveAxis(ds, x)
	if err != nil {
		return err
	}
	ys, err := ds.Float(y)
	if err != nil {
		return err
	}

	plot := newPlot(ax)
	plot.add(y, ys, lineStyle(seriesColors[0]))
	return r.render(w, Title(domain.ChartLine, x, y), y, plot)
}

// Scatter draws y against x as points
func (r *Renderer) Scatter(w io.Writer, ds *dataprocessing.Dataset, x, y string) error {
	ax, err := resolveAxis(ds, x)
	if err != nil {
		return err
	}
	ys, err := ds.Float(y)
	if err != nil {
		return err
	}

	plot := newPlot(ax)
	plot.add(y, ys, pointStyle(seriesColors[0]))
	return r.render(w, Title(domain.ChartScatter, ax.name, y), y, plot)
}

// Candlestick overlays the Open, High, Low and Close columns as lines
func (r *Renderer) Candlestick(w io.Writer, ds *dataprocessing.Dataset, x string) error {
	matched, missing := dataprocessing.CandlestickColumns(ds)
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	ax, err := resolveAxis(ds, x)
	if err != nil {
		return err
	}

	plot := newPlot(ax)
	for i, name := range matched {
		ys, err := ds.Float(name)
		if err != nil {
			return err
		}
		plot.add(name, ys, lineStyle(seriesColors[i%len(seriesColors)]))
	}
	return r.render(w, Title(domain.ChartCandlestick, x, ""), "Price", plot)
}

// Bar draws one bar per row, keeping the most recent MaxBars rows
func (r *Renderer) Bar(w io.Writer, ds *dataprocessing.Dataset, x, y string) error {
	ax, err := resolveAxis(ds, x)
	if err != nil {
		return err
	}
	ys, err := ds.Float(y)
	if err != nil {
		return err
	}

	var labels []string
	var values []float64
	for i, v := range ys {
		if !ax.valid[i] || !finite(v) {
			continue
		}
		labels = append(labels, ax.label(i))
		values = append(values, v)
	}
	if len(values) == 0 {
		return ErrNoPlottableData
	}
	if r.BarsTruncated(len(values)) {
		labels = labels[len(labels)-r.MaxBars:]
		values = values[len(values)-r.MaxBars:]
	}

	// label roughly a dozen bars so the axis stays legible
	every := int(math.Ceil(float64(len(values)) / 12))
	bars := make([]chart.Value, len(values))
	minY, maxY := 0.0, 0.0
	for i, v := range values {
		label := ""
		if i%every == 0 {
			label = labels[i]
		}
		bars[i] = chart.Value{
			Value: v,
			Label: label,
			Style: chart.Style{FillColor: seriesColors[0], StrokeColor: seriesColors[0]},
		}
		minY = math.Min(minY, v)
		maxY = math.Max(maxY, v)
	}
	minY, maxY = paddedBounds(minY, maxY)

	plotWidth := r.Width - 120
	spacing := 2
	barWidth := plotWidth/len(bars) - spacing
	if barWidth < 1 {
		barWidth = 1
	}

	bc := chart.BarChart{
		Title:      Title(domain.ChartBar, x, y),
		Width:      r.Width,
		Height:     r.Height,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		BarWidth:   barWidth,
		BarSpacing: spacing,
		YAxis: chart.YAxis{
			Name:  y,
			Range: &chart.ContinuousRange{Min: minY, Max: maxY},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := bc.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("render bar chart: %w", err)
	}
	_, err = buf.WriteTo(w)
	return err
}

// render draws a plot on a standard chart and writes the PNG only when
// rendering succeeded.
func (r *Renderer) render(w io.Writer, title, yName string, p *plot) error {
	if p.points == 0 {
		return ErrNoPlottableData
	}

	minX, maxX := paddedBounds(p.minX, p.maxX)
	minY, maxY := paddedBounds(p.minY, p.maxY)

	xa := chart.XAxis{
		Name:  p.axis.name,
		Range: &chart.ContinuousRange{Min: minX, Max: maxX},
	}
	if p.axis.times != nil {
		xa.ValueFormatter = chart.TimeValueFormatterWithFormat(timeLayout(p.maxX - p.minX))
	}

	ch := chart.Chart{
		Title:      title,
		Width:      r.Width,
		Height:     r.Height,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      xa,
		YAxis: chart.YAxis{
			Name:  yName,
			Range: &chart.ContinuousRange{Min: minY, Max: maxY},
		},
		Series: p.series,
	}
	if len(p.series) > 1 {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("render %q: %w", title, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// timeLayout picks tick labels for a time span given in go-chart units
func timeLayout(span float64) string {
	if time.Duration(span) < 48*time.Hour {
		return "01-02 15:04"
	}
	return "2006-01-02"
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// paddedBounds widens [min, max] by 5% and never returns an empty range
func paddedBounds(min, max float64) (float64, float64) {
	if max < min {
		min, max = max, min
	}
	if max == min {
		pad := math.Abs(min) * 0.05
		if pad == 0 {
			pad = 1
		}
		return min - pad, max + pad
	}
	pad := (max - min) * 0.05
	return min - pad, max + pad
}
