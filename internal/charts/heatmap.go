package charts

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"stockdash/internal/dataprocessing"
	"stockdash/pkg/contracts/domain"
)

// coolwarm anchors: -1 is blue, 0 is light grey, +1 is red
var (
	coolColor    = color.RGBA{R: 59, G: 76, B: 192, A: 255}
	neutralColor = color.RGBA{R: 221, G: 221, B: 221, A: 255}
	warmColor    = color.RGBA{R: 180, G: 4, B: 38, A: 255}
	missingColor = color.RGBA{R: 245, G: 245, B: 245, A: 255}
	inkColor     = color.RGBA{R: 20, G: 20, B: 20, A: 255}
)

const (
	glyphWidth  = 7
	titleHeight = 36
	margin      = 12
	legendWidth = 56
	maxLabel    = 18
	minCell     = 8
)

// heatmapLayout sizes the label gutter and the square grid for a set of labels
type heatmapLayout struct {
	labelChars int
	labelWidth int
	grid       int
}

func (r *Renderer) layoutHeatmap(columns []string) heatmapLayout {
	labelChars := 0
	for _, c := range columns {
		labelChars = max(labelChars, utf8.RuneCountInString(c))
	}
	labelChars = min(labelChars, maxLabel)
	labelWidth := labelChars*glyphWidth + margin

	gridW := r.Width - labelWidth - legendWidth - 2*margin
	gridH := r.Height - titleHeight - labelWidth/2 - 2*margin
	return heatmapLayout{labelChars: labelChars, labelWidth: labelWidth, grid: min(gridW, gridH)}
}

// HeatmapCapacity returns how many of columns fit in one heatmap
func (r *Renderer) HeatmapCapacity(columns []string) int {
	return max(r.layoutHeatmap(columns).grid/minCell, 0)
}

// Heatmap draws the correlation matrix of every numeric column with each
// coefficient annotated in its cell.
func (r *Renderer) Heatmap(w io.Writer, ds *dataprocessing.Dataset) error {
	numeric := dataprocessing.NumericColumns(ds)
	if len(numeric) == 0 {
		return ErrNoNumericData
	}
	matrix, err := dataprocessing.Correlation(ds, numeric)
	if err != nil {
		return err
	}
	return r.HeatmapMatrix(w, matrix)
}

// HeatmapMatrix draws an already computed correlation matrix
func (r *Renderer) HeatmapMatrix(w io.Writer, m domain.CorrelationMatrix) error {
	n := len(m.Columns)
	if n == 0 {
		return ErrNoNumericData
	}

	face := basicfont.Face7x13
	layout := r.layoutHeatmap(m.Columns)
	labelChars, labelWidth := layout.labelChars, layout.labelWidth
	cell := layout.grid / n
	if cell < minCell {
		return fmt.Errorf("%w: %d columns do not fit in %dx%d", ErrTooManyColumns, n, r.Width, r.Height)
	}

	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	drawText(img, face, Title(domain.ChartHeatmap, "", ""), margin, 22, inkColor)

	originX := margin + labelWidth
	originY := titleHeight + margin
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rect := image.Rect(originX+j*cell, originY+i*cell, originX+(j+1)*cell-1, originY+(i+1)*cell-1)
			v, ok := m.At(i, j)
			fill := missingColor
			label := "nan"
			if ok {
				fill = coolwarm(v)
				label = fmt.Sprintf("%.2f", v)
			}
			draw.Draw(img, rect, image.NewUniform(fill), image.Point{}, draw.Src)

			if cell >= len(label)*glyphWidth+2 {
				ink := inkColor
				if ok && math.Abs(v) > 0.6 {
					ink = color.RGBA{R: 255, G: 255, B: 255, A: 255}
				}
				tx := rect.Min.X + (cell-len(label)*glyphWidth)/2
				ty := rect.Min.Y + cell/2 + 4
				drawText(img, face, label, tx, ty, ink)
			}
		}

		name := truncateLabel(m.Columns[i], labelChars)
		drawText(img, face, name, margin, originY+i*cell+cell/2+4, inkColor)

		// column captions under the grid, shortened to the cell width
		colName := truncateLabel(m.Columns[i], max(cell/glyphWidth, 1))
		captionWidth := utf8.RuneCountInString(colName) * glyphWidth
		drawText(img, face, colName, originX+i*cell+(cell-captionWidth)/2, originY+n*cell+16, inkColor)
	}

	drawLegend(img, face, originX+n*cell+margin, originY, n*cell)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode heatmap: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// drawLegend paints the colour scale from +1 at the top to -1 at the bottom
func drawLegend(img *image.RGBA, face font.Face, x, y, height int) {
	if height <= 0 {
		return
	}
	for dy := 0; dy < height; dy++ {
		v := 1 - 2*float64(dy)/float64(height)
		line := image.Rect(x, y+dy, x+14, y+dy+1)
		draw.Draw(img, line, image.NewUniform(coolwarm(v)), image.Point{}, draw.Src)
	}
	drawText(img, face, "1", x+18, y+10, inkColor)
	drawText(img, face, "0", x+18, y+height/2+4, inkColor)
	drawText(img, face, "-1", x+18, y+height, inkColor)
}

func drawText(img *image.RGBA, face font.Face, text string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// truncateLabel shortens s to n characters, marking the cut with a tilde
func truncateLabel(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return string(runes[:max(n, 0)])
	}
	return string(runes[:n-1]) + "~"
}

// coolwarm maps a coefficient in [-1, 1] onto a diverging blue to red scale
func coolwarm(v float64) color.RGBA {
	v = math.Max(-1, math.Min(1, v))
	if v < 0 {
		return blend(neutralColor, coolColor, -v)
	}
	return blend(neutralColor, warmColor, v)
}

func blend(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}
