// Package charts renders the dashboard visualizations as PNG images.
//
// Line, bar, scatter and candlestick charts are drawn with go-chart. The
// candlestick chart overlays the Open, High, Low and Close columns as four
// lines. The correlation heatmap is painted cell by cell on an RGBA image with
// every coefficient annotated.
//
// Every renderer writes to the destination only after the image was fully
// produced, so a failed chart leaves the writer untouched.
package charts
