// Package chart renders per-point index time series as self-contained
// HTML (go-echarts) and PNG (gonum/plot) documents.
package chart

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/vegetation.report/internal/summary"
)

// TimeSeries is one point's index values over the table's date columns.
// Missing observations are NaN.
type TimeSeries struct {
	Label  string
	Dates  []string
	Values []float64
}

// SeriesFromTable converts a wide summary table into per-point series,
// preserving row order. Missing cells become NaN.
func SeriesFromTable(wide *summary.WideTable) []TimeSeries {
	series := make([]TimeSeries, 0, len(wide.Rows))
	for _, row := range wide.Rows {
		ts := TimeSeries{
			Label:  "point " + row.No,
			Dates:  wide.Dates,
			Values: make([]float64, len(row.Cells)),
		}
		for i, cell := range row.Cells {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				v = math.NaN()
			}
			ts.Values[i] = v
		}
		series = append(series, ts)
	}
	return series
}

// RenderHTML writes an interactive line chart of the series to w. Gaps
// render as breaks in the line.
func RenderHTML(w io.Writer, title string, series []TimeSeries) error {
	if len(series) == 0 {
		return fmt.Errorf("chart: no series to render")
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("points=%d dates=%d", len(series), len(series[0].Dates))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "NDVI", Min: -1, Max: 1}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Date"}),
	)

	line.SetXAxis(series[0].Dates)
	for _, ts := range series {
		data := make([]opts.LineData, len(ts.Values))
		for i, v := range ts.Values {
			if math.IsNaN(v) {
				data[i] = opts.LineData{Value: nil}
			} else {
				data[i] = opts.LineData{Value: v}
			}
		}
		line.AddSeries(ts.Label, data,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false), ConnectNulls: opts.Bool(false)}),
		)
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return fmt.Errorf("chart: render html: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// RenderPNG writes a static line chart of the series to w. Dates that
// parse as calendar dates become time axis values; others are dropped
// from the plot.
func RenderPNG(w io.Writer, title string, series []TimeSeries) error {
	if len(series) == 0 {
		return fmt.Errorf("chart: no series to render")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "NDVI"
	p.Y.Min = -1
	p.Y.Max = 1
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}

	colors := seriesColors(len(series))
	for i, ts := range series {
		pts := make(plotter.XYs, 0, len(ts.Values))
		for j, v := range ts.Values {
			if math.IsNaN(v) {
				continue
			}
			t, err := time.Parse("20060102", ts.Dates[j])
			if err != nil {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(t.Unix()), Y: v})
		}
		if len(pts) == 0 {
			continue
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("chart: line for %s: %w", ts.Label, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(ts.Label, line)
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(12*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("chart: render png: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("chart: write png: %w", err)
	}
	return nil
}

// seriesColors spreads n hues evenly around the color wheel.
func seriesColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.45)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
