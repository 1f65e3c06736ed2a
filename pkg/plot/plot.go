// Package plot renders experiment summary charts.
//
// Charts are described by [Box] and [Bars] values and drawn by a [Plotter].
// [Gonum] is the default implementation; the output format follows the file
// extension (.png, .svg, .pdf, ...).
package plot

import (
	"errors"
	"fmt"
	"math"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
)

// ErrPlot is returned when a chart cannot be drawn.
var ErrPlot = errors.New("plot")

// Series is a named group of observations.
type Series struct {
	Label  string
	Values []float64
}

// Box describes a box plot with one box per series.
type Box struct {
	Title  string
	XLabel string
	YLabel string
	Series []Series
}

// Bars describes a bar chart with optional symmetric error bars.
type Bars struct {
	Title  string
	XLabel string
	YLabel string
	Labels []string
	Values []float64
	// Errors has one entry per bar, or is empty.
	Errors []float64
}

// Plotter draws charts to files.
type Plotter interface {
	Box(path string, b Box) error
	Bars(path string, b Bars) error
}

// Gonum draws charts with gonum.org/v1/plot.
type Gonum struct {
	Width  vg.Length
	Height vg.Length
}

// NewGonum creates a [Gonum] plotter with a 8x6 inch canvas.
func NewGonum() *Gonum {
	return &Gonum{Width: 8 * vg.Inch, Height: 6 * vg.Inch}
}

// Box draws one box per series. Non-finite values are ignored, as are
// series left with no values.
func (g *Gonum) Box(path string, b Box) error {
	p := newPlot(b.Title, b.XLabel, b.YLabel)

	var labels []string
	for _, s := range b.Series {
		values := finite(s.Values)
		if len(values) == 0 {
			continue
		}

		box, err := plotter.NewBoxPlot(vg.Points(40), float64(len(labels)), values)
		if err != nil {
			return fmt.Errorf("%w: box %q: %w", ErrPlot, s.Label, err)
		}

		p.Add(box)
		labels = append(labels, s.Label)
	}

	if len(labels) == 0 {
		return fmt.Errorf("%w: %s: no values to draw", ErrPlot, path)
	}

	p.NominalX(labels...)

	return g.save(p, path)
}

type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

// Bars draws one bar per label, with error bars when errors are given.
func (g *Gonum) Bars(path string, b Bars) error {
	if len(b.Labels) == 0 {
		return fmt.Errorf("%w: %s: no bars to draw", ErrPlot, path)
	}

	if len(b.Values) != len(b.Labels) {
		return fmt.Errorf("%w: %d values for %d labels", ErrPlot, len(b.Values), len(b.Labels))
	}

	if len(b.Errors) != 0 && len(b.Errors) != len(b.Labels) {
		return fmt.Errorf("%w: %d errors for %d labels", ErrPlot, len(b.Errors), len(b.Labels))
	}

	p := newPlot(b.Title, b.XLabel, b.YLabel)

	values := make(plotter.Values, len(b.Values))
	for i, v := range b.Values {
		values[i] = orZero(v)
	}

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return fmt.Errorf("%w: bars: %w", ErrPlot, err)
	}

	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	if len(b.Errors) > 0 {
		pts := errorPoints{
			XYs:     make(plotter.XYs, len(values)),
			YErrors: make(plotter.YErrors, len(values)),
		}

		for i, v := range values {
			e := orZero(b.Errors[i])
			pts.XYs[i].X = float64(i)
			pts.XYs[i].Y = v
			pts.YErrors[i].Low = e
			pts.YErrors[i].High = e
		}

		eb, err := plotter.NewYErrorBars(pts)
		if err != nil {
			return fmt.Errorf("%w: error bars: %w", ErrPlot, err)
		}

		p.Add(eb)
	}

	p.NominalX(b.Labels...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight

	return g.save(p, path)
}

func newPlot(title, xlabel, ylabel string) *gplot.Plot {
	p := gplot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel

	return p
}

func (g *Gonum) save(p *gplot.Plot, path string) error {
	if err := p.Save(g.Width, g.Height, path); err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrPlot, path, err)
	}

	return nil
}

func finite(in []float64) plotter.Values {
	out := make(plotter.Values, 0, len(in))
	for _, v := range in {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}

	return out
}

func orZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	return v
}
