package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	DefaultWidth  = 10 * vg.Inch
	DefaultHeight = 6 * vg.Inch
)

var ErrNoData = errors.New("no data points to plot")

// Style describes how a series is drawn.
type Style struct {
	Color  color.Color
	Dashes []vg.Length
	Glyph  draw.GlyphDrawer
}

var (
	SolidBlueCircles = Style{
		Color: color.RGBA{B: 255, A: 255},
		Glyph: draw.CircleGlyph{},
	}
	DashedGreenSquares = Style{
		Color:  color.RGBA{G: 128, A: 255},
		Dashes: []vg.Length{vg.Points(6), vg.Points(3)},
		Glyph:  draw.BoxGlyph{},
	}
)

// Request is a single line chart over nominal x labels.
type Request struct {
	// Metric and District name the chart in storage.
	Metric   string
	District string

	Labels []string
	Values []float64

	Title  string
	XLabel string
	YLabel string
	Legend string
	Style  Style
}

// Encode draws req as a PNG image. NaN values are missing points: the line
// breaks around them while every label stays on the x axis. Every call builds
// its own plot, so it is safe to call concurrently.
func Encode(req Request, width, height vg.Length) ([]byte, error) {
	if len(req.Labels) != len(req.Values) {
		return nil, fmt.Errorf("label count %d does not match value count %d", len(req.Labels), len(req.Values))
	}
	if len(req.Values) == 0 {
		return nil, ErrNoData
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	p := plot.New()
	p.Title.Text = req.Title
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = req.XLabel
	p.X.Label.TextStyle.Font.Size = vg.Points(12)
	p.Y.Label.Text = req.YLabel
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)
	p.Add(plotter.NewGrid())

	segments, err := segmentsOf(req)
	if err != nil {
		return nil, err
	}

	style := req.Style
	if style.Color == nil {
		style = SolidBlueCircles
	}
	for i, seg := range segments {
		line, glyphs, err := plotter.NewLinePoints(seg)
		if err != nil {
			return nil, fmt.Errorf("failed to create line: %w", err)
		}
		line.Color = style.Color
		line.Width = vg.Points(1.5)
		line.Dashes = style.Dashes
		glyphs.Color = style.Color
		glyphs.Radius = vg.Points(3)
		if style.Glyph != nil {
			glyphs.Shape = style.Glyph
		}
		p.Add(line, glyphs)

		if i == 0 && req.Legend != "" {
			p.Legend.Add(req.Legend, line, glyphs)
			p.Legend.Top = true
		}
	}

	p.NominalX(req.Labels...)
	p.X.Min = math.Min(p.X.Min, 0)
	p.X.Max = math.Max(p.X.Max, float64(len(req.Labels)-1))
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to create png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// segmentsOf splits the values into runs of consecutive present points, x
// being the label index.
func segmentsOf(req Request) ([]plotter.XYs, error) {
	var (
		segments []plotter.XYs
		current  plotter.XYs
	)
	for i, v := range req.Values {
		switch {
		case math.IsInf(v, 0):
			return nil, fmt.Errorf("value for %s is infinite", req.Labels[i])
		case math.IsNaN(v):
			if len(current) > 0 {
				segments = append(segments, current)
				current = nil
			}
		default:
			current = append(current, plotter.XY{X: float64(i), Y: v})
		}
	}
	if len(current) > 0 {
		segments = append(segments, current)
	}
	if len(segments) == 0 {
		return nil, ErrNoData
	}
	return segments, nil
}
