// Package render draws cost-field snapshots with gonum/plot.
package render

import (
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/cwbudde/gridopt/internal/placement"
	"github.com/cwbudde/gridopt/internal/store"
)

// BaseMapName is the file name of the population map
const BaseMapName = "base_zones.png"

// Sink receives encoded images. *store.FSStore satisfies it.
type Sink interface {
	Create(name string, write func(w io.Writer) error) (string, error)
}

var (
	stationColor = color.RGBA{R: 30, G: 60, B: 220, A: 255}
	zoneRadius   = vg.Points(2.5)
	minStation   = vg.Points(3)
	maxStation   = vg.Points(10)
)

// PlotRenderer writes one PNG per snapshot into a Sink
type PlotRenderer struct {
	sink   Sink
	width  vg.Length
	height vg.Length
}

// NewPlotRenderer creates a renderer producing 6x6 inch images
func NewPlotRenderer(sink Sink) *PlotRenderer {
	return &PlotRenderer{sink: sink, width: 6 * vg.Inch, height: 6 * vg.Inch}
}

// WithSize overrides the image dimensions
func (r *PlotRenderer) WithSize(width, height vg.Length) *PlotRenderer {
	r.width, r.height = width, height
	return r
}

// Render draws zones shaded by their cheapest station cost (white to red)
// and the stations as blue triangles sized by weight. The returned string is
// the snapshot name inside the sink.
func (r *PlotRenderer) Render(field *placement.CostField, cfg placement.Configuration, iteration int) (string, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Iteration %d", iteration)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	zones, err := zoneScatter(field.Zones(), field.MinCost())
	if err != nil {
		return "", err
	}
	p.Add(zones)

	if len(cfg) > 0 {
		stations, err := stationScatter(cfg)
		if err != nil {
			return "", err
		}
		p.Add(stations)
	}

	name, err := r.save(p, store.SnapshotName(iteration))
	if err != nil {
		return "", err
	}
	slog.Debug("Rendered snapshot", "iteration", iteration, "name", name)
	return name, nil
}

// BaseMap draws the zones shaded by population
func (r *PlotRenderer) BaseMap(field *placement.CostField) (string, error) {
	p := plot.New()
	p.Title.Text = "Population"

	zs := field.Zones()
	pops := make([]float64, len(zs))
	for i, z := range zs {
		pops[i] = float64(z.Population)
	}
	zones, err := zoneScatter(zs, pops)
	if err != nil {
		return "", err
	}
	p.Add(zones)

	return r.save(p, BaseMapName)
}

func (r *PlotRenderer) save(p *plot.Plot, name string) (string, error) {
	wt, err := p.WriterTo(r.width, r.height, "png")
	if err != nil {
		return "", fmt.Errorf("failed to create png writer: %w", err)
	}
	return r.sink.Create(name, func(w io.Writer) error {
		_, err := wt.WriteTo(w)
		return err
	})
}

func zoneScatter(zones []placement.Zone, values []float64) (*plotter.Scatter, error) {
	xys := make(plotter.XYs, len(zones))
	for i, z := range zones {
		xys[i] = plotter.XY{X: z.X, Y: z.Y}
	}
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, fmt.Errorf("failed to build zone layer: %w", err)
	}

	var hi float64
	if len(values) == len(zones) && len(values) > 0 {
		hi = floats.Max(values)
	}
	s.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		var t float64
		if hi > 0 {
			t = values[i] / hi
		}
		return draw.GlyphStyle{Color: Shade(t), Radius: zoneRadius, Shape: draw.CircleGlyph{}}
	}
	return s, nil
}

func stationScatter(cfg placement.Configuration) (*plotter.Scatter, error) {
	ids := cfg.IDs()
	xys := make(plotter.XYs, len(ids))
	weights := make([]float64, len(ids))
	for i, id := range ids {
		s := cfg[id]
		xys[i] = plotter.XY{X: s.XCoord, Y: s.YCoord}
		weights[i] = s.Weight
	}
	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, fmt.Errorf("failed to build station layer: %w", err)
	}

	maxW := floats.Max(weights)
	sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{
			Color:  stationColor,
			Radius: StationRadius(weights[i], maxW),
			Shape:  draw.TriangleGlyph{},
		}
	}
	return sc, nil
}

var (
	shadeLow  = colorful.Color{R: 1, G: 1, B: 1}
	shadeHigh = colorful.Color{R: 1, G: 0, B: 0}
)

// Shade maps t in [0,1] onto the white to red ramp, interpolated in Lab space.
// Values outside are clamped.
func Shade(t float64) color.RGBA {
	if math.IsNaN(t) || t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	r, g, b := shadeLow.BlendLab(shadeHigh, t).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// StationRadius scales a station glyph with its share of the largest weight
func StationRadius(weight, maxWeight float64) vg.Length {
	if maxWeight <= 0 || weight <= 0 {
		return minStation
	}
	r := maxStation * vg.Length(weight/maxWeight)
	if r < minStation {
		return minStation
	}
	return r
}
