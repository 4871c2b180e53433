// Package render draws the latest rain rate slice as a PNG map.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"

	"github.com/ctessum/geom"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/brewer"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/couchcryptid/storm-data-rainrate/internal/domain"
)

const (
	colorBarWidth = 1.2 * vg.Inch
	titleLayout   = "2006-01-02 15:04 UTC"
)

// Options control the size and decoration of the rendered map.
type Options struct {
	WidthInches  float64
	HeightInches float64
	DPI          int

	// CoastlineShapefile is a line or polygon shapefile in lon/lat. Empty
	// selects the built-in coarse coastlines; NoCoastlines draws none.
	CoastlineShapefile string

	// Palette names a sequential ColorBrewer scheme.
	Palette string
}

// DefaultOptions returns a 9x7 inch map at 150 dpi using the Blues scheme.
func DefaultOptions() Options {
	return Options{WidthInches: 9, HeightInches: 7, DPI: 150, Palette: "Blues"}
}

// Renderer draws rain rate maps in plate carrée (x = longitude, y = latitude).
type Renderer struct {
	opts Options
}

// New creates a Renderer, filling unset options with defaults.
func New(opts Options) *Renderer {
	def := DefaultOptions()
	if opts.WidthInches <= 0 {
		opts.WidthInches = def.WidthInches
	}
	if opts.HeightInches <= 0 {
		opts.HeightInches = def.HeightInches
	}
	if opts.DPI <= 0 {
		opts.DPI = def.DPI
	}
	if opts.Palette == "" {
		opts.Palette = def.Palette
	}
	return &Renderer{opts: opts}
}

// Render writes a PNG map of slice over grid to path.
func (r *Renderer) Render(path string, slice domain.LatestSlice, grid domain.Grid) error {
	if slice.Data == nil || grid.Lat == nil || grid.Lon == nil {
		return errors.New("render: slice and grid are required")
	}
	if slice.Data.Shape[0] != grid.Ny() || slice.Data.Shape[1] != grid.Nx() {
		return fmt.Errorf("render: %w: slice %v vs grid (%d, %d)", domain.ErrShapeMismatch, slice.Data.Shape, grid.Ny(), grid.Nx())
	}

	cmap := r.colorMap(valueMax(slice.Data.Elements))

	m := newMesh(slice.Data, grid.Lat, grid.Lon, cmap)
	xmin, xmax, ymin, ymax := m.DataRange()

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Rain Rate (%s) — %s", domain.RainRateUnits, slice.ValidTime.UTC().Format(titleLayout))
	p.X.Label.Text = "Longitude (°E)"
	p.Y.Label.Text = "Latitude (°N)"
	p.Add(m)

	if r.opts.CoastlineShapefile != NoCoastlines {
		bounds := &geom.Bounds{Min: geom.Point{X: xmin, Y: ymin}, Max: geom.Point{X: xmax, Y: ymax}}
		var lines []plotter.XYs
		var err error
		if r.opts.CoastlineShapefile == "" {
			lines, err = loadDefaultCoastlines(bounds)
		} else {
			lines, err = loadCoastlines(r.opts.CoastlineShapefile, bounds)
		}
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		for _, xys := range lines {
			l, err := plotter.NewLine(xys)
			if err != nil {
				continue
			}
			l.LineStyle.Color = color.Black
			l.LineStyle.Width = vg.Points(0.6)
			p.Add(l)
		}
	}
	// Coastlines extend beyond the domain; keep the view on the grid.
	p.X.Min, p.X.Max = xmin, xmax
	p.Y.Min, p.Y.Max = ymin, ymax

	bar := plot.New()
	bar.HideX()
	bar.Title.Text = " "
	bar.Y.Label.Text = domain.RainRateUnits
	bar.Add(&plotter.ColorBar{ColorMap: cmap, Vertical: true})

	img := vgimg.NewWith(
		vgimg.UseWH(vg.Length(r.opts.WidthInches)*vg.Inch, vg.Length(r.opts.HeightInches)*vg.Inch),
		vgimg.UseDPI(r.opts.DPI),
	)
	dc := draw.New(img)
	p.Draw(draw.Crop(dc, 0, -colorBarWidth, 0, 0))
	bar.Draw(draw.Crop(dc, dc.Max.X-dc.Min.X-colorBarWidth, 0, 0, 0))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("render: create %s: %w", path, err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("render: write %s: %w", path, err)
	}
	return f.Close()
}

// colorMap builds a luminance-balanced map from the configured ColorBrewer
// scheme, spanning 0 to the slice maximum.
func (r *Renderer) colorMap(maximum float64) palette.ColorMap {
	var cmap palette.ColorMap
	p, err := brewer.GetPalette(brewer.TypeSequential, r.opts.Palette, 9)
	if err == nil {
		cmap, err = moreland.NewLuminance(p.Colors())
	}
	if err != nil {
		cmap = moreland.SmoothBlueRed()
	}
	if maximum <= 0 {
		maximum = 1
	}
	cmap.SetMin(0)
	cmap.SetMax(maximum)
	return cmap
}

func valueMax(values []float64) float64 {
	hi := math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		hi = math.Max(hi, v)
	}
	return hi
}
