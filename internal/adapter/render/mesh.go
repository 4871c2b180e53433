package render

import (
	"math"

	"github.com/ctessum/sparse"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// mesh draws a curvilinear grid of filled quadrilaterals, one per cell,
// coloured by value. Cell edges lie halfway between neighbouring centres.
// NaN cells are left unfilled.
type mesh struct {
	values  *sparse.DenseArray
	lat     [][]float64 // (ny+1, nx+1) corners
	lon     [][]float64
	cmap    palette.ColorMap
	minimum float64
	maximum float64
}

func newMesh(values, lat, lon *sparse.DenseArray, cmap palette.ColorMap) *mesh {
	return &mesh{
		values:  values,
		lat:     corners(lat),
		lon:     corners(lon),
		cmap:    cmap,
		minimum: cmap.Min(),
		maximum: cmap.Max(),
	}
}

// Plot implements plot.Plotter.
func (m *mesh) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	ny, nx := m.values.Shape[0], m.values.Shape[1]
	for j := range ny {
		for i := range nx {
			v := m.values.Get(j, i)
			if math.IsNaN(v) {
				continue
			}
			clr, err := m.cmap.At(clamp(v, m.minimum, m.maximum))
			if err != nil {
				continue
			}
			pts := []vg.Point{
				{X: trX(m.lon[j][i]), Y: trY(m.lat[j][i])},
				{X: trX(m.lon[j][i+1]), Y: trY(m.lat[j][i+1])},
				{X: trX(m.lon[j+1][i+1]), Y: trY(m.lat[j+1][i+1])},
				{X: trX(m.lon[j+1][i]), Y: trY(m.lat[j+1][i])},
			}
			c.FillPolygon(clr, c.ClipPolygonXY(pts))
		}
	}
}

// DataRange implements plot.DataRanger.
func (m *mesh) DataRange() (xmin, xmax, ymin, ymax float64) {
	xmin, xmax = extent(m.lon)
	ymin, ymax = extent(m.lat)
	return xmin, xmax, ymin, ymax
}

func extent(v [][]float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, row := range v {
		for _, x := range row {
			lo = math.Min(lo, x)
			hi = math.Max(hi, x)
		}
	}
	return lo, hi
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// corners turns (ny, nx) cell centres into (ny+1, nx+1) cell corners by
// extrapolating one row and column on every side and averaging each 2x2 block.
func corners(centres *sparse.DenseArray) [][]float64 {
	ny, nx := centres.Shape[0], centres.Shape[1]

	rows := make([][]float64, ny)
	for j := range ny {
		rows[j] = extend(centres.Elements[j*nx : (j+1)*nx])
	}
	ext := make([][]float64, ny+2)
	for j := range ext {
		ext[j] = make([]float64, nx+2)
	}
	col := make([]float64, ny)
	for i := range nx + 2 {
		for j := range ny {
			col[j] = rows[j][i]
		}
		for j, v := range extend(col) {
			ext[j][i] = v
		}
	}

	out := make([][]float64, ny+1)
	for j := range out {
		out[j] = make([]float64, nx+1)
		for i := range out[j] {
			out[j][i] = (ext[j][i] + ext[j][i+1] + ext[j+1][i] + ext[j+1][i+1]) / 4
		}
	}
	return out
}

// extend pads v with one linearly extrapolated value at each end.
// A single value is padded with copies of itself.
func extend(v []float64) []float64 {
	n := len(v)
	out := make([]float64, n+2)
	copy(out[1:], v)
	if n == 1 {
		out[0], out[2] = v[0], v[0]
		return out
	}
	out[0] = 2*v[0] - v[1]
	out[n+1] = 2*v[n-1] - v[n-2]
	return out
}
