package render

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"gonum.org/v1/plot/plotter"
)

// NoCoastlines disables the coastline overlay when set as Options.CoastlineShapefile.
const NoCoastlines = "none"

// coarseCoastlines is a low-resolution world coastline used when no
// shapefile is configured.
//
//go:embed coastline
var coarseCoastlines embed.FS

// loadDefaultCoastlines decodes the embedded coastline set. The shapefile
// reader works on paths, so the set is unpacked to a temporary directory.
func loadDefaultCoastlines(bounds *geom.Bounds) ([]plotter.XYs, error) {
	dir, err := os.MkdirTemp("", "rainrate-coastline-")
	if err != nil {
		return nil, fmt.Errorf("unpack coastlines: %w", err)
	}
	defer os.RemoveAll(dir)

	entries, err := fs.ReadDir(coarseCoastlines, "coastline")
	if err != nil {
		return nil, fmt.Errorf("unpack coastlines: %w", err)
	}
	for _, e := range entries {
		b, err := coarseCoastlines.ReadFile("coastline/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("unpack coastlines: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, e.Name()), b, 0o600); err != nil {
			return nil, fmt.Errorf("unpack coastlines: %w", err)
		}
	}
	return loadCoastlines(filepath.Join(dir, "coastline.shp"), bounds)
}

// loadCoastlines reads line and polygon shapes from a shapefile and returns
// the outlines that overlap bounds, in lon/lat.
func loadCoastlines(path string, bounds *geom.Bounds) ([]plotter.XYs, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("open coastline shapefile: %w", err)
	}
	defer d.Close()

	var lines []plotter.XYs
	for {
		g, _, more := d.DecodeRowFields()
		if !more {
			break
		}
		if g == nil || !bounds.Overlaps(g.Bounds()) {
			continue
		}
		lines = append(lines, outlines(g)...)
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("decode coastline shapefile: %w", err)
	}
	return lines, nil
}

func outlines(g geom.Geom) []plotter.XYs {
	var out []plotter.XYs
	switch t := g.(type) {
	case geom.LineString:
		out = append(out, toXYs(t))
	case geom.MultiLineString:
		for _, ls := range t {
			out = append(out, toXYs(ls))
		}
	case geom.Polygon:
		for _, ring := range t {
			out = append(out, toXYs(ring))
		}
	case geom.MultiPolygon:
		for _, poly := range t {
			for _, ring := range poly {
				out = append(out, toXYs(ring))
			}
		}
	}
	return out
}

func toXYs[P ~[]geom.Point](pts P) plotter.XYs {
	xys := make(plotter.XYs, len(pts))
	for i, p := range pts {
		xys[i].X, xys[i].Y = p.X, p.Y
	}
	return xys
}
