// Command validate re-derives the rain rate from a WRF input file and checks
// a product written by rainrate against it: structure, metadata, time
// labels, grid and values. An optional PNG map is checked to decode.
//
// Usage:
//
//	go run ./cmd/validate \
//	  --input data/wrfout_d03_2024-03-12_00:00:00 \
//	  --output rain_rate_wrf.nc \
//	  --png rain_rate_map.png
package main

import (
	"fmt"
	"image/png"
	"io"
	"math"
	"os"
	"slices"

	"github.com/urfave/cli/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/couchcryptid/storm-data-rainrate/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-data-rainrate/internal/domain"
	"github.com/couchcryptid/storm-data-rainrate/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// maxReported caps per-phase error listings for large grids.
const maxReported = 20

func main() {
	var code int
	app := &cli.App{
		Name:      "validate",
		Usage:     "check a rain rate product against its WRF input",
		UsageText: "validate --input WRFOUT --output RATE.nc [--png MAP.png]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Required: true, Usage: "WRF output file the product was derived from"},
			&cli.StringFlag{Name: "output", Required: true, Usage: "rain rate NetCDF product"},
			&cli.StringFlag{Name: "png", Usage: "rendered map to check (optional)"},
			&cli.Float64Flag{Name: "tolerance", Value: 1e-4, Usage: "absolute/relative tolerance for rate values"},
		},
		Action: func(cCtx *cli.Context) error {
			code = run(os.Stdout, cCtx.String("input"), cCtx.String("output"), cCtx.String("png"), cCtx.Float64("tolerance"))
			return nil
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func run(w io.Writer, inputPath, outputPath, pngPath string, tol float64) int {
	fmt.Fprintln(w, "=== Rain Rate Product Validation ===")
	fmt.Fprintln(w)

	want, err := deriveExpected(inputPath)
	if err != nil {
		fmt.Fprintf(w, "FATAL: derive from input: %v\n", err)
		return 1
	}

	out, err := netcdf.Open(outputPath)
	if err != nil {
		fmt.Fprintf(w, "FATAL: open product: %v\n", err)
		return 1
	}
	defer out.Close()

	phases := []*phase{
		validateStructure(out, want),
		validateValues(out, want, tol),
	}
	if pngPath != "" {
		phases = append(phases, validateImage(pngPath))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Rate steps: %d, grid: %dx%d, valid time: %s\n",
		want.Full.Steps(), want.Grid.Ny(), want.Grid.Nx(), want.Latest.ValidTime.UTC().Format("2006-01-02 15:04:05"))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxReported {
				fmt.Fprintf(w, "  ... %d more\n", len(p.errors)-maxReported)
				break
			}
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

func deriveExpected(path string) (domain.Selection, error) {
	ds, err := netcdf.Open(path)
	if err != nil {
		return domain.Selection{}, err
	}
	defer ds.Close()

	in, err := pipeline.ReadInputs(ds)
	if err != nil {
		return domain.Selection{}, err
	}
	return pipeline.Derive(in)
}

// ── Phase 1: Structure ──
// Shape, units, attributes and the time coordinate.

func validateStructure(out *netcdf.Dataset, want domain.Selection) *phase {
	p := &phase{name: "Phase 1: Structure and metadata"}

	rate, err := out.Accumulated(domain.RainRateName)
	if err != nil {
		p.errorf("read %s: %v", domain.RainRateName, err)
		return p
	}
	wantShape := want.Full.Data.Shape
	if !slices.Equal(rate.Data.Shape, wantShape) {
		p.errorf("%s shape: expected %v, got %v", domain.RainRateName, wantShape, rate.Data.Shape)
	}
	if rate.Units != domain.RainRateUnits {
		p.errorf("%s units: expected %q, got %q", domain.RainRateName, domain.RainRateUnits, rate.Units)
	}
	if id, _ := out.Attribute("", "run_id").(string); id == "" {
		p.errorf("global attribute run_id is missing")
	}
	if c, _ := out.Attribute(domain.RainRateName, "coordinates").(string); c != "XLONG XLAT" {
		p.errorf("%s coordinates: expected %q, got %q", domain.RainRateName, "XLONG XLAT", c)
	}

	times, err := out.Times()
	if err != nil {
		p.errorf("read times: %v", err)
	} else if len(times) != len(want.Full.Times) {
		p.errorf("time count: expected %d, got %d", len(want.Full.Times), len(times))
	} else {
		for i := range times {
			if !times[i].Equal(want.Full.Times[i]) {
				p.errorf("time %d: expected %s (interval end), got %s", i, want.Full.Times[i], times[i])
			}
		}
	}

	hours, err := out.Variable(netcdf.VarIntervalHours)
	if err != nil {
		p.errorf("read %s: %v", netcdf.VarIntervalHours, err)
	} else if !floats.EqualApprox(hours.Elements, want.Full.IntervalHours, 1e-9) {
		p.errorf("%s: expected %v, got %v", netcdf.VarIntervalHours, want.Full.IntervalHours, hours.Elements)
	}

	grid, err := out.Grid()
	if err != nil {
		p.errorf("read grid: %v", err)
	} else {
		if !floats.EqualApprox(grid.Lat.Elements, want.Grid.Lat.Elements, 1e-4) {
			p.errorf("XLAT differs from input time index 0")
		}
		if !floats.EqualApprox(grid.Lon.Elements, want.Grid.Lon.Elements, 1e-4) {
			p.errorf("XLONG differs from input time index 0")
		}
	}
	return p
}

// ── Phase 2: Values ──
// Every cell matches the re-derived rate within tolerance; NaN must match NaN.

func validateValues(out *netcdf.Dataset, want domain.Selection, tol float64) *phase {
	p := &phase{name: "Phase 2: Rate values"}

	rate, err := out.Accumulated(domain.RainRateName)
	if err != nil {
		p.errorf("read %s: %v", domain.RainRateName, err)
		return p
	}
	expected := want.Full.Data.Elements
	got := rate.Data.Elements
	if len(got) != len(expected) {
		p.errorf("cell count: expected %d, got %d", len(expected), len(got))
		return p
	}

	shape := want.Full.Data.Shape
	cells := shape[1] * shape[2]
	for i := range expected {
		e, g := expected[i], got[i]
		if math.IsNaN(e) || math.IsNaN(g) {
			if math.IsNaN(e) != math.IsNaN(g) {
				p.errorf("cell t=%d y=%d x=%d: expected %v, got %v", i/cells, (i%cells)/shape[2], i%shape[2], e, g)
			}
			continue
		}
		if !scalar.EqualWithinAbsOrRel(e, g, tol, tol) {
			p.errorf("cell t=%d y=%d x=%d: expected %.6g, got %.6g", i/cells, (i%cells)/shape[2], i%shape[2], e, g)
		}
	}
	return p
}

// ── Phase 3: Map image ──

func validateImage(path string) *phase {
	p := &phase{name: "Phase 3: Map image"}

	f, err := os.Open(path)
	if err != nil {
		p.errorf("open: %v", err)
		return p
	}
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	if err != nil {
		p.errorf("decode PNG: %v", err)
		return p
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		p.errorf("empty image %dx%d", cfg.Width, cfg.Height)
	}
	return p
}
