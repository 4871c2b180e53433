package netcdf

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// WRFFixture is the content of a minimal wrfout file: accumulated
// precipitation on a static grid.
type WRFFixture struct {
	Times  []time.Time
	RainC  *sparse.DenseArray // (Time, south_north, west_east), mm
	RainNC *sparse.DenseArray // (Time, south_north, west_east), mm
	Lat    *sparse.DenseArray // (south_north, west_east)
	Lon    *sparse.DenseArray // (south_north, west_east)

	// XTimeOnly omits the Times character variable so readers must fall back to XTIME.
	XTimeOnly bool
}

// WriteWRF writes fx as a WRF-style NetCDF file. XLAT and XLONG are repeated
// for every record, as WRF does.
func WriteWRF(path string, fx WRFFixture) error {
	if err := fx.validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := writeWRF(f, fx); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func (fx WRFFixture) validate() error {
	if fx.RainC == nil || fx.RainNC == nil || fx.Lat == nil || fx.Lon == nil {
		return fmt.Errorf("fixture is missing a field")
	}
	if len(fx.RainC.Shape) != 3 || len(fx.Lat.Shape) != 2 {
		return fmt.Errorf("fixture fields must be (Time, y, x) and grid (y, x)")
	}
	if len(fx.Times) == 0 {
		return fmt.Errorf("fixture has no times")
	}
	return nil
}

func writeWRF(f *os.File, fx WRFFixture) error {
	nt, ny, nx := fx.RainC.Shape[0], fx.RainC.Shape[1], fx.RainC.Shape[2]
	start := fx.Times[0].UTC()
	record := []string{dimTime, dimSouthNorth, dimWestEast}

	h := cdf.NewHeader(
		[]string{dimTime, dimDateStrLen, dimSouthNorth, dimWestEast},
		[]int{0, dateStrLen, ny, nx})
	h.AddAttribute("", "TITLE", " OUTPUT FROM WRF V4.5 MODEL (synthetic)")
	h.AddAttribute("", "START_DATE", start.Format(wrfTimeLayout))
	h.AddAttribute("", "WEST-EAST_GRID_DIMENSION", []int32{int32(nx + 1)})
	h.AddAttribute("", "SOUTH-NORTH_GRID_DIMENSION", []int32{int32(ny + 1)})

	if !fx.XTimeOnly {
		h.AddVariable(VarTimes, []string{dimTime, dimDateStrLen}, "")
	}
	h.AddVariable(VarXTime, []string{dimTime}, []float32{0})
	h.AddAttribute(VarXTime, "units", "minutes since "+start.Format("2006-01-02 15:04:05"))
	h.AddAttribute(VarXTime, "description", "minutes since simulation start")

	for _, v := range []struct{ name, desc, units string }{
		{VarConvective, "ACCUMULATED TOTAL CUMULUS PRECIPITATION", "mm"},
		{VarNonConvective, "ACCUMULATED TOTAL GRID SCALE PRECIPITATION", "mm"},
		{VarLat, "LATITUDE, SOUTH IS NEGATIVE", "degree_north"},
		{VarLon, "LONGITUDE, WEST IS NEGATIVE", "degree_east"},
	} {
		h.AddVariable(v.name, record, []float32{0})
		h.AddAttribute(v.name, "FieldType", []int32{104})
		h.AddAttribute(v.name, "MemoryOrder", "XY ")
		h.AddAttribute(v.name, "description", v.desc)
		h.AddAttribute(v.name, "units", v.units)
		h.AddAttribute(v.name, "stagger", "")
	}
	h.AddAttribute(VarConvective, "coordinates", "XLONG XLAT XTIME")
	h.AddAttribute(VarNonConvective, "coordinates", "XLONG XLAT XTIME")

	h.Define()
	if err := checkHeader(h); err != nil {
		return err
	}
	cf, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("create netcdf: %w", err)
	}

	cells := ny * nx
	for t := range nt {
		if !fx.XTimeOnly {
			if err := writeRecordTime(cf, t, fx.Times[t]); err != nil {
				return err
			}
		}
		minutes := float32(fx.Times[t].Sub(start).Minutes())
		w := cf.Writer(VarXTime, []int{t}, []int{t + 1})
		if _, err := w.Write([]float32{minutes}); err != nil {
			return fmt.Errorf("write %s[%d]: %w", VarXTime, t, err)
		}

		for name, data := range map[string][]float64{
			VarConvective:    fx.RainC.Elements[t*cells : (t+1)*cells],
			VarNonConvective: fx.RainNC.Elements[t*cells : (t+1)*cells],
			VarLat:           fx.Lat.Elements,
			VarLon:           fx.Lon.Elements,
		} {
			if err := writeRecord(cf, name, t, data); err != nil {
				return err
			}
		}
	}

	if err := cdf.UpdateNumRecs(f); err != nil {
		return fmt.Errorf("update record count: %w", err)
	}
	return nil
}

// StormOptions shape a synthetic storm for SyntheticStorm.
type StormOptions struct {
	Steps    int
	Ny, Nx   int
	Start    time.Time
	Interval time.Duration

	// Domain corner and spacing in degrees.
	LatMin, LonMin float64
	DLat, DLon     float64

	// PeakRate is the rain rate at the storm centre in mm/h.
	PeakRate float64
}

// DefaultStormOptions returns a small domain over western Java with hourly output.
func DefaultStormOptions() StormOptions {
	return StormOptions{
		Steps:    7,
		Ny:       40,
		Nx:       50,
		Start:    time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC),
		Interval: time.Hour,
		LatMin:   -7.5,
		LonMin:   105.5,
		DLat:     0.03,
		DLon:     0.03,
		PeakRate: 40,
	}
}

// SyntheticStorm builds a fixture with a Gaussian rain cell drifting east.
// Convective rain falls near the core and stratiform rain in a wider shield,
// so both accumulations are non-decreasing over time.
func SyntheticStorm(o StormOptions) WRFFixture {
	fx := WRFFixture{
		Times:  make([]time.Time, o.Steps),
		RainC:  sparse.ZerosDense(o.Steps, o.Ny, o.Nx),
		RainNC: sparse.ZerosDense(o.Steps, o.Ny, o.Nx),
		Lat:    sparse.ZerosDense(o.Ny, o.Nx),
		Lon:    sparse.ZerosDense(o.Ny, o.Nx),
	}
	for j := range o.Ny {
		for i := range o.Nx {
			fx.Lat.Set(o.LatMin+float64(j)*o.DLat, j, i)
			fx.Lon.Set(o.LonMin+float64(i)*o.DLon, j, i)
		}
	}

	cy, sigma := float64(o.Ny)/2, float64(o.Nx)/8
	for t := range o.Steps {
		fx.Times[t] = o.Start.Add(time.Duration(t) * o.Interval)
		if t == 0 {
			continue
		}
		hours := o.Interval.Hours()
		cx := float64(o.Nx) * (0.2 + 0.6*float64(t)/float64(max(o.Steps-1, 1)))
		for j := range o.Ny {
			for i := range o.Nx {
				d2 := (math.Pow(float64(i)-cx, 2) + math.Pow(float64(j)-cy, 2)) / (sigma * sigma)
				core := 0.7 * o.PeakRate * math.Exp(-d2) * hours
				shield := 0.3 * o.PeakRate * math.Exp(-d2/4) * hours
				fx.RainC.Set(fx.RainC.Get(t-1, j, i)+core, t, j, i)
				fx.RainNC.Set(fx.RainNC.Get(t-1, j, i)+shield, t, j, i)
			}
		}
	}
	return fx
}
