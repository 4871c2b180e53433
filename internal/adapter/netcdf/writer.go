package netcdf

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/couchcryptid/storm-data-rainrate/internal/domain"
)

// Output dimension names follow WRF so downstream tools treat the product
// like any other wrfout field.
const (
	dimTime       = "Time"
	dimDateStrLen = "DateStrLen"
	dimSouthNorth = "south_north"
	dimWestEast   = "west_east"
)

// VarIntervalHours holds the length of each rate interval in the product file.
const VarIntervalHours = "interval_hours"

// OutputMeta carries the global attributes of a rain rate product.
type OutputMeta struct {
	Title   string
	Source  string
	RunID   string
	Created time.Time
}

func (m OutputMeta) history() string {
	return fmt.Sprintf("%s: rain rate derived from %s and %s in %s",
		m.Created.UTC().Format(time.RFC3339), VarConvective, VarNonConvective, m.Source)
}

// WriteRainRate writes the full rate series of sel, with its grid, to a new
// NetCDF file at path.
func WriteRainRate(path string, sel domain.Selection, meta OutputMeta) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := writeRainRate(f, sel, meta); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writeRainRate(f *os.File, sel domain.Selection, meta OutputMeta) error {
	rate := sel.Full
	if rate.Data == nil || len(rate.Data.Shape) != 3 {
		return fmt.Errorf("%w: rate field must be (Time, south_north, west_east)", domain.ErrShapeMismatch)
	}
	nt, ny, nx := rate.Data.Shape[0], rate.Data.Shape[1], rate.Data.Shape[2]
	if len(rate.Times) != nt {
		return fmt.Errorf("%w: %d times for %d rate steps", domain.ErrDimensionMismatch, len(rate.Times), nt)
	}
	if sel.Grid.Lat == nil || sel.Grid.Lon == nil || sel.Grid.Ny() != ny || sel.Grid.Nx() != nx {
		return fmt.Errorf("%w: grid does not match rate field (%d, %d)", domain.ErrShapeMismatch, ny, nx)
	}

	h := cdf.NewHeader(
		[]string{dimTime, dimDateStrLen, dimSouthNorth, dimWestEast},
		[]int{0, dateStrLen, ny, nx})

	title := meta.Title
	if title == "" {
		title = "Rain rate derived from WRF accumulated precipitation"
	}
	h.AddAttribute("", "TITLE", title)
	h.AddAttribute("", "source", meta.Source)
	h.AddAttribute("", "history", meta.history())
	h.AddAttribute("", "run_id", meta.RunID)

	h.AddVariable(VarTimes, []string{dimTime, dimDateStrLen}, "")

	h.AddVariable(domain.RainRateName, []string{dimTime, dimSouthNorth, dimWestEast}, []float32{0})
	h.AddAttribute(domain.RainRateName, "units", rate.Units)
	h.AddAttribute(domain.RainRateName, "long_name", "precipitation rate")
	h.AddAttribute(domain.RainRateName, "description",
		"mean rate over the interval ending at the record time, from "+VarConvective+" + "+VarNonConvective)
	h.AddAttribute(domain.RainRateName, "coordinates", "XLONG XLAT")

	h.AddVariable(VarIntervalHours, []string{dimTime}, []float64{0})
	h.AddAttribute(VarIntervalHours, "units", "h")
	h.AddAttribute(VarIntervalHours, "description", "length of the interval ending at the record time")

	h.AddVariable(VarLat, []string{dimSouthNorth, dimWestEast}, []float32{0})
	h.AddAttribute(VarLat, "units", "degree_north")
	h.AddAttribute(VarLat, "description", "LATITUDE, SOUTH IS NEGATIVE")
	h.AddVariable(VarLon, []string{dimSouthNorth, dimWestEast}, []float32{0})
	h.AddAttribute(VarLon, "units", "degree_east")
	h.AddAttribute(VarLon, "description", "LONGITUDE, WEST IS NEGATIVE")

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
		if err := writeRecordTime(cf, t, rate.Times[t]); err != nil {
			return err
		}
		if err := writeRecord(cf, domain.RainRateName, t, rate.Data.Elements[t*cells:(t+1)*cells]); err != nil {
			return err
		}
		hours := 0.0
		if t < len(rate.IntervalHours) {
			hours = rate.IntervalHours[t]
		}
		w := cf.Writer(VarIntervalHours, []int{t}, []int{t + 1})
		if _, err := w.Write([]float64{hours}); err != nil {
			return fmt.Errorf("write %s[%d]: %w", VarIntervalHours, t, err)
		}
	}

	if err := writeField(cf, VarLat, sel.Grid.Lat); err != nil {
		return err
	}
	if err := writeField(cf, VarLon, sel.Grid.Lon); err != nil {
		return err
	}

	if err := cdf.UpdateNumRecs(f); err != nil {
		return fmt.Errorf("update record count: %w", err)
	}
	return nil
}

func checkHeader(h *cdf.Header) error {
	var errs []error
	for _, err := range h.Check() {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func writeRecordTime(cf *cdf.File, t int, ts time.Time) error {
	w := cf.Writer(VarTimes, []int{t, 0}, []int{t + 1, 0})
	if _, err := w.Write(ts.UTC().Format(wrfTimeLayout)); err != nil {
		return fmt.Errorf("write %s[%d]: %w", VarTimes, t, err)
	}
	return nil
}

// writeRecord writes one (south_north, west_east) record of a float32 variable.
func writeRecord(cf *cdf.File, name string, t int, values []float64) error {
	w := cf.Writer(name, []int{t, 0, 0}, []int{t + 1, 0, 0})
	if _, err := w.Write(toFloat32(values)); err != nil {
		return fmt.Errorf("write %s[%d]: %w", name, t, err)
	}
	return nil
}

// writeField writes a whole non-record float32 variable.
func writeField(cf *cdf.File, name string, data *sparse.DenseArray) error {
	end := cf.Header.Lengths(name)
	start := make([]int, len(end))
	w := cf.Writer(name, start, end)
	if _, err := w.Write(toFloat32(data.Elements)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
