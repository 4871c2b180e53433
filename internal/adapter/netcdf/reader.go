// Package netcdf reads WRF model output and writes the derived rain rate
// product as classic-format NetCDF.
package netcdf

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/couchcryptid/storm-data-rainrate/internal/domain"
)

// WRF variable names.
const (
	VarConvective    = domain.ConvectiveName
	VarNonConvective = domain.NonConvectiveName
	VarTimes         = "Times"
	VarXTime         = "XTIME"
	VarLat           = "XLAT"
	VarLon           = "XLONG"
)

// WRF writes times as fixed-width character records.
const (
	wrfTimeLayout = "2006-01-02_15:04:05"
	dateStrLen    = 19
)

var (
	// ErrMissingInputFile reports an input path that does not exist.
	ErrMissingInputFile = errors.New("input file not found")

	// ErrMissingVariable reports a required variable absent from the dataset.
	ErrMissingVariable = errors.New("variable not found")
)

// Dataset is an open WRF output file. Close it when done.
type Dataset struct {
	path    string
	file    *os.File
	cf      *cdf.File
	numRecs int
}

// Open opens a WRF NetCDF file and reads its header.
func Open(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingInputFile, path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	cf, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read netcdf header %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	// The header count may be the streaming marker; the file size is authoritative.
	n := int(cf.Header.NumRecs(fi.Size()))
	return &Dataset{path: path, file: f, cf: cf, numRecs: n}, nil
}

// Path returns the file the dataset was opened from.
func (d *Dataset) Path() string { return d.path }

// NumRecords returns the length of the unlimited (Time) dimension.
func (d *Dataset) NumRecords() int { return d.numRecs }

// Close releases the underlying file.
func (d *Dataset) Close() error {
	return d.file.Close()
}

// Accumulated reads a (Time, south_north, west_east) accumulation variable such as RAINC.
func (d *Dataset) Accumulated(name string) (domain.AccumulatedField, error) {
	data, err := d.readVariable(name)
	if err != nil {
		return domain.AccumulatedField{}, err
	}
	if len(data.Shape) != 3 {
		return domain.AccumulatedField{}, fmt.Errorf("%w: %s has shape %v, want (Time, south_north, west_east)",
			domain.ErrShapeMismatch, name, data.Shape)
	}
	units := "mm"
	if u, ok := d.cf.Header.GetAttribute(name, "units").(string); ok && u != "" {
		units = u
	}
	return domain.AccumulatedField{Name: name, Units: units, Data: data}, nil
}

// Variable reads any numeric variable. Record variables gain a leading Time dimension.
func (d *Dataset) Variable(name string) (*sparse.DenseArray, error) {
	return d.readVariable(name)
}

// Attribute returns a variable attribute, or a global attribute when variable is empty.
func (d *Dataset) Attribute(variable, name string) any {
	return d.cf.Header.GetAttribute(variable, name)
}

// Times returns the time coordinate, from the Times character variable when
// present and otherwise from XTIME and its reference time.
func (d *Dataset) Times() (domain.TimeCoordinate, error) {
	if len(d.cf.Header.Lengths(VarTimes)) > 0 {
		return d.charTimes()
	}
	if len(d.cf.Header.Lengths(VarXTime)) > 0 {
		return d.xtimeTimes()
	}
	return nil, fmt.Errorf("%w: neither %s nor %s in %s", ErrMissingVariable, VarTimes, VarXTime, d.path)
}

// Grid returns the cell-centre latitude and longitude at time index 0.
// The grid is assumed static over the run.
func (d *Dataset) Grid() (domain.Grid, error) {
	lat, err := d.readVariable(VarLat)
	if err != nil {
		return domain.Grid{}, err
	}
	lon, err := d.readVariable(VarLon)
	if err != nil {
		return domain.Grid{}, err
	}
	lat, err = firstSlice(VarLat, lat)
	if err != nil {
		return domain.Grid{}, err
	}
	lon, err = firstSlice(VarLon, lon)
	if err != nil {
		return domain.Grid{}, err
	}
	if lat.Shape[0] != lon.Shape[0] || lat.Shape[1] != lon.Shape[1] {
		return domain.Grid{}, fmt.Errorf("%w: %s %v vs %s %v", domain.ErrShapeMismatch, VarLat, lat.Shape, VarLon, lon.Shape)
	}
	return domain.Grid{Lat: lat, Lon: lon}, nil
}

func (d *Dataset) charTimes() (domain.TimeCoordinate, error) {
	dims := d.cf.Header.Lengths(VarTimes)
	if len(dims) != 2 {
		return nil, fmt.Errorf("%s has %d dimensions, want (Time, DateStrLen)", VarTimes, len(dims))
	}
	width := dims[1]
	nt := dims[0]
	if nt == 0 {
		nt = d.numRecs
	}

	times := make(domain.TimeCoordinate, nt)
	for t := range nt {
		r := d.cf.Reader(VarTimes, []int{t, 0}, []int{t + 1, 0})
		buf := r.Zero(width)
		if _, err := r.Read(buf); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read %s[%d]: %w", VarTimes, t, err)
		}
		s, err := charString(buf)
		if err != nil {
			return nil, fmt.Errorf("read %s[%d]: %w", VarTimes, t, err)
		}
		ts, err := time.ParseInLocation(wrfTimeLayout, s, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse %s[%d]: %w", VarTimes, t, err)
		}
		times[t] = ts
	}
	return times, nil
}

func (d *Dataset) xtimeTimes() (domain.TimeCoordinate, error) {
	units, _ := d.cf.Header.GetAttribute(VarXTime, "units").(string)
	ref, err := parseMinutesSince(units)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", VarXTime, err)
	}
	minutes, err := d.readVariable(VarXTime)
	if err != nil {
		return nil, err
	}
	times := make(domain.TimeCoordinate, len(minutes.Elements))
	for i, m := range minutes.Elements {
		times[i] = ref.Add(time.Duration(m * float64(time.Minute)))
	}
	return times, nil
}

// readVariable reads a numeric variable into a dense array. Record variables
// are read one record at a time.
func (d *Dataset) readVariable(name string) (*sparse.DenseArray, error) {
	dims := d.cf.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrMissingVariable, name, d.path)
	}

	if dims[0] != 0 {
		r := d.cf.Reader(name, nil, nil)
		buf := r.Zero(-1)
		if _, err := r.Read(buf); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		data := sparse.ZerosDense(dims...)
		if err := copyFloats(data.Elements, buf); err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}

	shape := append([]int{d.numRecs}, dims[1:]...)
	data := sparse.ZerosDense(shape...)
	n := 1
	for _, l := range dims[1:] {
		n *= l
	}
	for t := range d.numRecs {
		start, end := make([]int, len(dims)), make([]int, len(dims))
		start[0], end[0] = t, t+1
		r := d.cf.Reader(name, start, end)
		buf := r.Zero(n)
		if _, err := r.Read(buf); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read %s[%d]: %w", name, t, err)
		}
		if err := copyFloats(data.Elements[t*n:(t+1)*n], buf); err != nil {
			return nil, fmt.Errorf("read %s[%d]: %w", name, t, err)
		}
	}
	return data, nil
}

func firstSlice(name string, a *sparse.DenseArray) (*sparse.DenseArray, error) {
	switch len(a.Shape) {
	case 2:
		return a, nil
	case 3:
		if a.Shape[0] == 0 {
			return nil, fmt.Errorf("%w: %s has no records", ErrMissingVariable, name)
		}
		ny, nx := a.Shape[1], a.Shape[2]
		out := sparse.ZerosDense(ny, nx)
		copy(out.Elements, a.Elements[:ny*nx])
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s has shape %v, want (south_north, west_east)", domain.ErrShapeMismatch, name, a.Shape)
	}
}

func copyFloats(dst []float64, buf any) error {
	switch v := buf.(type) {
	case []float32:
		for i, x := range v {
			dst[i] = float64(x)
		}
	case []float64:
		copy(dst, v)
	case []int32:
		for i, x := range v {
			dst[i] = float64(x)
		}
	case []int16:
		for i, x := range v {
			dst[i] = float64(x)
		}
	default:
		return fmt.Errorf("unsupported variable type %T", buf)
	}
	return nil
}

func charString(buf any) (string, error) {
	var s string
	switch v := buf.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return "", fmt.Errorf("unsupported character type %T", buf)
	}
	return strings.TrimRight(s, "\x00 "), nil
}

// parseMinutesSince parses a CF "minutes since <reference>" units string.
func parseMinutesSince(units string) (time.Time, error) {
	const prefix = "minutes since "
	if !strings.HasPrefix(units, prefix) {
		return time.Time{}, fmt.Errorf("unsupported time units %q", units)
	}
	ref := strings.TrimSpace(strings.TrimPrefix(units, prefix))
	for _, layout := range []string{"2006-01-02 15:04:05", wrfTimeLayout, "2006-01-02T15:04:05Z", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, ref, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported reference time %q", ref)
}
