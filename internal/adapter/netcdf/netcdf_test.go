package netcdf

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-rainrate/internal/domain"
)

func smallStorm() StormOptions {
	o := DefaultStormOptions()
	o.Steps, o.Ny, o.Nx = 4, 6, 8
	return o
}

func writeFixture(t *testing.T, fx WRFFixture) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wrfout_d01_2024-03-12_00:00:00")
	require.NoError(t, WriteWRF(path, fx))
	return path
}

func openFixture(t *testing.T, fx WRFFixture) *Dataset {
	t.Helper()
	ds, err := Open(writeFixture(t, fx))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func assertArrayNear(t *testing.T, want, got *sparse.DenseArray) {
	t.Helper()
	require.Equal(t, want.Shape, got.Shape)
	for i := range want.Elements {
		assert.InDelta(t, want.Elements[i], got.Elements[i], 1e-3, "element %d", i)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.nc"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingInputFile))
}

func TestOpen_NotNetCDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.nc")
	require.NoError(t, os.WriteFile(path, []byte("this is not a netcdf file"), 0o600))

	_, err := Open(path)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMissingInputFile))
}

func TestDataset_ReadsWRFFixture(t *testing.T) {
	fx := SyntheticStorm(smallStorm())
	ds := openFixture(t, fx)

	assert.Equal(t, 4, ds.NumRecords())

	rainc, err := ds.Accumulated(VarConvective)
	require.NoError(t, err)
	assert.Equal(t, VarConvective, rainc.Name)
	assert.Equal(t, "mm", rainc.Units)
	assertArrayNear(t, fx.RainC, rainc.Data)

	rainnc, err := ds.Accumulated(VarNonConvective)
	require.NoError(t, err)
	assertArrayNear(t, fx.RainNC, rainnc.Data)

	times, err := ds.Times()
	require.NoError(t, err)
	require.Len(t, times, 4)
	for i := range times {
		assert.True(t, fx.Times[i].Equal(times[i]), "time %d: want %s got %s", i, fx.Times[i], times[i])
	}

	grid, err := ds.Grid()
	require.NoError(t, err)
	assert.Equal(t, 6, grid.Ny())
	assert.Equal(t, 8, grid.Nx())
	assertArrayNear(t, fx.Lat, grid.Lat)
	assertArrayNear(t, fx.Lon, grid.Lon)
}

func TestDataset_XTimeFallback(t *testing.T) {
	o := smallStorm()
	o.Interval = 90 * time.Minute
	fx := SyntheticStorm(o)
	fx.XTimeOnly = true
	ds := openFixture(t, fx)

	times, err := ds.Times()
	require.NoError(t, err)
	require.Len(t, times, o.Steps)
	assert.Equal(t, o.Start.Add(270*time.Minute), times[3])
}

func TestDataset_MissingVariable(t *testing.T) {
	ds := openFixture(t, SyntheticStorm(smallStorm()))

	_, err := ds.Accumulated("SNOWNC")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingVariable))
}

func TestDataset_RateFromFixture(t *testing.T) {
	o := smallStorm()
	ds := openFixture(t, SyntheticStorm(o))

	rainc, err := ds.Accumulated(VarConvective)
	require.NoError(t, err)
	rainnc, err := ds.Accumulated(VarNonConvective)
	require.NoError(t, err)
	times, err := ds.Times()
	require.NoError(t, err)

	rate, err := domain.DeriveRate(rainc, rainnc, times)
	require.NoError(t, err)
	assert.Equal(t, o.Steps-1, rate.Steps())

	// The storm's peak is PeakRate at its centre.
	maxRate := math.Inf(-1)
	for _, v := range rate.Data.Elements {
		assert.GreaterOrEqual(t, v, -1e-3)
		maxRate = math.Max(maxRate, v)
	}
	assert.InDelta(t, o.PeakRate, maxRate, 0.2*o.PeakRate)
}

func TestWriteRainRate_RoundTrip(t *testing.T) {
	base := time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC)
	data := sparse.ZerosDense(2, 2, 3)
	for i := range data.Elements {
		data.Elements[i] = float64(i) * 0.5
	}
	data.Elements[4] = math.NaN()
	lat, lon := sparse.ZerosDense(2, 3), sparse.ZerosDense(2, 3)
	for i := range lat.Elements {
		lat.Elements[i] = -7 + float64(i)
		lon.Elements[i] = 106 + float64(i)
	}

	rate := domain.RainRateField{
		Name:          domain.RainRateName,
		Units:         domain.RainRateUnits,
		Data:          data,
		Times:         domain.TimeCoordinate{base.Add(time.Hour), base.Add(3 * time.Hour)},
		IntervalHours: []float64{1, 2},
	}
	sel, err := domain.Select(rate, domain.Grid{Lat: lat, Lon: lon})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rain_rate_wrf.nc")
	meta := OutputMeta{Source: "wrfout_d03", RunID: "run-42", Created: base.Add(4 * time.Hour)}
	require.NoError(t, WriteRainRate(path, sel, meta))

	ds, err := Open(path)
	require.NoError(t, err)
	defer ds.Close()

	assert.Equal(t, 2, ds.NumRecords())

	got, err := ds.Accumulated(domain.RainRateName)
	require.NoError(t, err)
	assert.Equal(t, domain.RainRateUnits, got.Units)
	require.Equal(t, []int{2, 2, 3}, got.Data.Shape)
	for i, v := range data.Elements {
		if math.IsNaN(v) {
			assert.True(t, math.IsNaN(got.Data.Elements[i]))
			continue
		}
		assert.InDelta(t, v, got.Data.Elements[i], 1e-6)
	}

	times, err := ds.Times()
	require.NoError(t, err)
	require.Len(t, times, 2)
	for i := range times {
		assert.True(t, rate.Times[i].Equal(times[i]))
	}

	grid, err := ds.Grid()
	require.NoError(t, err)
	assertArrayNear(t, lat, grid.Lat)
	assertArrayNear(t, lon, grid.Lon)

	hours, err := ds.readVariable(VarIntervalHours)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, hours.Elements)

	h := ds.cf.Header
	assert.Equal(t, "run-42", h.GetAttribute("", "run_id"))
	assert.Equal(t, "wrfout_d03", h.GetAttribute("", "source"))
	assert.Contains(t, h.GetAttribute("", "history"), "2024-03-12T04:00:00Z")
	assert.Equal(t, "XLONG XLAT", h.GetAttribute(domain.RainRateName, "coordinates"))
	assert.Equal(t, "precipitation rate", h.GetAttribute(domain.RainRateName, "long_name"))
}

func TestWriteRainRate_RejectsMismatchedGrid(t *testing.T) {
	rate := domain.RainRateField{
		Name:  domain.RainRateName,
		Units: domain.RainRateUnits,
		Data:  sparse.ZerosDense(1, 2, 2),
		Times: domain.TimeCoordinate{time.Now()},
	}
	sel, err := domain.Select(rate, domain.Grid{Lat: sparse.ZerosDense(3, 3), Lon: sparse.ZerosDense(3, 3)})
	require.NoError(t, err)

	err = WriteRainRate(filepath.Join(t.TempDir(), "out.nc"), sel, OutputMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrShapeMismatch))
}

func TestOpen_StreamingRecordCount(t *testing.T) {
	path := writeFixture(t, SyntheticStorm(smallStorm()))

	// Mark numrecs as STREAMING (0xFFFFFFFF), as an unfinished writer leaves it.
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xFF, 0xFF, 0xFF, 0xFF}, 4)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ds, err := Open(path)
	require.NoError(t, err)
	defer ds.Close()

	assert.Equal(t, 4, ds.NumRecords())
	times, err := ds.Times()
	require.NoError(t, err)
	assert.Len(t, times, 4)
	rainc, err := ds.Accumulated(VarConvective)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 6, 8}, rainc.Data.Shape)
}

func TestParseMinutesSince(t *testing.T) {
	want := time.Date(2024, time.March, 12, 6, 0, 0, 0, time.UTC)
	for _, units := range []string{
		"minutes since 2024-03-12 06:00:00",
		"minutes since 2024-03-12_06:00:00",
	} {
		got, err := parseMinutesSince(units)
		require.NoError(t, err, units)
		assert.Equal(t, want, got)
	}

	_, err := parseMinutesSince("hours since 2024-03-12 06:00:00")
	require.Error(t, err)
}
