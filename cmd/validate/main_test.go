package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-rainrate/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-data-rainrate/internal/adapter/render"
)

func writeProduct(t *testing.T, scale float64) (input, output, img string) {
	t.Helper()
	dir := t.TempDir()
	input = filepath.Join(dir, "wrfout_d01_2024-03-12_00:00:00")
	o := netcdf.DefaultStormOptions()
	o.Steps, o.Ny, o.Nx = 3, 5, 6
	require.NoError(t, netcdf.WriteWRF(input, netcdf.SyntheticStorm(o)))

	sel, err := deriveExpected(input)
	require.NoError(t, err)
	for i := range sel.Full.Data.Elements {
		sel.Full.Data.Elements[i] *= scale
	}

	output = filepath.Join(dir, "rain_rate_wrf.nc")
	require.NoError(t, netcdf.WriteRainRate(output, sel, netcdf.OutputMeta{Source: "wrfout_d01", RunID: "run-1"}))

	img = filepath.Join(dir, "rain_rate_map.png")
	require.NoError(t, render.New(render.Options{DPI: 20}).Render(img, sel.Latest, sel.Grid))
	return input, output, img
}

func TestRun_Passes(t *testing.T) {
	input, output, img := writeProduct(t, 1)

	var buf bytes.Buffer
	code := run(&buf, input, output, img, 1e-4)
	assert.Equal(t, 0, code, buf.String())
	assert.Contains(t, buf.String(), "All validations passed.")
}

func TestRun_AcceptsValuesWithinTolerance(t *testing.T) {
	input, output, _ := writeProduct(t, 1+1e-6)

	var buf bytes.Buffer
	code := run(&buf, input, output, "", 1e-4)
	assert.Equal(t, 0, code, buf.String())
}

func TestRun_DetectsWrongValues(t *testing.T) {
	input, output, _ := writeProduct(t, 2)

	var buf bytes.Buffer
	code := run(&buf, input, output, "", 1e-4)
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "Phase 2: Rate values")
	assert.Contains(t, buf.String(), "Validation FAILED.")
}

func TestRun_MissingOutput(t *testing.T) {
	input, _, _ := writeProduct(t, 1)

	var buf bytes.Buffer
	code := run(&buf, input, filepath.Join(t.TempDir(), "absent.nc"), "", 1e-4)
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "FATAL")
}

func TestRun_BadImage(t *testing.T) {
	input, output, _ := writeProduct(t, 1)

	var buf bytes.Buffer
	code := run(&buf, input, output, output, 1e-4)
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "Phase 3: Map image")
}
