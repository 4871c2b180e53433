package domain

import (
	"time"

	"github.com/ctessum/sparse"
)

// WRF accumulation variables summed into the total.
const (
	ConvectiveName    = "RAINC"
	NonConvectiveName = "RAINNC"
)

const (
	// RainRateName is the variable name of the derived field.
	RainRateName = "rain_rate"
	// RainRateUnits is the unit label of the derived field.
	RainRateUnits = "mm/h"
)

// AccumulatedField is a running precipitation total indexed (time, y, x), in mm.
type AccumulatedField struct {
	Name  string
	Units string
	Data  *sparse.DenseArray
}

// TimeCoordinate labels each index of a field's time dimension.
type TimeCoordinate []time.Time

// RainRateField is the precipitation rate derived from an accumulated field,
// indexed (time, y, x) with one step fewer than its source.
type RainRateField struct {
	Name  string
	Units string
	Data  *sparse.DenseArray

	// Times holds the end time of each interval, i.e. source times 1..N-1.
	Times TimeCoordinate

	// IntervalHours holds the length of each interval in fractional hours.
	IntervalHours []float64
}

// Steps returns the length of the time dimension.
func (f RainRateField) Steps() int {
	if f.Data == nil || len(f.Data.Shape) == 0 {
		return 0
	}
	return f.Data.Shape[0]
}

// Grid holds the 2-D cell-centre coordinates of the model domain, indexed (y, x).
type Grid struct {
	Lat *sparse.DenseArray
	Lon *sparse.DenseArray
}

// Ny returns the number of rows (south_north).
func (g Grid) Ny() int { return g.Lat.Shape[0] }

// Nx returns the number of columns (west_east).
func (g Grid) Nx() int { return g.Lat.Shape[1] }
