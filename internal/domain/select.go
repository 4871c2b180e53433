package domain

import (
	"fmt"
	"time"

	"github.com/ctessum/sparse"
)

// LatestSlice is the 2-D rate field at the most recent derivable step.
type LatestSlice struct {
	Data      *sparse.DenseArray
	ValidTime time.Time
	Index     int
}

// Selection pairs the views handed to the rendering and persistence boundaries.
type Selection struct {
	Latest LatestSlice
	Grid   Grid
	Full   RainRateField
}

// Select builds the rendering view (latest slice plus grid) and passes the full
// rate field through unchanged for persistence. It relies on DeriveRate's
// postconditions and does not revalidate shapes.
func Select(rate RainRateField, grid Grid) (Selection, error) {
	latest, err := LatestSliceOf(rate)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Latest: latest, Grid: grid, Full: rate}, nil
}

// LatestSliceOf copies out the highest time index of the rate field.
func LatestSliceOf(rate RainRateField) (LatestSlice, error) {
	steps := rate.Steps()
	if steps == 0 {
		return LatestSlice{}, fmt.Errorf("%w: rate field is empty", ErrTooFewTimeSteps)
	}

	ny, nx := rate.Data.Shape[1], rate.Data.Shape[2]
	cells := ny * nx
	last := steps - 1

	out := sparse.ZerosDense(ny, nx)
	copy(out.Elements, rate.Data.Elements[last*cells:(last+1)*cells])

	var valid time.Time
	if last < len(rate.Times) {
		valid = rate.Times[last]
	}
	return LatestSlice{Data: out, ValidTime: valid, Index: last}, nil
}
