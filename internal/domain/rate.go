package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/ctessum/sparse"
)

// DeriveRate converts two accumulated precipitation fields sharing a time
// coordinate into a rain rate field in mm/h.
//
// The fields are summed, differenced along time and divided by the elapsed
// hours of each interval. Both fields must be (time, y, x) with identical
// shapes, times must have one entry per time step and be strictly increasing.
// NaN inputs propagate to the affected cells.
func DeriveRate(convective, nonConvective AccumulatedField, times TimeCoordinate) (RainRateField, error) {
	total, err := sumFields(convective, nonConvective)
	if err != nil {
		return RainRateField{}, err
	}

	n := total.Shape[0]
	if len(times) != n {
		return RainRateField{}, fmt.Errorf("%w: %d timestamps for %d time steps", ErrDimensionMismatch, len(times), n)
	}
	if n < 2 {
		return RainRateField{}, fmt.Errorf("%w: got %d, need at least 2", ErrTooFewTimeSteps, n)
	}

	hours, err := intervalHours(times)
	if err != nil {
		return RainRateField{}, err
	}

	ny, nx := total.Shape[1], total.Shape[2]
	cells := ny * nx
	rate := sparse.ZerosDense(n-1, ny, nx)
	for t := 0; t < n-1; t++ {
		prev := total.Elements[t*cells : (t+1)*cells]
		next := total.Elements[(t+1)*cells : (t+2)*cells]
		out := rate.Elements[t*cells : (t+1)*cells]
		dt := hours[t]
		for i := range out {
			out[i] = (next[i] - prev[i]) / dt
		}
	}

	return RainRateField{
		Name:          RainRateName,
		Units:         RainRateUnits,
		Data:          rate,
		Times:         slices.Clone(times[1:]),
		IntervalHours: hours,
	}, nil
}

// sumFields adds two accumulation fields elementwise after checking that both
// are three-dimensional with identical shapes.
func sumFields(a, b AccumulatedField) (*sparse.DenseArray, error) {
	if a.Data == nil || b.Data == nil {
		return nil, fmt.Errorf("%w: missing field data", ErrShapeMismatch)
	}
	if len(a.Data.Shape) != 3 || len(b.Data.Shape) != 3 {
		return nil, fmt.Errorf("%w: %s%v and %s%v must be (time, y, x)",
			ErrShapeMismatch, a.Name, a.Data.Shape, b.Name, b.Data.Shape)
	}
	if !slices.Equal(a.Data.Shape, b.Data.Shape) {
		return nil, fmt.Errorf("%w: %s%v vs %s%v", ErrShapeMismatch, a.Name, a.Data.Shape, b.Name, b.Data.Shape)
	}

	total := sparse.ZerosDense(a.Data.Shape...)
	for i, v := range a.Data.Elements {
		total.Elements[i] = v + b.Data.Elements[i]
	}
	return total, nil
}

// intervalHours returns t[i+1]-t[i] in fractional hours for each consecutive pair.
func intervalHours(times TimeCoordinate) ([]float64, error) {
	hours := make([]float64, len(times)-1)
	for i := range hours {
		d := times[i+1].Sub(times[i])
		if d <= 0 {
			return nil, fmt.Errorf("%w: interval %d from %s to %s",
				ErrNonIncreasingTime, i, times[i].Format(time.RFC3339), times[i+1].Format(time.RFC3339))
		}
		hours[i] = d.Hours()
	}
	return hours, nil
}
