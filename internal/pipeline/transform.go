package pipeline

import (
	"fmt"

	"github.com/couchcryptid/storm-data-rainrate/internal/domain"
)

// Inputs are the fields read from one dataset.
type Inputs struct {
	Convective    domain.AccumulatedField
	NonConvective domain.AccumulatedField
	Times         domain.TimeCoordinate
	Grid          domain.Grid
}

// ReadInputs reads both accumulation fields, the time coordinate and the grid.
func ReadInputs(ds Dataset) (Inputs, error) {
	var (
		in  Inputs
		err error
	)
	if in.Convective, err = ds.Accumulated(domain.ConvectiveName); err != nil {
		return Inputs{}, fmt.Errorf("read %s: %w", domain.ConvectiveName, err)
	}
	if in.NonConvective, err = ds.Accumulated(domain.NonConvectiveName); err != nil {
		return Inputs{}, fmt.Errorf("read %s: %w", domain.NonConvectiveName, err)
	}
	if in.Times, err = ds.Times(); err != nil {
		return Inputs{}, fmt.Errorf("read times: %w", err)
	}
	if in.Grid, err = ds.Grid(); err != nil {
		return Inputs{}, fmt.Errorf("read grid: %w", err)
	}
	return in, nil
}

// Derive computes the rain rate and splits it into the rendering and
// persistence views.
func Derive(in Inputs) (domain.Selection, error) {
	rate, err := domain.DeriveRate(in.Convective, in.NonConvective, in.Times)
	if err != nil {
		return domain.Selection{}, fmt.Errorf("derive rain rate: %w", err)
	}
	sel, err := domain.Select(rate, in.Grid)
	if err != nil {
		return domain.Selection{}, fmt.Errorf("select latest slice: %w", err)
	}
	return sel, nil
}
