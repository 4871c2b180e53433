package domain

import "errors"

var (
	// ErrShapeMismatch reports accumulation fields whose shapes differ or are not (time, y, x).
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrDimensionMismatch reports a time coordinate whose length differs from the fields' time dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrTooFewTimeSteps reports input with fewer than two time steps, from which no rate can be derived.
	ErrTooFewTimeSteps = errors.New("too few time steps")

	// ErrNonIncreasingTime reports a time coordinate with a zero or negative interval.
	ErrNonIncreasingTime = errors.New("time coordinate not strictly increasing")
)
