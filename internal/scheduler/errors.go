package scheduler

import "errors"

var (
	// ErrNonFiniteTime is returned when a callback is scheduled at NaN or ±Inf.
	ErrNonFiniteTime = errors.New("scheduled time is not finite")

	// ErrNilCallback is returned when a nil callback is scheduled.
	ErrNilCallback = errors.New("callback is nil")
)
