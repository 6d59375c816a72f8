package fleet

import "errors"

var (
	// ErrNotFound is returned when a car or request id is unknown.
	ErrNotFound = errors.New("not found")
	// ErrCarUnavailable is returned when a car cannot take new work.
	ErrCarUnavailable = errors.New("car unavailable")
	// ErrCarBusy is returned when a car is removed during a stepwise move.
	ErrCarBusy = errors.New("car has a movement in flight")
)
