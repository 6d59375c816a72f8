package scheduler

import (
	"context"
	"errors"
	"time"
)

// CycleFunc performs one iteration of a periodic loop.
type CycleFunc func(ctx context.Context) error

// Job is a named periodic loop.
type Job struct {
	Name   string
	Period time.Duration
	// Timeout bounds a single cycle. Zero means the period.
	Timeout time.Duration
	// Immediate runs a first cycle as soon as the job starts.
	Immediate bool
	Run       CycleFunc
}

func (j Job) validate() error {
	switch {
	case j.Name == "":
		return errors.New("job name is required")
	case j.Period <= 0:
		return errors.New("job period must be positive")
	case j.Run == nil:
		return errors.New("job cycle function is required")
	}
	return nil
}

func (j Job) timeout() time.Duration {
	if j.Timeout > 0 {
		return j.Timeout
	}
	return j.Period
}
