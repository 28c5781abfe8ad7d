package scheduler

import "errors"

var (
	// ErrInvalidSweepConfig is returned when the sweeper is enabled with
	// an unusable configuration
	ErrInvalidSweepConfig = errors.New("invalid sweep configuration")
)
