package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrSweepInProgress is returned when a manual trigger overlaps a running sweep
	ErrSweepInProgress = errors.New("reconciliation sweep already in progress")
)
