package domain

import "errors"

var (
	ErrInvalidEndpoint    = errors.New("load test endpoint is required")
	ErrInvalidConcurrency = errors.New("concurrent users must not be negative")
	ErrDuplicateJob       = errors.New("duplicate job name")
	ErrNoJobs             = errors.New("scheduler requires at least one job")
	ErrDrainTimeout       = errors.New("shutdown drain timed out with jobs still running")
)
