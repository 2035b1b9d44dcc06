package domain

import "time"

type JobOutcome string

const (
	JobSuccess JobOutcome = "success"
	JobFailed  JobOutcome = "failed"
)

// JobStatus is the per-job status record written after every invocation.
type JobStatus struct {
	Name       string     `json:"name"`
	Status     JobOutcome `json:"status"`
	DurationMS float64    `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}
