package domain

import "time"

// LoadTestConfig describes one simulated load run.
type LoadTestConfig struct {
	Endpoint        string        `json:"endpoint"`
	ConcurrentUsers int           `json:"concurrent_users"`
	Duration        time.Duration `json:"duration"`
	RampUp          time.Duration `json:"ramp_up"`
}

// ErrorBreakdown is one error-type entry of a load test report. Percentage is
// relative to the run's total request count.
type ErrorBreakdown struct {
	Type       string  `json:"type"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// LoadTestResult is the aggregate report of one load test run. Computed once
// after all workers have joined, persisted with 30-day retention, never
// mutated afterwards.
type LoadTestResult struct {
	Endpoint            string           `json:"endpoint"`
	ConcurrentUsers     int              `json:"concurrent_users"`
	Duration            float64          `json:"duration"`
	TotalRequests       int              `json:"total_requests"`
	SuccessfulRequests  int              `json:"successful_requests"`
	FailedRequests      int              `json:"failed_requests"`
	AverageResponseTime float64          `json:"average_response_time"`
	P95ResponseTime     float64          `json:"p95_response_time"`
	P99ResponseTime     float64          `json:"p99_response_time"`
	RequestsPerSecond   float64          `json:"requests_per_second"`
	Errors              []ErrorBreakdown `json:"errors"`
	StartedAt           time.Time        `json:"started_at"`
}
