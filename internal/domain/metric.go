package domain

import "math"

// PerformanceMetric is a single completed timed measurement. Immutable once
// created; persisted into the per-name timeline, the bounded recency list and
// the per-minute aggregate buckets.
type PerformanceMetric struct {
	Name      string                 `json:"name"`
	Duration  float64                `json:"duration"`
	Timestamp int64                  `json:"timestamp"`
	Tags      map[string]string      `json:"tags,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// PerformanceStats is a snapshot computed over the bounded recency window of a
// single metric name. Percentiles use nearest-rank indexing on the sorted
// sample set.
type PerformanceStats struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// MinuteBucket is a per-minute aggregate of one metric name, kept for 24 hours
// to serve time-bucketed dashboards without replaying the raw timeline.
type MinuteBucket struct {
	Minute        int64   `json:"minute"`
	Count         int64   `json:"count"`
	TotalDuration float64 `json:"total_duration"`
	Avg           float64 `json:"avg"`
}

// Round2 rounds to two decimal places, the precision every stored duration and
// derived statistic is normalized to.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
