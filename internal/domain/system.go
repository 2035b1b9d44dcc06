package domain

import "time"

type ServerMetrics struct {
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
}

type ApplicationMetrics struct {
	ResponseTime float64 `json:"response_time"`
	ActiveUsers  int64   `json:"active_users"`
}

// SystemSnapshot combines host-level and application-level measurements taken
// by the system metrics collection job.
type SystemSnapshot struct {
	Server      ServerMetrics      `json:"server"`
	Application ApplicationMetrics `json:"application"`
	Timestamp   time.Time          `json:"timestamp"`
}
