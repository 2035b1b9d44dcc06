package domain

type AlertType string

const (
	AlertPerformance AlertType = "performance"
	AlertCapacity    AlertType = "capacity"
	AlertJobFailure  AlertType = "job_failure"
)

type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is an ephemeral threshold breach. The evaluator produces it and hands
// it to the notification sink; the core keeps only a bounded history list.
type Alert struct {
	Type     AlertType     `json:"type"`
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`
	Metric   string        `json:"metric"`
	Value    float64       `json:"value"`
}
