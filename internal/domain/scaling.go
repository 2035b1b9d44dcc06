package domain

import "time"

type ScalingAction string

const (
	ScaleUp   ScalingAction = "scale_up"
	ScaleDown ScalingAction = "scale_down"
	ScaleHold ScalingAction = "hold"
)

// ScalingDecision is the output of one auto-scaler evaluation. The scheduler
// only inspects its shape to decide whether to emit a notification.
type ScalingDecision struct {
	Action     ScalingAction `json:"action"`
	Reason     string        `json:"reason"`
	Confidence float64       `json:"confidence"`
}

// ScalingPrediction is a forward-looking capacity estimate. A nil prediction
// means the traffic trend does not warrant pre-emptive action.
type ScalingPrediction struct {
	ExpectedLoad      float64       `json:"expected_load"`
	RecommendedAction ScalingAction `json:"recommended_action"`
	Horizon           time.Duration `json:"horizon"`
	Confidence        float64       `json:"confidence"`
}

// LoadBalancerStatus summarizes backend instance health.
type LoadBalancerStatus struct {
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Total     int `json:"total"`
}
