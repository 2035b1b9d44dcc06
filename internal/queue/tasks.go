package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	TypeLoadTest = "loadtest:run"
)

type LoadTestPayload struct {
	Endpoint        string `json:"endpoint"`
	ConcurrentUsers int    `json:"concurrent_users"`
	DurationSeconds int    `json:"duration_seconds"`
	RampUpSeconds   int    `json:"ramp_up_seconds"`
}

func NewLoadTestTask(payload LoadTestPayload) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal load test payload: %w", err)
	}
	return asynq.NewTask(TypeLoadTest, payloadBytes), nil
}

func ParseLoadTestPayload(task *asynq.Task) (*LoadTestPayload, error) {
	var payload LoadTestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal load test payload: %w", err)
	}
	return &payload, nil
}
