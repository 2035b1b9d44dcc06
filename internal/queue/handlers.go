package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dungeun/e-market-monitor/internal/domain"
	"github.com/dungeun/e-market-monitor/internal/loadtest"
	"github.com/dungeun/e-market-monitor/pkg/logger"
)

type LoadTestHandler struct {
	harness *loadtest.Harness
	logger  *logger.Logger
}

func NewLoadTestHandler(harness *loadtest.Harness, logger *logger.Logger) *LoadTestHandler {
	return &LoadTestHandler{
		harness: harness,
		logger:  logger,
	}
}

func (h *LoadTestHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLoadTestPayload(task)
	if err != nil {
		h.logger.Error(ctx, "failed to parse load test payload", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("parse payload: %w", err)
	}

	h.logger.Info(ctx, "running queued load test", map[string]interface{}{
		"endpoint": payload.Endpoint,
		"users":    payload.ConcurrentUsers,
		"duration": payload.DurationSeconds,
		"task_id":  task.ResultWriter().TaskID(),
	})

	result, err := h.harness.Run(ctx, domain.LoadTestConfig{
		Endpoint:        payload.Endpoint,
		ConcurrentUsers: payload.ConcurrentUsers,
		Duration:        time.Duration(payload.DurationSeconds) * time.Second,
		RampUp:          time.Duration(payload.RampUpSeconds) * time.Second,
	})
	if err != nil {
		h.logger.Error(ctx, "queued load test failed", map[string]interface{}{
			"endpoint": payload.Endpoint,
			"error":    err.Error(),
			"task_id":  task.ResultWriter().TaskID(),
		})
		return fmt.Errorf("run load test: %w", err)
	}

	h.logger.Info(ctx, "queued load test completed", map[string]interface{}{
		"endpoint": payload.Endpoint,
		"total":    result.TotalRequests,
		"failed":   result.FailedRequests,
		"rps":      result.RequestsPerSecond,
		"task_id":  task.ResultWriter().TaskID(),
	})

	return nil
}
