package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dungeun/e-market-monitor/pkg/logger"
)

type QueueClient struct {
	client *asynq.Client
	logger *logger.Logger
}

func NewQueueClient(redisAddr string, logger *logger.Logger) *QueueClient {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	return &QueueClient{
		client: client,
		logger: logger,
	}
}

func (q *QueueClient) Close() error {
	return q.client.Close()
}

// EnqueueLoadTest queues a load test run on the low-priority queue so capacity
// experiments never starve the monitoring jobs.
func (q *QueueClient) EnqueueLoadTest(ctx context.Context, payload LoadTestPayload) error {
	task, err := NewLoadTestTask(payload)
	if err != nil {
		q.logger.Error(ctx, "failed to create load test task", map[string]interface{}{
			"error":    err.Error(),
			"endpoint": payload.Endpoint,
		})
		return fmt.Errorf("failed to create task: %w", err)
	}

	timeout := time.Duration(payload.DurationSeconds+payload.RampUpSeconds)*time.Second + 5*time.Minute
	opts := []asynq.Option{
		asynq.MaxRetry(1),
		asynq.Timeout(timeout),
		asynq.Queue("low"),
	}

	info, err := q.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		q.logger.Error(ctx, "failed to enqueue load test task", map[string]interface{}{
			"error":    err.Error(),
			"endpoint": payload.Endpoint,
		})
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.Info(ctx, "load test task enqueued", map[string]interface{}{
		"endpoint": payload.Endpoint,
		"users":    payload.ConcurrentUsers,
		"task_id":  info.ID,
		"queue":    info.Queue,
	})

	return nil
}
