package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/dungeun/e-market-monitor/internal/alert"
	"github.com/dungeun/e-market-monitor/internal/config"
	"github.com/dungeun/e-market-monitor/internal/domain"
	"github.com/dungeun/e-market-monitor/internal/loadtest"
	"github.com/dungeun/e-market-monitor/internal/notify"
	"github.com/dungeun/e-market-monitor/internal/queue"
	"github.com/dungeun/e-market-monitor/internal/scaler"
	"github.com/dungeun/e-market-monitor/internal/scheduler"
	"github.com/dungeun/e-market-monitor/internal/stats"
	"github.com/dungeun/e-market-monitor/internal/store"
	"github.com/dungeun/e-market-monitor/internal/tracker"
	"github.com/dungeun/e-market-monitor/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment, cfg.LogLevel)
	ctx := context.Background()

	log.Info(ctx, "Starting performance monitor", map[string]interface{}{
		"environment": cfg.Environment,
		"tick":        cfg.Scheduler.Tick.String(),
	})

	redisClient, err := initRedis(cfg)
	if err != nil {
		log.Fatal(ctx, "Failed to initialize Redis", err, nil)
	}
	kv := store.NewRedis(redisClient)
	log.Info(ctx, "Redis connection established", nil)

	// A panic that escapes everything below takes the shutdown path instead
	// of leaving the process in an undefined state.
	defer func() {
		if r := recover(); r != nil {
			log.Error(ctx, "unhandled panic, shutting down", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
			kv.Close()
			os.Exit(1)
		}
	}()

	perfTracker := tracker.New(kv, log, cfg.Monitor)
	activeUsers := tracker.NewActiveUsers(kv, cfg.Monitor.ActiveUserWindow)
	statsEngine := stats.NewEngine(kv, cfg.Monitor.SampleWindow)
	notifier := notify.NewNotifier(kv)
	evaluator := alert.NewEvaluator(statsEngine, activeUsers, cfg.Monitor)
	systemMonitor := scaler.NewMonitor(kv, statsEngine, activeUsers, cfg.Monitor)
	autoScaler := scaler.NewThresholdScaler(systemMonitor, statsEngine, kv, cfg.Scaler, cfg.Monitor.ResponseMetric)

	harness := loadtest.NewHarness(kv, log, loadtest.NewSyntheticRequest(loadtest.SyntheticConfig{
		FailureRate: cfg.LoadTest.FailureRate,
		MinDelay:    cfg.LoadTest.MinDelay,
		MaxDelay:    cfg.LoadTest.MaxDelay,
	}), cfg.LoadTest.ResultRetention)

	sched, err := scheduler.New(cfg.Scheduler, kv, notifier, log, monitoringJobs(cfg, log, perfTracker, systemMonitor, autoScaler, evaluator, notifier, statsEngine)...)
	if err != nil {
		log.Fatal(ctx, "Failed to build scheduler", err, nil)
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.Redis.Address()},
		asynq.Config{
			Concurrency: cfg.Worker.MaxConcurrentJobs,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error(ctx, "task execution failed", map[string]interface{}{
					"task_type": task.Type(),
					"error":     err.Error(),
				})
			}),
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeLoadTest, queue.NewLoadTestHandler(harness, log).ProcessTask)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Run(mux); err != nil {
			log.Error(ctx, "task server failed", map[string]interface{}{
				"error": err.Error(),
			})
			// Take the same shutdown path a signal would.
			quit <- syscall.SIGTERM
		}
	}()
	go sched.Run(runCtx)

	<-quit

	log.Info(ctx, "Shutting down monitor...", nil)

	if err := sched.Shutdown(ctx); err != nil {
		log.Warn(ctx, "scheduler shutdown incomplete", map[string]interface{}{
			"error": err.Error(),
		})
	}
	srv.Shutdown()
	cancel()

	if err := kv.Close(); err != nil {
		log.Warn(ctx, "store close failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info(ctx, "Monitor exited gracefully", nil)
}

// monitoringJobs is the fixed job set: collection and scaling evaluation are
// the critical ones, the rest degrade to missing telemetry when they fail.
func monitoringJobs(
	cfg *config.Config,
	log *logger.Logger,
	perfTracker *tracker.Tracker,
	systemMonitor *scaler.Monitor,
	autoScaler scaler.AutoScaler,
	evaluator *alert.Evaluator,
	notifier *notify.Notifier,
	statsEngine *stats.Engine,
) []scheduler.Job {
	return []scheduler.Job{
		{
			Name:     "system_metrics",
			Interval: cfg.Scheduler.MetricsInterval,
			Critical: true,
			Task: func(ctx context.Context) error {
				return perfTracker.Measure(ctx, "system_metrics_collection", nil, systemMonitor.Record)
			},
		},
		{
			Name:     "scaling_evaluation",
			Interval: cfg.Scheduler.ScalingInterval,
			Critical: true,
			Task: func(ctx context.Context) error {
				decision, err := autoScaler.EvaluateScaling(ctx)
				if err != nil {
					return err
				}
				if decision.Action != domain.ScaleHold {
					log.Info(ctx, "scaling decision", map[string]interface{}{
						"action":     decision.Action,
						"reason":     decision.Reason,
						"confidence": decision.Confidence,
					})
				}
				return notifier.Scaling(ctx, decision)
			},
		},
		{
			Name:     "predictive_scaling",
			Interval: cfg.Scheduler.PredictiveInterval,
			Task: func(ctx context.Context) error {
				prediction, err := autoScaler.PredictiveScaling(ctx)
				if err != nil {
					return err
				}
				if prediction != nil {
					log.Info(ctx, "predictive scaling recommendation", map[string]interface{}{
						"expected_load": prediction.ExpectedLoad,
						"action":        prediction.RecommendedAction,
						"confidence":    prediction.Confidence,
					})
				}
				return notifier.Prediction(ctx, prediction)
			},
		},
		{
			Name:     "load_balancer",
			Interval: cfg.Scheduler.LoadBalancerInterval,
			Task: func(ctx context.Context) error {
				status, err := autoScaler.ManageLoadBalancer(ctx)
				if err != nil {
					return err
				}
				if status.Unhealthy > 0 {
					log.Warn(ctx, "unhealthy load balancer instances", map[string]interface{}{
						"healthy":   status.Healthy,
						"unhealthy": status.Unhealthy,
						"total":     status.Total,
					})
				}
				return nil
			},
		},
		{
			Name:     "alert_check",
			Interval: cfg.Scheduler.AlertInterval,
			Task: func(ctx context.Context) error {
				alerts, err := evaluator.Check(ctx)
				if err != nil {
					return err
				}
				for _, a := range alerts {
					log.Warn(ctx, "alert raised", map[string]interface{}{
						"type":     a.Type,
						"severity": a.Severity,
						"metric":   a.Metric,
						"value":    a.Value,
						"message":  a.Message,
					})
					if err := notifier.Alert(ctx, a); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Name:     "stats_report",
			Interval: cfg.Scheduler.ReportInterval,
			Task: func(ctx context.Context) error {
				st, err := statsEngine.Stats(ctx, cfg.Monitor.ResponseMetric)
				if err != nil {
					return err
				}
				if st == nil {
					log.Debug(ctx, "no response time samples yet", nil)
					return nil
				}
				log.Info(ctx, "response time stats", map[string]interface{}{
					"metric": cfg.Monitor.ResponseMetric,
					"count":  st.Count,
					"avg":    st.Avg,
					"p95":    st.P95,
					"p99":    st.P99,
				})
				return nil
			},
		},
	}
}

func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Address(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect to Redis: %w", err)
	}

	return client, nil
}
