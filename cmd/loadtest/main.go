package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dungeun/e-market-monitor/internal/config"
	"github.com/dungeun/e-market-monitor/internal/domain"
	"github.com/dungeun/e-market-monitor/internal/loadtest"
	"github.com/dungeun/e-market-monitor/internal/queue"
	"github.com/dungeun/e-market-monitor/internal/store"
	"github.com/dungeun/e-market-monitor/pkg/logger"
)

var (
	endpoint string
	users    int
	duration time.Duration
	rampUp   time.Duration
	enqueue  bool
)

var rootCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Run or enqueue a simulated load test",
	Long: `Runs a simulated load test against a named endpoint and prints the
aggregate report, or enqueues it for the monitor process to pick up.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&endpoint, "endpoint", "e", "", "endpoint name to test (required)")
	rootCmd.Flags().IntVarP(&users, "users", "u", 10, "concurrent simulated users")
	rootCmd.Flags().DurationVarP(&duration, "duration", "d", 30*time.Second, "test duration")
	rootCmd.Flags().DurationVarP(&rampUp, "ramp-up", "r", 0, "linear ramp-up window")
	rootCmd.Flags().BoolVar(&enqueue, "enqueue", false, "enqueue for the monitor process instead of running locally")
	rootCmd.MarkFlagRequired("endpoint")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logger.New(cfg.Environment, cfg.LogLevel)
	ctx := context.Background()

	if enqueue {
		client := queue.NewQueueClient(cfg.Redis.Address(), log)
		defer client.Close()
		return client.EnqueueLoadTest(ctx, queue.LoadTestPayload{
			Endpoint:        endpoint,
			ConcurrentUsers: users,
			DurationSeconds: int(duration.Seconds()),
			RampUpSeconds:   int(rampUp.Seconds()),
		})
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	kv := store.NewRedis(redisClient)
	defer kv.Close()

	harness := loadtest.NewHarness(kv, log, loadtest.NewSyntheticRequest(loadtest.SyntheticConfig{
		FailureRate: cfg.LoadTest.FailureRate,
		MinDelay:    cfg.LoadTest.MinDelay,
		MaxDelay:    cfg.LoadTest.MaxDelay,
	}), cfg.LoadTest.ResultRetention)

	result, err := harness.Run(ctx, domain.LoadTestConfig{
		Endpoint:        endpoint,
		ConcurrentUsers: users,
		Duration:        duration,
		RampUp:          rampUp,
	})
	if err != nil {
		return err
	}

	report, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	fmt.Println(string(report))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
