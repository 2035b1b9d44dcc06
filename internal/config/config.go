package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

type MonitorConfig struct {
	// ResponseMetric is the well-known metric name the alert evaluator and
	// the system monitor read response-time statistics from.
	ResponseMetric string

	SampleWindow      int64
	TimelineRetention time.Duration
	BucketRetention   time.Duration
	ConcurrentTTL     time.Duration
	ActiveUserWindow  time.Duration

	ResponseWarnMS     float64
	ResponseCriticalMS float64
	CapacityWarn       int64
	CapacityCritical   int64
}

type SchedulerConfig struct {
	Tick      time.Duration
	DrainWait time.Duration
	DrainPoll time.Duration

	MetricsInterval      time.Duration
	ScalingInterval      time.Duration
	PredictiveInterval   time.Duration
	LoadBalancerInterval time.Duration
	AlertInterval        time.Duration
	ReportInterval       time.Duration
}

type LoadTestConfig struct {
	FailureRate     float64
	MinDelay        time.Duration
	MaxDelay        time.Duration
	ResultRetention time.Duration
}

type ScalerConfig struct {
	CPUHigh    float64
	CPULow     float64
	MemoryHigh float64
	MemoryLow  float64
}

type WorkerConfig struct {
	MaxConcurrentJobs int
	JobTimeout        time.Duration
}

type Config struct {
	Environment     string
	LogLevel        string
	Redis           RedisConfig
	Monitor         MonitorConfig
	Scheduler       SchedulerConfig
	LoadTest        LoadTestConfig
	Scaler          ScalerConfig
	Worker          WorkerConfig
	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
		},
		Monitor: MonitorConfig{
			ResponseMetric:     getEnv("MONITOR_RESPONSE_METRIC", "api_response_time"),
			SampleWindow:       int64(getIntEnv("MONITOR_SAMPLE_WINDOW", 1000)),
			TimelineRetention:  getDurationEnv("MONITOR_TIMELINE_RETENTION", time.Hour),
			BucketRetention:    getDurationEnv("MONITOR_BUCKET_RETENTION", 24*time.Hour),
			ConcurrentTTL:      getDurationEnv("MONITOR_CONCURRENT_TTL", 5*time.Minute),
			ActiveUserWindow:   getDurationEnv("MONITOR_ACTIVE_USER_WINDOW", 5*time.Minute),
			ResponseWarnMS:     getFloatEnv("MONITOR_RESPONSE_WARN_MS", 2000),
			ResponseCriticalMS: getFloatEnv("MONITOR_RESPONSE_CRITICAL_MS", 5000),
			CapacityWarn:       getInt64Env("MONITOR_CAPACITY_WARN", 8000),
			CapacityCritical:   getInt64Env("MONITOR_CAPACITY_CRITICAL", 9500),
		},
		Scheduler: SchedulerConfig{
			Tick:                 getDurationEnv("SCHEDULER_TICK", time.Second),
			DrainWait:            getDurationEnv("SCHEDULER_DRAIN_WAIT", 30*time.Second),
			DrainPoll:            getDurationEnv("SCHEDULER_DRAIN_POLL", time.Second),
			MetricsInterval:      getDurationEnv("SCHEDULER_METRICS_INTERVAL", 30*time.Second),
			ScalingInterval:      getDurationEnv("SCHEDULER_SCALING_INTERVAL", time.Minute),
			PredictiveInterval:   getDurationEnv("SCHEDULER_PREDICTIVE_INTERVAL", 5*time.Minute),
			LoadBalancerInterval: getDurationEnv("SCHEDULER_LB_INTERVAL", 30*time.Second),
			AlertInterval:        getDurationEnv("SCHEDULER_ALERT_INTERVAL", time.Minute),
			ReportInterval:       getDurationEnv("SCHEDULER_REPORT_INTERVAL", 5*time.Minute),
		},
		LoadTest: LoadTestConfig{
			FailureRate:     getFloatEnv("LOADTEST_FAILURE_RATE", 0.05),
			MinDelay:        getDurationEnv("LOADTEST_MIN_DELAY", 50*time.Millisecond),
			MaxDelay:        getDurationEnv("LOADTEST_MAX_DELAY", 250*time.Millisecond),
			ResultRetention: getDurationEnv("LOADTEST_RESULT_RETENTION", 30*24*time.Hour),
		},
		Scaler: ScalerConfig{
			CPUHigh:    getFloatEnv("SCALER_CPU_HIGH", 75),
			CPULow:     getFloatEnv("SCALER_CPU_LOW", 25),
			MemoryHigh: getFloatEnv("SCALER_MEMORY_HIGH", 80),
			MemoryLow:  getFloatEnv("SCALER_MEMORY_LOW", 30),
		},
		Worker: WorkerConfig{
			MaxConcurrentJobs: getIntEnv("WORKER_MAX_CONCURRENT_JOBS", 2),
			JobTimeout:        getDurationEnv("WORKER_JOB_TIMEOUT", 30*time.Minute),
		},
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Redis.Host == "" || c.Redis.Port == "" {
		return fmt.Errorf("redis configuration is incomplete")
	}
	if c.Monitor.SampleWindow <= 0 {
		return fmt.Errorf("sample window must be positive")
	}
	if c.Monitor.ResponseWarnMS > c.Monitor.ResponseCriticalMS {
		return fmt.Errorf("response warning threshold exceeds critical threshold")
	}
	if c.Monitor.CapacityWarn > c.Monitor.CapacityCritical {
		return fmt.Errorf("capacity warning threshold exceeds critical threshold")
	}
	if c.Scheduler.Tick <= 0 {
		return fmt.Errorf("scheduler tick must be positive")
	}
	if c.LoadTest.FailureRate < 0 || c.LoadTest.FailureRate > 1 {
		return fmt.Errorf("load test failure rate must be within [0, 1]")
	}
	if c.LoadTest.MinDelay > c.LoadTest.MaxDelay {
		return fmt.Errorf("load test min delay exceeds max delay")
	}
	return nil
}

func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
