// Package loadtest runs simulated load against a named endpoint and reduces
// per-worker measurements into one aggregate report. It is a diagnostic tool
// for capacity planning, not a production request path.
package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dungeun/e-market-monitor/internal/domain"
	"github.com/dungeun/e-market-monitor/internal/stats"
	"github.com/dungeun/e-market-monitor/internal/store"
	"github.com/dungeun/e-market-monitor/pkg/logger"
)

const (
	resultKeyPrefix = "perf:loadtest:result:"
	indexKey        = "perf:loadtest:index"
	indexCap        = 100

	maxJitter = 100 * time.Millisecond
)

// RequestFunc performs one simulated request against an endpoint. The default
// is the synthetic strategy; callers wiring the harness to a real dependency
// inject their own.
type RequestFunc func(ctx context.Context, endpoint string) error

// workerResult is owned exclusively by its worker goroutine and merged after
// the join; nothing here is shared-mutated.
type workerResult struct {
	requests      int
	successful    int
	failed        int
	responseTimes []float64
	errors        map[string]int
}

type Harness struct {
	store     store.Store
	logger    *logger.Logger
	request   RequestFunc
	retention time.Duration
}

func NewHarness(s store.Store, log *logger.Logger, request RequestFunc, retention time.Duration) *Harness {
	return &Harness{
		store:     s,
		logger:    log,
		request:   request,
		retention: retention,
	}
}

// Run spawns cfg.ConcurrentUsers workers with a linear ramp, joins them all,
// and reduces their measurements. A failing simulated request only counts
// toward its worker's tally; it can never abort the run or its siblings.
func (h *Harness) Run(ctx context.Context, cfg domain.LoadTestConfig) (*domain.LoadTestResult, error) {
	if cfg.Endpoint == "" {
		return nil, domain.ErrInvalidEndpoint
	}
	if cfg.ConcurrentUsers < 0 {
		return nil, domain.ErrInvalidConcurrency
	}

	h.logger.Info(ctx, "load test starting", map[string]interface{}{
		"endpoint": cfg.Endpoint,
		"users":    cfg.ConcurrentUsers,
		"duration": cfg.Duration.String(),
		"ramp_up":  cfg.RampUp.String(),
	})

	started := time.Now()
	results := make([]*workerResult, cfg.ConcurrentUsers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.ConcurrentUsers; i++ {
		i := i
		g.Go(func() error {
			if cfg.RampUp > 0 {
				delay := time.Duration(int64(cfg.RampUp) * int64(i) / int64(cfg.ConcurrentUsers))
				select {
				case <-time.After(delay):
				case <-gctx.Done():
					results[i] = &workerResult{errors: map[string]int{}}
					return nil
				}
			}
			results[i] = h.runWorker(gctx, cfg, i)
			return nil
		})
	}
	g.Wait()

	result := h.reduce(cfg, results, time.Since(started))
	result.StartedAt = started

	h.persist(ctx, result)

	h.logger.Info(ctx, "load test finished", map[string]interface{}{
		"endpoint": cfg.Endpoint,
		"total":    result.TotalRequests,
		"failed":   result.FailedRequests,
		"rps":      result.RequestsPerSecond,
		"p95":      result.P95ResponseTime,
	})

	return result, nil
}

func (h *Harness) runWorker(ctx context.Context, cfg domain.LoadTestConfig, index int) *workerResult {
	wr := &workerResult{errors: map[string]int{}}
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(index)))

	// Deadline captured once; a slow in-flight request is allowed to finish
	// past it (soft stop, not a hard abort).
	deadline := time.Now().Add(cfg.Duration)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return wr
		default:
		}

		reqStart := time.Now()
		err := h.request(ctx, cfg.Endpoint)
		latency := domain.Round2(float64(time.Since(reqStart)) / float64(time.Millisecond))

		wr.requests++
		wr.responseTimes = append(wr.responseTimes, latency)
		if err != nil {
			wr.failed++
			wr.errors[classify(err)]++
		} else {
			wr.successful++
		}

		jitter := time.Duration(rng.Int63n(int64(maxJitter)))
		select {
		case <-time.After(jitter):
		case <-ctx.Done():
			return wr
		}
	}
	return wr
}

func (h *Harness) reduce(cfg domain.LoadTestConfig, results []*workerResult, elapsed time.Duration) *domain.LoadTestResult {
	var latencies []float64
	errorCounts := map[string]int{}

	result := &domain.LoadTestResult{
		Endpoint:        cfg.Endpoint,
		ConcurrentUsers: cfg.ConcurrentUsers,
		Duration:        domain.Round2(elapsed.Seconds()),
		Errors:          []domain.ErrorBreakdown{},
	}

	for _, wr := range results {
		if wr == nil {
			continue
		}
		result.TotalRequests += wr.requests
		result.SuccessfulRequests += wr.successful
		result.FailedRequests += wr.failed
		latencies = append(latencies, wr.responseTimes...)
		for typ, count := range wr.errors {
			errorCounts[typ] += count
		}
	}

	if result.TotalRequests == 0 {
		return result
	}

	sort.Float64s(latencies)
	var total float64
	for _, l := range latencies {
		total += l
	}
	result.AverageResponseTime = domain.Round2(total / float64(len(latencies)))
	result.P95ResponseTime = domain.Round2(stats.Percentile(latencies, 0.95))
	result.P99ResponseTime = domain.Round2(stats.Percentile(latencies, 0.99))
	if elapsed > 0 {
		result.RequestsPerSecond = domain.Round2(float64(result.TotalRequests) / elapsed.Seconds())
	}

	for typ, count := range errorCounts {
		result.Errors = append(result.Errors, domain.ErrorBreakdown{
			Type:       typ,
			Count:      count,
			Percentage: domain.Round2(float64(count) / float64(result.TotalRequests) * 100),
		})
	}
	sort.Slice(result.Errors, func(i, j int) bool {
		if result.Errors[i].Count != result.Errors[j].Count {
			return result.Errors[i].Count > result.Errors[j].Count
		}
		return result.Errors[i].Type < result.Errors[j].Type
	})

	return result
}

// persist stores the report with 30-day retention plus a bounded index of
// recent run ids. Best-effort: a store failure costs the report, not the run.
func (h *Harness) persist(ctx context.Context, result *domain.LoadTestResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		h.logger.Warn(ctx, "load test result marshal failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	id := uuid.NewString()
	if err := h.store.SetEx(ctx, resultKeyPrefix+id, string(payload), h.retention); err != nil {
		h.logger.Warn(ctx, "load test result persist failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	err = h.store.Pipelined(ctx, func(s store.Store) error {
		s.LPush(ctx, indexKey, id)
		s.LTrim(ctx, indexKey, 0, indexCap-1)
		return nil
	})
	if err != nil {
		h.logger.Warn(ctx, "load test index update failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func classify(err error) string {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Type
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "unknown"
}

// Result loads a persisted report by id.
func (h *Harness) Result(ctx context.Context, id string) (*domain.LoadTestResult, error) {
	raw, err := h.store.Get(ctx, resultKeyPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("load test result %s: %w", id, err)
	}
	var result domain.LoadTestResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("decode load test result %s: %w", id, err)
	}
	return &result, nil
}
