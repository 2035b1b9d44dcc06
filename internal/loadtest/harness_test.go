package loadtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeun/e-market-monitor/internal/domain"
	"github.com/dungeun/e-market-monitor/internal/store"
	"github.com/dungeun/e-market-monitor/pkg/logger"
)

func instantRequest(err error) RequestFunc {
	return func(ctx context.Context, endpoint string) error {
		return err
	}
}

func newTestHarness(request RequestFunc) (*Harness, *store.Memory) {
	mem := store.NewMemory()
	return NewHarness(mem, logger.Nop(), request, 30*24*time.Hour), mem
}

func TestRunRequiresEndpoint(t *testing.T) {
	h, _ := newTestHarness(instantRequest(nil))
	_, err := h.Run(context.Background(), domain.LoadTestConfig{ConcurrentUsers: 1, Duration: time.Second})
	assert.ErrorIs(t, err, domain.ErrInvalidEndpoint)
}

func TestRunZeroUsers(t *testing.T) {
	h, _ := newTestHarness(instantRequest(nil))

	result, err := h.Run(context.Background(), domain.LoadTestConfig{
		Endpoint:        "checkout",
		ConcurrentUsers: 0,
		Duration:        time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalRequests)
	assert.Equal(t, 0.0, result.RequestsPerSecond)
	assert.Equal(t, 0.0, result.AverageResponseTime)
	assert.Empty(t, result.Errors)
}

func TestRunZeroDuration(t *testing.T) {
	h, _ := newTestHarness(instantRequest(nil))

	result, err := h.Run(context.Background(), domain.LoadTestConfig{
		Endpoint:        "checkout",
		ConcurrentUsers: 3,
		Duration:        0,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalRequests, "expired deadline means zero iterations")
}

func TestRunCountsAddUp(t *testing.T) {
	h, _ := newTestHarness(instantRequest(nil))

	result, err := h.Run(context.Background(), domain.LoadTestConfig{
		Endpoint:        "checkout",
		ConcurrentUsers: 5,
		Duration:        300 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Greater(t, result.TotalRequests, 0)
	assert.Equal(t, result.TotalRequests, result.SuccessfulRequests+result.FailedRequests)
	assert.Equal(t, 0, result.FailedRequests)
	assert.Greater(t, result.RequestsPerSecond, 0.0)
}

func TestRunErrorBreakdown(t *testing.T) {
	h, _ := newTestHarness(instantRequest(&RequestError{Type: "server_error"}))

	result, err := h.Run(context.Background(), domain.LoadTestConfig{
		Endpoint:        "checkout",
		ConcurrentUsers: 3,
		Duration:        200 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Equal(t, result.TotalRequests, result.FailedRequests)
	assert.Equal(t, 0, result.SuccessfulRequests)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "server_error", result.Errors[0].Type)
	assert.Equal(t, result.FailedRequests, result.Errors[0].Count)
	expected := domain.Round2(float64(result.Errors[0].Count) / float64(result.TotalRequests) * 100)
	assert.InDelta(t, expected, result.Errors[0].Percentage, 0.01)
	assert.InDelta(t, 100, result.Errors[0].Percentage, 0.01)
}

func TestRunOneWorkerFailureDoesNotAbortSiblings(t *testing.T) {
	calls := 0
	request := func(ctx context.Context, endpoint string) error {
		calls++
		if calls%2 == 0 {
			return &RequestError{Type: "timeout"}
		}
		return nil
	}
	h, _ := newTestHarness(request)

	result, err := h.Run(context.Background(), domain.LoadTestConfig{
		Endpoint:        "checkout",
		ConcurrentUsers: 1,
		Duration:        200 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, result.TotalRequests, result.SuccessfulRequests+result.FailedRequests)
	assert.Greater(t, result.SuccessfulRequests, 0)
}

func TestRunPersistsResult(t *testing.T) {
	h, mem := newTestHarness(instantRequest(nil))
	ctx := context.Background()

	_, err := h.Run(ctx, domain.LoadTestConfig{
		Endpoint:        "checkout",
		ConcurrentUsers: 1,
		Duration:        100 * time.Millisecond,
	})
	require.NoError(t, err)

	ids, err := mem.LRange(ctx, indexKey, 0, -1)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	loaded, err := h.Result(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "checkout", loaded.Endpoint)
	assert.Greater(t, loaded.TotalRequests, 0)
}

func TestRunRampUpDelaysLateWorkers(t *testing.T) {
	h, _ := newTestHarness(instantRequest(nil))

	started := time.Now()
	result, err := h.Run(context.Background(), domain.LoadTestConfig{
		Endpoint:        "checkout",
		ConcurrentUsers: 4,
		Duration:        100 * time.Millisecond,
		RampUp:          200 * time.Millisecond,
	})
	require.NoError(t, err)

	// Last worker starts at 3/4 of the ramp window and then runs its full
	// duration, so the wall clock must exceed ramp*3/4 + duration.
	assert.GreaterOrEqual(t, time.Since(started), 250*time.Millisecond)
	assert.Greater(t, result.TotalRequests, 0)
}

func TestSyntheticRequestTaxonomy(t *testing.T) {
	request := NewSyntheticRequest(SyntheticConfig{
		FailureRate: 1.0,
		MinDelay:    0,
		MaxDelay:    time.Millisecond,
	})

	known := map[string]bool{
		"timeout": true, "connection_error": true, "server_error": true, "rate_limited": true,
	}
	for i := 0; i < 20; i++ {
		err := request(context.Background(), "checkout")
		require.Error(t, err)
		assert.True(t, known[classify(err)], "unexpected error type %q", classify(err))
	}
}

func TestSyntheticRequestNeverFailsAtZeroRate(t *testing.T) {
	request := NewSyntheticRequest(SyntheticConfig{
		FailureRate: 0,
		MinDelay:    0,
		MaxDelay:    time.Millisecond,
	})
	for i := 0; i < 20; i++ {
		assert.NoError(t, request(context.Background(), "checkout"))
	}
}

func TestClassifyUnknownError(t *testing.T) {
	assert.Equal(t, "unknown", classify(assert.AnError))
	assert.Equal(t, "timeout", classify(context.DeadlineExceeded))
}
