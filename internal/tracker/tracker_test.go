package tracker

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeun/e-market-monitor/internal/config"
	"github.com/dungeun/e-market-monitor/internal/store"
	"github.com/dungeun/e-market-monitor/pkg/logger"
)

func testConfig() config.MonitorConfig {
	return config.MonitorConfig{
		ResponseMetric:    "api_response_time",
		SampleWindow:      1000,
		TimelineRetention: time.Hour,
		BucketRetention:   24 * time.Hour,
		ConcurrentTTL:     5 * time.Minute,
		ActiveUserWindow:  5 * time.Minute,
	}
}

func newTestTracker() (*Tracker, *store.Memory) {
	mem := store.NewMemory()
	return New(mem, logger.Nop(), testConfig()), mem
}

func TestStartEndRoundtrip(t *testing.T) {
	tr, mem := newTestTracker()
	ctx := context.Background()

	id := tr.StartMetric(ctx, "checkout", map[string]string{"region": "eu"})
	time.Sleep(5 * time.Millisecond)
	metric := tr.EndMetric(ctx, id, map[string]string{"tier": "gold"}, nil)

	require.NotNil(t, metric)
	assert.Equal(t, "checkout", metric.Name)
	assert.GreaterOrEqual(t, metric.Duration, 5.0)
	assert.Equal(t, "eu", metric.Tags["region"])
	assert.Equal(t, "gold", metric.Tags["tier"])

	// Stored duration equals the returned one (already rounded to 2dp).
	vals, err := mem.LRange(ctx, DurationsKey("checkout"), 0, -1)
	require.NoError(t, err)
	require.Len(t, vals, 1)
	stored, err := strconv.ParseFloat(vals[0], 64)
	require.NoError(t, err)
	assert.Equal(t, metric.Duration, stored)
}

func TestEndUnknownIDReturnsNil(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()

	assert.Nil(t, tr.EndMetric(ctx, "never-issued", nil, nil))

	id := tr.StartMetric(ctx, "op", nil)
	require.NotNil(t, tr.EndMetric(ctx, id, nil, nil))
	assert.Nil(t, tr.EndMetric(ctx, id, nil, nil), "double end must return nil")
}

func TestTimerIDsAreUnique(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()

	seen := make(map[string]struct{})
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := tr.StartMetric(ctx, "same_name", nil)
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}

func TestConcurrentCounter(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()

	a := tr.StartMetric(ctx, "api", nil)
	b := tr.StartMetric(ctx, "api", nil)

	count, err := tr.ActiveCount(ctx, "api")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	tr.EndMetric(ctx, a, nil, nil)
	tr.EndMetric(ctx, b, nil, nil)

	count, err = tr.ActiveCount(ctx, "api")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestActiveCountClampsNegative(t *testing.T) {
	tr, mem := newTestTracker()
	ctx := context.Background()

	// A TTL expiry between start and end leaves the counter below zero.
	_, err := mem.Decr(ctx, ConcurrentKey("api"))
	require.NoError(t, err)

	count, err := tr.ActiveCount(ctx, "api")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMeasureRecordsSuccess(t *testing.T) {
	tr, mem := newTestTracker()
	ctx := context.Background()

	err := tr.Measure(ctx, "job", nil, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	vals, err := mem.LRange(ctx, DurationsKey("job"), 0, -1)
	require.NoError(t, err)
	assert.Len(t, vals, 1)
	assert.Equal(t, 0, tr.InFlight())
}

func TestMeasureRethrowsOriginalError(t *testing.T) {
	tr, mem := newTestTracker()
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := tr.Measure(ctx, "job", nil, func(ctx context.Context) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	// The failed run is still recorded.
	vals, lerr := mem.LRange(ctx, DurationsKey("job"), 0, -1)
	require.NoError(t, lerr)
	assert.Len(t, vals, 1)
	assert.Equal(t, 0, tr.InFlight())
}

func TestMeasureRepanicsAfterRecording(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()

	assert.Panics(t, func() {
		tr.Measure(ctx, "job", nil, func(ctx context.Context) error {
			panic("kaboom")
		})
	})
	assert.Equal(t, 0, tr.InFlight())
}

func TestTimerStopIsIdempotent(t *testing.T) {
	tr, mem := newTestTracker()
	ctx := context.Background()

	timer := tr.StartTimer(ctx, "guarded", nil)
	first := timer.Stop(ctx, nil)
	second := timer.Stop(ctx, nil)

	require.NotNil(t, first)
	assert.Equal(t, first, second)

	vals, err := mem.LRange(ctx, DurationsKey("guarded"), 0, -1)
	require.NoError(t, err)
	assert.Len(t, vals, 1)
}

func TestPersistWritesMinuteBucket(t *testing.T) {
	tr, mem := newTestTracker()
	ctx := context.Background()

	id := tr.StartMetric(ctx, "op", nil)
	metric := tr.EndMetric(ctx, id, nil, nil)
	require.NotNil(t, metric)

	fields, err := mem.HGetAll(ctx, MinuteKey("op", metric.Timestamp/60000))
	require.NoError(t, err)
	assert.Equal(t, "1", fields["count"])
}

func TestPersistEvictsStaleTimelineEntries(t *testing.T) {
	tr, mem := newTestTracker()
	ctx := context.Background()

	stale := time.Now().Add(-2 * time.Hour).UnixMilli()
	require.NoError(t, mem.ZAdd(ctx, TimelineKey("checkout"), float64(stale), `{"name":"checkout"}`))

	id := tr.StartMetric(ctx, "checkout", nil)
	require.NotNil(t, tr.EndMetric(ctx, id, nil, nil))

	n, err := mem.ZCard(ctx, TimelineKey("checkout"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "entries older than the retention window must be evicted on write")

	members, err := mem.ZRevRange(ctx, TimelineKey("checkout"), 0, -1)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Contains(t, members[0], `"duration"`, "the surviving member is the freshly completed metric")
}

func TestActiveUsersWindow(t *testing.T) {
	mem := store.NewMemory()
	users := NewActiveUsers(mem, 5*time.Minute)
	ctx := context.Background()

	require.NoError(t, users.Track(ctx, "alice"))
	require.NoError(t, users.Track(ctx, "bob"))
	require.NoError(t, users.Track(ctx, "alice"))

	count, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestActiveUsersPrunesStale(t *testing.T) {
	mem := store.NewMemory()
	users := NewActiveUsers(mem, 5*time.Minute)
	ctx := context.Background()

	stale := time.Now().Add(-10 * time.Minute)
	require.NoError(t, mem.ZAdd(ctx, ActiveUsersKey, float64(stale.Unix()), "ghost"))
	require.NoError(t, users.Track(ctx, "alice"))

	count, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	card, err := mem.ZCard(ctx, ActiveUsersKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), card, "stale member pruned on write")
}
