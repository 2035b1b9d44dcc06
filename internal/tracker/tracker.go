package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dungeun/e-market-monitor/internal/config"
	"github.com/dungeun/e-market-monitor/internal/domain"
	"github.com/dungeun/e-market-monitor/internal/store"
	"github.com/dungeun/e-market-monitor/pkg/logger"
)

type activeTimer struct {
	name  string
	start time.Time
	tags  map[string]string
}

// Tracker times named operations and persists completed measurements. Start
// and end are split so callers can instrument request paths they do not own;
// Measure and StartTimer are the preferred entry points because they guarantee
// the in-flight entry is removed on every exit path.
//
// Known limitation: a timer started through StartMetric and never ended stays
// in the in-flight map until process restart. The map is process-local and
// bounded by request volume, and the concurrent-request counters in the store
// self-heal through their TTL.
type Tracker struct {
	store  store.Store
	logger *logger.Logger
	cfg    config.MonitorConfig

	mu     sync.Mutex
	active map[string]activeTimer
}

func New(s store.Store, log *logger.Logger, cfg config.MonitorConfig) *Tracker {
	return &Tracker{
		store:  s,
		logger: log,
		cfg:    cfg,
		active: make(map[string]activeTimer),
	}
}

// StartMetric registers a monotonic start instant under a fresh id and bumps
// the concurrent-request counter for the operation name. It never blocks the
// caller on store problems; the counter update is best-effort telemetry.
func (t *Tracker) StartMetric(ctx context.Context, name string, tags map[string]string) string {
	start := time.Now()
	id := fmt.Sprintf("%s:%d:%s", name, start.UnixMilli(), uuid.NewString()[:8])

	t.mu.Lock()
	t.active[id] = activeTimer{name: name, start: start, tags: tags}
	t.mu.Unlock()

	key := ConcurrentKey(name)
	if _, err := t.store.Incr(ctx, key); err != nil {
		t.logger.Debug(ctx, "concurrent counter increment failed", map[string]interface{}{
			"metric": name,
			"error":  err.Error(),
		})
		return id
	}
	// TTL so a crash mid-request cannot pin the counter forever.
	if err := t.store.Expire(ctx, key, t.cfg.ConcurrentTTL); err != nil {
		t.logger.Debug(ctx, "concurrent counter expire failed", map[string]interface{}{
			"metric": name,
			"error":  err.Error(),
		})
	}

	return id
}

// EndMetric completes the timer with the given id and persists the resulting
// metric. Ending an unknown or already-ended id returns nil: timer misuse is
// telemetry noise, never an error the instrumented path should see.
func (t *Tracker) EndMetric(ctx context.Context, id string, tags map[string]string, metadata map[string]interface{}) *domain.PerformanceMetric {
	t.mu.Lock()
	timer, ok := t.active[id]
	if ok {
		delete(t.active, id)
	}
	t.mu.Unlock()

	if !ok {
		return nil
	}

	merged := make(map[string]string, len(timer.tags)+len(tags))
	for k, v := range timer.tags {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}
	if len(merged) == 0 {
		merged = nil
	}

	metric := &domain.PerformanceMetric{
		Name:      timer.name,
		Duration:  domain.Round2(float64(time.Since(timer.start)) / float64(time.Millisecond)),
		Timestamp: time.Now().UnixMilli(),
		Tags:      merged,
		Metadata:  metadata,
	}

	t.persist(ctx, metric)

	if _, err := t.store.Decr(ctx, ConcurrentKey(timer.name)); err != nil {
		t.logger.Debug(ctx, "concurrent counter decrement failed", map[string]interface{}{
			"metric": timer.name,
			"error":  err.Error(),
		})
	}

	return metric
}

// persist issues the three metric-store writes in one best-effort batch:
// timeline entry with lazy eviction, bounded recency list, per-minute bucket.
func (t *Tracker) persist(ctx context.Context, metric *domain.PerformanceMetric) {
	payload, err := json.Marshal(metric)
	if err != nil {
		t.logger.Warn(ctx, "metric marshal failed", map[string]interface{}{
			"metric": metric.Name,
			"error":  err.Error(),
		})
		return
	}

	err = t.store.Pipelined(ctx, func(s store.Store) error {
		timeline := TimelineKey(metric.Name)
		s.ZAdd(ctx, timeline, float64(metric.Timestamp), string(payload))
		s.ZRemRangeByScore(ctx, timeline, 0, float64(metric.Timestamp-t.cfg.TimelineRetention.Milliseconds()))
		s.Expire(ctx, timeline, t.cfg.TimelineRetention)

		durations := DurationsKey(metric.Name)
		s.LPush(ctx, durations, strconv.FormatFloat(metric.Duration, 'f', -1, 64))
		s.LTrim(ctx, durations, 0, t.cfg.SampleWindow-1)

		bucket := MinuteKey(metric.Name, metric.Timestamp/60000)
		s.HIncrBy(ctx, bucket, "count", 1)
		s.HIncrByFloat(ctx, bucket, "total_duration", metric.Duration)
		s.Expire(ctx, bucket, t.cfg.BucketRetention)
		return nil
	})
	if err != nil {
		// Lost telemetry writes are accepted; this is monitoring, not a ledger.
		t.logger.Warn(ctx, "metric persist failed", map[string]interface{}{
			"metric": metric.Name,
			"error":  err.Error(),
		})
	}
}

// Measure runs fn under a timer and records success or failure. The original
// error (or panic) is propagated unchanged after recording.
func (t *Tracker) Measure(ctx context.Context, name string, tags map[string]string, fn func(context.Context) error) (err error) {
	id := t.StartMetric(ctx, name, tags)
	defer func() {
		metadata := map[string]interface{}{"success": err == nil}
		if r := recover(); r != nil {
			metadata["success"] = false
			metadata["error"] = fmt.Sprint(r)
			t.EndMetric(ctx, id, nil, metadata)
			panic(r)
		}
		if err != nil {
			metadata["error"] = err.Error()
		}
		t.EndMetric(ctx, id, nil, metadata)
	}()
	return fn(ctx)
}

// Timer is a scoped handle around a started metric. Stop is idempotent, so
// `defer timer.Stop(nil)` pairs every start with exactly one end even on
// panic paths.
type Timer struct {
	tracker *Tracker
	id      string
	once    sync.Once
	metric  *domain.PerformanceMetric
}

func (t *Tracker) StartTimer(ctx context.Context, name string, tags map[string]string) *Timer {
	return &Timer{tracker: t, id: t.StartMetric(ctx, name, tags)}
}

func (tm *Timer) Stop(ctx context.Context, metadata map[string]interface{}) *domain.PerformanceMetric {
	tm.once.Do(func() {
		tm.metric = tm.tracker.EndMetric(ctx, tm.id, nil, metadata)
	})
	return tm.metric
}

// ActiveCount reads the concurrent-request counter for an operation name.
// Counters can briefly dip negative when a TTL expiry lands between a start
// and its matching end; the value is clamped at zero.
func (t *Tracker) ActiveCount(ctx context.Context, name string) (int64, error) {
	val, err := t.store.Get(ctx, ConcurrentKey(name))
	if err == store.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read concurrent counter for %s: %w", name, err)
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse concurrent counter for %s: %w", name, err)
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}

// InFlight reports the number of process-local timers that have been started
// but not yet ended.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}
