// Package stats computes sliding-window statistics over the bounded recency
// samples the tracker writes. All reads are snapshot reads; concurrent writers
// only make the snapshot slightly stale, never wrong.
package stats

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/dungeun/e-market-monitor/internal/domain"
	"github.com/dungeun/e-market-monitor/internal/store"
	"github.com/dungeun/e-market-monitor/internal/tracker"
)

type Engine struct {
	store  store.Store
	window int64
}

func NewEngine(s store.Store, window int64) *Engine {
	return &Engine{store: s, window: window}
}

// Stats returns count/avg/min/max/p50/p95/p99 over the most recent samples of
// a metric name, or nil when no samples exist. Callers must treat nil as "no
// data", not as zeros.
func (e *Engine) Stats(ctx context.Context, name string) (*domain.PerformanceStats, error) {
	raw, err := e.store.LRange(ctx, tracker.DurationsKey(name), 0, e.window-1)
	if err != nil {
		return nil, fmt.Errorf("read duration window for %s: %w", name, err)
	}

	durations := make([]float64, 0, len(raw))
	for _, v := range raw {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		durations = append(durations, d)
	}
	if len(durations) == 0 {
		return nil, nil
	}

	sort.Float64s(durations)

	var total float64
	for _, d := range durations {
		total += d
	}
	n := len(durations)

	return &domain.PerformanceStats{
		Count: n,
		Avg:   domain.Round2(total / float64(n)),
		Min:   domain.Round2(durations[0]),
		Max:   domain.Round2(durations[n-1]),
		P50:   domain.Round2(Percentile(durations, 0.5)),
		P95:   domain.Round2(Percentile(durations, 0.95)),
		P99:   domain.Round2(Percentile(durations, 0.99)),
	}, nil
}

// Percentile picks the nearest-rank value from an ascending-sorted sample set:
// index floor(n*p) on the zero-indexed slice, clamped to the last element so
// high percentiles on tiny windows cannot run out of bounds.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(float64(len(sorted)) * p))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// MinuteBuckets returns the per-minute aggregates for the trailing span,
// oldest first. Minutes with no samples are skipped.
func (e *Engine) MinuteBuckets(ctx context.Context, name string, span time.Duration) ([]domain.MinuteBucket, error) {
	minutes := int64(span / time.Minute)
	if minutes <= 0 {
		return nil, nil
	}

	current := time.Now().UnixMilli() / 60000
	buckets := make([]domain.MinuteBucket, 0, minutes)
	for minute := current - minutes + 1; minute <= current; minute++ {
		fields, err := e.store.HGetAll(ctx, tracker.MinuteKey(name, minute))
		if err != nil {
			return nil, fmt.Errorf("read minute bucket for %s: %w", name, err)
		}
		count, _ := strconv.ParseInt(fields["count"], 10, 64)
		if count == 0 {
			continue
		}
		total, _ := strconv.ParseFloat(fields["total_duration"], 64)
		buckets = append(buckets, domain.MinuteBucket{
			Minute:        minute,
			Count:         count,
			TotalDuration: domain.Round2(total),
			Avg:           domain.Round2(total / float64(count)),
		})
	}
	return buckets, nil
}
