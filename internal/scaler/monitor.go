package scaler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/dungeun/e-market-monitor/internal/config"
	"github.com/dungeun/e-market-monitor/internal/domain"
	"github.com/dungeun/e-market-monitor/internal/stats"
	"github.com/dungeun/e-market-monitor/internal/store"
	"github.com/dungeun/e-market-monitor/internal/tracker"
)

const (
	snapshotLatestKey  = "system:latest"
	snapshotHistoryKey = "system:snapshots"
	snapshotHistoryCap = 240
	snapshotTTL        = 10 * time.Minute
)

// SystemMonitor reports combined host and application measurements.
type SystemMonitor interface {
	CollectMetrics(ctx context.Context) (*domain.SystemSnapshot, error)
}

// Monitor is the gopsutil-backed SystemMonitor. Application-side numbers come
// from the statistics engine and the active-user tracker.
type Monitor struct {
	store store.Store
	stats *stats.Engine
	users *tracker.ActiveUsers
	cfg   config.MonitorConfig
}

func NewMonitor(s store.Store, engine *stats.Engine, users *tracker.ActiveUsers, cfg config.MonitorConfig) *Monitor {
	return &Monitor{store: s, stats: engine, users: users, cfg: cfg}
}

func (m *Monitor) CollectMetrics(ctx context.Context) (*domain.SystemSnapshot, error) {
	cpuPercent, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get CPU usage: %w", err)
	}

	memStats, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory stats: %w", err)
	}

	snapshot := &domain.SystemSnapshot{
		Server: domain.ServerMetrics{
			CPUUsage:    domain.Round2(cpuPercent[0]),
			MemoryUsage: domain.Round2(memStats.UsedPercent),
		},
		Timestamp: time.Now(),
	}

	if st, err := m.stats.Stats(ctx, m.cfg.ResponseMetric); err == nil && st != nil {
		snapshot.Application.ResponseTime = st.Avg
	}
	if users, err := m.users.Count(ctx); err == nil {
		snapshot.Application.ActiveUsers = users
	}

	return snapshot, nil
}

// Record collects a snapshot and persists it: a latest key plus a bounded
// history list. This is the body of the system metrics collection job.
func (m *Monitor) Record(ctx context.Context) error {
	snapshot, err := m.CollectMetrics(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal system snapshot: %w", err)
	}

	if err := m.store.SetEx(ctx, snapshotLatestKey, string(payload), snapshotTTL); err != nil {
		return fmt.Errorf("persist system snapshot: %w", err)
	}
	return m.store.Pipelined(ctx, func(s store.Store) error {
		s.LPush(ctx, snapshotHistoryKey, string(payload))
		s.LTrim(ctx, snapshotHistoryKey, 0, snapshotHistoryCap-1)
		return nil
	})
}

// Latest returns the most recent persisted snapshot, or nil when none exists
// or it has aged out.
func (m *Monitor) Latest(ctx context.Context) (*domain.SystemSnapshot, error) {
	raw, err := m.store.Get(ctx, snapshotLatestKey)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read latest snapshot: %w", err)
	}
	var snapshot domain.SystemSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, fmt.Errorf("decode latest snapshot: %w", err)
	}
	return &snapshot, nil
}
