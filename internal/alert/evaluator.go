// Package alert applies fixed thresholds to the latest statistics and emits
// typed alerts. An empty result is the healthy state.
package alert

import (
	"context"
	"fmt"

	"github.com/dungeun/e-market-monitor/internal/config"
	"github.com/dungeun/e-market-monitor/internal/domain"
	"github.com/dungeun/e-market-monitor/internal/stats"
	"github.com/dungeun/e-market-monitor/internal/tracker"
)

type Evaluator struct {
	stats *stats.Engine
	users *tracker.ActiveUsers
	cfg   config.MonitorConfig
}

func NewEvaluator(engine *stats.Engine, users *tracker.ActiveUsers, cfg config.MonitorConfig) *Evaluator {
	return &Evaluator{stats: engine, users: users, cfg: cfg}
}

// Check evaluates the response-time and capacity thresholds. Missing stats
// (nil snapshot) simply contribute no alert; store errors propagate so the
// scheduler's job boundary can record them.
func (e *Evaluator) Check(ctx context.Context) ([]domain.Alert, error) {
	alerts := []domain.Alert{}

	st, err := e.stats.Stats(ctx, e.cfg.ResponseMetric)
	if err != nil {
		return nil, fmt.Errorf("response time stats: %w", err)
	}
	if st != nil && st.P95 > e.cfg.ResponseWarnMS {
		severity := domain.SeverityWarning
		if st.P95 > e.cfg.ResponseCriticalMS {
			severity = domain.SeverityCritical
		}
		alerts = append(alerts, domain.Alert{
			Type:     domain.AlertPerformance,
			Severity: severity,
			Message:  fmt.Sprintf("p95 response time %.2fms exceeds %.0fms threshold", st.P95, e.cfg.ResponseWarnMS),
			Metric:   e.cfg.ResponseMetric,
			Value:    st.P95,
		})
	}

	users, err := e.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("active user count: %w", err)
	}
	if users > e.cfg.CapacityWarn {
		severity := domain.SeverityWarning
		if users > e.cfg.CapacityCritical {
			severity = domain.SeverityCritical
		}
		alerts = append(alerts, domain.Alert{
			Type:     domain.AlertCapacity,
			Severity: severity,
			Message:  fmt.Sprintf("%d active users exceed capacity threshold %d", users, e.cfg.CapacityWarn),
			Metric:   "active_users",
			Value:    float64(users),
		})
	}

	return alerts, nil
}
