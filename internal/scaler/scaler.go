// Package scaler holds the auto-scaling capability the scheduler drives. The
// scheduler only inspects result shapes; the policy behind them is replaceable
// through the AutoScaler interface.
package scaler

import (
	"context"
	"fmt"
	"time"

	"github.com/dungeun/e-market-monitor/internal/config"
	"github.com/dungeun/e-market-monitor/internal/domain"
	"github.com/dungeun/e-market-monitor/internal/stats"
	"github.com/dungeun/e-market-monitor/internal/store"
)

const lbInstancesKey = "lb:instances"

type AutoScaler interface {
	EvaluateScaling(ctx context.Context) (*domain.ScalingDecision, error)
	PredictiveScaling(ctx context.Context) (*domain.ScalingPrediction, error)
	ManageLoadBalancer(ctx context.Context) (*domain.LoadBalancerStatus, error)
}

// ThresholdScaler decides from the latest system snapshot against fixed
// CPU/memory bands, with a simple trend check for predictive scaling.
type ThresholdScaler struct {
	monitor SystemMonitor
	stats   *stats.Engine
	store   store.Store
	cfg     config.ScalerConfig
	metric  string
}

func NewThresholdScaler(monitor SystemMonitor, engine *stats.Engine, s store.Store, cfg config.ScalerConfig, responseMetric string) *ThresholdScaler {
	return &ThresholdScaler{
		monitor: monitor,
		stats:   engine,
		store:   s,
		cfg:     cfg,
		metric:  responseMetric,
	}
}

func (t *ThresholdScaler) EvaluateScaling(ctx context.Context) (*domain.ScalingDecision, error) {
	snapshot, err := t.monitor.CollectMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect metrics for scaling: %w", err)
	}

	cpu := snapshot.Server.CPUUsage
	mem := snapshot.Server.MemoryUsage

	switch {
	case cpu > t.cfg.CPUHigh || mem > t.cfg.MemoryHigh:
		over := cpu - t.cfg.CPUHigh
		if memOver := mem - t.cfg.MemoryHigh; memOver > over {
			over = memOver
		}
		return &domain.ScalingDecision{
			Action:     domain.ScaleUp,
			Reason:     fmt.Sprintf("cpu %.1f%% / memory %.1f%% above the high-water mark", cpu, mem),
			Confidence: confidenceFromOvershoot(over),
		}, nil
	case cpu < t.cfg.CPULow && mem < t.cfg.MemoryLow:
		return &domain.ScalingDecision{
			Action:     domain.ScaleDown,
			Reason:     fmt.Sprintf("cpu %.1f%% / memory %.1f%% below the low-water mark", cpu, mem),
			Confidence: confidenceFromOvershoot(t.cfg.CPULow - cpu),
		}, nil
	default:
		return &domain.ScalingDecision{
			Action:     domain.ScaleHold,
			Reason:     fmt.Sprintf("cpu %.1f%% / memory %.1f%% within bounds", cpu, mem),
			Confidence: 0.9,
		}, nil
	}
}

// PredictiveScaling compares request volume of the last quarter hour against
// the quarter hour before it. A nil prediction means the trend does not
// warrant pre-emptive action.
func (t *ThresholdScaler) PredictiveScaling(ctx context.Context) (*domain.ScalingPrediction, error) {
	buckets, err := t.stats.MinuteBuckets(ctx, t.metric, 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("minute buckets for prediction: %w", err)
	}
	if len(buckets) < 6 {
		return nil, nil
	}

	half := len(buckets) / 2
	var older, recent float64
	for _, b := range buckets[:half] {
		older += float64(b.Count)
	}
	for _, b := range buckets[half:] {
		recent += float64(b.Count)
	}
	if older == 0 || recent/older < 1.5 {
		return nil, nil
	}

	growth := recent / older
	confidence := 0.5 + 0.1*float64(len(buckets))/3
	if confidence > 0.95 {
		confidence = 0.95
	}
	return &domain.ScalingPrediction{
		ExpectedLoad:      domain.Round2(recent * growth),
		RecommendedAction: domain.ScaleUp,
		Horizon:           15 * time.Minute,
		Confidence:        domain.Round2(confidence),
	}, nil
}

// ManageLoadBalancer counts registered backend instances by their reported
// health. Instances register themselves into the lb:instances hash.
func (t *ThresholdScaler) ManageLoadBalancer(ctx context.Context) (*domain.LoadBalancerStatus, error) {
	instances, err := t.store.HGetAll(ctx, lbInstancesKey)
	if err != nil {
		return nil, fmt.Errorf("read load balancer instances: %w", err)
	}

	status := &domain.LoadBalancerStatus{Total: len(instances)}
	for _, state := range instances {
		if state == "healthy" {
			status.Healthy++
		} else {
			status.Unhealthy++
		}
	}
	return status, nil
}

func confidenceFromOvershoot(over float64) float64 {
	c := 0.6 + over/100
	if c > 0.99 {
		c = 0.99
	}
	if c < 0.6 {
		c = 0.6
	}
	return domain.Round2(c)
}
