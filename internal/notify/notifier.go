// Package notify is the notification sink: alerts and scaling events are
// pushed onto named store lists for an external consumer to deliver. The core
// never sends email, Slack or webhooks itself.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dungeun/e-market-monitor/internal/domain"
	"github.com/dungeun/e-market-monitor/internal/store"
)

const (
	KeyAlertHistory   = "alerts:history"
	KeyCriticalAlerts = "alerts:critical"
	KeyScalingEvents  = "scaling:notifications"
	KeyJobFailures    = "cron:failures"

	historyCap = 500
)

type envelope struct {
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

type Notifier struct {
	store store.Store
}

func NewNotifier(s store.Store) *Notifier {
	return &Notifier{store: s}
}

func (n *Notifier) push(ctx context.Context, key string, payload interface{}) error {
	data, err := json.Marshal(envelope{Timestamp: time.Now(), Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return n.store.Pipelined(ctx, func(s store.Store) error {
		s.LPush(ctx, key, string(data))
		s.LTrim(ctx, key, 0, historyCap-1)
		return nil
	})
}

// Alert records an alert into the history log; critical alerts additionally
// land on the critical list external pagers watch.
func (n *Notifier) Alert(ctx context.Context, a domain.Alert) error {
	if err := n.push(ctx, KeyAlertHistory, a); err != nil {
		return err
	}
	if a.Severity == domain.SeverityCritical {
		return n.push(ctx, KeyCriticalAlerts, a)
	}
	return nil
}

// Scaling records a non-hold scaling decision.
func (n *Notifier) Scaling(ctx context.Context, d *domain.ScalingDecision) error {
	if d == nil || d.Action == domain.ScaleHold {
		return nil
	}
	return n.push(ctx, KeyScalingEvents, d)
}

// Prediction records a predictive-scaling recommendation.
func (n *Notifier) Prediction(ctx context.Context, p *domain.ScalingPrediction) error {
	if p == nil {
		return nil
	}
	return n.push(ctx, KeyScalingEvents, p)
}

// JobFailure records a failed scheduled job; failures of critical jobs
// escalate to a critical alert.
func (n *Notifier) JobFailure(ctx context.Context, job string, taskErr error, critical bool) error {
	record := map[string]string{"job": job, "error": taskErr.Error()}
	if err := n.push(ctx, KeyJobFailures, record); err != nil {
		return err
	}
	if critical {
		return n.Alert(ctx, domain.Alert{
			Type:     domain.AlertJobFailure,
			Severity: domain.SeverityCritical,
			Message:  fmt.Sprintf("critical job %s failed: %v", job, taskErr),
			Metric:   job,
		})
	}
	return nil
}
