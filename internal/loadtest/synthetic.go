package loadtest

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RequestError carries the error taxonomy the report's breakdown is built
// from.
type RequestError struct {
	Type string
	Err  error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Type, e.Err)
	}
	return e.Type
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// SyntheticConfig shapes the stand-in dependency: a uniform processing delay
// and a fixed failure rate spread over a small error taxonomy.
type SyntheticConfig struct {
	FailureRate float64
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

var syntheticErrorTypes = []string{"timeout", "connection_error", "server_error", "rate_limited"}

// NewSyntheticRequest builds the default RequestFunc: it models a real
// dependency call without touching one, so capacity runs are safe against
// production. The returned func is safe for concurrent workers.
func NewSyntheticRequest(cfg SyntheticConfig) RequestFunc {
	spread := int64(cfg.MaxDelay - cfg.MinDelay)
	return func(ctx context.Context, endpoint string) error {
		delay := cfg.MinDelay
		if spread > 0 {
			delay += time.Duration(rand.Int63n(spread))
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return &RequestError{Type: "timeout", Err: ctx.Err()}
		}

		if cfg.FailureRate > 0 && rand.Float64() < cfg.FailureRate {
			typ := syntheticErrorTypes[rand.Intn(len(syntheticErrorTypes))]
			return &RequestError{Type: typ, Err: fmt.Errorf("synthetic %s for %s", typ, endpoint)}
		}
		return nil
	}
}
