package tracker

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dungeun/e-market-monitor/internal/store"
)

// ActiveUsers tracks the set of users seen within a sliding window, backed by
// a sorted set scored by last-seen time. Old entries are pruned on every
// write, so the set stays bounded by genuinely active traffic.
type ActiveUsers struct {
	store  store.Store
	window time.Duration
}

func NewActiveUsers(s store.Store, window time.Duration) *ActiveUsers {
	return &ActiveUsers{store: s, window: window}
}

func (a *ActiveUsers) Track(ctx context.Context, userID string) error {
	now := time.Now()
	err := a.store.Pipelined(ctx, func(s store.Store) error {
		s.ZAdd(ctx, ActiveUsersKey, float64(now.Unix()), userID)
		s.ZRemRangeByScore(ctx, ActiveUsersKey, 0, float64(now.Add(-a.window).Unix()))
		return nil
	})
	if err != nil {
		return fmt.Errorf("track active user: %w", err)
	}
	return nil
}

func (a *ActiveUsers) Count(ctx context.Context) (int64, error) {
	cutoff := float64(time.Now().Add(-a.window).Unix())
	count, err := a.store.ZCount(ctx, ActiveUsersKey, cutoff, math.Inf(1))
	if err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}
	return count, nil
}
