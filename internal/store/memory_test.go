package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMissingKey(t *testing.T) {
	m := NewMemory()
	_, err := m.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetExExpiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	now := time.Now()
	m.Now = func() time.Time { return now }

	require.NoError(t, m.SetEx(ctx, "k", "v", time.Minute))

	val, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	now = now.Add(2 * time.Minute)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIncrDecr(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	n, err := m.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = m.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = m.Decr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestListPushTrimRange(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.LPush(ctx, "l", "a"))
	require.NoError(t, m.LPush(ctx, "l", "b"))
	require.NoError(t, m.LPush(ctx, "l", "c"))

	vals, err := m.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, vals)

	require.NoError(t, m.LTrim(ctx, "l", 0, 1))
	vals, err = m.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, vals)
}

func TestZSetPruneAndCount(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.ZAdd(ctx, "z", 10, "old"))
	require.NoError(t, m.ZAdd(ctx, "z", 20, "mid"))
	require.NoError(t, m.ZAdd(ctx, "z", 30, "new"))

	n, err := m.ZCount(ctx, "z", 15, 35)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, m.ZRemRangeByScore(ctx, "z", 0, 15))
	card, err := m.ZCard(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, int64(2), card)

	members, err := m.ZRevRange(ctx, "z", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "mid"}, members)
}

func TestHashIncrements(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	n, err := m.HIncrBy(ctx, "h", "count", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	f, err := m.HIncrByFloat(ctx, "h", "total", 12.5)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, f, 1e-9)

	fields, err := m.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, "1", fields["count"])
	assert.Equal(t, "12.5", fields["total"])
}

func TestKeysPattern(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "perf:durations:a", "1"))
	require.NoError(t, m.Set(ctx, "perf:durations:b", "2"))
	require.NoError(t, m.Set(ctx, "other", "3"))

	keys, err := m.Keys(ctx, "perf:durations:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"perf:durations:a", "perf:durations:b"}, keys)
}

func TestPipelinedAppliesAllOps(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.Pipelined(ctx, func(s Store) error {
		s.LPush(ctx, "l", "x")
		s.LPush(ctx, "l", "y")
		s.LTrim(ctx, "l", 0, 0)
		return nil
	})
	require.NoError(t, err)

	vals, err := m.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, vals)
}
