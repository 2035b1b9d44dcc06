package store

import (
	"context"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"
)

type memEntry struct {
	str      string
	list     []string
	hash     map[string]string
	zset     map[string]float64
	expireAt time.Time
}

func (e *memEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// Memory is an in-process Store with Redis-like TTL semantics. It backs the
// test suites; eviction is lazy, on access.
type Memory struct {
	mu   sync.Mutex
	data map[string]*memEntry

	// Now is the clock used for expiry checks, replaceable in tests.
	Now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]*memEntry),
		Now:  time.Now,
	}
}

// get returns the live entry for key, evicting it first if expired.
func (m *Memory) get(key string) *memEntry {
	e, ok := m.data[key]
	if !ok {
		return nil
	}
	if e.expired(m.Now()) {
		delete(m.data, key)
		return nil
	}
	return e
}

func (m *Memory) ensure(key string) *memEntry {
	e := m.get(key)
	if e == nil {
		e = &memEntry{}
		m.data[key] = e
	}
	return e
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	if e == nil {
		return "", ErrNotFound
	}
	return e.str, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = &memEntry{str: value}
	return nil
}

func (m *Memory) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = &memEntry{str: value, expireAt: m.Now().Add(ttl)}
	return nil
}

func (m *Memory) Incr(ctx context.Context, key string) (int64, error) {
	return m.incrBy(key, 1)
}

func (m *Memory) Decr(ctx context.Context, key string) (int64, error) {
	return m.incrBy(key, -1)
}

func (m *Memory) incrBy(key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.ensure(key)
	n, _ := strconv.ParseInt(e.str, 10, 64)
	n += delta
	e.str = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *Memory) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := m.get(key); e != nil {
		e.expireAt = m.Now().Add(ttl)
	}
	return nil
}

func (m *Memory) HSet(ctx context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.ensure(key)
	if e.hash == nil {
		e.hash = make(map[string]string)
	}
	e.hash[field] = value
	return nil
}

func (m *Memory) HGet(ctx context.Context, key, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	if e == nil {
		return "", ErrNotFound
	}
	v, ok := e.hash[field]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	if e := m.get(key); e != nil {
		for k, v := range e.hash {
			out[k] = v
		}
	}
	return out, nil
}

func (m *Memory) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.ensure(key)
	if e.hash == nil {
		e.hash = make(map[string]string)
	}
	n, _ := strconv.ParseInt(e.hash[field], 10, 64)
	n += incr
	e.hash[field] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *Memory) HIncrByFloat(ctx context.Context, key, field string, incr float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.ensure(key)
	if e.hash == nil {
		e.hash = make(map[string]string)
	}
	f, _ := strconv.ParseFloat(e.hash[field], 64)
	f += incr
	e.hash[field] = strconv.FormatFloat(f, 'f', -1, 64)
	return f, nil
}

func (m *Memory) LPush(ctx context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.ensure(key)
	for _, v := range values {
		e.list = append([]string{v}, e.list...)
	}
	return nil
}

func (m *Memory) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	if e == nil {
		return nil, nil
	}
	lo, hi, ok := sliceBounds(int64(len(e.list)), start, stop)
	if !ok {
		return nil, nil
	}
	out := make([]string, hi-lo+1)
	copy(out, e.list[lo:hi+1])
	return out, nil
}

func (m *Memory) LTrim(ctx context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	if e == nil {
		return nil
	}
	lo, hi, ok := sliceBounds(int64(len(e.list)), start, stop)
	if !ok {
		e.list = nil
		return nil
	}
	e.list = append([]string(nil), e.list[lo:hi+1]...)
	return nil
}

func (m *Memory) ZAdd(ctx context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.ensure(key)
	if e.zset == nil {
		e.zset = make(map[string]float64)
	}
	e.zset[member] = score
	return nil
}

func (m *Memory) ZCard(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	if e == nil {
		return 0, nil
	}
	return int64(len(e.zset)), nil
}

func (m *Memory) ZCount(ctx context.Context, key string, min, max float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	if e == nil {
		return 0, nil
	}
	var n int64
	for _, score := range e.zset {
		if score >= min && score <= max {
			n++
		}
	}
	return n, nil
}

func (m *Memory) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	if e == nil {
		return nil, nil
	}
	members := make([]string, 0, len(e.zset))
	for member := range e.zset {
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool {
		si, sj := e.zset[members[i]], e.zset[members[j]]
		if si != sj {
			return si > sj
		}
		return members[i] > members[j]
	})
	lo, hi, ok := sliceBounds(int64(len(members)), start, stop)
	if !ok {
		return nil, nil
	}
	return members[lo : hi+1], nil
}

func (m *Memory) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	if e == nil {
		return nil
	}
	for member, score := range e.zset {
		if score >= min && score <= max {
			delete(e.zset, member)
		}
	}
	return nil
}

func (m *Memory) Keys(ctx context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	var out []string
	for key, e := range m.data {
		if e.expired(now) {
			delete(m.data, key)
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(key) != nil, nil
}

func (m *Memory) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *Memory) Pipelined(ctx context.Context, fn func(Store) error) error {
	return fn(m)
}

func (m *Memory) Close() error {
	return nil
}

// sliceBounds translates Redis-style start/stop (negative = from the end,
// stop inclusive) into slice indexes.
func sliceBounds(length, start, stop int64) (int64, int64, bool) {
	if length == 0 {
		return 0, 0, false
	}
	if start < 0 {
		start += length
	}
	if stop < 0 {
		stop += length
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	if start > stop || start >= length {
		return 0, 0, false
	}
	return start, stop, true
}
