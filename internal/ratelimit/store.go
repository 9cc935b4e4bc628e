package ratelimit

import (
	"context"
	"sync"
	"time"

	"api-gateway/internal/redis"
)

// Window is the state of one bucket after an admission check.
type Window struct {
	Allowed   bool
	Remaining int
	Start     time.Time
}

// CounterStore performs the atomic check-and-increment of a sliding-window
// bucket. Denied checks never increment.
type CounterStore interface {
	Admit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Window, error)
}

// MemoryStore keeps buckets in process. Each bucket has its own lock so
// unrelated clients never contend.
type MemoryStore struct {
	mu            sync.Mutex
	buckets       map[string]*bucket
	cleanupPeriod time.Duration
	lastCleanup   time.Time
}

type bucket struct {
	mu     sync.Mutex
	start  int64 // unix ms of the current window
	cur    int
	prev   int
	window int64

	// guarded by MemoryStore.mu
	touched time.Time
	ttl     time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets:       make(map[string]*bucket),
		cleanupPeriod: 5 * time.Minute,
	}
}

func (s *MemoryStore) Admit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Window, error) {
	b := s.bucketFor(key, window, now)

	b.mu.Lock()
	defer b.mu.Unlock()

	w := window.Milliseconds()
	ms := now.UnixMilli()
	start := ms - ms%w

	switch {
	case b.window != w:
		b.start, b.cur, b.prev, b.window = start, 0, 0, w
	case b.start != start:
		if b.start == start-w {
			b.prev = b.cur
		} else {
			b.prev = 0
		}
		b.cur = 0
		b.start = start
	}

	weight := float64(w-(ms-start)) / float64(w)
	estimate := float64(b.cur) + float64(b.prev)*weight

	allowed := estimate < float64(limit)
	if allowed {
		b.cur++
		estimate++
	}

	remaining := int(float64(limit) - estimate)
	if remaining < 0 {
		remaining = 0
	}
	return Window{Allowed: allowed, Remaining: remaining, Start: time.UnixMilli(start)}, nil
}

func (s *MemoryStore) bucketFor(key string, window time.Duration, now time.Time) *bucket {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastCleanup) > s.cleanupPeriod {
		s.cleanup(now)
	}

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{}
		s.buckets[key] = b
	}
	b.touched = now
	b.ttl = 2 * window
	return b
}

// cleanup drops buckets idle for longer than two of their windows; by then
// both counters would have rolled to zero anyway.
func (s *MemoryStore) cleanup(now time.Time) {
	for key, b := range s.buckets {
		if now.Sub(b.touched) > b.ttl {
			delete(s.buckets, key)
		}
	}
	s.lastCleanup = now
}

// Len is the number of live buckets.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// RedisStore shares buckets between gateway instances through a Lua script.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "rl:"}
}

func (s *RedisStore) Admit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Window, error) {
	res, err := s.client.SlidingWindow(ctx, s.prefix+key, limit, window, now)
	if err != nil {
		return Window{}, err
	}
	return Window{Allowed: res.Allowed, Remaining: res.Remaining, Start: res.WindowStart}, nil
}
