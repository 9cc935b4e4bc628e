package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"api-gateway/internal/redis"
)

// Backend stores entries. Implementations must be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Put(ctx context.Context, key string, entry *Entry) error
	// Invalidate removes every entry carrying tag and returns how many.
	Invalidate(ctx context.Context, tag string) (int, error)
	Name() string
}

// Type represents the cache backend type
type Type string

const (
	TypeMemory Type = "memory"
	TypeRedis  Type = "redis"
	TypeNoop   Type = "noop"
)

// Config holds cache configuration
type Config struct {
	Type            Type
	CleanupInterval time.Duration
	KeyPrefix       string
	RedisClient     *redis.Client
}

func DefaultConfig() Config {
	return Config{
		Type:            TypeMemory,
		CleanupInterval: time.Minute,
		KeyPrefix:       "cache:",
	}
}

// NewBackend creates a backend based on configuration
func NewBackend(config Config) (Backend, error) {
	switch config.Type {
	case TypeMemory, "":
		interval := config.CleanupInterval
		if interval <= 0 {
			interval = time.Minute
		}
		return NewMemoryBackend(interval), nil

	case TypeRedis:
		if config.RedisClient == nil {
			return nil, fmt.Errorf("redis client required for redis cache")
		}
		prefix := config.KeyPrefix
		if prefix == "" {
			prefix = "cache:"
		}
		return NewRedisBackend(config.RedisClient, prefix), nil

	case TypeNoop:
		return NoopBackend{}, nil

	default:
		return nil, fmt.Errorf("unknown cache type: %s", config.Type)
	}
}

// MemoryBackend wraps patrickmn/go-cache. The tag index maps each tag to
// the keys stored under it and is pruned when go-cache evicts an entry.
type MemoryBackend struct {
	cache *gocache.Cache

	mu   sync.Mutex
	tags map[string]map[string]struct{}
}

func NewMemoryBackend(cleanupInterval time.Duration) *MemoryBackend {
	m := &MemoryBackend{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
		tags:  make(map[string]map[string]struct{}),
	}
	m.cache.OnEvicted(m.untag)
	return m
}

func (m *MemoryBackend) Name() string { return string(TypeMemory) }

func (m *MemoryBackend) Get(ctx context.Context, key string) (*Entry, bool, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v.(*Entry), true, nil
}

// Put indexes and stores the entry under one lock, so an Invalidate can
// never drop the index between the two and leave the entry unreachable.
func (m *MemoryBackend) Put(ctx context.Context, key string, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tag := range entry.Tags {
		keys, ok := m.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			m.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
	// Set never fires the eviction callback, so holding mu is safe
	m.cache.Set(key, entry, entry.TTL)
	return nil
}

func (m *MemoryBackend) Invalidate(ctx context.Context, tag string) (int, error) {
	m.mu.Lock()
	keys := m.tags[tag]
	delete(m.tags, tag)
	removed := 0
	for key := range keys {
		if _, ok := m.cache.Get(key); ok {
			removed++
		}
	}
	m.mu.Unlock()

	// Delete fires untag, which takes mu. An entry Put again under one of
	// these keys meanwhile is indexed and deleted too, never orphaned.
	for key := range keys {
		m.cache.Delete(key)
	}
	return removed, nil
}

// untag runs after go-cache evicts or deletes key. A newer entry may already
// be stored under key; its tags stay indexed.
func (m *MemoryBackend) untag(key string, v interface{}) {
	old, ok := v.(*Entry)
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var keep map[string]bool
	if cur, ok := m.cache.Get(key); ok {
		if cur == v {
			return
		}
		if entry, ok := cur.(*Entry); ok {
			keep = make(map[string]bool, len(entry.Tags))
			for _, tag := range entry.Tags {
				keep[tag] = true
			}
		}
	}

	for _, tag := range old.Tags {
		if keep[tag] {
			continue
		}
		if keys, ok := m.tags[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(m.tags, tag)
			}
		}
	}
}

// Len is the number of stored entries, expired ones included until cleanup.
func (m *MemoryBackend) Len() int {
	return m.cache.ItemCount()
}

// RedisBackend stores JSON-encoded entries in Redis, shared by every
// gateway instance.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) Name() string { return string(TypeRedis) }

func (r *RedisBackend) Get(ctx context.Context, key string) (*Entry, bool, error) {
	data, ok, err := r.client.GetBytes(ctx, r.prefix, key)
	if err != nil || !ok {
		return nil, false, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &entry, true, nil
}

func (r *RedisBackend) Put(ctx context.Context, key string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return r.client.SetTagged(ctx, r.prefix, key, data, entry.TTL, entry.Tags)
}

func (r *RedisBackend) Invalidate(ctx context.Context, tag string) (int, error) {
	return r.client.InvalidateTag(ctx, r.prefix, tag)
}

// NoopBackend never stores anything.
type NoopBackend struct{}

func (NoopBackend) Name() string { return string(TypeNoop) }

func (NoopBackend) Get(context.Context, string) (*Entry, bool, error) { return nil, false, nil }

func (NoopBackend) Put(context.Context, string, *Entry) error { return nil }

func (NoopBackend) Invalidate(context.Context, string) (int, error) { return 0, nil }
