package cache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-gateway/internal/auth"
	"api-gateway/internal/health"
	"api-gateway/internal/redis"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type counter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *counter) Incr(component, metric string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[metric]++
}

func (r *counter) Observe(string, string, time.Duration) {}

func (r *counter) get(metric string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[metric]
}

type brokenBackend struct {
	calls atomic.Int32
}

func (b *brokenBackend) Name() string { return "broken" }

func (b *brokenBackend) Get(context.Context, string) (*Entry, bool, error) {
	b.calls.Add(1)
	return nil, false, fmt.Errorf("connection reset")
}

func (b *brokenBackend) Put(context.Context, string, *Entry) error {
	b.calls.Add(1)
	return fmt.Errorf("connection reset")
}

func (b *brokenBackend) Invalidate(context.Context, string) (int, error) {
	b.calls.Add(1)
	return 0, fmt.Errorf("connection reset")
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return map[string]Backend{
		"memory": NewMemoryBackend(time.Minute),
		"redis":  NewRedisBackend(client, "cache:"),
	}
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "memory", b.Name())

	b, err = NewBackend(Config{Type: TypeNoop})
	require.NoError(t, err)
	assert.Equal(t, "noop", b.Name())

	_, err = NewBackend(Config{Type: TypeRedis})
	assert.Error(t, err)

	_, err = NewBackend(Config{Type: "memcached"})
	assert.Error(t, err)
}

func TestKeyNormalisesQueryAndScopes(t *testing.T) {
	a := Key("/webhooks", url.Values{"page": {"2"}, "per_page": {"10"}}, "c1", []string{"webhooks:read", "admin"})
	b := Key("/webhooks", url.Values{"per_page": {"10"}, "page": {"2"}}, "c1", []string{"admin", "webhooks:read"})
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, Key("/webhooks", url.Values{"page": {"2"}, "per_page": {"10"}}, "c2", []string{"webhooks:read", "admin"}))
	assert.NotEqual(t, a, Key("/webhooks", url.Values{"page": {"2"}, "per_page": {"10"}}, "c1", []string{"webhooks:read"}))
}

func TestPutGetUntilExpiry(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := &clock{now: t0}
			rec := &counter{}
			cache := New(backend, WithClock(c.Now), WithRecorder(rec))

			cache.Put(ctx, "k", NewEntry([]byte(`{"a":1}`), "application/json", 30*time.Second, nil))

			entry, ok := cache.Get(ctx, "k")
			require.True(t, ok)
			assert.Equal(t, []byte(`{"a":1}`), entry.Value)
			assert.Equal(t, "application/json", entry.ContentType)
			assert.True(t, entry.StoredAt.Equal(t0))

			c.Advance(29 * time.Second)
			_, ok = cache.Get(ctx, "k")
			assert.True(t, ok)

			c.Advance(time.Second)
			_, ok = cache.Get(ctx, "k")
			assert.False(t, ok, "never served past ttl")

			_, ok = cache.Get(ctx, "missing")
			assert.False(t, ok)

			assert.Equal(t, 2, rec.get(health.MetricHit))
			assert.Equal(t, 2, rec.get(health.MetricMiss))
		})
	}
}

func TestInvalidateTag(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cache := New(backend, WithClock(func() time.Time { return t0 }))

			cache.Put(ctx, "list", NewEntry([]byte("all"), "text/plain", time.Hour, []string{"petitions"}))
			cache.Put(ctx, "one", NewEntry([]byte("one"), "text/plain", time.Hour, []string{"petitions", "petition:1"}))
			cache.Put(ctx, "other", NewEntry([]byte("x"), "text/plain", time.Hour, []string{"events"}))

			removed, err := cache.Invalidate(ctx, "petitions")
			require.NoError(t, err)
			assert.Equal(t, 2, removed)

			_, ok := cache.Get(ctx, "list")
			assert.False(t, ok)
			_, ok = cache.Get(ctx, "one")
			assert.False(t, ok)
			_, ok = cache.Get(ctx, "other")
			assert.True(t, ok)

			removed, err = cache.Invalidate(ctx, "petitions")
			require.NoError(t, err)
			assert.Zero(t, removed)
		})
	}
}

func TestMemoryBackendPrunesTagIndex(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend(time.Minute)

	require.NoError(t, m.Put(ctx, "a", &Entry{Value: []byte("a"), TTL: time.Hour, Tags: []string{"x", "y"}}))
	_, err := m.Invalidate(ctx, "x")
	require.NoError(t, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.tags, "evicting an entry removes it from its other tags")
}

func TestInvalidateRacingPuts(t *testing.T) {
	perWriter := map[string]int{"memory": 5000, "redis": 300}

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			n := perWriter[name]

			var writers sync.WaitGroup
			stop := make(chan struct{})
			invalidated := make(chan struct{})
			go func() {
				defer close(invalidated)
				for {
					select {
					case <-stop:
						return
					default:
						_, err := backend.Invalidate(ctx, "petitions")
						assert.NoError(t, err)
					}
				}
			}()

			for w := 0; w < 4; w++ {
				writers.Add(1)
				go func(w int) {
					defer writers.Done()
					for i := 0; i < n; i++ {
						key := fmt.Sprintf("petition:%d:%d", w, i)
						assert.NoError(t, backend.Put(ctx, key, &Entry{Value: []byte("v"), TTL: time.Hour, StoredAt: t0, Tags: []string{"petitions"}}))
					}
				}(w)
			}
			writers.Wait()
			close(stop)
			<-invalidated

			_, err := backend.Invalidate(ctx, "petitions")
			require.NoError(t, err)

			for w := 0; w < 4; w++ {
				for i := 0; i < n; i++ {
					_, ok, err := backend.Get(ctx, fmt.Sprintf("petition:%d:%d", w, i))
					require.NoError(t, err)
					require.False(t, ok, "entry %d:%d survived invalidation", w, i)
				}
			}
			if m, ok := backend.(*MemoryBackend); ok {
				assert.Zero(t, m.Len())
			}
		})
	}
}

func TestMemoryBackendKeepsTagsOfReplacedEntry(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend(time.Minute)

	old := &Entry{Value: []byte("old"), TTL: time.Hour, Tags: []string{"petitions", "stale"}}
	fresh := &Entry{Value: []byte("new"), TTL: time.Hour, Tags: []string{"petitions"}}
	require.NoError(t, m.Put(ctx, "list", old))
	require.NoError(t, m.Put(ctx, "list", fresh))

	// a late eviction callback for the replaced entry
	m.untag("list", old)

	m.mu.Lock()
	_, indexed := m.tags["petitions"]["list"]
	_, stale := m.tags["stale"]
	m.mu.Unlock()
	assert.True(t, indexed)
	assert.False(t, stale)

	removed, err := m.Invalidate(ctx, "petitions")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Zero(t, m.Len())
}

func TestBackendFailureFailsOpen(t *testing.T) {
	ctx := context.Background()
	backend := &brokenBackend{}
	rec := &counter{}
	cache := New(backend, WithRecorder(rec))

	for i := 0; i < 10; i++ {
		_, ok := cache.Get(ctx, "k")
		assert.False(t, ok)
	}
	cache.Put(ctx, "k", NewEntry([]byte("v"), "", time.Minute, nil))

	assert.Equal(t, 11, rec.get(health.MetricError))
	assert.Equal(t, 10, rec.get(health.MetricMiss))
	assert.Equal(t, int32(3), backend.calls.Load(), "breaker stops calling the backend once open")
	assert.Equal(t, "open", cache.BreakerStats().State)

	_, err := cache.Invalidate(ctx, "tag")
	assert.Error(t, err)
}

func TestNoopBackend(t *testing.T) {
	ctx := context.Background()
	cache := New(NoopBackend{})
	cache.Put(ctx, "k", NewEntry([]byte("v"), "", time.Minute, []string{"t"}))
	_, ok := cache.Get(ctx, "k")
	assert.False(t, ok)
	n, err := cache.Invalidate(ctx, "t")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCachedMiddleware(t *testing.T) {
	c := &clock{now: t0}
	cache := New(NewMemoryBackend(time.Minute), WithClock(c.Now))

	var calls atomic.Int32
	status := http.StatusOK
	handler := cache.Cached(time.Minute, "webhooks:"+ClientTag)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"call":%d}`, calls.Load())
	}))

	send := func(clientID, ifNoneMatch string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/webhooks?page=1", nil)
		if clientID != "" {
			req = req.WithContext(auth.ContextWithPrincipal(req.Context(), &auth.Principal{
				ClientID: clientID, Scopes: []string{auth.ScopeWebhooksRead},
			}))
		}
		if ifNoneMatch != "" {
			req.Header.Set("If-None-Match", ifNoneMatch)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send("c1", "")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"call":1}`, first.Body.String())
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	c.Advance(20 * time.Second)
	second := send("c1", "")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, etag, second.Header().Get("ETag"))
	assert.Equal(t, "private, max-age=40", second.Header().Get("Cache-Control"))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"call":1}`, second.Body.String())

	notModified := send("c1", etag)
	assert.Equal(t, http.StatusNotModified, notModified.Code)
	assert.Empty(t, notModified.Body.String())

	// a different client never sees c1's entry
	other := send("c2", "")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"call":2}`, other.Body.String())

	removed, err := cache.Invalidate(context.Background(), "webhooks:c1")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, "MISS", send("c1", "").Header().Get("X-Cache"))
	assert.Equal(t, "HIT", send("c2", "").Header().Get("X-Cache"))

	status = http.StatusInternalServerError
	c.Advance(time.Hour)
	assert.Equal(t, http.StatusInternalServerError, send("c1", "").Code)
	assert.Equal(t, "MISS", send("c1", "").Header().Get("X-Cache"), "errors are not cached")
}

func TestCachedIgnoresNonGet(t *testing.T) {
	cache := New(NewMemoryBackend(time.Minute))
	var calls int
	handler := cache.Cached(time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks", nil))
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
	assert.Equal(t, 2, calls)
}
