package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-gateway/internal/auth"
	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/logging"
	"api-gateway/internal/models"
	"api-gateway/internal/redis"
)

// aligned to a minute boundary
var t0 = time.UnixMilli(1_700_000_040_000)

type failingStore struct{}

func (failingStore) Admit(context.Context, string, int, time.Duration, time.Time) (Window, error) {
	return Window{}, fmt.Errorf("connection refused")
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestLimiter(t *testing.T, store CounterStore, c *clock) *Limiter {
	t.Helper()
	l, err := NewLimiter(store, []Rule{
		{Tier: "free", Limit: 5, Window: time.Minute},
		{Tier: "partner", Limit: 100, Window: time.Minute},
		{Tier: "partner", RouteClass: "events", Limit: 2, Window: time.Minute},
	}, "free", WithClock(c.Now))
	require.NoError(t, err)
	return l
}

func TestNewLimiterValidation(t *testing.T) {
	_, err := NewLimiter(NewMemoryStore(), []Rule{{Tier: "free", Limit: 5, Window: time.Minute}}, "gold")
	assert.True(t, errors.IsType(err, errors.ErrTypeConfiguration))

	_, err = NewLimiter(NewMemoryStore(), []Rule{{Tier: "free", Limit: 0, Window: time.Minute}}, "free")
	assert.Error(t, err)
}

func TestRuleFor(t *testing.T) {
	l := newTestLimiter(t, NewMemoryStore(), &clock{now: t0})

	tests := []struct {
		tier, class string
		want        int
	}{
		{"partner", "events", 2},
		{"partner", "webhooks", 100},
		{"partner", "", 100},
		{"free", "events", 5},
		{"unknown", "", 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, l.RuleFor(tt.tier, tt.class).Limit, "%s/%s", tt.tier, tt.class)
	}
}

func TestScenarioFivePerMinute(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: t0}
	l := newTestLimiter(t, NewMemoryStore(), c)

	for i := 0; i < 5; i++ {
		c.Set(t0.Add(time.Duration(i) * time.Second))
		d := l.Admit(ctx, "c1", "", "free")
		require.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 4-i, d.Remaining)
	}

	c.Set(t0.Add(20 * time.Second))
	d := l.Admit(ctx, "c1", "", "free")
	assert.False(t, d.Allowed)
	assert.Equal(t, 40*time.Second, d.RetryAfter)
	assert.Equal(t, 40, d.RetryAfterSeconds())
	assert.True(t, d.ResetAt.Equal(t0.Add(time.Minute)))

	// other clients are unaffected
	assert.True(t, l.Admit(ctx, "c2", "", "free").Allowed)

	stats := l.Stats()
	assert.Equal(t, int64(6), stats.Admitted)
	assert.Equal(t, int64(1), stats.Denied)
	assert.Equal(t, 2, stats.Buckets)
}

func TestSlidingWindowWeighsPreviousWindow(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: t0}
	l := newTestLimiter(t, NewMemoryStore(), c)

	for i := 0; i < 5; i++ {
		require.True(t, l.Admit(ctx, "c1", "", "free").Allowed)
	}

	c.Set(t0.Add(90 * time.Second))
	d := l.Admit(ctx, "c1", "", "free")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	c.Set(t0.Add(91 * time.Second))
	assert.True(t, l.Admit(ctx, "c1", "", "free").Allowed)
	c.Set(t0.Add(92 * time.Second))
	assert.True(t, l.Admit(ctx, "c1", "", "free").Allowed)
	c.Set(t0.Add(93 * time.Second))
	assert.False(t, l.Admit(ctx, "c1", "", "free").Allowed)

	c.Set(t0.Add(3 * time.Minute))
	d = l.Admit(ctx, "c1", "", "free")
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
}

func TestRetryAfterRoundsUp(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: t0}
	l := newTestLimiter(t, NewMemoryStore(), c)

	for i := 0; i < 2; i++ {
		require.True(t, l.Admit(ctx, "p1", "events", "partner").Allowed)
	}
	c.Set(t0.Add(59*time.Second + 500*time.Millisecond))
	d := l.Admit(ctx, "p1", "events", "partner")
	require.False(t, d.Allowed)
	assert.Equal(t, 1, d.RetryAfterSeconds())

	// the route class override does not consume the general budget
	assert.True(t, l.Admit(ctx, "p1", "webhooks", "partner").Allowed)
}

func TestConcurrentAdmissionNeverExceedsLimit(t *testing.T) {
	stores := map[string]CounterStore{"memory": NewMemoryStore()}

	mr := miniredis.RunT(t)
	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	stores["redis"] = NewRedisStore(client)

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			l := newTestLimiter(t, store, &clock{now: t0})

			var admitted atomic.Int64
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if l.Admit(context.Background(), "burst", "", "free").Allowed {
						admitted.Add(1)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, int64(5), admitted.Load())
		})
	}
}

func TestStoreFailureFailsOpen(t *testing.T) {
	l := newTestLimiter(t, failingStore{}, &clock{now: t0})

	for i := 0; i < 10; i++ {
		assert.True(t, l.Admit(context.Background(), "c1", "", "free").Allowed)
	}
	assert.Equal(t, int64(10), l.Stats().StoreErrors)
}

func TestMiddleware(t *testing.T) {
	c := &clock{now: t0}
	l := newTestLimiter(t, NewMemoryStore(), c)

	handler := l.Middleware("webhooks")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	principal := &auth.Principal{
		ClientID: "c1",
		Client:   &models.ApiClient{ID: "c1", Tier: "free"},
	}
	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/webhooks", nil)
		req = req.WithContext(auth.ContextWithPrincipal(req.Context(), principal))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 5; i++ {
		rec := send()
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, fmt.Sprint(4-i), rec.Header().Get("X-RateLimit-Remaining"))
	}

	c.Set(t0.Add(30 * time.Second))
	rec := send()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, fmt.Sprint(t0.Add(time.Minute).Unix()), rec.Header().Get("X-RateLimit-Reset"))
	assert.Contains(t, rec.Body.String(), `"code":"rate_limited"`)
}

func TestIPMiddleware(t *testing.T) {
	rule := Rule{RouteClass: "auth", Limit: 2, Window: time.Minute}
	proxies := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	newHandler := func(opts ...Option) http.Handler {
		store := NewMemoryStore()
		l, err := NewLimiter(store, []Rule{{Tier: "free", Limit: 100, Window: time.Minute}}, "free",
			append([]Option{WithClock((&clock{now: t0}).Now), WithLogger(logging.Nop())}, opts...)...)
		require.NoError(t, err)
		return l.IPMiddleware(rule)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
	}
	send := func(h http.Handler, remote, forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/token", nil)
		req.RemoteAddr = remote
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("untrusted peer cannot rotate forwarded addresses", func(t *testing.T) {
		h := newHandler()
		admitted := 0
		for i := 0; i < 50; i++ {
			if send(h, "203.0.113.9:4000", fmt.Sprintf("198.51.100.%d", i)) == http.StatusOK {
				admitted++
			}
		}
		assert.Equal(t, 2, admitted)
	})

	t.Run("trusted proxy forwards distinct clients", func(t *testing.T) {
		h := newHandler(WithTrustedProxies(proxies))
		assert.Equal(t, http.StatusOK, send(h, "10.0.0.1:5000", "203.0.113.7"))
		assert.Equal(t, http.StatusOK, send(h, "10.0.0.1:5001", "203.0.113.7"))
		assert.Equal(t, http.StatusTooManyRequests, send(h, "10.0.0.1:5002", "203.0.113.7, 10.0.0.1"))
		assert.Equal(t, http.StatusOK, send(h, "10.0.0.1:5003", "203.0.113.8"))
	})

	t.Run("peer address without headers", func(t *testing.T) {
		h := newHandler(WithTrustedProxies(proxies))
		assert.Equal(t, http.StatusOK, send(h, "192.0.2.1:5000", ""))
		assert.Equal(t, http.StatusOK, send(h, "192.0.2.1:5001", ""))
		assert.Equal(t, http.StatusTooManyRequests, send(h, "192.0.2.1:5002", ""))
	})
}

func TestClientIP(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("192.0.2.0/24"), netip.MustParsePrefix("2001:db8::/32")}

	tests := []struct {
		name      string
		remote    string
		forwarded string
		realIP    string
		trusted   []netip.Prefix
		want      string
	}{
		{"peer only", "192.0.2.1:1234", "", "", nil, "192.0.2.1"},
		{"untrusted forwarded", "203.0.113.5:1234", "198.51.100.2", "", trusted, "203.0.113.5"},
		{"untrusted real ip", "203.0.113.5:1234", "", "198.51.100.2", trusted, "203.0.113.5"},
		{"no proxies configured", "192.0.2.1:1234", "198.51.100.2", "", nil, "192.0.2.1"},
		{"trusted forwarded", "192.0.2.1:1234", "203.0.113.9, 198.51.100.2", "", trusted, "203.0.113.9"},
		{"trusted real ip", "192.0.2.1:1234", "", "198.51.100.2", trusted, "198.51.100.2"},
		{"trusted garbage", "192.0.2.1:1234", "not-an-ip", "", trusted, "192.0.2.1"},
		{"trusted oversized", "192.0.2.1:1234", strings.Repeat("1.1.1.1,", 100), "", trusted, "192.0.2.1"},
		{"ipv6 proxy", "[2001:db8::1]:443", "203.0.113.4", "", trusted, "203.0.113.4"},
		{"mapped ipv4 peer", "[::ffff:192.0.2.7]:80", "", "", nil, "192.0.2.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, ClientIP(req, tt.trusted))
		})
	}
}
