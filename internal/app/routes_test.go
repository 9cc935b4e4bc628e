package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-gateway/internal/config"
	"api-gateway/internal/signature"
)

func newTestApp(t *testing.T, env map[string]string) *App {
	t.Helper()
	base := map[string]string{
		"JWT_SECRET":              strings.Repeat("j", 40),
		"ENCRYPTION_KEY":          strings.Repeat("e", 40),
		"STORAGE_TYPE":            "memory",
		"BOOTSTRAP_CLIENT_ID":     "root",
		"BOOTSTRAP_CLIENT_SECRET": "root-secret",
		"WEBHOOK_ALLOW_INSECURE":  "true",
		"WEBHOOK_POLL_INTERVAL":   "50ms",
		"WEBHOOK_WORKERS":         "2",
		"EVENT_SOURCE":            "none",
		"REDIS_ADDRESS":           "",
	}
	for k, v := range env {
		base[k] = v
	}
	for k, v := range base {
		t.Setenv(k, v)
	}

	cfg := config.Load()
	require.NoError(t, cfg.Validate())

	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)
	return app
}

type client struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func (c *client) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:4000"
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func login(t *testing.T, app *App, id, secret string) *client {
	t.Helper()
	c := &client{t: t, handler: app.Handler()}
	rec := c.do(http.MethodPost, "/auth/token", map[string]string{"client_id": id, "client_secret": secret})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
	}
	decodeBody(t, rec, &tokens)
	require.NotEmpty(t, tokens.AccessToken)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	c.token = tokens.AccessToken
	return c
}

// createClient registers an API client through the admin API.
func createClient(t *testing.T, admin *client, id string, scopes ...string) string {
	t.Helper()
	rec := admin.do(http.MethodPost, "/admin/clients", map[string]interface{}{
		"client_id": id, "name": id, "scopes": scopes,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	}
	decodeBody(t, rec, &created)
	assert.Equal(t, id, created.ClientID)
	return created.ClientSecret
}

func TestPublicEndpoints(t *testing.T) {
	app := newTestApp(t, nil)
	c := &client{t: t, handler: app.Handler()}

	rec := c.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var report struct {
		Status     string                     `json:"status"`
		Components map[string]json.RawMessage `json:"components"`
	}
	decodeBody(t, rec, &report)
	assert.Equal(t, "healthy", report.Status)
	for _, component := range []string{"gateway", "auth", "rate_limiter", "cache", "dispatcher"} {
		assert.Contains(t, report.Components, component)
	}
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	// the first /health request is itself counted
	rec = c.do(http.MethodGet, "/health", nil)
	var gateway struct {
		Components map[string]struct {
			Counts map[string]int64 `json:"counts"`
		} `json:"components"`
	}
	decodeBody(t, rec, &gateway)
	assert.GreaterOrEqual(t, gateway.Components["gateway"].Counts["request"], int64(1))

	rec = c.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, "/swagger/doc.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		Paths map[string]json.RawMessage `json:"paths"`
	}
	decodeBody(t, rec, &doc)
	for _, path := range []string{"/auth/token", "/webhooks", "/webhooks/{id}/deliveries", "/events", "/admin/clients", "/health"} {
		assert.Contains(t, doc.Paths, path)
	}

	rec = c.do(http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code"`)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newTestApp(t, nil)
	c := &client{t: t, handler: app.Handler()}

	rec := c.do(http.MethodGet, "/webhooks", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c.token = "not-a-jwt"
	rec = c.do(http.MethodGet, "/webhooks", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(http.MethodPost, "/auth/token", map[string]string{"client_id": "root", "client_secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestScopesAndClientLifecycle(t *testing.T) {
	app := newTestApp(t, nil)
	admin := login(t, app, "root", "root-secret")

	secret := createClient(t, admin, "reader", "webhooks:read")
	reader := login(t, app, "reader", secret)

	assert.Equal(t, http.StatusOK, reader.do(http.MethodGet, "/webhooks", nil).Code)
	assert.Equal(t, http.StatusForbidden, reader.do(http.MethodPost, "/webhooks",
		map[string]interface{}{"target_url": "https://example.com/hook", "event_types": []string{"a.b"}}).Code)
	assert.Equal(t, http.StatusForbidden, reader.do(http.MethodGet, "/admin/clients", nil).Code)

	rec := admin.do(http.MethodPost, "/admin/clients/reader/suspend", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusUnauthorized, reader.do(http.MethodGet, "/webhooks", nil).Code)

	rec = admin.do(http.MethodPost, "/admin/clients/reader/activate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, reader.do(http.MethodGet, "/webhooks", nil).Code)

	rec = admin.do(http.MethodPost, "/admin/clients/reader/revoke", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, reader.do(http.MethodGet, "/webhooks", nil).Code)

	rec = admin.do(http.MethodGet, "/admin/audit?client_id=reader", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRevokedTokenIsRejected(t *testing.T) {
	app := newTestApp(t, nil)
	admin := login(t, app, "root", "root-secret")

	rec := admin.do(http.MethodPost, "/auth/revoke", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, admin.do(http.MethodGet, "/admin/clients", nil).Code)
}

func TestClientListingIsCachedAndInvalidated(t *testing.T) {
	app := newTestApp(t, nil)
	admin := login(t, app, "root", "root-secret")

	first := admin.do(http.MethodGet, "/admin/clients", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := admin.do(http.MethodGet, "/admin/clients", nil)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	createClient(t, admin, "partner", "webhooks:read")

	third := admin.do(http.MethodGet, "/admin/clients", nil)
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Contains(t, third.Body.String(), "partner")
}

func TestAuthRoutesAreLimitedPerIP(t *testing.T) {
	app := newTestApp(t, map[string]string{"AUTH_RATE_LIMIT": "2/1m"})
	c := &client{t: t, handler: app.Handler()}

	creds := map[string]string{"client_id": "root", "client_secret": "root-secret"}
	assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/auth/token", creds).Code)
	assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/auth/token", creds).Code)

	rec := c.do(http.MethodPost, "/auth/token", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestClientRequestsAreLimitedPerTier(t *testing.T) {
	app := newTestApp(t, map[string]string{"RATE_LIMIT_TIERS": "free=3/1m"})
	admin := login(t, app, "root", "root-secret")

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/admin/stats", nil).Code)
	}
	rec := admin.do(http.MethodGet, "/admin/stats", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate_limited")
}

func TestWebhookDeliveryEndToEnd(t *testing.T) {
	type received struct {
		body      []byte
		signature string
	}
	var mu sync.Mutex
	var got []received
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, received{body: body, signature: r.Header.Get(signature.Header)})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	app := newTestApp(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	app.Start(ctx)
	defer func() {
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		assert.NoError(t, app.Shutdown(shutdownCtx))
	}()

	admin := login(t, app, "root", "root-secret")
	secret := createClient(t, admin, "shop", "webhooks:read", "webhooks:write")
	shop := login(t, app, "shop", secret)
	publisher := login(t, app, "root", "root-secret")

	rec := shop.do(http.MethodPost, "/webhooks", map[string]interface{}{
		"target_url":  target.URL + "/hook",
		"event_types": []string{"order.paid"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		SubscriptionID string `json:"subscription_id"`
		Secret         string `json:"secret"`
	}
	decodeBody(t, rec, &created)
	require.NotEmpty(t, created.Secret)

	listing := shop.do(http.MethodGet, "/webhooks", nil)
	require.Equal(t, http.StatusOK, listing.Code)
	assert.Contains(t, listing.Body.String(), created.SubscriptionID)
	assert.NotContains(t, listing.Body.String(), created.Secret)

	rec = publisher.do(http.MethodPost, "/events", map[string]interface{}{
		"event_type": "order.paid",
		"event_id":   "evt-1",
		"data":       map[string]interface{}{"amount": 42},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var published struct {
		Matched int `json:"matched"`
	}
	decodeBody(t, rec, &published)
	assert.Equal(t, 1, published.Matched)

	rec = publisher.do(http.MethodPost, "/events", map[string]interface{}{
		"event_type": "refund.created",
		"data":       map[string]interface{}{},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	delivery := got[0]
	mu.Unlock()
	assert.NoError(t, signature.Verify(created.Secret, delivery.body, delivery.signature))
	var payload struct {
		EventType string          `json:"event_type"`
		EventID   string          `json:"event_id"`
		Data      json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(delivery.body, &payload))
	assert.Equal(t, "order.paid", payload.EventType)
	assert.Equal(t, "evt-1", payload.EventID)
	assert.JSONEq(t, `{"amount":42}`, string(payload.Data))

	require.Eventually(t, func() bool {
		rec := shop.do(http.MethodGet, "/webhooks/"+created.SubscriptionID+"/deliveries", nil)
		return rec.Code == http.StatusOK && strings.Contains(rec.Body.String(), `"success"`)
	}, 5*time.Second, 20*time.Millisecond)

	// another client cannot see the subscription
	other := createClient(t, admin, "other", "webhooks:read")
	stranger := login(t, app, "other", other)
	assert.Equal(t, http.StatusNotFound, stranger.do(http.MethodGet, "/webhooks/"+created.SubscriptionID, nil).Code)

	assert.Equal(t, http.StatusNoContent, shop.do(http.MethodDelete, "/webhooks/"+created.SubscriptionID, nil).Code)
	assert.NotContains(t, shop.do(http.MethodGet, "/webhooks", nil).Body.String(), created.SubscriptionID)
}

func TestAdminOperations(t *testing.T) {
	app := newTestApp(t, nil)
	admin := login(t, app, "root", "root-secret")

	rec := admin.do(http.MethodGet, "/admin/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Breakers []struct {
			Name string `json:"name"`
		} `json:"breakers"`
		RateLimit *struct {
			Admitted int64 `json:"admitted"`
		} `json:"rate_limit"`
	}
	decodeBody(t, rec, &stats)
	require.NotEmpty(t, stats.Breakers)
	assert.Equal(t, "cache:memory", stats.Breakers[0].Name)
	require.NotNil(t, stats.RateLimit)

	rec = admin.do(http.MethodPost, "/admin/cache/invalidate", map[string]string{"tag": "clients"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = admin.do(http.MethodPost, "/admin/cache/invalidate", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = admin.do(http.MethodPost, "/admin/health/evaluate", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/admin/health/samples", nil).Code)
	assert.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/admin/health/rollups", nil).Code)
	assert.Equal(t, http.StatusBadRequest, admin.do(http.MethodGet, "/admin/health/samples?since=yesterday", nil).Code)

	rec = admin.do(http.MethodPost, "/admin/jobs/tokens.purge/run", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"ran":true`)
	rec = admin.do(http.MethodPost, "/admin/jobs/health.flush/run", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, admin.do(http.MethodPost, "/admin/jobs/unknown/run", nil).Code)
}

func TestDeliveryFailureRefreshesCachedListing(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer target.Close()

	app := newTestApp(t, map[string]string{"WEBHOOK_FAILURE_THRESHOLD": "1"})
	admin := login(t, app, "root", "root-secret")
	secret := createClient(t, admin, "shop", "webhooks:read", "webhooks:write")
	shop := login(t, app, "shop", secret)

	rec := shop.do(http.MethodPost, "/webhooks", map[string]interface{}{
		"target_url":  target.URL + "/hook",
		"event_types": []string{"order.paid"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	type listing struct {
		Subscriptions []struct {
			Status              string `json:"status"`
			ConsecutiveFailures int    `json:"consecutive_failures"`
		} `json:"subscriptions"`
	}
	list := func(wantCache string) listing {
		t.Helper()
		rec := shop.do(http.MethodGet, "/webhooks", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, wantCache, rec.Header().Get("X-Cache"))
		var l listing
		decodeBody(t, rec, &l)
		require.Len(t, l.Subscriptions, 1)
		return l
	}

	assert.Equal(t, "active", list("MISS").Subscriptions[0].Status)
	list("HIT")

	rec = admin.do(http.MethodPost, "/events", map[string]interface{}{"event_type": "order.paid"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	n, err := app.Dispatcher.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	l := list("MISS")
	assert.Equal(t, "failing", l.Subscriptions[0].Status)
	assert.Equal(t, 1, l.Subscriptions[0].ConsecutiveFailures)
}
