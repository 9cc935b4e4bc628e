package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/health"
	"api-gateway/internal/models"
	"api-gateway/internal/storage/memory"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) Incr(component, metric string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[component+"."+metric]++
}

func (r *countingRecorder) Observe(string, string, time.Duration) {}

func (r *countingRecorder) get(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

type fixture struct {
	manager  *Manager
	store    *memory.Store
	recorder *countingRecorder
	now      time.Time
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), recorder: &countingRecorder{}, now: t0}

	m, err := NewManager(Config{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "api-gateway-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}, f.store,
		WithClock(func() time.Time { return f.now }),
		WithRecorder(f.recorder),
	)
	require.NoError(t, err)
	f.manager = m
	return f
}

func (f *fixture) createClient(t *testing.T, id string, scopes ...string) string {
	t.Helper()
	_, secret, err := f.manager.CreateClient(context.Background(), ClientSpec{ID: id, Name: id, Scopes: scopes, Tier: "free"})
	require.NoError(t, err)
	return secret
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, errors.CodeOf(err))
}

func TestNewManagerValidatesConfig(t *testing.T) {
	_, err := NewManager(Config{Secret: []byte("short"), AccessTTL: time.Minute, RefreshTTL: time.Hour}, memory.New())
	assert.True(t, errors.IsType(err, errors.ErrTypeConfiguration))

	_, err = NewManager(Config{Secret: make([]byte, 32)}, memory.New())
	assert.Error(t, err)
}

func TestIssueAndVerify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	secret := f.createClient(t, "mobile", ScopeWebhooksRead, ScopeWebhooksWrite)

	pair, err := f.manager.Issue(ctx, "mobile", secret, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, 900, pair.ExpiresIn(f.now))
	assert.ElementsMatch(t, []string{ScopeWebhooksRead, ScopeWebhooksWrite}, pair.Scopes)

	principal, err := f.manager.Verify(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "mobile", principal.ClientID)
	assert.True(t, principal.HasScope(ScopeWebhooksWrite))
	assert.False(t, principal.HasScope(ScopeAdmin))
	assert.True(t, principal.ExpiresAt.Equal(t0.Add(15*time.Minute)))

	f.advance(15*time.Minute - time.Second)
	_, err = f.manager.Verify(ctx, pair.AccessToken)
	require.NoError(t, err)

	f.advance(2 * time.Second)
	_, err = f.manager.Verify(ctx, pair.AccessToken)
	assertCode(t, err, errors.CodeTokenExpired)

	assert.Equal(t, 1, f.recorder.get("auth."+health.MetricIssued))
	assert.Equal(t, 2, f.recorder.get("auth."+health.MetricVerified))
	assert.Equal(t, 1, f.recorder.get("auth."+health.MetricVerifyFailure))

	entries, _, err := f.store.ListAudit(ctx, "mobile", 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, models.AuditTokenIssued, entries[0].Action)
}

func TestIssueRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	secret := f.createClient(t, "partner", ScopeWebhooksRead)

	tests := []struct {
		name     string
		clientID string
		secret   string
		scopes   []string
	}{
		{"unknown client", "ghost", secret, nil},
		{"wrong secret", "partner", "cs_wrong", nil},
		{"scope not granted", "partner", secret, []string{ScopeAdmin}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.Issue(ctx, tt.clientID, tt.secret, tt.scopes)
			assertCode(t, err, errors.CodeInvalidCredentials)
		})
	}

	require.NoError(t, f.manager.SuspendClient(ctx, "partner"))
	_, err := f.manager.Issue(ctx, "partner", secret, nil)
	assertCode(t, err, errors.CodeInvalidCredentials)

	assert.Equal(t, 4, f.recorder.get("auth."+health.MetricAuthFailure))
}

func TestIssueNarrowsScopes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	secret := f.createClient(t, "partner", ScopeWebhooksRead, ScopeWebhooksWrite)

	pair, err := f.manager.Issue(ctx, "partner", secret, []string{ScopeWebhooksRead})
	require.NoError(t, err)

	principal, err := f.manager.Verify(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.True(t, principal.HasScope(ScopeWebhooksRead))
	assert.False(t, principal.HasScope(ScopeWebhooksWrite))
}

func TestClientMaxLifetimeCapsTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, secret, err := f.manager.CreateClient(ctx, ClientSpec{
		ID: "kiosk", Name: "kiosk", Scopes: []string{ScopeWebhooksRead}, MaxTokenLifetime: 5 * time.Minute,
	})
	require.NoError(t, err)

	pair, err := f.manager.Issue(ctx, "kiosk", secret, nil)
	require.NoError(t, err)
	assert.True(t, pair.ExpiresAt.Equal(t0.Add(5*time.Minute)))
	assert.True(t, pair.RefreshExpiresAt.Equal(t0.Add(5*time.Minute)))
}

func TestVerifyRejectsMalformed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	secret := f.createClient(t, "mobile", ScopeWebhooksRead)
	pair, err := f.manager.Issue(ctx, "mobile", secret, nil)
	require.NoError(t, err)

	_, err = f.manager.Verify(ctx, "not-a-jwt")
	assertCode(t, err, errors.CodeTokenMalformed)

	_, err = f.manager.Verify(ctx, pair.AccessToken+"x")
	assertCode(t, err, errors.CodeTokenMalformed)

	_, err = f.manager.Verify(ctx, pair.RefreshToken)
	assertCode(t, err, errors.CodeTokenMalformed)

	other, err := NewManager(Config{
		Secret: []byte("another-secret-another-secret-xx"), Issuer: "api-gateway-test",
		AccessTTL: time.Minute, RefreshTTL: time.Hour,
	}, f.store, WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)
	_, err = other.Verify(ctx, pair.AccessToken)
	assertCode(t, err, errors.CodeTokenMalformed)
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	secret := f.createClient(t, "mobile", ScopeWebhooksRead)
	pair, err := f.manager.Issue(ctx, "mobile", secret, nil)
	require.NoError(t, err)

	require.NoError(t, f.manager.Revoke(ctx, pair.AccessToken))
	require.NoError(t, f.manager.Revoke(ctx, pair.AccessToken))

	_, err = f.manager.Verify(ctx, pair.AccessToken)
	assertCode(t, err, errors.CodeTokenRevoked)

	// expired tokens can still be revoked
	f.advance(48 * time.Hour)
	require.NoError(t, f.manager.Revoke(ctx, pair.RefreshToken))

	assertCode(t, f.manager.Revoke(ctx, "garbage"), errors.CodeTokenMalformed)
}

func TestRevokeAsRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	aliceSecret := f.createClient(t, "alice", ScopeWebhooksRead)
	bobSecret := f.createClient(t, "bob", ScopeWebhooksRead)
	adminSecret := f.createClient(t, "root", ScopeAdmin)

	alice, err := f.manager.Issue(ctx, "alice", aliceSecret, nil)
	require.NoError(t, err)
	bob, err := f.manager.Issue(ctx, "bob", bobSecret, nil)
	require.NoError(t, err)
	admin, err := f.manager.Issue(ctx, "root", adminSecret, nil)
	require.NoError(t, err)

	bobPrincipal, err := f.manager.Verify(ctx, bob.AccessToken)
	require.NoError(t, err)
	err = f.manager.RevokeAs(ctx, bobPrincipal, alice.AccessToken)
	assertCode(t, err, errors.CodeInsufficientScope)

	adminPrincipal, err := f.manager.Verify(ctx, admin.AccessToken)
	require.NoError(t, err)
	require.NoError(t, f.manager.RevokeAs(ctx, adminPrincipal, alice.AccessToken))

	_, err = f.manager.Verify(ctx, alice.AccessToken)
	assertCode(t, err, errors.CodeTokenRevoked)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	secret := f.createClient(t, "mobile", ScopeWebhooksRead)
	pair, err := f.manager.Issue(ctx, "mobile", secret, nil)
	require.NoError(t, err)

	f.advance(20 * time.Minute)
	_, err = f.manager.Verify(ctx, pair.AccessToken)
	assertCode(t, err, errors.CodeTokenExpired)

	fresh, err := f.manager.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, fresh.AccessToken)

	_, err = f.manager.Verify(ctx, fresh.AccessToken)
	require.NoError(t, err)

	// the old refresh token stays usable until it expires or is revoked
	_, err = f.manager.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	_, err = f.manager.Refresh(ctx, fresh.AccessToken)
	assertCode(t, err, errors.CodeRefreshInvalid)

	require.NoError(t, f.manager.Revoke(ctx, pair.RefreshToken))
	_, err = f.manager.Refresh(ctx, pair.RefreshToken)
	assertCode(t, err, errors.CodeRefreshInvalid)

	f.advance(25 * time.Hour)
	_, err = f.manager.Refresh(ctx, fresh.RefreshToken)
	assertCode(t, err, errors.CodeRefreshInvalid)
}

func TestSuspendAndRevokeClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	secret := f.createClient(t, "mobile", ScopeWebhooksRead)
	pair, err := f.manager.Issue(ctx, "mobile", secret, nil)
	require.NoError(t, err)

	require.NoError(t, f.manager.SuspendClient(ctx, "mobile"))
	_, err = f.manager.Verify(ctx, pair.AccessToken)
	assertCode(t, err, errors.CodeTokenRevoked)
	_, err = f.manager.Refresh(ctx, pair.RefreshToken)
	assertCode(t, err, errors.CodeRefreshInvalid)

	require.NoError(t, f.manager.ActivateClient(ctx, "mobile"))
	_, err = f.manager.Verify(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.manager.RevokeClient(ctx, "mobile"))
	require.NoError(t, f.manager.RevokeClient(ctx, "mobile"))
	_, err = f.manager.Verify(ctx, pair.AccessToken)
	assertCode(t, err, errors.CodeTokenRevoked)

	err = f.manager.ActivateClient(ctx, "mobile")
	assert.True(t, errors.IsType(err, errors.ErrTypeConflict))

	tok, err := f.store.GetToken(ctx, principalTokenID(t, f, pair.RefreshToken))
	require.NoError(t, err)
	assert.True(t, tok.Revoked)

	assert.True(t, errors.IsType(f.manager.SuspendClient(ctx, "ghost"), errors.ErrTypeNotFound))
}

func principalTokenID(t *testing.T, f *fixture, token string) string {
	t.Helper()
	claims, err := f.manager.parse(token, false)
	require.NoError(t, err)
	return claims.ID
}

func TestEnsureClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	spec := ClientSpec{ID: "admin", Name: "bootstrap", Scopes: []string{ScopeAdmin}, Secret: "bootstrap-secret"}

	created, err := f.manager.EnsureClient(ctx, spec)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.manager.EnsureClient(ctx, spec)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = f.manager.Issue(ctx, "admin", "bootstrap-secret", nil)
	require.NoError(t, err)

	_, err = f.manager.EnsureClient(ctx, ClientSpec{Name: "x", Scopes: []string{ScopeAdmin}})
	assert.True(t, errors.IsType(err, errors.ErrTypeConfiguration))
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	secret := f.createClient(t, "mobile", ScopeWebhooksRead)
	_, err := f.manager.Issue(ctx, "mobile", secret, nil)
	require.NoError(t, err)

	f.advance(time.Hour)
	n, err := f.manager.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the access token has expired")
}

func TestMiddleware(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	secret := f.createClient(t, "mobile", ScopeWebhooksRead)
	pair, err := f.manager.Issue(ctx, "mobile", secret, nil)
	require.NoError(t, err)

	var seen *Principal
	handler := f.manager.RequireAuth(RequireScope(ScopeWebhooksRead)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))
	writeOnly := f.manager.RequireAuth(RequireScope(ScopeWebhooksWrite)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name   string
		h      http.Handler
		header string
		status int
		body   string
	}{
		{"no header", handler, "", http.StatusUnauthorized, errors.CodeTokenMalformed},
		{"not bearer", handler, "Basic abc", http.StatusUnauthorized, errors.CodeTokenMalformed},
		{"valid", handler, "Bearer " + pair.AccessToken, http.StatusNoContent, ""},
		{"lower-case scheme", handler, "bearer " + pair.AccessToken, http.StatusNoContent, ""},
		{"missing scope", writeOnly, "Bearer " + pair.AccessToken, http.StatusForbidden, errors.CodeInsufficientScope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/webhooks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			tt.h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Contains(t, rec.Body.String(), `"code":"`+tt.body+`"`)
			}
		})
	}
	require.NotNil(t, seen)
	assert.Equal(t, "mobile", seen.ClientID)
}
