// Package auth issues and verifies the gateway's bearer tokens. Tokens are
// HS256 JWTs whose jti is recorded in the token store so they can be revoked
// before they expire.
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/logging"
	"api-gateway/internal/common/utils"
	"api-gateway/internal/crypto"
	"api-gateway/internal/health"
	"api-gateway/internal/models"
	"api-gateway/internal/storage"
)

// Scopes understood by the gateway's own routes. ScopeAdmin implies all others.
const (
	ScopeAdmin         = "admin"
	ScopeWebhooksRead  = "webhooks:read"
	ScopeWebhooksWrite = "webhooks:write"
	ScopeEventsPublish = "events:publish"
)

// Store is the persistence the manager needs.
type Store interface {
	storage.ClientStore
	storage.TokenStore
	storage.AuditStore
}

type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Claims are the JWT claims of both token kinds.
type Claims struct {
	ClientID string           `json:"client_id"`
	Kind     models.TokenKind `json:"kind"`
	Scope    []string         `json:"scope"`
	jwt.RegisteredClaims
}

// TokenPair is returned by Issue and Refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	Scopes           []string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
}

// ExpiresIn is the access token lifetime in whole seconds from now.
func (p *TokenPair) ExpiresIn(now time.Time) int {
	return utils.CeilSeconds(p.ExpiresAt.Sub(now), 0)
}

// Principal is the verified identity behind a request.
type Principal struct {
	Client    *models.ApiClient
	ClientID  string
	Scopes    []string
	TokenID   string
	ExpiresAt time.Time
}

// HasScope reports whether the token carries scope, or admin.
func (p *Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope || s == ScopeAdmin {
			return true
		}
	}
	return false
}

type Manager struct {
	store    Store
	config   Config
	recorder health.Recorder
	logger   logging.Logger
	now      func() time.Time
}

type Option func(*Manager)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithRecorder(r health.Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(config Config, store Store, opts ...Option) (*Manager, error) {
	if len(config.Secret) < 32 {
		return nil, errors.ConfigurationError("JWT secret must be at least 32 bytes")
	}
	if config.AccessTTL <= 0 || config.RefreshTTL <= 0 {
		return nil, errors.ConfigurationError("token lifetimes must be positive")
	}

	m := &Manager{
		store:    store,
		config:   config,
		recorder: health.NopRecorder{},
		logger:   logging.Component("auth"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Issue exchanges client credentials for a token pair. An empty scope list
// requests every scope the client holds.
func (m *Manager) Issue(ctx context.Context, clientID, clientSecret string, scopes []string) (*TokenPair, error) {
	client, err := m.store.GetClient(ctx, clientID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, m.issueFailure(ctx, clientID, "unknown client")
		}
		return nil, errors.InternalError("failed to load client", err)
	}

	if !crypto.CompareSecret(client.SecretHash, clientSecret) {
		return nil, m.issueFailure(ctx, clientID, "secret mismatch")
	}
	if client.Status != models.ClientActive {
		return nil, m.issueFailure(ctx, clientID, fmt.Sprintf("client is %s", client.Status))
	}

	granted := client.Scopes
	if len(scopes) > 0 {
		for _, s := range scopes {
			if !client.HasScope(s) {
				m.recorder.Incr(health.ComponentAuth, health.MetricAuthFailure)
				m.audit(ctx, models.AuditAuthFailed, clientID, "", fmt.Sprintf("scope %s not granted", s))
				return nil, errors.AuthError(errors.CodeInvalidCredentials,
					fmt.Sprintf("scope %q is not granted to this client", s))
			}
		}
		granted = scopes
	}

	pair, accessID, err := m.issuePair(ctx, client, granted)
	if err != nil {
		return nil, err
	}

	m.recorder.Incr(health.ComponentAuth, health.MetricIssued)
	m.audit(ctx, models.AuditTokenIssued, client.ID, accessID, "")
	return pair, nil
}

func (m *Manager) issueFailure(ctx context.Context, clientID, detail string) error {
	m.recorder.Incr(health.ComponentAuth, health.MetricAuthFailure)
	m.audit(ctx, models.AuditAuthFailed, clientID, "", detail)
	m.logger.WithContext(ctx).Warn("Token request rejected",
		logging.Field{Key: "client_id", Value: clientID},
		logging.Field{Key: "reason", Value: detail},
	)
	return errors.AuthError(errors.CodeInvalidCredentials, "invalid client credentials")
}

// Verify checks an access token's signature and expiry, then its revocation
// flag and the owning client's status.
func (m *Manager) Verify(ctx context.Context, token string) (*Principal, error) {
	principal, err := m.verify(ctx, token)
	if err != nil {
		m.recorder.Incr(health.ComponentAuth, health.MetricVerifyFailure)
		return nil, err
	}
	m.recorder.Incr(health.ComponentAuth, health.MetricVerified)
	return principal, nil
}

func (m *Manager) verify(ctx context.Context, token string) (*Principal, error) {
	claims, err := m.parse(token, true)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.AuthError(errors.CodeTokenExpired, "token has expired")
		}
		return nil, errors.AuthError(errors.CodeTokenMalformed, "token is malformed or has an invalid signature")
	}
	if claims.Kind != models.TokenAccess {
		return nil, errors.AuthError(errors.CodeTokenMalformed, "refresh tokens cannot authorize requests")
	}

	client, err := m.checkRecord(ctx, claims)
	if err != nil {
		return nil, err
	}

	return &Principal{
		Client:    client,
		ClientID:  client.ID,
		Scopes:    claims.Scope,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// checkRecord enforces state a signature cannot carry: revocation and the
// client's current status.
func (m *Manager) checkRecord(ctx context.Context, claims *Claims) (*models.ApiClient, error) {
	record, err := m.store.GetToken(ctx, claims.ID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.AuthError(errors.CodeTokenRevoked, "token is not recognised")
		}
		return nil, errors.InternalError("failed to load token", err)
	}
	if record.Revoked {
		return nil, errors.AuthError(errors.CodeTokenRevoked, "token has been revoked")
	}

	client, err := m.store.GetClient(ctx, claims.ClientID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.AuthError(errors.CodeTokenRevoked, "client no longer exists")
		}
		return nil, errors.InternalError("failed to load client", err)
	}
	if client.Status != models.ClientActive {
		return nil, errors.AuthError(errors.CodeTokenRevoked, fmt.Sprintf("client is %s", client.Status))
	}
	return client, nil
}

// Refresh exchanges a refresh token for a new pair. Previously issued tokens
// stay valid until they expire or are revoked.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	invalid := errors.AuthError(errors.CodeRefreshInvalid, "refresh token is invalid")

	claims, err := m.parse(refreshToken, true)
	if err != nil || claims.Kind != models.TokenRefresh {
		m.recorder.Incr(health.ComponentAuth, health.MetricAuthFailure)
		return nil, invalid
	}

	client, err := m.checkRecord(ctx, claims)
	if err != nil {
		if errors.IsType(err, errors.ErrTypeInternal) {
			return nil, err
		}
		m.recorder.Incr(health.ComponentAuth, health.MetricAuthFailure)
		m.audit(ctx, models.AuditAuthFailed, claims.ClientID, claims.ID, "refresh rejected")
		return nil, invalid
	}

	// scopes removed from the client since issuance are not carried over
	var scopes []string
	for _, s := range claims.Scope {
		if client.HasScope(s) {
			scopes = append(scopes, s)
		}
	}
	if len(scopes) == 0 {
		return nil, invalid
	}

	pair, accessID, err := m.issuePair(ctx, client, scopes)
	if err != nil {
		return nil, err
	}

	m.recorder.Incr(health.ComponentAuth, health.MetricIssued)
	m.audit(ctx, models.AuditTokenRefreshed, client.ID, accessID, "refreshed from "+claims.ID)
	return pair, nil
}

// Revoke revokes a token of either kind. Expired tokens can be revoked and
// revoking twice is not an error.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	_, err := m.revoke(ctx, token, nil)
	return err
}

// RevokeAs revokes token on behalf of principal, who must own it or be admin.
func (m *Manager) RevokeAs(ctx context.Context, principal *Principal, token string) error {
	_, err := m.revoke(ctx, token, func(c *Claims) error {
		if c.ClientID != principal.ClientID && !principal.HasScope(ScopeAdmin) {
			return errors.ForbiddenError(ScopeAdmin)
		}
		return nil
	})
	return err
}

func (m *Manager) revoke(ctx context.Context, token string, allow func(*Claims) error) (*Claims, error) {
	claims, err := m.parse(token, false)
	if err != nil {
		return nil, errors.AuthError(errors.CodeTokenMalformed, "token is malformed or has an invalid signature")
	}
	if allow != nil {
		if err := allow(claims); err != nil {
			return nil, err
		}
	}

	if err := m.store.RevokeToken(ctx, claims.ID); err != nil && !stderrors.Is(err, storage.ErrNotFound) {
		return nil, errors.InternalError("failed to revoke token", err)
	}

	m.recorder.Incr(health.ComponentAuth, health.MetricRevoked)
	m.audit(ctx, models.AuditTokenRevoked, claims.ClientID, claims.ID, "")
	return claims, nil
}

func (m *Manager) parse(token string, validateClaims bool) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if validateClaims {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer), jwt.WithExpirationRequired())
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := new(Claims)
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" || claims.ClientID == "" {
		return nil, fmt.Errorf("token lacks jti or client_id")
	}
	return claims, nil
}

// issuePair signs and records an access and a refresh token. Both lifetimes
// are capped by the client's maximum token lifetime.
func (m *Manager) issuePair(ctx context.Context, client *models.ApiClient, scopes []string) (*TokenPair, string, error) {
	now := m.now().Truncate(time.Second)

	accessTTL := capLifetime(m.config.AccessTTL, client.MaxTokenLifetime)
	refreshTTL := capLifetime(m.config.RefreshTTL, client.MaxTokenLifetime)

	access, accessID, err := m.sign(ctx, client.ID, models.TokenAccess, scopes, now, now.Add(accessTTL))
	if err != nil {
		return nil, "", err
	}
	refresh, _, err := m.sign(ctx, client.ID, models.TokenRefresh, scopes, now, now.Add(refreshTTL))
	if err != nil {
		return nil, "", err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		Scopes:           scopes,
		ExpiresAt:        now.Add(accessTTL),
		RefreshExpiresAt: now.Add(refreshTTL),
	}, accessID, nil
}

func (m *Manager) sign(ctx context.Context, clientID string, kind models.TokenKind, scopes []string, issuedAt, expiresAt time.Time) (string, string, error) {
	id := utils.NewEventID()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ClientID: clientID,
		Kind:     kind,
		Scope:    scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    m.config.Issuer,
			Subject:   clientID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(m.config.Secret)
	if err != nil {
		return "", "", errors.InternalError("failed to sign token", err)
	}

	record := &models.AccessToken{
		ID:        id,
		ClientID:  clientID,
		Kind:      kind,
		Scopes:    scopes,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}
	if err := m.store.SaveToken(ctx, record); err != nil {
		return "", "", errors.InternalError("failed to record token", err)
	}
	return signed, id, nil
}

func capLifetime(ttl, max time.Duration) time.Duration {
	if max > 0 && max < ttl {
		return max
	}
	return ttl
}

// PurgeExpired deletes token records that expired before now.
func (m *Manager) PurgeExpired(ctx context.Context) (int, error) {
	n, err := m.store.PurgeExpiredTokens(ctx, m.now())
	if err != nil {
		return 0, errors.InternalError("failed to purge expired tokens", err)
	}
	return n, nil
}

func (m *Manager) audit(ctx context.Context, action, clientID, tokenID, detail string) {
	entry := &models.AuditEntry{
		ID:        utils.NewID(),
		Action:    action,
		ClientID:  clientID,
		TokenID:   tokenID,
		Detail:    detail,
		CreatedAt: m.now(),
	}
	if err := m.store.AppendAudit(ctx, entry); err != nil {
		m.logger.WithContext(ctx).Error("Failed to append audit entry", err,
			logging.Field{Key: "action", Value: action},
		)
	}
}
