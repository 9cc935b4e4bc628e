// Package models holds the records shared by the gateway's stores and services.
package models

import (
	"encoding/json"
	"time"
)

// ClientStatus is the lifecycle state of an ApiClient. Clients are never
// hard-deleted.
type ClientStatus string

const (
	ClientActive    ClientStatus = "active"
	ClientSuspended ClientStatus = "suspended"
	ClientRevoked   ClientStatus = "revoked"
)

// ApiClient is a registered external consumer of the API.
type ApiClient struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	SecretHash string       `json:"-"`
	Scopes     []string     `json:"scopes"`
	Tier       string       `json:"tier"`
	Status     ClientStatus `json:"status"`
	// MaxTokenLifetime caps every token issued to this client. Zero means
	// the gateway default applies unchanged.
	MaxTokenLifetime time.Duration `json:"max_token_lifetime"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// HasScope reports whether the client was granted scope.
func (c *ApiClient) HasScope(scope string) bool {
	return containsString(c.Scopes, scope)
}

// TokenKind distinguishes access from refresh tokens.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// AccessToken is the stored record of an issued JWT, keyed by its jti.
// Only the revocation flag ever changes after issuance.
type AccessToken struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Kind      TokenKind `json:"kind"`
	Scopes    []string  `json:"scopes"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
}

// SubscriptionStatus is the delivery state of a webhook subscription.
type SubscriptionStatus string

const (
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionPaused  SubscriptionStatus = "paused"
	SubscriptionFailing SubscriptionStatus = "failing"
)

// WildcardEvent subscribes to every event type.
const WildcardEvent = "*"

// Subscription is a client's registration of a webhook endpoint.
type Subscription struct {
	ID         string   `json:"id"`
	ClientID   string   `json:"client_id"`
	TargetURL  string   `json:"target_url"`
	EventTypes []string `json:"event_types"`

	// Secret holds the encrypted shared secret as persisted.
	Secret              string             `json:"-"`
	Status              SubscriptionStatus `json:"status"`
	ConsecutiveFailures int                `json:"consecutive_failures"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
	DeletedAt           *time.Time         `json:"deleted_at,omitempty"`
}

// Matches reports whether the subscription wants eventType.
func (s *Subscription) Matches(eventType string) bool {
	return containsString(s.EventTypes, eventType) || containsString(s.EventTypes, WildcardEvent)
}

// Deliverable reports whether new deliveries may be attempted.
func (s *Subscription) Deliverable() bool {
	return s.DeletedAt == nil && (s.Status == SubscriptionActive || s.Status == SubscriptionFailing)
}

// Event is a domain event accepted for webhook fan-out. Body is the exact
// envelope sent to receivers, so every retry signs the same bytes.
type Event struct {
	ID         string          `json:"event_id"`
	Type       string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Critical   bool            `json:"critical"`
	Data       json.RawMessage `json:"data"`
	Body       []byte          `json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Envelope is the JSON payload POSTed to webhook receivers.
type Envelope struct {
	EventType  string          `json:"event_type"`
	EventID    string          `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// DeliveryOutcome is the state of one delivery attempt.
type DeliveryOutcome string

const (
	OutcomePending      DeliveryOutcome = "pending"
	OutcomeSuccess      DeliveryOutcome = "success"
	OutcomeFailed       DeliveryOutcome = "failed"
	OutcomeDeadLettered DeliveryOutcome = "dead-lettered"
)

// DeliveryAttempt is one row of a subscription's delivery history for an
// event. Attempt numbers for a (subscription, event) pair start at 1 and
// grow by one per retry.
type DeliveryAttempt struct {
	ID             string          `json:"id"`
	SubscriptionID string          `json:"subscription_id"`
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	OccurredAt     time.Time       `json:"occurred_at"`
	AttemptNumber  int             `json:"attempt_number"`
	ScheduledAt    time.Time       `json:"scheduled_at"`
	AttemptedAt    *time.Time      `json:"attempted_at,omitempty"`
	Outcome        DeliveryOutcome `json:"outcome"`
	HTTPStatus     int             `json:"http_status,omitempty"`
	Error          string          `json:"error,omitempty"`
	ClaimedUntil   *time.Time      `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}

// MetricSample is one append-only health measurement.
type MetricSample struct {
	Component string    `json:"component"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Rollup summarises the samples of one metric over a window.
type Rollup struct {
	Component   string        `json:"component"`
	Metric      string        `json:"metric"`
	WindowStart time.Time     `json:"window_start"`
	Window      time.Duration `json:"window"`
	Count       int           `json:"count"`
	Sum         float64       `json:"sum"`
	Min         float64       `json:"min"`
	Max         float64       `json:"max"`
	P50         float64       `json:"p50"`
	P95         float64       `json:"p95"`
}

// Audit actions.
const (
	AuditTokenIssued     = "token.issued"
	AuditTokenRefreshed  = "token.refreshed"
	AuditTokenRevoked    = "token.revoked"
	AuditClientCreated   = "client.created"
	AuditClientSuspended = "client.suspended"
	AuditClientActivated = "client.activated"
	AuditClientRevoked   = "client.revoked"
	AuditSecretRotated   = "subscription.secret_rotated"
	AuditAuthFailed      = "auth.failed"
)

// AuditEntry is an append-only record of a security-relevant action.
type AuditEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	ClientID  string    `json:"client_id,omitempty"`
	TokenID   string    `json:"token_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
