// Package storage defines the persistence contracts of the gateway. Each role
// (clients, tokens, subscriptions, deliveries, metrics, audit) has its own
// interface; Storage bundles them for backends that serve every role.
package storage

import (
	"context"
	"errors"
	"time"

	"api-gateway/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("storage: record not found")
	// ErrDuplicate is returned when a record with the same key exists.
	ErrDuplicate = errors.New("storage: duplicate record")
)

// ClientStore persists API clients. Clients are never deleted.
type ClientStore interface {
	CreateClient(ctx context.Context, client *models.ApiClient) error
	GetClient(ctx context.Context, id string) (*models.ApiClient, error)
	ListClients(ctx context.Context, limit, offset int) ([]*models.ApiClient, int, error)
	UpdateClientStatus(ctx context.Context, id string, status models.ClientStatus, at time.Time) error
}

// TokenStore persists issued token records for revocation checks.
type TokenStore interface {
	SaveToken(ctx context.Context, token *models.AccessToken) error
	GetToken(ctx context.Context, id string) (*models.AccessToken, error)
	// RevokeToken is idempotent.
	RevokeToken(ctx context.Context, id string) error
	// RevokeClientTokens revokes every outstanding token of a client and
	// returns how many changed.
	RevokeClientTokens(ctx context.Context, clientID string) (int, error)
	PurgeExpiredTokens(ctx context.Context, before time.Time) (int, error)
}

// SubscriptionRegistry persists webhook subscriptions.
type SubscriptionRegistry interface {
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
	ListSubscriptionsByClient(ctx context.Context, clientID string) ([]*models.Subscription, error)
	// ListSubscriptionsForEvent returns non-deleted active or failing
	// subscriptions matching eventType.
	ListSubscriptionsForEvent(ctx context.Context, eventType string) ([]*models.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, id string, status models.SubscriptionStatus, at time.Time) error
	UpdateSubscriptionSecret(ctx context.Context, id, secret string, at time.Time) error
	DeleteSubscription(ctx context.Context, id string, at time.Time) error
	// RecordDeliveryResult atomically updates the consecutive failure
	// counter. A failure that brings an active subscription to threshold
	// flips it to failing; a success resets the counter and flips failing
	// back to active. It returns the status before and the record after.
	RecordDeliveryResult(ctx context.Context, id string, success bool, threshold int, at time.Time) (models.SubscriptionStatus, *models.Subscription, error)
}

// DeliveryStore is the durable delivery queue: events plus one row per attempt.
type DeliveryStore interface {
	// SaveEvent stores the event once; saving an existing ID is a no-op.
	SaveEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	// EnqueueAttempt inserts a pending attempt. It returns false without
	// error when the (subscription, event, attempt number) row exists.
	EnqueueAttempt(ctx context.Context, attempt *models.DeliveryAttempt) (bool, error)
	// ClaimAttempt leases a pending attempt until the given time. It
	// returns false when another worker holds the lease or the attempt is
	// no longer pending.
	ClaimAttempt(ctx context.Context, id string, now, until time.Time) (bool, error)
	// CompleteAttempt records the outcome of an attempt and, in the same
	// transaction, inserts the follow-up attempt when next is non-nil.
	CompleteAttempt(ctx context.Context, done *models.DeliveryAttempt, next *models.DeliveryAttempt) error
	// RescheduleAttempt moves a pending attempt and releases its lease
	// without changing its attempt number.
	RescheduleAttempt(ctx context.Context, id string, at time.Time) error
	// ListDueAttempts returns unleased pending attempts scheduled at or
	// before now, oldest occurred_at first.
	ListDueAttempts(ctx context.Context, now time.Time, limit int) ([]*models.DeliveryAttempt, error)
	ListAttempts(ctx context.Context, subscriptionID string, limit, offset int) ([]*models.DeliveryAttempt, int, error)
	ListAttemptsForEvent(ctx context.Context, subscriptionID, eventID string) ([]*models.DeliveryAttempt, error)
	ListDeadLetters(ctx context.Context, subscriptionID string, limit, offset int) ([]*models.DeliveryAttempt, int, error)
	CountPendingAttempts(ctx context.Context) (int, error)
}

// MetricStore keeps health samples (append-only) and their rollups.
type MetricStore interface {
	AppendSamples(ctx context.Context, samples []models.MetricSample) error
	// ListSamples returns samples in [since, until). An empty component
	// matches all components.
	ListSamples(ctx context.Context, component string, since, until time.Time) ([]models.MetricSample, error)
	SaveRollups(ctx context.Context, rollups []models.Rollup) error
	ListRollups(ctx context.Context, component string, since time.Time) ([]models.Rollup, error)
}

// AuditStore is the append-only audit log.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error
	// ListAudit returns newest entries first. An empty clientID matches all.
	ListAudit(ctx context.Context, clientID string, limit, offset int) ([]*models.AuditEntry, int, error)
}

// Storage is implemented by every backend.
type Storage interface {
	ClientStore
	TokenStore
	SubscriptionRegistry
	DeliveryStore
	MetricStore
	AuditStore

	Health(ctx context.Context) error
	Close() error
}

// StorageConfig is the backend-specific configuration handed to a factory.
type StorageConfig interface {
	Validate() error
	GetType() string
}

// StorageFactory builds a Storage from its configuration.
type StorageFactory interface {
	Create(config StorageConfig) (Storage, error)
}
