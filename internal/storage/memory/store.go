// Package memory is an in-process Storage backend. It is used by tests and by
// single-instance deployments that accept losing state on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"api-gateway/internal/common/pagination"
	"api-gateway/internal/models"
	"api-gateway/internal/storage"
)

// Config selects the memory backend.
type Config struct{}

func (c *Config) Validate() error { return nil }
func (c *Config) GetType() string { return "memory" }

type Factory struct{}

func (f *Factory) Create(config storage.StorageConfig) (storage.Storage, error) {
	return New(), nil
}

func init() {
	storage.Register("memory", &Factory{})
}

type attemptKey struct {
	subscriptionID string
	eventID        string
	attempt        int
}

// Store keeps every record in maps behind one RWMutex, so each method is a
// single atomic read-modify-write.
type Store struct {
	mu sync.RWMutex

	clients       map[string]*models.ApiClient
	tokens        map[string]*models.AccessToken
	subscriptions map[string]*models.Subscription
	events        map[string]*models.Event
	attempts      map[string]*models.DeliveryAttempt
	attemptKeys   map[attemptKey]string
	samples       []models.MetricSample
	rollups       []models.Rollup
	audit         []*models.AuditEntry
}

// New returns an empty store.
func New() *Store {
	return &Store{
		clients:       make(map[string]*models.ApiClient),
		tokens:        make(map[string]*models.AccessToken),
		subscriptions: make(map[string]*models.Subscription),
		events:        make(map[string]*models.Event),
		attempts:      make(map[string]*models.DeliveryAttempt),
		attemptKeys:   make(map[attemptKey]string),
	}
}

func (s *Store) Health(ctx context.Context) error { return nil }
func (s *Store) Close() error                     { return nil }

// Clients

func (s *Store) CreateClient(ctx context.Context, client *models.ApiClient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[client.ID]; exists {
		return storage.ErrDuplicate
	}
	c := *client
	c.Scopes = append([]string(nil), client.Scopes...)
	s.clients[client.ID] = &c
	return nil
}

func (s *Store) GetClient(ctx context.Context, id string) (*models.ApiClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *Store) ListClients(ctx context.Context, limit, offset int) ([]*models.ApiClient, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.ApiClient, 0, len(s.clients))
	for _, c := range s.clients {
		out := *c
		all = append(all, &out)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return pagination.Slice(all, limit, offset), len(all), nil
}

func (s *Store) UpdateClientStatus(ctx context.Context, id string, status models.ClientStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[id]
	if !ok {
		return storage.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = at
	return nil
}

// Tokens

func (s *Store) SaveToken(ctx context.Context, token *models.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[token.ID]; exists {
		return storage.ErrDuplicate
	}
	t := *token
	s.tokens[token.ID] = &t
	return nil
}

func (s *Store) GetToken(ctx context.Context, id string) (*models.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *t
	return &out, nil
}

func (s *Store) RevokeToken(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok {
		return storage.ErrNotFound
	}
	t.Revoked = true
	return nil
}

func (s *Store) RevokeClientTokens(ctx context.Context, clientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.tokens {
		if t.ClientID == clientID && !t.Revoked {
			t.Revoked = true
			n++
		}
	}
	return n, nil
}

func (s *Store) PurgeExpiredTokens(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, t := range s.tokens {
		if t.ExpiresAt.Before(before) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

// Subscriptions

func (s *Store) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID]; exists {
		return storage.ErrDuplicate
	}
	s.subscriptions[sub.ID] = cloneSubscription(sub)
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneSubscription(sub), nil
}

func (s *Store) ListSubscriptionsByClient(ctx context.Context, clientID string) ([]*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Subscription
	for _, sub := range s.subscriptions {
		if sub.ClientID == clientID && sub.DeletedAt == nil {
			out = append(out, cloneSubscription(sub))
		}
	}
	sortSubscriptions(out)
	return out, nil
}

func (s *Store) ListSubscriptionsForEvent(ctx context.Context, eventType string) ([]*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Subscription
	for _, sub := range s.subscriptions {
		if sub.Deliverable() && sub.Matches(eventType) {
			out = append(out, cloneSubscription(sub))
		}
	}
	sortSubscriptions(out)
	return out, nil
}

func (s *Store) UpdateSubscriptionStatus(ctx context.Context, id string, status models.SubscriptionStatus, at time.Time) error {
	return s.mutateSubscription(id, at, func(sub *models.Subscription) {
		sub.Status = status
		if status == models.SubscriptionActive {
			sub.ConsecutiveFailures = 0
		}
	})
}

func (s *Store) UpdateSubscriptionSecret(ctx context.Context, id, secret string, at time.Time) error {
	return s.mutateSubscription(id, at, func(sub *models.Subscription) {
		sub.Secret = secret
	})
}

func (s *Store) DeleteSubscription(ctx context.Context, id string, at time.Time) error {
	return s.mutateSubscription(id, at, func(sub *models.Subscription) {
		sub.Status = models.SubscriptionPaused
		deleted := at
		sub.DeletedAt = &deleted
	})
}

func (s *Store) RecordDeliveryResult(ctx context.Context, id string, success bool, threshold int, at time.Time) (models.SubscriptionStatus, *models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[id]
	if !ok {
		return "", nil, storage.ErrNotFound
	}

	previous := sub.Status
	if success {
		sub.ConsecutiveFailures = 0
		if sub.Status == models.SubscriptionFailing {
			sub.Status = models.SubscriptionActive
		}
	} else {
		sub.ConsecutiveFailures++
		if sub.Status == models.SubscriptionActive && sub.ConsecutiveFailures >= threshold {
			sub.Status = models.SubscriptionFailing
		}
	}
	sub.UpdatedAt = at
	return previous, cloneSubscription(sub), nil
}

func (s *Store) mutateSubscription(id string, at time.Time, fn func(*models.Subscription)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[id]
	if !ok || sub.DeletedAt != nil {
		return storage.ErrNotFound
	}
	fn(sub)
	sub.UpdatedAt = at
	return nil
}

// Deliveries

func (s *Store) SaveEvent(ctx context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[event.ID]; exists {
		return nil
	}
	e := *event
	e.Body = append([]byte(nil), event.Body...)
	s.events[event.ID] = &e
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *e
	return &out, nil
}

func (s *Store) EnqueueAttempt(ctx context.Context, attempt *models.DeliveryAttempt) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertAttemptLocked(attempt), nil
}

func (s *Store) insertAttemptLocked(attempt *models.DeliveryAttempt) bool {
	key := attemptKey{attempt.SubscriptionID, attempt.EventID, attempt.AttemptNumber}
	if _, exists := s.attemptKeys[key]; exists {
		return false
	}
	s.attemptKeys[key] = attempt.ID
	s.attempts[attempt.ID] = cloneAttempt(attempt)
	return true
}

func (s *Store) ClaimAttempt(ctx context.Context, id string, now, until time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if a.Outcome != models.OutcomePending {
		return false, nil
	}
	if a.ClaimedUntil != nil && a.ClaimedUntil.After(now) {
		return false, nil
	}
	lease := until
	a.ClaimedUntil = &lease
	return true, nil
}

func (s *Store) CompleteAttempt(ctx context.Context, done *models.DeliveryAttempt, next *models.DeliveryAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[done.ID]
	if !ok {
		return storage.ErrNotFound
	}
	a.Outcome = done.Outcome
	a.HTTPStatus = done.HTTPStatus
	a.Error = done.Error
	if done.AttemptedAt != nil {
		at := *done.AttemptedAt
		a.AttemptedAt = &at
	}
	a.ClaimedUntil = nil

	if next != nil {
		s.insertAttemptLocked(next)
	}
	return nil
}

func (s *Store) RescheduleAttempt(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.ScheduledAt = at
	a.ClaimedUntil = nil
	return nil
}

func (s *Store) ListDueAttempts(ctx context.Context, now time.Time, limit int) ([]*models.DeliveryAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*models.DeliveryAttempt
	for _, a := range s.attempts {
		if a.Outcome != models.OutcomePending || a.ScheduledAt.After(now) {
			continue
		}
		if a.ClaimedUntil != nil && a.ClaimedUntil.After(now) {
			continue
		}
		due = append(due, cloneAttempt(a))
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].OccurredAt.Equal(due[j].OccurredAt) {
			return due[i].OccurredAt.Before(due[j].OccurredAt)
		}
		return due[i].AttemptNumber < due[j].AttemptNumber
	})
	return pagination.Slice(due, limit, 0), nil
}

func (s *Store) ListAttempts(ctx context.Context, subscriptionID string, limit, offset int) ([]*models.DeliveryAttempt, int, error) {
	return s.filterAttempts(limit, offset, func(a *models.DeliveryAttempt) bool {
		return a.SubscriptionID == subscriptionID
	})
}

func (s *Store) ListDeadLetters(ctx context.Context, subscriptionID string, limit, offset int) ([]*models.DeliveryAttempt, int, error) {
	return s.filterAttempts(limit, offset, func(a *models.DeliveryAttempt) bool {
		return a.SubscriptionID == subscriptionID && a.Outcome == models.OutcomeDeadLettered
	})
}

func (s *Store) ListAttemptsForEvent(ctx context.Context, subscriptionID, eventID string) ([]*models.DeliveryAttempt, error) {
	out, _, err := s.filterAttempts(0, 0, func(a *models.DeliveryAttempt) bool {
		return a.SubscriptionID == subscriptionID && a.EventID == eventID
	})
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber < out[j].AttemptNumber })
	return out, err
}

func (s *Store) CountPendingAttempts(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, a := range s.attempts {
		if a.Outcome == models.OutcomePending {
			n++
		}
	}
	return n, nil
}

// filterAttempts returns matches newest first.
func (s *Store) filterAttempts(limit, offset int, match func(*models.DeliveryAttempt) bool) ([]*models.DeliveryAttempt, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.DeliveryAttempt
	for _, a := range s.attempts {
		if match(a) {
			out = append(out, cloneAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].AttemptNumber > out[j].AttemptNumber
	})
	return pagination.Slice(out, limit, offset), len(out), nil
}

// Metrics

func (s *Store) AppendSamples(ctx context.Context, samples []models.MetricSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, samples...)
	return nil
}

func (s *Store) ListSamples(ctx context.Context, component string, since, until time.Time) ([]models.MetricSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.MetricSample
	for _, sample := range s.samples {
		if component != "" && sample.Component != component {
			continue
		}
		if sample.Timestamp.Before(since) || !sample.Timestamp.Before(until) {
			continue
		}
		out = append(out, sample)
	}
	return out, nil
}

func (s *Store) SaveRollups(ctx context.Context, rollups []models.Rollup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollups = append(s.rollups, rollups...)
	return nil
}

func (s *Store) ListRollups(ctx context.Context, component string, since time.Time) ([]models.Rollup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Rollup
	for _, r := range s.rollups {
		if component != "" && r.Component != component {
			continue
		}
		if r.WindowStart.Before(since) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Audit

func (s *Store) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := *entry
	s.audit = append(s.audit, &e)
	return nil
}

func (s *Store) ListAudit(ctx context.Context, clientID string, limit, offset int) ([]*models.AuditEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.AuditEntry
	for i := len(s.audit) - 1; i >= 0; i-- {
		if clientID == "" || s.audit[i].ClientID == clientID {
			e := *s.audit[i]
			out = append(out, &e)
		}
	}
	return pagination.Slice(out, limit, offset), len(out), nil
}

func cloneSubscription(sub *models.Subscription) *models.Subscription {
	out := *sub
	out.EventTypes = append([]string(nil), sub.EventTypes...)
	if sub.DeletedAt != nil {
		deleted := *sub.DeletedAt
		out.DeletedAt = &deleted
	}
	return &out
}

func cloneAttempt(a *models.DeliveryAttempt) *models.DeliveryAttempt {
	out := *a
	if a.AttemptedAt != nil {
		at := *a.AttemptedAt
		out.AttemptedAt = &at
	}
	if a.ClaimedUntil != nil {
		until := *a.ClaimedUntil
		out.ClaimedUntil = &until
	}
	return &out
}

func sortSubscriptions(subs []*models.Subscription) {
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.Before(subs[j].CreatedAt) })
}
