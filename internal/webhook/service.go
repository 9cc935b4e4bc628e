package webhook

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/logging"
	"api-gateway/internal/common/utils"
	"api-gateway/internal/crypto"
	"api-gateway/internal/models"
	"api-gateway/internal/storage"
)

const secretPrefix = "whsec_"

// Service is the subscription registry exposed to API clients.
type Service struct {
	store         Store
	box           *crypto.SecretBox
	dispatcher    *Dispatcher
	allowInsecure bool
	logger        logging.Logger
	now           func() time.Time
}

type ServiceOption func(*Service)

// AllowInsecure accepts plain http target URLs.
func AllowInsecure(allow bool) ServiceOption {
	return func(s *Service) { s.allowInsecure = allow }
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, box *crypto.SecretBox, dispatcher *Dispatcher, opts ...ServiceOption) *Service {
	s := &Service{
		store:      store,
		box:        box,
		dispatcher: dispatcher,
		logger:     logging.Component("webhooks"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates and stores a subscription. The returned secret is
// shown once; only its encrypted form is kept.
func (s *Service) Register(ctx context.Context, clientID, targetURL string, eventTypes []string) (*models.Subscription, string, error) {
	if err := s.validateTarget(targetURL); err != nil {
		return nil, "", err
	}
	types, err := normaliseEventTypes(eventTypes)
	if err != nil {
		return nil, "", err
	}

	secret, sealed, err := s.newSecret()
	if err != nil {
		return nil, "", err
	}

	now := s.now()
	sub := &models.Subscription{
		ID:         utils.NewID(),
		ClientID:   clientID,
		TargetURL:  targetURL,
		EventTypes: types,
		Secret:     sealed,
		Status:     models.SubscriptionActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		return nil, "", errors.InternalError("failed to create subscription", err)
	}

	s.logger.WithContext(ctx).Info("Webhook subscription registered",
		logging.Field{Key: "subscription_id", Value: sub.ID},
		logging.Field{Key: "target_url", Value: sub.TargetURL},
		logging.Strings("event_types", sub.EventTypes),
	)
	return sub, secret, nil
}

func (s *Service) validateTarget(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.ConfigurationError("target_url must be an absolute URL with a host")
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !s.allowInsecure {
			return errors.ConfigurationError("target_url must use https")
		}
	default:
		return errors.ConfigurationError(fmt.Sprintf("unsupported target_url scheme %q", u.Scheme))
	}
	if u.User != nil {
		return errors.ConfigurationError("target_url must not embed credentials")
	}
	return nil
}

func normaliseEventTypes(eventTypes []string) ([]string, error) {
	seen := make(map[string]bool, len(eventTypes))
	var out []string
	for _, t := range eventTypes {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, errors.ConfigurationError("event types must not be empty")
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, errors.ConfigurationError("at least one event type is required")
	}
	return out, nil
}

func (s *Service) newSecret() (string, string, error) {
	secret, err := utils.GenerateSecret(secretPrefix)
	if err != nil {
		return "", "", errors.InternalError("failed to generate secret", err)
	}
	sealed, err := s.box.Seal(secret)
	if err != nil {
		return "", "", errors.InternalError("failed to encrypt secret", err)
	}
	return secret, sealed, nil
}

// Get returns a subscription owned by clientID. An empty clientID skips the
// ownership check.
func (s *Service) Get(ctx context.Context, clientID, id string) (*models.Subscription, error) {
	sub, err := s.store.GetSubscription(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NotFoundError("subscription")
		}
		return nil, errors.InternalError("failed to load subscription", err)
	}
	// other clients' subscriptions do not exist as far as the caller knows
	if sub.DeletedAt != nil || (clientID != "" && sub.ClientID != clientID) {
		return nil, errors.NotFoundError("subscription")
	}
	return sub, nil
}

// List returns the client's subscriptions, deleted ones excluded.
func (s *Service) List(ctx context.Context, clientID string) ([]*models.Subscription, error) {
	subs, err := s.store.ListSubscriptionsByClient(ctx, clientID)
	if err != nil {
		return nil, errors.InternalError("failed to list subscriptions", err)
	}
	out := subs[:0]
	for _, sub := range subs {
		if sub.DeletedAt == nil {
			out = append(out, sub)
		}
	}
	return out, nil
}

// RotateSecret replaces the secret; later deliveries are signed with the
// new one.
func (s *Service) RotateSecret(ctx context.Context, clientID, id string) (string, error) {
	sub, err := s.Get(ctx, clientID, id)
	if err != nil {
		return "", err
	}

	secret, sealed, err := s.newSecret()
	if err != nil {
		return "", err
	}
	if err := s.store.UpdateSubscriptionSecret(ctx, sub.ID, sealed, s.now()); err != nil {
		return "", s.mutationError(err)
	}

	s.audit(ctx, models.AuditSecretRotated, sub.ClientID, sub.ID)
	return secret, nil
}

// Pause stops new deliveries; pending ones wait until Resume.
func (s *Service) Pause(ctx context.Context, clientID, id string) (*models.Subscription, error) {
	return s.setStatus(ctx, clientID, id, models.SubscriptionPaused)
}

// Resume reactivates a paused or failing subscription with a clean failure
// count.
func (s *Service) Resume(ctx context.Context, clientID, id string) (*models.Subscription, error) {
	sub, err := s.setStatus(ctx, clientID, id, models.SubscriptionActive)
	if err == nil && s.dispatcher != nil {
		s.dispatcher.ResetTrial(id)
	}
	return sub, err
}

func (s *Service) setStatus(ctx context.Context, clientID, id string, status models.SubscriptionStatus) (*models.Subscription, error) {
	if _, err := s.Get(ctx, clientID, id); err != nil {
		return nil, err
	}
	if err := s.store.UpdateSubscriptionStatus(ctx, id, status, s.now()); err != nil {
		return nil, s.mutationError(err)
	}
	return s.Get(ctx, clientID, id)
}

// Delete soft-deletes a subscription. Its history stays readable to admins.
func (s *Service) Delete(ctx context.Context, clientID, id string) error {
	if _, err := s.Get(ctx, clientID, id); err != nil {
		return err
	}
	if err := s.store.DeleteSubscription(ctx, id, s.now()); err != nil {
		return s.mutationError(err)
	}
	s.logger.WithContext(ctx).Info("Webhook subscription deleted", logging.Field{Key: "subscription_id", Value: id})
	return nil
}

// Attempts returns a page of delivery history, newest first.
func (s *Service) Attempts(ctx context.Context, clientID, id string, limit, offset int) ([]*models.DeliveryAttempt, int, error) {
	if _, err := s.Get(ctx, clientID, id); err != nil {
		return nil, 0, err
	}
	attempts, total, err := s.store.ListAttempts(ctx, id, limit, offset)
	if err != nil {
		return nil, 0, errors.InternalError("failed to list deliveries", err)
	}
	return attempts, total, nil
}

func (s *Service) DeadLetters(ctx context.Context, clientID, id string, limit, offset int) ([]*models.DeliveryAttempt, int, error) {
	if _, err := s.Get(ctx, clientID, id); err != nil {
		return nil, 0, err
	}
	attempts, total, err := s.store.ListDeadLetters(ctx, id, limit, offset)
	if err != nil {
		return nil, 0, errors.InternalError("failed to list dead letters", err)
	}
	return attempts, total, nil
}

// Ping queues a webhook.ping delivery to one subscription.
func (s *Service) Ping(ctx context.Context, clientID, id string) (*PublishResult, error) {
	sub, err := s.Get(ctx, clientID, id)
	if err != nil {
		return nil, err
	}
	if !sub.Deliverable() {
		return nil, errors.ConflictError("subscription is " + string(sub.Status))
	}

	data := fmt.Sprintf(`{"subscription_id":%q}`, sub.ID)
	return s.dispatcher.PublishTo(ctx, &models.Event{Type: PingEvent, Data: []byte(data)}, sub)
}

func (s *Service) mutationError(err error) error {
	if stderrors.Is(err, storage.ErrNotFound) {
		return errors.NotFoundError("subscription")
	}
	return errors.InternalError("failed to update subscription", err)
}

func (s *Service) audit(ctx context.Context, action, clientID, detail string) {
	err := s.store.AppendAudit(ctx, &models.AuditEntry{
		ID:        utils.NewID(),
		Action:    action,
		ClientID:  clientID,
		Detail:    detail,
		CreatedAt: s.now(),
	})
	if err != nil {
		s.logger.WithContext(ctx).Error("Failed to append audit entry", err, logging.Field{Key: "action", Value: action})
	}
}
