// Package webhook registers subscriptions and delivers domain events to
// them. Every delivery attempt is a row in the DeliveryStore; workers claim
// rows with a lease, so deliveries survive restarts and are never run by
// two instances at once.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"api-gateway/internal/common/errors"
	commonhttp "api-gateway/internal/common/http"
	"api-gateway/internal/common/logging"
	"api-gateway/internal/common/utils"
	"api-gateway/internal/crypto"
	"api-gateway/internal/health"
	"api-gateway/internal/models"
	"api-gateway/internal/signature"
	"api-gateway/internal/storage"
)

// PingEvent is sent by Service.Ping.
const PingEvent = "webhook.ping"

// Delivery headers besides X-Signature.
const (
	HeaderEvent   = "X-Webhook-Event"
	HeaderEventID = "X-Webhook-Event-Id"
	HeaderAttempt = "X-Webhook-Attempt"
)

// Store is the persistence the dispatcher and service need.
type Store interface {
	storage.SubscriptionRegistry
	storage.DeliveryStore
	storage.AuditStore
}

type Config struct {
	Workers   int
	QueueSize int
	// ShedThreshold is the queue depth at which non-critical events are
	// dropped before persistence.
	ShedThreshold    int
	MaxAttempts      int
	Backoff          utils.Backoff
	Timeout          time.Duration
	FailureThreshold int
	// TrialInterval spaces deliveries to a failing subscription.
	TrialInterval  time.Duration
	PollInterval   time.Duration
	Lease          time.Duration
	CriticalEvents []string
	UserAgent      string
}

func DefaultConfig() Config {
	return Config{
		Workers:          8,
		QueueSize:        256,
		ShedThreshold:    5000,
		MaxAttempts:      6,
		Backoff:          utils.DefaultBackoff(),
		Timeout:          10 * time.Second,
		FailureThreshold: 10,
		TrialInterval:    time.Minute,
		PollInterval:     time.Second,
		Lease:            time.Minute,
		UserAgent:        "api-gateway-webhooks/1.0",
	}
}

// PublishResult summarises what Publish did with one event.
type PublishResult struct {
	EventID  string `json:"event_id"`
	Matched  int    `json:"matched"`
	Enqueued int    `json:"enqueued"`
	Shed     bool   `json:"shed"`
}

type job struct {
	attempt *models.DeliveryAttempt
}

type Dispatcher struct {
	config   Config
	store    Store
	box      *crypto.SecretBox
	client   *http.Client
	recorder health.Recorder
	changed  func(ctx context.Context, clientID string)
	logger   logging.Logger
	now      func() time.Time
	critical map[string]bool

	shards   []chan job
	queued   sync.Map // attempt ID -> struct{}, attempts sitting in a shard
	buffered atomic.Int64
	overflow atomic.Int64
	running  atomic.Bool

	trialMu sync.Mutex
	trials  map[string]*rate.Limiter

	cancel context.CancelFunc
	group  *errgroup.Group
}

type Option func(*Dispatcher)

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithRecorder(r health.Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

func WithLogger(logger logging.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithInvalidator is called with the owning client whenever a delivery
// result changes a subscription's status or failure count.
func WithInvalidator(fn func(ctx context.Context, clientID string)) Option {
	return func(d *Dispatcher) { d.changed = fn }
}

func NewDispatcher(config Config, store Store, box *crypto.SecretBox, opts ...Option) (*Dispatcher, error) {
	if config.Workers < 1 || config.QueueSize < 1 || config.MaxAttempts < 1 || config.FailureThreshold < 1 {
		return nil, errors.ConfigurationError("webhook workers, queue size, max attempts and failure threshold must be positive")
	}
	if config.Timeout <= 0 || config.TrialInterval <= 0 || config.PollInterval <= 0 || config.Lease <= 0 {
		return nil, errors.ConfigurationError("webhook timeout, trial interval, poll interval and lease must be positive")
	}

	d := &Dispatcher{
		config:   config,
		store:    store,
		box:      box,
		recorder: health.NopRecorder{},
		logger:   logging.Component("dispatcher"),
		now:      time.Now,
		critical: make(map[string]bool, len(config.CriticalEvents)),
		trials:   make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.client == nil {
		d.client = commonhttp.NewHTTPClient(
			commonhttp.WithTimeout(config.Timeout),
			commonhttp.WithMaxIdleConnsPerHost(config.Workers),
		)
	}
	for _, t := range config.CriticalEvents {
		d.critical[t] = true
	}

	d.shards = make([]chan job, config.Workers)
	for i := range d.shards {
		d.shards[i] = make(chan job, config.QueueSize)
	}
	return d, nil
}

// Start launches the workers and the sweeper.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	g, ctx := errgroup.WithContext(ctx)
	d.group = g

	for i := range d.shards {
		shard := d.shards[i]
		g.Go(func() error {
			d.work(ctx, shard)
			return nil
		})
	}
	g.Go(func() error {
		d.sweep(ctx)
		return nil
	})
	d.running.Store(true)

	d.logger.Info("Webhook dispatcher started",
		logging.Field{Key: "workers", Value: d.config.Workers},
		logging.Field{Key: "max_attempts", Value: d.config.MaxAttempts},
	)
}

// Stop cancels the workers and waits for in-flight deliveries, each bounded
// by Timeout. Attempts still buffered stay pending in the store and are
// swept after restart.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if !d.running.CompareAndSwap(true, false) {
		return nil
	}
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Webhook dispatcher stopped")
		return nil
	case <-ctx.Done():
		return errors.TimeoutError("dispatcher shutdown")
	}
}

// Depth is the number of due attempts waiting for a worker.
func (d *Dispatcher) Depth() int {
	return int(d.buffered.Load() + d.overflow.Load())
}

func (d *Dispatcher) isCritical(event *models.Event) bool {
	return event.Critical || d.critical[event.Type]
}

// Publish persists event once and enqueues a first attempt for every
// matching subscription. Under backpressure non-critical events are shed.
func (d *Dispatcher) Publish(ctx context.Context, event *models.Event) (*PublishResult, error) {
	if err := d.prepare(event); err != nil {
		return nil, err
	}
	result := &PublishResult{EventID: event.ID}

	if depth := d.Depth(); depth >= d.config.ShedThreshold && !d.isCritical(event) {
		d.recorder.Incr(health.ComponentDispatcher, health.MetricShed)
		d.logger.WithContext(ctx).Warn("Queue over threshold, shedding event",
			logging.Field{Key: "event_id", Value: event.ID},
			logging.Field{Key: "event_type", Value: event.Type},
			logging.Field{Key: "depth", Value: depth},
		)
		result.Shed = true
		return result, nil
	}

	subs, err := d.store.ListSubscriptionsForEvent(ctx, event.Type)
	if err != nil {
		return nil, errors.InternalError("failed to resolve subscriptions", err)
	}
	result.Matched = len(subs)
	if len(subs) == 0 {
		return result, nil
	}

	n, err := d.enqueue(ctx, event, subs)
	result.Enqueued = n
	return result, err
}

// PublishTo enqueues event for one subscription regardless of its event
// types.
func (d *Dispatcher) PublishTo(ctx context.Context, event *models.Event, sub *models.Subscription) (*PublishResult, error) {
	if err := d.prepare(event); err != nil {
		return nil, err
	}
	n, err := d.enqueue(ctx, event, []*models.Subscription{sub})
	return &PublishResult{EventID: event.ID, Matched: 1, Enqueued: n}, err
}

// prepare fills defaults and freezes the envelope body that every attempt
// signs and sends.
func (d *Dispatcher) prepare(event *models.Event) error {
	if event.Type == "" {
		return errors.ValidationError("event_type is required")
	}
	now := d.now()
	if event.ID == "" {
		event.ID = utils.NewEventID()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now
	}
	event.OccurredAt = event.OccurredAt.UTC()
	if len(event.Data) == 0 {
		event.Data = json.RawMessage("{}")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}

	if len(event.Body) == 0 {
		body, err := json.Marshal(models.Envelope{
			EventType:  event.Type,
			EventID:    event.ID,
			OccurredAt: event.OccurredAt,
			Data:       event.Data,
		})
		if err != nil {
			return errors.ValidationError("event data is not valid JSON")
		}
		event.Body = body
	}
	return nil
}

func (d *Dispatcher) enqueue(ctx context.Context, event *models.Event, subs []*models.Subscription) (int, error) {
	if err := d.store.SaveEvent(ctx, event); err != nil {
		return 0, errors.InternalError("failed to persist event", err)
	}

	now := d.now()
	enqueued := 0
	for _, sub := range subs {
		attempt := &models.DeliveryAttempt{
			ID:             utils.NewID(),
			SubscriptionID: sub.ID,
			EventID:        event.ID,
			EventType:      event.Type,
			OccurredAt:     event.OccurredAt,
			AttemptNumber:  1,
			ScheduledAt:    now,
			Outcome:        models.OutcomePending,
			CreatedAt:      now,
		}
		inserted, err := d.store.EnqueueAttempt(ctx, attempt)
		if err != nil {
			return enqueued, errors.InternalError("failed to enqueue delivery", err)
		}
		if !inserted {
			d.logger.WithContext(ctx).Debug("Delivery already queued for event",
				logging.Field{Key: "subscription_id", Value: sub.ID},
				logging.Field{Key: "event_id", Value: event.ID},
			)
			continue
		}
		enqueued++
		if !d.offer(attempt) {
			d.overflow.Add(1)
		}
	}
	return enqueued, nil
}

// offer hands attempt to its shard without blocking.
func (d *Dispatcher) offer(attempt *models.DeliveryAttempt) bool {
	if !d.running.Load() {
		return false
	}
	if _, dup := d.queued.LoadOrStore(attempt.ID, struct{}{}); dup {
		return true
	}

	select {
	case d.shards[d.shardFor(attempt.SubscriptionID)] <- job{attempt: attempt}:
		d.buffered.Add(1)
		return true
	default:
		d.queued.Delete(attempt.ID)
		return false
	}
}

func (d *Dispatcher) shardFor(subscriptionID string) int {
	h := fnv.New32a()
	h.Write([]byte(subscriptionID))
	return int(h.Sum32() % uint32(len(d.shards)))
}

func (d *Dispatcher) work(ctx context.Context, shard chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-shard:
			d.buffered.Add(-1)
			if ctx.Err() == nil {
				// a started delivery runs to completion through Stop
				d.process(context.WithoutCancel(ctx), j.attempt)
			}
			d.queued.Delete(j.attempt.ID)
		}
	}
}

func (d *Dispatcher) sweep(ctx context.Context) {
	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweepOnce(ctx)
		}
	}
}

// sweepOnce offers due attempts, oldest first, to the workers. Whatever does
// not fit is counted as overflow and retried on the next tick.
func (d *Dispatcher) sweepOnce(ctx context.Context) {
	due, err := d.store.ListDueAttempts(ctx, d.now(), d.config.Workers*d.config.QueueSize)
	if err != nil {
		d.logger.Error("Failed to load due deliveries", err)
		return
	}

	var missed int64
	for _, attempt := range due {
		if _, queued := d.queued.Load(attempt.ID); queued {
			continue
		}
		if !d.offer(attempt) {
			missed++
		}
	}
	d.overflow.Store(missed)
}

// RunOnce processes every due attempt in the calling goroutine, oldest
// first, and returns how many were handled.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	due, err := d.store.ListDueAttempts(ctx, d.now(), d.config.Workers*d.config.QueueSize)
	if err != nil {
		return 0, errors.InternalError("failed to load due deliveries", err)
	}
	for _, attempt := range due {
		d.process(ctx, attempt)
	}
	d.overflow.Store(0)
	return len(due), nil
}

func (d *Dispatcher) process(ctx context.Context, attempt *models.DeliveryAttempt) {
	now := d.now()
	logger := d.logger.WithFields(
		logging.Field{Key: "attempt_id", Value: attempt.ID},
		logging.Field{Key: "subscription_id", Value: attempt.SubscriptionID},
		logging.Field{Key: "event_id", Value: attempt.EventID},
		logging.Field{Key: "attempt", Value: attempt.AttemptNumber},
	)

	claimed, err := d.store.ClaimAttempt(ctx, attempt.ID, now, now.Add(d.config.Lease))
	if err != nil || !claimed {
		if err != nil {
			logger.Error("Failed to claim delivery", err)
		}
		return
	}

	sub, err := d.store.GetSubscription(ctx, attempt.SubscriptionID)
	if stderrors.Is(err, storage.ErrNotFound) {
		d.complete(ctx, attempt, models.OutcomeDeadLettered, 0, "subscription deleted", nil)
		return
	}
	if err != nil {
		logger.Error("Failed to load subscription for delivery", err)
		d.release(ctx, attempt, now.Add(d.config.PollInterval))
		return
	}

	switch {
	case sub.DeletedAt != nil:
		d.complete(ctx, attempt, models.OutcomeDeadLettered, 0, "subscription deleted", nil)
		return
	case sub.Status == models.SubscriptionPaused:
		d.release(ctx, attempt, now.Add(d.config.TrialInterval))
		return
	case sub.Status == models.SubscriptionFailing:
		if wait := d.trialDelay(sub.ID, now); wait > 0 {
			d.release(ctx, attempt, now.Add(wait))
			return
		}
		d.recorder.Incr(health.ComponentDispatcher, health.MetricTrial)
		logger.Debug("Probing failing subscription")
	}

	event, err := d.store.GetEvent(ctx, attempt.EventID)
	if stderrors.Is(err, storage.ErrNotFound) {
		d.complete(ctx, attempt, models.OutcomeDeadLettered, 0, "event missing", nil)
		return
	}
	if err != nil {
		logger.Error("Failed to load event for delivery", err)
		d.release(ctx, attempt, now.Add(d.config.PollInterval))
		return
	}

	d.recorder.Incr(health.ComponentDispatcher, health.MetricAttempt)
	start := time.Now()
	status, deliveryErr := d.deliver(ctx, sub, event, attempt.AttemptNumber)
	d.recorder.Observe(health.ComponentDispatcher, health.MetricLatency, time.Since(start))

	if deliveryErr == nil {
		d.complete(ctx, attempt, models.OutcomeSuccess, status, "", nil)
		d.recorder.Incr(health.ComponentDispatcher, health.MetricSuccess)
		d.recordResult(ctx, sub, true)
		logger.Debug("Webhook delivered", logging.Field{Key: "status", Value: status})
		return
	}

	// the caller gave up, not the receiver: the attempt keeps its number
	if ctx.Err() != nil {
		d.release(context.WithoutCancel(ctx), attempt, now)
		logger.Info("Webhook delivery interrupted, attempt released", logging.Err(deliveryErr))
		return
	}

	d.recordResult(ctx, sub, false)

	if attempt.AttemptNumber >= d.config.MaxAttempts {
		d.complete(ctx, attempt, models.OutcomeDeadLettered, status, deliveryErr.Error(), nil)
		d.recorder.Incr(health.ComponentDispatcher, health.MetricDeadLettered)
		logger.Warn("Webhook delivery dead-lettered",
			logging.Field{Key: "status", Value: status},
			logging.Err(deliveryErr),
		)
		return
	}

	attemptedAt := d.now()
	next := &models.DeliveryAttempt{
		ID:             utils.NewID(),
		SubscriptionID: attempt.SubscriptionID,
		EventID:        attempt.EventID,
		EventType:      attempt.EventType,
		OccurredAt:     attempt.OccurredAt,
		AttemptNumber:  attempt.AttemptNumber + 1,
		ScheduledAt:    attemptedAt.Add(d.config.Backoff.Delay(attempt.AttemptNumber)),
		Outcome:        models.OutcomePending,
		CreatedAt:      attemptedAt,
	}
	d.complete(ctx, attempt, models.OutcomeFailed, status, deliveryErr.Error(), next)
	d.recorder.Incr(health.ComponentDispatcher, health.MetricFailed)
	logger.Info("Webhook delivery failed, retry scheduled",
		logging.Field{Key: "status", Value: status},
		logging.Field{Key: "retry_at", Value: next.ScheduledAt},
		logging.Err(deliveryErr),
	)
}

// deliver POSTs the stored envelope. Any error, timeout or non-2xx status
// (redirects included) is a failure.
func (d *Dispatcher) deliver(ctx context.Context, sub *models.Subscription, event *models.Event, attemptNumber int) (int, error) {
	secret, err := d.box.Open(sub.Secret)
	if err != nil {
		return 0, errors.DeliveryError(errors.CodeDeliveryFailed, "failed to decrypt subscription secret", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.TargetURL, bytes.NewReader(event.Body))
	if err != nil {
		return 0, errors.DeliveryError(errors.CodeDeliveryFailed, "invalid target URL", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.config.UserAgent)
	req.Header.Set(signature.Header, signature.Sign(secret, event.Body))
	req.Header.Set(HeaderEvent, event.Type)
	req.Header.Set(HeaderEventID, event.ID)
	req.Header.Set(HeaderAttempt, strconv.Itoa(attemptNumber))

	resp, err := d.client.Do(req)
	if err != nil {
		if commonhttp.IsTimeout(err) {
			return 0, errors.DeliveryError(errors.CodeDeliveryTimeout, "delivery timed out", err)
		}
		return 0, errors.DeliveryError(errors.CodeDeliveryFailed, "delivery request failed", err)
	}
	_, _ = commonhttp.ReadBody(resp)

	if !commonhttp.IsSuccess(resp.StatusCode) {
		return resp.StatusCode, errors.DeliveryError(errors.CodeDeliveryFailed,
			fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}
	return resp.StatusCode, nil
}

func (d *Dispatcher) complete(ctx context.Context, attempt *models.DeliveryAttempt, outcome models.DeliveryOutcome, status int, detail string, next *models.DeliveryAttempt) {
	attemptedAt := d.now()
	done := &models.DeliveryAttempt{
		ID:          attempt.ID,
		Outcome:     outcome,
		HTTPStatus:  status,
		Error:       detail,
		AttemptedAt: &attemptedAt,
	}
	if err := d.store.CompleteAttempt(ctx, done, next); err != nil {
		// the lease expires and the attempt is retried under the same number
		d.logger.Error("Failed to record delivery outcome", err,
			logging.Field{Key: "attempt_id", Value: attempt.ID},
		)
	}
}

func (d *Dispatcher) release(ctx context.Context, attempt *models.DeliveryAttempt, at time.Time) {
	if err := d.store.RescheduleAttempt(ctx, attempt.ID, at); err != nil {
		d.logger.Error("Failed to reschedule delivery", err,
			logging.Field{Key: "attempt_id", Value: attempt.ID},
		)
	}
}

// recordResult updates the failure count of before, the subscription as
// loaded ahead of the delivery.
func (d *Dispatcher) recordResult(ctx context.Context, before *models.Subscription, success bool) {
	subscriptionID := before.ID
	prev, sub, err := d.store.RecordDeliveryResult(ctx, subscriptionID, success, d.config.FailureThreshold, d.now())
	if err != nil {
		d.logger.Error("Failed to update subscription failure count", err,
			logging.Field{Key: "subscription_id", Value: subscriptionID},
		)
		return
	}

	switch {
	case prev == models.SubscriptionActive && sub.Status == models.SubscriptionFailing:
		d.ResetTrial(subscriptionID)
		d.logger.WithContext(ctx).Warn("Subscription marked failing",
			logging.Field{Key: "subscription_id", Value: subscriptionID},
			logging.Field{Key: "consecutive_failures", Value: sub.ConsecutiveFailures},
		)
	case prev == models.SubscriptionFailing && sub.Status == models.SubscriptionActive:
		d.ResetTrial(subscriptionID)
		d.logger.WithContext(ctx).Info("Subscription recovered",
			logging.Field{Key: "subscription_id", Value: subscriptionID},
		)
	}

	if d.changed != nil && (!success || prev != sub.Status || before.ConsecutiveFailures > 0) {
		d.changed(ctx, sub.ClientID)
	}
}

// trialDelay reserves the failing subscription's single trial slot. It
// returns zero when a trial delivery may go out now, or how long to wait otherwise.
func (d *Dispatcher) trialDelay(subscriptionID string, now time.Time) time.Duration {
	d.trialMu.Lock()
	defer d.trialMu.Unlock()

	lim, ok := d.trials[subscriptionID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(d.config.TrialInterval), 1)
		d.trials[subscriptionID] = lim
	}

	r := lim.ReserveN(now, 1)
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return wait
	}
	return 0
}

// ResetTrial forgets a subscription's trial pacing, so the next failing
// period starts with a trial available.
func (d *Dispatcher) ResetTrial(subscriptionID string) {
	d.trialMu.Lock()
	defer d.trialMu.Unlock()
	delete(d.trials, subscriptionID)
}
