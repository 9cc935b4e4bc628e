// Package ratelimit admits or rejects requests per client with a
// sliding-window counter. Counters live in a CounterStore so several
// gateway instances can share them through Redis.
package ratelimit

import (
	"context"
	"fmt"
	"net/netip"
	"sync/atomic"
	"time"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/logging"
	"api-gateway/internal/common/utils"
	"api-gateway/internal/health"
)

// Rule limits one tier, optionally for a single route class.
type Rule struct {
	Tier       string
	RouteClass string
	Limit      int
	Window     time.Duration
}

// Decision is the outcome of Admit.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// RetryAfterSeconds is RetryAfter rounded up, at least one second.
func (d Decision) RetryAfterSeconds() int {
	return utils.CeilSeconds(d.RetryAfter, 1)
}

// Stats is the read-only snapshot handed to the health monitor.
type Stats struct {
	Buckets     int   `json:"buckets"`
	Admitted    int64 `json:"admitted"`
	Denied      int64 `json:"denied"`
	StoreErrors int64 `json:"store_errors"`
}

type Limiter struct {
	store       CounterStore
	rules       map[ruleKey]Rule
	defaultTier string
	recorder    health.Recorder
	logger      logging.Logger
	now         func() time.Time
	// trusted peers may name the client in X-Forwarded-For / X-Real-IP
	trusted []netip.Prefix

	admitted    atomic.Int64
	denied      atomic.Int64
	storeErrors atomic.Int64
}

type ruleKey struct{ tier, class string }

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func WithRecorder(r health.Recorder) Option {
	return func(l *Limiter) { l.recorder = r }
}

func WithLogger(logger logging.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// WithTrustedProxies lists the reverse proxies whose forwarding headers
// IPMiddleware believes. Without any, only the peer address counts.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(l *Limiter) { l.trusted = prefixes }
}

// NewLimiter builds a limiter. defaultTier must have a rule without a route
// class; clients on unknown tiers fall back to it.
func NewLimiter(store CounterStore, rules []Rule, defaultTier string, opts ...Option) (*Limiter, error) {
	l := &Limiter{
		store:       store,
		rules:       make(map[ruleKey]Rule, len(rules)),
		defaultTier: defaultTier,
		recorder:    health.NopRecorder{},
		logger:      logging.Component("rate_limiter"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	for _, r := range rules {
		if r.Limit < 1 || r.Window < time.Millisecond {
			return nil, errors.ConfigurationError(fmt.Sprintf("rate limit for tier %q needs a positive limit and window", r.Tier))
		}
		l.rules[ruleKey{r.Tier, r.RouteClass}] = r
	}
	if _, ok := l.rules[ruleKey{defaultTier, ""}]; !ok {
		return nil, errors.ConfigurationError(fmt.Sprintf("default tier %q has no rate limit", defaultTier))
	}
	return l, nil
}

// RuleFor resolves the rule for a tier and route class: an exact override
// first, then the tier's general rule, then the default tier.
func (l *Limiter) RuleFor(tier, routeClass string) Rule {
	for _, k := range []ruleKey{
		{tier, routeClass},
		{tier, ""},
		{l.defaultTier, routeClass},
	} {
		if r, ok := l.rules[k]; ok {
			return r
		}
	}
	return l.rules[ruleKey{l.defaultTier, ""}]
}

// Admit checks and counts one request of clientID against its tier's limit.
// Store failures admit the request.
func (l *Limiter) Admit(ctx context.Context, clientID, routeClass, tier string) Decision {
	return l.AdmitRule(ctx, clientID+":"+classOrDefault(routeClass), l.RuleFor(tier, routeClass))
}

// AdmitRule checks key against an explicit rule.
func (l *Limiter) AdmitRule(ctx context.Context, key string, rule Rule) Decision {
	now := l.now()

	w, err := l.store.Admit(ctx, key, rule.Limit, rule.Window, now)
	if err != nil {
		l.storeErrors.Add(1)
		l.recorder.Incr(health.ComponentRateLimiter, health.MetricStoreError)
		l.logger.WithContext(ctx).Error("Rate limit store failed, admitting request", err,
			logging.Field{Key: "key", Value: key},
		)
		return Decision{Allowed: true, Limit: rule.Limit, Remaining: rule.Limit, ResetAt: now.Add(rule.Window)}
	}

	resetAt := w.Start.Add(rule.Window)
	d := Decision{
		Allowed:   w.Allowed,
		Limit:     rule.Limit,
		Remaining: w.Remaining,
		ResetAt:   resetAt,
	}

	if w.Allowed {
		l.admitted.Add(1)
		l.recorder.Incr(health.ComponentRateLimiter, health.MetricAdmitted)
	} else {
		d.RetryAfter = resetAt.Sub(now)
		l.denied.Add(1)
		l.recorder.Incr(health.ComponentRateLimiter, health.MetricDenied)
	}
	return d
}

func (l *Limiter) Stats() Stats {
	s := Stats{
		Admitted:    l.admitted.Load(),
		Denied:      l.denied.Load(),
		StoreErrors: l.storeErrors.Load(),
	}
	if counted, ok := l.store.(interface{ Len() int }); ok {
		s.Buckets = counted.Len()
	}
	return s
}

func classOrDefault(class string) string {
	if class == "" {
		return "default"
	}
	return class
}
