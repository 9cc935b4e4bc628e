package app

import (
	"api-gateway/internal/common/logging"
	"api-gateway/internal/ratelimit"
)

func (app *App) initializeRateLimiter() error {
	cfg := app.Config
	if !cfg.RateLimitEnabled {
		app.Logger.Info("Rate limiting disabled")
		return nil
	}

	var store ratelimit.CounterStore
	if cfg.RateLimitBackend == "redis" && app.RedisClient != nil {
		store = ratelimit.NewRedisStore(app.RedisClient)
	} else {
		if cfg.RateLimitBackend == "redis" {
			app.Logger.Warn("Redis unavailable, rate limits are per instance")
		}
		store = ratelimit.NewMemoryStore()
	}

	rules := make([]ratelimit.Rule, 0, len(cfg.RateLimitTiers))
	for _, t := range cfg.RateLimitTiers {
		rules = append(rules, ratelimit.Rule{
			Tier:       t.Tier,
			RouteClass: t.RouteClass,
			Limit:      t.Requests,
			Window:     t.Window,
		})
	}

	limiter, err := ratelimit.NewLimiter(store, rules, cfg.RateLimitDefaultTier,
		ratelimit.WithRecorder(app.Monitor),
		ratelimit.WithLogger(logging.Component("ratelimit")),
		ratelimit.WithTrustedProxies(cfg.TrustedProxies),
	)
	if err != nil {
		return err
	}
	app.Limiter = limiter
	app.Logger.Info("Rate limiting enabled",
		logging.Field{Key: "rules", Value: len(rules)},
		logging.Field{Key: "default_tier", Value: cfg.RateLimitDefaultTier},
		logging.Field{Key: "trusted_proxies", Value: len(cfg.TrustedProxies)},
	)
	return nil
}

// authRule limits token requests per source IP, before any client is known.
func (app *App) authRule() ratelimit.Rule {
	t := app.Config.AuthRateLimit
	return ratelimit.Rule{Tier: t.Tier, RouteClass: t.RouteClass, Limit: t.Requests, Window: t.Window}
}
