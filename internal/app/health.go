package app

import (
	"context"

	"api-gateway/internal/circuitbreaker"
	"api-gateway/internal/common/logging"
	"api-gateway/internal/health"
)

func (app *App) initializeHealth() error {
	cfg := app.Config
	monitorConfig := health.DefaultConfig()
	monitorConfig.Window = cfg.HealthWindow
	monitorConfig.MinSamples = cfg.HealthMinSamples
	monitorConfig.DegradedRatio = cfg.HealthDegradedRatio
	monitorConfig.UnhealthyRatio = cfg.HealthUnhealthyRatio
	monitorConfig.ShedThreshold = cfg.WebhookShedThreshold

	notifiers, err := app.alertNotifiers()
	if err != nil {
		return err
	}

	app.Collector = health.NewCollector()
	app.Monitor = health.NewMonitor(monitorConfig,
		health.WithStore(app.Storage),
		health.WithCollector(app.Collector),
		health.WithNotifiers(notifiers...),
	)

	// a broken database or Redis makes the dependent components unhealthy
	app.Monitor.RegisterCheck(health.ComponentAuth, app.Storage.Health)
	app.Monitor.RegisterCheck(health.ComponentDispatcher, app.Storage.Health)
	if app.RedisClient != nil {
		if cfg.RateLimitBackend == "redis" {
			app.Monitor.RegisterCheck(health.ComponentRateLimiter, app.redisHealth)
		}
		if cfg.CacheBackend == "redis" {
			app.Monitor.RegisterCheck(health.ComponentCache, app.redisHealth)
		}
	}
	return nil
}

// alertNotifiers builds one notifier per configured alert channel. Health
// transitions are always logged.
func (app *App) alertNotifiers() ([]health.Notifier, error) {
	cfg := app.Config
	logger := logging.Component("alerts")
	notifiers := []health.Notifier{health.NewLogNotifier(logger)}

	if cfg.AlertWebhookURL != "" {
		notifiers = append(notifiers, health.NewHTTPNotifier(cfg.AlertWebhookURL, logger))
	}
	if cfg.AlertSNSTopicARN != "" {
		sns, err := health.NewSNSNotifier(context.Background(),
			cfg.AWSRegion, cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, cfg.AlertSNSTopicARN, logger)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, sns)
	}
	if len(cfg.AlertEmailTo) > 0 {
		notifiers = append(notifiers, health.NewEmailNotifier(health.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			To:       cfg.AlertEmailTo,
		}, logger))
	}

	names := make([]string, 0, len(notifiers))
	for _, n := range notifiers {
		names = append(names, n.Name())
		if b, ok := n.(interface{ Breaker() *circuitbreaker.Breaker }); ok {
			app.Breakers.Register(b.Breaker())
		}
	}
	app.Logger.Info("Alert channels configured", logging.Strings("channels", names))
	return notifiers, nil
}
