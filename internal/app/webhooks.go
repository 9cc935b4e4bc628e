package app

import (
	"context"

	"api-gateway/internal/common/logging"
	"api-gateway/internal/common/utils"
	"api-gateway/internal/crypto"
	"api-gateway/internal/handlers"
	"api-gateway/internal/health"
	"api-gateway/internal/webhook"
)

func (app *App) initializeWebhooks() error {
	cfg := app.Config

	box, err := crypto.NewSecretBox(cfg.EncryptionKey)
	if err != nil {
		return err
	}
	app.SecretBox = box

	dispatchConfig := webhook.DefaultConfig()
	dispatchConfig.Workers = cfg.WebhookWorkers
	dispatchConfig.QueueSize = cfg.WebhookQueueSize
	dispatchConfig.ShedThreshold = cfg.WebhookShedThreshold
	dispatchConfig.MaxAttempts = cfg.WebhookMaxAttempts
	dispatchConfig.Backoff = utils.Backoff{
		Base:   cfg.WebhookBackoffBase,
		Factor: dispatchConfig.Backoff.Factor,
		Max:    cfg.WebhookBackoffMax,
		Jitter: dispatchConfig.Backoff.Jitter,
	}
	dispatchConfig.Timeout = cfg.WebhookTimeout
	dispatchConfig.FailureThreshold = cfg.WebhookFailureThreshold
	dispatchConfig.TrialInterval = cfg.WebhookTrialInterval
	dispatchConfig.PollInterval = cfg.WebhookPollInterval
	dispatchConfig.Lease = cfg.WebhookLease
	dispatchConfig.CriticalEvents = cfg.WebhookCriticalEvents

	dispatcher, err := webhook.NewDispatcher(dispatchConfig, app.Storage, box,
		webhook.WithRecorder(app.Monitor),
		webhook.WithLogger(logging.Component("webhook")),
		// delivery results show in the cached subscription listing
		webhook.WithInvalidator(func(ctx context.Context, clientID string) {
			app.Cache.InvalidateQuietly(ctx, handlers.WebhooksTag(clientID))
		}),
	)
	if err != nil {
		return err
	}
	app.Dispatcher = dispatcher
	app.Webhooks = webhook.NewService(app.Storage, box, dispatcher,
		webhook.AllowInsecure(cfg.WebhookAllowInsecure))

	app.Monitor.RegisterGauge(health.ComponentDispatcher, health.MetricQueueDepth, func() float64 {
		return float64(dispatcher.Depth())
	})
	if cfg.WebhookAllowInsecure {
		app.Logger.Warn("Webhook targets may use plain HTTP and private addresses")
	}
	return nil
}
