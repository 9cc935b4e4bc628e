package app

import (
	"context"
	"net/http"
	"os"
	"sync"

	"api-gateway/internal/auth"
	"api-gateway/internal/cache"
	"api-gateway/internal/circuitbreaker"
	"api-gateway/internal/common/logging"
	"api-gateway/internal/config"
	"api-gateway/internal/crypto"
	"api-gateway/internal/events"
	"api-gateway/internal/health"
	"api-gateway/internal/locks"
	"api-gateway/internal/models"
	"api-gateway/internal/ratelimit"
	"api-gateway/internal/redis"
	"api-gateway/internal/scheduler"
	"api-gateway/internal/storage"
	"api-gateway/internal/webhook"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Storage     storage.Storage
	RedisClient *redis.Client
	SecretBox   *crypto.SecretBox
	Breakers    *circuitbreaker.Manager
	Collector   *health.Collector
	Monitor     *health.Monitor
	Auth        *auth.Manager
	Limiter     *ratelimit.Limiter
	Cache       *cache.Cache
	Dispatcher  *webhook.Dispatcher
	Webhooks    *webhook.Service
	Locker      locks.Locker
	Scheduler   *scheduler.Scheduler
	Source      events.Source
	Logger      logging.Logger

	handler  http.Handler
	instance string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a new application instance with all dependencies
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logging.Component("app"),
		Breakers: circuitbreaker.NewManager(logging.Component("circuitbreaker")),
		instance: instanceName(),
	}

	// Initialize components in order of dependency
	steps := []func() error{
		app.initializeStorage,
		app.initializeRedis,
		app.initializeHealth,
		app.initializeAuth,
		app.initializeRateLimiter,
		app.initializeCache,
		app.initializeWebhooks,
		app.initializeEventSource,
		app.initializeScheduler,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			app.Cleanup()
			return nil, err
		}
	}

	app.handler = app.Routes()
	return app, nil
}

// Handler is the HTTP entry point with every route and middleware applied.
func (app *App) Handler() http.Handler {
	return app.handler
}

// Start launches the background workers: the dispatcher pool, the cron
// scheduler and the broker event feed.
func (app *App) Start(ctx context.Context) {
	ctx, app.cancel = context.WithCancel(ctx)

	app.Dispatcher.Start(ctx)
	app.Scheduler.Start()

	if app.Source != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.consume(ctx)
		}()
	}
}

// consume feeds broker events to the dispatcher.
func (app *App) consume(ctx context.Context) {
	logger := app.Logger.WithFields(logging.Field{Key: "source", Value: app.Source.Name()})
	handler := func(ctx context.Context, event *models.Event) error {
		_, err := app.Dispatcher.Publish(ctx, event)
		return err
	}

	if err := app.Source.Run(ctx, handler); err != nil {
		logger.Error("Event source stopped", err)
		return
	}
	logger.Info("Event source stopped")
}

// Shutdown gracefully shuts down the application
func (app *App) Shutdown(ctx context.Context) error {
	if app.cancel != nil {
		app.cancel()
	}

	var firstErr error
	if err := app.Scheduler.Stop(ctx); err != nil {
		app.Logger.Warn("Error stopping scheduler", logging.Err(err))
		firstErr = err
	}
	if err := app.Dispatcher.Stop(ctx); err != nil {
		app.Logger.Warn("Error stopping webhook dispatcher", logging.Err(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		app.Logger.Warn("Event source did not stop in time")
	}

	// final flush so the last minutes of metrics are not lost
	if _, err := app.Monitor.Flush(ctx); err != nil {
		app.Logger.Warn("Failed to flush health metrics", logging.Err(err))
	}
	return firstErr
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.Source != nil {
		app.Source.Close()
	}
	if app.Locker != nil {
		app.Locker.Close()
	}
	if app.Storage != nil {
		app.Storage.Close()
	}
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}

func instanceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "gateway"
	}
	return host
}
