package app

import (
	"time"

	"api-gateway/internal/cache"
	"api-gateway/internal/circuitbreaker"
	"api-gateway/internal/common/logging"
)

func (app *App) initializeCache() error {
	cfg := app.Config

	backendConfig := cache.DefaultConfig()
	switch {
	case !cfg.CacheEnabled:
		backendConfig.Type = cache.TypeNoop
	case cfg.CacheBackend == "redis" && app.RedisClient != nil:
		backendConfig.Type = cache.TypeRedis
		backendConfig.RedisClient = app.RedisClient
	default:
		if cfg.CacheBackend == "redis" {
			app.Logger.Warn("Redis unavailable, using in-memory response cache")
		}
		backendConfig.Type = cache.TypeMemory
	}

	backend, err := cache.NewBackend(backendConfig)
	if err != nil {
		return err
	}

	breaker := app.Breakers.GetOrCreate("cache:"+backend.Name(), circuitbreaker.CacheConfig)
	app.Cache = cache.New(backend,
		cache.WithRecorder(app.Monitor),
		cache.WithBreaker(breaker),
		cache.WithLogger(logging.Component("cache")),
	)
	app.Logger.Info("Response cache ready", logging.Field{Key: "backend", Value: backend.Name()})
	return nil
}

func (app *App) cacheTTL() time.Duration {
	if app.Config.CacheDefaultTTL > 0 {
		return app.Config.CacheDefaultTTL
	}
	return 30 * time.Second
}
