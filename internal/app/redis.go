package app

import (
	"context"

	"api-gateway/internal/common/logging"
	"api-gateway/internal/redis"
)

// initializeRedis connects when REDIS_ADDRESS is set. A failed connection
// is logged and the Redis-backed features fall back to their in-process
// versions.
func (app *App) initializeRedis() error {
	if !app.Config.RedisEnabled() {
		app.Logger.Info("Redis: not configured (in-process rate limits, cache and locks)")
		return nil
	}

	client, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDB,
		PoolSize: app.Config.RedisPoolSize,
	})
	if err != nil {
		app.Logger.Warn("Redis initialization failed, continuing without Redis", logging.Err(err))
		return nil
	}

	app.RedisClient = client
	app.Logger.Info("Redis: connected", logging.Field{Key: "address", Value: app.Config.RedisAddress})
	return nil
}

func (app *App) redisHealth(ctx context.Context) error {
	return app.RedisClient.Health(ctx)
}
