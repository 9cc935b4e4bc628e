package app

import (
	"context"

	goredis "github.com/go-redis/redis/v8"

	"api-gateway/internal/common/logging"
	"api-gateway/internal/events"
)

func (app *App) initializeEventSource() error {
	var rdb *goredis.Client
	if app.RedisClient != nil {
		rdb = app.RedisClient.GetGoRedisClient()
	}

	source, err := events.NewSource(context.Background(), app.Config, rdb)
	if err != nil {
		return err
	}
	if source == nil {
		app.Logger.Info("Event source: none (HTTP publish only)")
		return nil
	}

	app.Source = source
	app.Logger.Info("Event source configured",
		logging.Field{Key: "source", Value: source.Name()},
		logging.Field{Key: "topic", Value: app.Config.EventTopic},
	)
	return nil
}
