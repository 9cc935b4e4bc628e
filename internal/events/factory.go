package events

import (
	"context"
	"os"

	"github.com/go-redis/redis/v8"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/config"
)

// consumerGroup names the Redis consumer group shared by every gateway
// instance.
const consumerGroup = "api-gateway"

// NewSource builds the source selected by EVENT_SOURCE. It returns nil when
// no broker feed is configured. rdb is only used for the redis source.
func NewSource(ctx context.Context, cfg *config.Config, rdb *redis.Client) (Source, error) {
	switch cfg.EventSource {
	case "", "none":
		return nil, nil
	case "redis":
		if rdb == nil {
			return nil, errors.ConfigurationError("redis event source requires a Redis connection")
		}
		return NewRedisStreamSource(rdb, cfg.EventTopic, consumerGroup, consumerName()), nil
	case "rabbitmq":
		return NewRabbitMQSource(cfg.RabbitMQURL, cfg.EventTopic)
	case "sqs":
		return NewSQSSource(ctx, AWSCredentials{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}, cfg.SQSQueueURL)
	case "pubsub":
		return NewPubSubSource(ctx, cfg.GCPProjectID, cfg.GCPCredentialsFile, cfg.EventTopic)
	case "kafka":
		return NewKafkaSource(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.EventTopic)
	default:
		return nil, errors.ConfigurationError("unknown event source").WithContext("source", cfg.EventSource)
	}
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "gateway"
	}
	return host
}
