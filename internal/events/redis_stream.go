package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/logging"
)

// RedisStreamSource reads a Redis stream through a consumer group. Each
// entry carries the event JSON in its "body" field.
type RedisStreamSource struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	block    time.Duration

	// retryDelay spaces re-reads of entries whose dispatch failed
	retryDelay time.Duration
	logger     logging.Logger
}

func NewRedisStreamSource(client *redis.Client, stream, group, consumer string) *RedisStreamSource {
	return &RedisStreamSource{
		client:     client,
		stream:     stream,
		group:      group,
		consumer:   consumer,
		block:      100 * time.Millisecond,
		retryDelay: time.Second,
		logger:     logging.Component("events").WithFields(logging.Field{Key: "source", Value: "redis"}, logging.Field{Key: "stream", Value: stream}),
	}
}

func (s *RedisStreamSource) Name() string { return "redis" }

func (s *RedisStreamSource) Run(ctx context.Context, handler Handler) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return errors.ConnectionError("failed to create consumer group", err)
	}
	s.logger.Info("Consuming domain events", logging.Field{Key: "group", Value: s.group})

	// entries delivered but not acknowledged before a restart come first
	pending := "0"
	for ctx.Err() == nil {
		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: s.consumer,
			Streams:  []string{s.stream, pending},
			Count:    10,
			Block:    s.block,
		}).Result()
		if err != nil && err != redis.Nil {
			if ctx.Err() != nil {
				continue
			}
			s.logger.Error("Redis stream read failed", err)
			sleep(ctx, time.Second)
			continue
		}

		read, failed := 0, 0
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				read++
				if !s.process(ctx, msg, handler) {
					failed++
					continue
				}
				if err := s.client.XAck(ctx, s.stream, s.group, msg.ID).Err(); err != nil {
					s.logger.Error("Failed to acknowledge stream entry", err, logging.Field{Key: "entry_id", Value: msg.ID})
				}
			}
		}

		switch {
		case failed > 0:
			// retry the unacknowledged entries after a pause
			pending = "0"
			sleep(ctx, s.retryDelay)
		case pending == "0" && read == 0:
			pending = ">"
		}
	}
	return nil
}

func (s *RedisStreamSource) process(ctx context.Context, msg redis.XMessage, handler Handler) bool {
	raw, ok := msg.Values["body"]
	if !ok {
		s.logger.Warn("Dropping stream entry without body", logging.Field{Key: "entry_id", Value: msg.ID})
		return true
	}
	return handle(ctx, s.logger, []byte(fmt.Sprint(raw)), handler, logging.Field{Key: "entry_id", Value: msg.ID})
}

// Close is a no-op; the Redis client is shared and closed by its owner.
func (s *RedisStreamSource) Close() error { return nil }
