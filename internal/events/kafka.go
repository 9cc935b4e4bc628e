package events

import (
	"context"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/logging"
)

type kafkaConsumer interface {
	SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error)
	Close() error
}

// KafkaSource reads one topic in a consumer group and commits offsets
// manually after each event is dispatched. A failed dispatch is retried in
// place, holding back the partition until it succeeds.
type KafkaSource struct {
	consumer   kafkaConsumer
	topic      string
	poll       time.Duration
	retryDelay time.Duration
	logger     logging.Logger
}

func NewKafkaSource(brokers []string, groupID, topic string) (*KafkaSource, error) {
	if len(brokers) == 0 {
		return nil, errors.ConfigurationError("at least one Kafka broker is required")
	}

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(brokers, ","),
		"client.id":          "api-gateway",
		"group.id":           groupID,
		"session.timeout.ms": 6000,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return nil, errors.ConnectionError("failed to create Kafka consumer", err)
	}
	return newKafkaSource(consumer, topic), nil
}

func newKafkaSource(consumer kafkaConsumer, topic string) *KafkaSource {
	return &KafkaSource{
		consumer:   consumer,
		topic:      topic,
		poll:       200 * time.Millisecond,
		retryDelay: time.Second,
		logger:     logging.Component("events").WithFields(logging.Field{Key: "source", Value: "kafka"}, logging.Field{Key: "topic", Value: topic}),
	}
}

func (s *KafkaSource) Name() string { return "kafka" }

func (s *KafkaSource) Run(ctx context.Context, handler Handler) error {
	if err := s.consumer.SubscribeTopics([]string{s.topic}, nil); err != nil {
		return errors.ConnectionError("failed to subscribe to topic", err)
	}
	s.logger.Info("Consuming domain events")

	for ctx.Err() == nil {
		msg, err := s.consumer.ReadMessage(s.poll)
		if err != nil {
			if kerr, ok := err.(kafka.Error); ok && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			s.logger.Error("Kafka read failed", err)
			sleep(ctx, s.retryDelay)
			continue
		}

		fields := logging.Field{Key: "offset", Value: msg.TopicPartition.Offset.String()}
		for !handle(ctx, s.logger, msg.Value, handler, fields) {
			sleep(ctx, s.retryDelay)
			if ctx.Err() != nil {
				return nil
			}
		}
		if _, err := s.consumer.CommitMessage(msg); err != nil {
			s.logger.Error("Failed to commit Kafka offset", err, fields)
		}
	}
	return nil
}

func (s *KafkaSource) Close() error {
	return s.consumer.Close()
}
