package events

import (
	"context"

	"github.com/streadway/amqp"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/logging"
)

// amqpChannel is the part of *amqp.Channel the source uses.
type amqpChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// RabbitMQSource consumes a durable queue with manual acknowledgements.
type RabbitMQSource struct {
	conn    *amqp.Connection
	channel amqpChannel
	queue   string
	logger  logging.Logger
}

func NewRabbitMQSource(url, queue string) (*RabbitMQSource, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.ConnectionError("failed to connect to RabbitMQ", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.ConnectionError("failed to open RabbitMQ channel", err)
	}

	s := newRabbitMQSource(ch, queue)
	s.conn = conn
	return s, nil
}

func newRabbitMQSource(ch amqpChannel, queue string) *RabbitMQSource {
	return &RabbitMQSource{
		channel: ch,
		queue:   queue,
		logger:  logging.Component("events").WithFields(logging.Field{Key: "source", Value: "rabbitmq"}, logging.Field{Key: "queue", Value: queue}),
	}
}

func (s *RabbitMQSource) Name() string { return "rabbitmq" }

func (s *RabbitMQSource) Run(ctx context.Context, handler Handler) error {
	if _, err := s.channel.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		return errors.ConnectionError("failed to declare queue", err)
	}
	if err := s.channel.Qos(10, 0, false); err != nil {
		return errors.ConnectionError("failed to set prefetch", err)
	}
	deliveries, err := s.channel.Consume(s.queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.ConnectionError("failed to start consuming", err)
	}
	s.logger.Info("Consuming domain events")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.ConnectionError("RabbitMQ delivery channel closed", nil)
			}
			fields := logging.Field{Key: "delivery_tag", Value: d.DeliveryTag}
			if handle(ctx, s.logger, d.Body, handler, fields) {
				if err := d.Ack(false); err != nil {
					s.logger.Error("Failed to ack message", err, fields)
				}
				continue
			}
			if err := d.Nack(false, true); err != nil {
				s.logger.Error("Failed to nack message", err, fields)
			}
		}
	}
}

func (s *RabbitMQSource) Close() error {
	err := s.channel.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
