package events

import (
	"context"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/logging"
)

// PubSubSource receives from an existing Google Cloud Pub/Sub subscription.
type PubSubSource struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
	logger       logging.Logger
}

func NewPubSubSource(ctx context.Context, projectID, credentialsFile, subscriptionID string) (*PubSubSource, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, errors.ConnectionError("failed to create Pub/Sub client", err)
	}

	sub := client.Subscription(subscriptionID)
	sub.ReceiveSettings.MaxOutstandingMessages = 10
	sub.ReceiveSettings.NumGoroutines = 1

	return &PubSubSource{
		client:       client,
		subscription: sub,
		logger: logging.Component("events").WithFields(
			logging.Field{Key: "source", Value: "pubsub"},
			logging.Field{Key: "subscription", Value: subscriptionID},
		),
	}, nil
}

func (s *PubSubSource) Name() string { return "pubsub" }

func (s *PubSubSource) Run(ctx context.Context, handler Handler) error {
	s.logger.Info("Consuming domain events")

	err := s.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.receive(ctx, msg.ID, msg.Data, handler, msg.Ack, msg.Nack)
	})
	if err != nil && ctx.Err() == nil {
		return errors.ConnectionError("Pub/Sub receive stopped", err)
	}
	return nil
}

func (s *PubSubSource) receive(ctx context.Context, id string, data []byte, handler Handler, ack, nack func()) {
	if handle(ctx, s.logger, data, handler, logging.Field{Key: "message_id", Value: id}) {
		ack()
		return
	}
	nack()
}

func (s *PubSubSource) Close() error {
	return s.client.Close()
}
