package events

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/logging"
)

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSSource long-polls a queue. Messages are deleted only after a
// successful dispatch; others reappear after the visibility timeout.
type SQSSource struct {
	client   sqsAPI
	queueURL string
	wait     int32
	logger   logging.Logger
}

type AWSCredentials struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

func NewSQSSource(ctx context.Context, creds AWSCredentials, queueURL string) (*SQSSource, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(creds.Region)}
	if creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.ConfigurationError("failed to load AWS configuration").WithCause(err)
	}
	return newSQSSource(sqs.NewFromConfig(cfg), queueURL), nil
}

func newSQSSource(client sqsAPI, queueURL string) *SQSSource {
	return &SQSSource{
		client:   client,
		queueURL: queueURL,
		wait:     1,
		logger:   logging.Component("events").WithFields(logging.Field{Key: "source", Value: "sqs"}, logging.Field{Key: "queue_url", Value: queueURL}),
	}
}

func (s *SQSSource) Name() string { return "sqs" }

func (s *SQSSource) Run(ctx context.Context, handler Handler) error {
	s.logger.Info("Consuming domain events")

	for ctx.Err() == nil {
		out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(s.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     s.wait,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("SQS receive failed", err)
			sleep(ctx, 5*time.Second)
			continue
		}

		for _, msg := range out.Messages {
			id := aws.ToString(msg.MessageId)
			if !handle(ctx, s.logger, []byte(aws.ToString(msg.Body)), handler, logging.Field{Key: "message_id", Value: id}) {
				continue
			}
			_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(s.queueURL),
				ReceiptHandle: msg.ReceiptHandle,
			})
			if err != nil {
				s.logger.Error("Failed to delete SQS message", err, logging.Field{Key: "message_id", Value: id})
			}
		}
	}
	return nil
}

func (s *SQSSource) Close() error { return nil }
