package events

import (
	"sync"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
)

type fakeConsumer struct {
	mu        sync.Mutex
	topics    []string
	messages  []*kafka.Message
	committed []kafka.Offset
	closed    bool
}

func (c *fakeConsumer) SubscribeTopics(topics []string, _ kafka.RebalanceCb) error {
	c.topics = topics
	return nil
}

func (c *fakeConsumer) ReadMessage(timeout time.Duration) (*kafka.Message, error) {
	c.mu.Lock()
	if len(c.messages) > 0 {
		msg := c.messages[0]
		c.messages = c.messages[1:]
		c.mu.Unlock()
		return msg, nil
	}
	c.mu.Unlock()
	time.Sleep(timeout)
	return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false)
}

func (c *fakeConsumer) CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed = append(c.committed, m.TopicPartition.Offset)
	return []kafka.TopicPartition{m.TopicPartition}, nil
}

func (c *fakeConsumer) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConsumer) commits() []kafka.Offset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]kafka.Offset(nil), c.committed...)
}

func kafkaMessage(offset int64, body string) *kafka.Message {
	topic := "domain-events"
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: 0, Offset: kafka.Offset(offset)},
		Value:          []byte(body),
	}
}

func TestKafkaSourceCommitsAfterDispatch(t *testing.T) {
	consumer := &fakeConsumer{messages: []*kafka.Message{
		kafkaMessage(0, `{"event_type":"a.b","event_id":"e1","data":{}}`),
		kafkaMessage(1, `nope`),
		kafkaMessage(2, `{"event_type":"a.b","event_id":"e2","data":{}}`),
	}}
	src := newKafkaSource(consumer, "domain-events")
	src.poll = 5 * time.Millisecond
	src.retryDelay = 5 * time.Millisecond
	rec := &recorder{failures: 2}

	stop := run(t, src, rec.handle)
	assert.Eventually(t, func() bool { return len(consumer.commits()) == 3 }, 2*time.Second, 10*time.Millisecond)
	stop()

	assert.Equal(t, []string{"domain-events"}, consumer.topics)
	assert.Equal(t, []kafka.Offset{0, 1, 2}, consumer.commits(), "offsets commit in order")

	events := rec.handled()
	if assert.Len(t, events, 2) {
		assert.Equal(t, "e1", events[0].ID, "e1 is retried in place before moving on")
		assert.Equal(t, "e2", events[1].ID)
	}
	assert.NoError(t, src.Close())
	assert.True(t, consumer.closed)
}
