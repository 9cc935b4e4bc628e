package events

import (
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	deliveries chan amqp.Delivery
	declared   string
	durable    bool
	autoAck    bool
	closed     bool
}

func (c *fakeChannel) Qos(int, int, bool) error { return nil }

func (c *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.declared = name
	c.durable = durable
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) Consume(_, _ string, autoAck, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	c.autoAck = autoAck
	return c.deliveries, nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type acks struct {
	mu     sync.Mutex
	acked  []uint64
	nacked []uint64
}

func (a *acks) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *acks) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		a.nacked = append(a.nacked, tag)
	}
	return nil
}

func (a *acks) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }

func (a *acks) snapshot() ([]uint64, []uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint64(nil), a.acked...), append([]uint64(nil), a.nacked...)
}

func TestRabbitMQSource(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 4)}
	ack := &acks{}
	src := newRabbitMQSource(ch, "domain-events")
	rec := &recorder{failures: 1}

	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{"event_type":"a.b","event_id":"e1","data":{}}`)}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte(`{"event_type":"a.b","event_id":"e1","data":{}}`)}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte(`garbage`)}

	stop := run(t, src, rec.handle)
	assert.Eventually(t, func() bool {
		acked, nacked := ack.snapshot()
		return len(acked)+len(nacked) == 3
	}, 2*time.Second, 10*time.Millisecond)
	stop()

	acked, nacked := ack.snapshot()
	assert.Equal(t, []uint64{2, 3}, acked)
	assert.Equal(t, []uint64{1}, nacked, "failed dispatch is requeued")
	assert.Equal(t, "domain-events", ch.declared)
	assert.True(t, ch.durable)
	assert.False(t, ch.autoAck)

	require.NoError(t, src.Close())
	assert.True(t, ch.closed)
}
