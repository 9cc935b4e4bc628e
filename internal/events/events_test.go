package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/models"
)

func TestDecode(t *testing.T) {
	event, err := Decode([]byte(`{
		"event_type": "donation.completed",
		"event_id": "evt_1",
		"occurred_at": "2026-03-01T12:00:00Z",
		"data": {"amount": 25},
		"critical": true
	}`))
	require.NoError(t, err)
	assert.Equal(t, "donation.completed", event.Type)
	assert.Equal(t, "evt_1", event.ID)
	assert.True(t, event.Critical)
	assert.True(t, event.OccurredAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	assert.JSONEq(t, `{"amount": 25}`, string(event.Data))

	minimal, err := Decode([]byte(`{"event_type":"user.created","data":null}`))
	require.NoError(t, err)
	assert.Empty(t, minimal.ID)
	assert.True(t, minimal.OccurredAt.IsZero())

	for name, body := range map[string]string{
		"not json":     `event`,
		"missing type": `{"data":{}}`,
		"bad type":     `{"event_type":"Donation Completed","data":{}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(body))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
		})
	}
}

// recorder collects handled events and fails the first failures calls.
type recorder struct {
	mu       sync.Mutex
	events   []*models.Event
	calls    int
	failures int
}

func (r *recorder) handle(_ context.Context, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.failures {
		return assert.AnError
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) handled() []*models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.Event(nil), r.events...)
}

func (r *recorder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// run starts src in the background and returns a stop function that waits
// for Run to return.
func run(t *testing.T, src Source, handler Handler) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, handler) }()

	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("source did not stop")
		}
	}
}
