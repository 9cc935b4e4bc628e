package health

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-gateway/internal/circuitbreaker"
	"api-gateway/internal/common/logging"
)

func testAlert() Alert {
	return Alert{
		Previous: StatusHealthy,
		Current:  StatusDegraded,
		At:       t0,
		Report: &Report{
			Status: StatusDegraded,
			Components: map[string]*ComponentReport{
				ComponentCache: {Status: StatusDegraded, Reasons: []string{"2 cache backend errors"}},
			},
		},
	}
}

func TestHTTPNotifier(t *testing.T) {
	var received Alert
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewHTTPNotifier(server.URL, logging.Nop())
	require.NoError(t, n.Notify(context.Background(), testAlert()))
	assert.Equal(t, StatusDegraded, received.Current)
	assert.Equal(t, []string{"2 cache backend errors"}, received.Report.Components[ComponentCache].Reasons)
}

func TestHTTPNotifierBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewHTTPNotifier(server.URL, logging.Nop())
	for i := 0; i < 5; i++ {
		assert.Error(t, n.Notify(context.Background(), testAlert()))
	}
	assert.Equal(t, int32(circuitbreaker.AlertConfig.TripAfter), hits.Load())
}

type fakeSNS struct {
	inputs []*sns.PublishInput
}

func (f *fakeSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, params)
	return &sns.PublishOutput{}, nil
}

func TestSNSNotifier(t *testing.T) {
	client := &fakeSNS{}
	n := newSNSNotifier(client, "arn:aws:sns:eu-west-1:123456789012:alerts", logging.Nop())

	require.NoError(t, n.Notify(context.Background(), testAlert()))
	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "arn:aws:sns:eu-west-1:123456789012:alerts", *in.TopicArn)
	assert.Equal(t, "[api-gateway] health degraded (was healthy)", *in.Subject)

	var alert Alert
	require.NoError(t, json.Unmarshal([]byte(*in.Message), &alert))
	assert.Equal(t, StatusDegraded, alert.Current)
}

func TestEmailNotifier(t *testing.T) {
	n := NewEmailNotifier(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "alerts",
		Password: "secret",
		From:     "gateway@example.com",
		To:       []string{"oncall@example.com", "ops@example.com"},
	}, logging.Nop())
	n.now = func() time.Time { return t0 }

	var (
		gotAddr string
		gotTo   []string
		gotMsg  []byte
		gotAuth smtp.Auth
	)
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg, gotAuth = addr, to, msg, a
		return nil
	}

	require.NoError(t, n.Notify(context.Background(), testAlert()))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"oncall@example.com", "ops@example.com"}, gotTo)
	require.NotNil(t, gotAuth)

	r, err := mail.CreateReader(bytes.NewReader(gotMsg))
	require.NoError(t, err)
	subject, err := r.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "[api-gateway] health degraded (was healthy)", subject)
	to, err := r.Header.AddressList("To")
	require.NoError(t, err)
	assert.Len(t, to, 2)

	part, err := r.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "- cache: 2 cache backend errors")
}

func TestSASLAuthRequiresTLS(t *testing.T) {
	n := NewEmailNotifier(SMTPConfig{Host: "smtp.example.com", Username: "u", Password: "p"}, logging.Nop())
	var auth smtp.Auth
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		auth = a
		return nil
	}
	require.NoError(t, n.Notify(context.Background(), testAlert()))

	_, _, err := auth.Start(&smtp.ServerInfo{Name: "smtp.example.com"})
	assert.Error(t, err)

	mech, ir, err := auth.Start(&smtp.ServerInfo{Name: "smtp.example.com", TLS: true})
	require.NoError(t, err)
	assert.Equal(t, "PLAIN", mech)
	assert.Equal(t, "\x00u\x00p", string(ir))
}
