package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultClientConfig(t *testing.T) {
	config := DefaultClientConfig()

	assert.Equal(t, 10*time.Second, config.Timeout)
	assert.Equal(t, 100, config.MaxIdleConns)
	assert.Equal(t, 10, config.MaxIdleConnsPerHost)
	assert.False(t, config.FollowRedirects)
	assert.Nil(t, config.Transport)
}

func TestOptions(t *testing.T) {
	config := DefaultClientConfig()
	for _, opt := range []ClientOption{
		WithTimeout(2 * time.Second),
		WithMaxIdleConnsPerHost(3),
		WithRedirects(),
		WithTransport(http.DefaultTransport),
	} {
		opt(&config)
	}

	assert.Equal(t, 2*time.Second, config.Timeout)
	assert.Equal(t, 3, config.MaxIdleConnsPerHost)
	assert.True(t, config.FollowRedirects)
	assert.Equal(t, http.DefaultTransport, config.Transport)
}

func TestTransportRequiresModernTLS(t *testing.T) {
	client := NewHTTPClient()
	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, uint16(tls.VersionTLS12), transport.TLSClientConfig.MinVersion)
	assert.Equal(t, 10*time.Second, transport.ResponseHeaderTimeout)
}

func TestRedirectsAreNotFollowed(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer redirector.Close()

	resp, err := NewHTTPClient().Get(redirector.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.False(t, IsSuccess(resp.StatusCode))

	resp, err = NewHTTPClient(WithRedirects()).Get(redirector.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	_, err := NewHTTPClientWithTimeout(50 * time.Millisecond).Get(slow.URL)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))

	assert.True(t, IsTimeout(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.False(t, IsTimeout(fmt.Errorf("connection refused")))
}

func TestReadBodyIsBounded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", maxResponseBody+100)))
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	body, err := ReadBody(resp)
	require.NoError(t, err)
	assert.Len(t, body, maxResponseBody)
}
