// Package http builds the outbound HTTP clients used for webhook delivery
// and alert hooks.
package http

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// maxResponseBody bounds how much of a receiver's response is read.
const maxResponseBody = 64 << 10

type ClientConfig struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	FollowRedirects     bool
	// Transport replaces the pooled transport, mostly for tests.
	Transport http.RoundTripper
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:             10 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}

type ClientOption func(*ClientConfig)

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) { c.Timeout = timeout }
}

// WithMaxIdleConnsPerHost sizes the per-receiver pool. Dispatch workers set
// it to the worker count.
func WithMaxIdleConnsPerHost(n int) ClientOption {
	return func(c *ClientConfig) { c.MaxIdleConnsPerHost = n }
}

func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *ClientConfig) { c.Transport = transport }
}

// WithRedirects lets the client follow up to 10 redirects.
func WithRedirects() ClientOption {
	return func(c *ClientConfig) { c.FollowRedirects = true }
}

// NewHTTPClient builds a client with a bounded dial, TLS 1.2 or later and
// the overall timeout also applied to response headers. Redirects are not
// followed unless WithRedirects is given: the 3xx response itself is
// returned, so a receiver cannot bounce a signed delivery elsewhere.
func NewHTTPClient(opts ...ClientOption) *http.Client {
	cfg := DefaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
			TLSHandshakeTimeout:   5 * time.Second,
			MaxIdleConns:          cfg.MaxIdleConns,
			MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:       cfg.IdleConnTimeout,
			ResponseHeaderTimeout: cfg.Timeout,
		}
	}

	client := &http.Client{Timeout: cfg.Timeout, Transport: transport}
	if !cfg.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client
}

func NewHTTPClientWithTimeout(timeout time.Duration) *http.Client {
	return NewHTTPClient(WithTimeout(timeout))
}

// ReadBody reads at most 64KiB of the response body and closes it, so the
// connection can be reused.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return body, fmt.Errorf("failed to read response body: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return body, nil
}

// IsTimeout reports whether err came from a deadline: the client timeout,
// a context deadline or a network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
