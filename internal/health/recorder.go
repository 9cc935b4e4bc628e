package health

import "time"

// Components reporting to the monitor.
const (
	ComponentAuth        = "auth"
	ComponentRateLimiter = "rate_limiter"
	ComponentCache       = "cache"
	ComponentDispatcher  = "dispatcher"
	ComponentGateway     = "gateway"
)

// Metric names. Counters unless noted.
const (
	MetricIssued        = "issued"
	MetricAuthFailure   = "failure"
	MetricVerified      = "verified"
	MetricVerifyFailure = "verify_failure"
	MetricRevoked       = "revoked"

	MetricAdmitted   = "admitted"
	MetricDenied     = "denied"
	MetricStoreError = "store_error"

	MetricHit   = "hit"
	MetricMiss  = "miss"
	MetricError = "error"

	MetricAttempt      = "attempt"
	MetricSuccess      = "success"
	MetricFailed       = "failed"
	MetricDeadLettered = "dead_lettered"
	MetricShed         = "shed"
	MetricTrial        = "trial"
	MetricQueueDepth   = "queue_depth" // gauge

	MetricRequest     = "request"
	MetricClientError = "client_error"
	MetricServerError = "server_error"

	MetricLatency = "latency" // timer
)

// Recorder is the write side of the monitor handed to every component.
type Recorder interface {
	Incr(component, metric string)
	Observe(component, metric string, d time.Duration)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) Incr(component, metric string)                     {}
func (NopRecorder) Observe(component, metric string, d time.Duration) {}
