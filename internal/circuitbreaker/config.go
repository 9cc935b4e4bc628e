// Package circuitbreaker wraps sony/gobreaker for the gateway's optional
// dependencies: the shared cache backend and outbound alert channels.
package circuitbreaker

import (
	"fmt"
	"time"
)

// Config decides when a breaker opens and how it recovers.
type Config struct {
	// TripAfter consecutive failures open the breaker.
	TripAfter int
	// Cooldown is the open period before trial calls are let through.
	Cooldown time.Duration
	// Trials is the number of trial calls admitted while half-open.
	Trials int
}

func DefaultConfig() Config {
	return Config{TripAfter: 5, Cooldown: time.Minute, Trials: 1}
}

func (c Config) Validate() error {
	switch {
	case c.TripAfter < 1:
		return fmt.Errorf("breaker must trip after at least one failure, got %d", c.TripAfter)
	case c.Cooldown <= 0:
		return fmt.Errorf("breaker cooldown must be positive, got %v", c.Cooldown)
	case c.Trials < 1:
		return fmt.Errorf("breaker needs at least one half-open trial call, got %d", c.Trials)
	}
	return nil
}

// Presets. A cache miss is always an acceptable answer, so the cache
// breaker reopens the backend sooner than an alert channel.
var (
	CacheConfig = Config{TripAfter: 3, Cooldown: 15 * time.Second, Trials: 1}
	AlertConfig = Config{TripAfter: 3, Cooldown: 2 * time.Minute, Trials: 1}
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Stats is a snapshot of one breaker.
type Stats struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
	TotalFailures       uint32 `json:"total_failures"`
}
