package utils

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"time"
)

// Backoff computes exponential retry delays with jitter.
type Backoff struct {
	// Base is the delay before the first retry.
	Base time.Duration
	// Factor multiplies the delay for each further attempt.
	Factor float64
	// Max caps the delay before jitter is applied.
	Max time.Duration
	// Jitter spreads each delay by ±Jitter (0.2 = ±20%).
	Jitter float64
}

// DefaultBackoff is 30s doubling per attempt, capped at one hour, ±20% jitter.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:   30 * time.Second,
		Factor: 2.0,
		Max:    time.Hour,
		Jitter: 0.2,
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(b.Base) * math.Pow(b.Factor, float64(attempt-1))
	if b.Max > 0 && delay > float64(b.Max) {
		delay = float64(b.Max)
	}

	if b.Jitter > 0 {
		spread := delay * b.Jitter
		delay = delay - spread + 2*spread*randomFloat()
	}

	return time.Duration(delay)
}

// randomFloat returns a uniformly distributed value in [0, 1).
func randomFloat() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return float64(time.Now().UnixNano()%1000) / 1000
	}
	return float64(binary.BigEndian.Uint64(buf[:])>>11) / (1 << 53)
}
