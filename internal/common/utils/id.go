// Package utils holds small helpers shared across the gateway: identifiers,
// secrets, retry backoff and duration parsing.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/lucsky/cuid"
)

// NewID returns a collision-resistant identifier for stored records.
func NewID() string {
	return cuid.New()
}

// NewEventID returns a UUID used as a webhook event's dedup key.
func NewEventID() string {
	return uuid.NewString()
}

// NewRequestID returns an identifier for an inbound HTTP request.
func NewRequestID() string {
	return "req_" + uuid.NewString()
}

// GenerateRandomID generates a cryptographically secure random hex string of
// the given length.
func GenerateRandomID(length int) (string, error) {
	bytes := make([]byte, (length+1)/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:length], nil
}

// GenerateSecret returns a random secret with a readable prefix, e.g. "whsec_...".
func GenerateSecret(prefix string) (string, error) {
	random, err := GenerateRandomID(48)
	if err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return prefix + random, nil
}
