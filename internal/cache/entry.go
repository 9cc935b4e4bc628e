package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Entry is one cached response.
type Entry struct {
	Value       []byte        `json:"value"`
	ContentType string        `json:"content_type"`
	Hash        string        `json:"hash"`
	StoredAt    time.Time     `json:"stored_at"`
	TTL         time.Duration `json:"ttl"`
	Tags        []string      `json:"tags,omitempty"`
}

// NewEntry builds an entry; StoredAt is set by Cache.Put.
func NewEntry(value []byte, contentType string, ttl time.Duration, tags []string) *Entry {
	sum := sha256.Sum256(value)
	return &Entry{
		Value:       value,
		ContentType: contentType,
		Hash:        hex.EncodeToString(sum[:]),
		TTL:         ttl,
		Tags:        tags,
	}
}

// ExpiresAt is StoredAt + TTL.
func (e *Entry) ExpiresAt() time.Time {
	return e.StoredAt.Add(e.TTL)
}

// Fresh reports whether the entry may still be served at now.
func (e *Entry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt())
}

// Remaining is the time left before expiry, never negative.
func (e *Entry) Remaining(now time.Time) time.Duration {
	if d := e.ExpiresAt().Sub(now); d > 0 {
		return d
	}
	return 0
}

// ETag is the quoted content hash.
func (e *Entry) ETag() string {
	return `"` + e.Hash + `"`
}

// Key derives a cache key from the route, the query with its parameters
// sorted, and the caller's identity. Two callers share an entry only when
// both their identity and scopes match.
func Key(route string, query url.Values, identity string, scopes []string) string {
	var b strings.Builder
	b.WriteString(route)
	b.WriteByte('?')
	b.WriteString(query.Encode()) // Encode sorts by key

	sorted := append([]string(nil), scopes...)
	sort.Strings(sorted)
	b.WriteByte('|')
	b.WriteString(identity)
	b.WriteByte('|')
	b.WriteString(strings.Join(sorted, ","))

	sum := sha256.Sum256([]byte(b.String()))
	return "resp:" + hex.EncodeToString(sum[:])
}
