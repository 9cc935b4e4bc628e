package cache

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"api-gateway/internal/auth"
)

// ClientTag is replaced in Cached tags with the caller's client ID.
const ClientTag = "{client}"

// Cached serves GET responses from the cache. Only 200 responses are stored.
func (c *Cache) Cached(ttl time.Duration, tags ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			var identity string
			var scopes []string
			if p, ok := auth.PrincipalFromContext(r.Context()); ok {
				identity, scopes = p.ClientID, p.Scopes
			}
			key := Key(r.URL.Path, r.URL.Query(), identity, scopes)

			if entry, ok := c.Get(r.Context(), key); ok {
				c.serveHit(w, r, entry)
				return
			}

			buf := &bufferedWriter{header: make(http.Header), status: http.StatusOK}
			next.ServeHTTP(buf, r)

			for k, v := range buf.header {
				w.Header()[k] = v
			}
			w.Header().Set("X-Cache", "MISS")

			if buf.status == http.StatusOK {
				entry := NewEntry(buf.body.Bytes(), buf.header.Get("Content-Type"), ttl, expandTags(tags, identity))
				c.Put(r.Context(), key, entry)
				w.Header().Set("ETag", entry.ETag())
			}

			w.WriteHeader(buf.status)
			w.Write(buf.body.Bytes())
		})
	}
}

func (c *Cache) serveHit(w http.ResponseWriter, r *http.Request, entry *Entry) {
	h := w.Header()
	h.Set("X-Cache", "HIT")
	h.Set("ETag", entry.ETag())
	maxAge := int(entry.Remaining(c.now()) / time.Second)
	h.Set("Cache-Control", "private, max-age="+strconv.Itoa(maxAge))

	if etagMatches(r.Header.Get("If-None-Match"), entry.ETag()) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if entry.ContentType != "" {
		h.Set("Content-Type", entry.ContentType)
	}
	h.Set("Content-Length", strconv.Itoa(len(entry.Value)))
	w.WriteHeader(http.StatusOK)
	w.Write(entry.Value)
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func expandTags(tags []string, clientID string) []string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = strings.ReplaceAll(tag, ClientTag, clientID)
	}
	return out
}

type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
	wrote  bool
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(status int) {
	if b.wrote {
		return
	}
	b.status = status
	b.wrote = true
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.wrote = true
	return b.body.Write(p)
}
