// Package cache stores idempotent read responses for a bounded time.
//
// Backends:
//   - memory: github.com/patrickmn/go-cache plus a tag index
//   - redis: value keys with a PX ttl plus one set per tag
//   - noop: every read is a miss
//
// Cache wraps a backend in a circuit breaker and fails open: a backend
// error is reported as a miss and counted, never returned to the caller.
//
// Usage:
//
//	backend, _ := cache.NewBackend(cache.Config{Type: cache.TypeMemory})
//	c := cache.New(backend)
//	c.Put(ctx, key, cache.NewEntry(body, "application/json", time.Minute, []string{"clients"}))
//	entry, ok := c.Get(ctx, key)
//	c.Invalidate(ctx, "clients")
package cache
