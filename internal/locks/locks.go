// Package locks keeps periodic jobs to one gateway instance at a time.
package locks

import (
	"context"
	"sync"
	"time"
)

// Locker runs fn only when the named lock can be taken without waiting.
// The lock is held for at least ttl or until fn returns, whichever is later
// for in-flight work; implementations renew it while fn runs.
type Locker interface {
	TryRun(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error)
	Close() error
}

// MemoryLocker serialises jobs inside one process. It is used when no
// Redis is configured.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]bool)}
}

func (l *MemoryLocker) TryRun(ctx context.Context, name string, _ time.Duration, fn func(ctx context.Context) error) (bool, error) {
	l.mu.Lock()
	if l.held[name] {
		l.mu.Unlock()
		return false, nil
	}
	l.held[name] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, name)
		l.mu.Unlock()
	}()
	return true, fn(ctx)
}

func (l *MemoryLocker) Close() error { return nil }
