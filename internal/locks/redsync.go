package locks

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/logging"
	"api-gateway/internal/redis"
)

const keyPrefix = "gateway:lock:"

// RedsyncLocker takes Redlock mutexes through go-redsync so a job runs on
// one instance of the fleet.
type RedsyncLocker struct {
	rs     *redsync.Redsync
	logger logging.Logger

	mu   sync.Mutex
	held map[string]*redsync.Mutex
}

func NewRedsyncLocker(client *redis.Client) (*RedsyncLocker, error) {
	if client == nil {
		return nil, errors.ConfigurationError("redis client is required")
	}
	return &RedsyncLocker{
		rs:     redsync.New(goredis.NewPool(client.GetGoRedisClient())),
		logger: logging.Component("locks"),
		held:   make(map[string]*redsync.Mutex),
	}, nil
}

func (l *RedsyncLocker) TryRun(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	mutex := l.rs.NewMutex(keyPrefix+name, redsync.WithExpiry(ttl), redsync.WithTries(1))
	if err := mutex.LockContext(ctx); err != nil {
		if contended(err) {
			return false, nil
		}
		return false, errors.ConnectionError("failed to acquire lock", err).WithContext("lock", name)
	}

	l.mu.Lock()
	l.held[name] = mutex
	l.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go l.renew(runCtx, mutex, ttl, cancel, done)

	err := fn(runCtx)

	cancel()
	<-done
	l.release(name, mutex)
	return true, err
}

// renew extends the mutex at a third of its expiry. Losing the lock cancels
// the job context.
func (l *RedsyncLocker) renew(ctx context.Context, mutex *redsync.Mutex, ttl time.Duration, lost context.CancelFunc, done chan<- struct{}) {
	defer close(done)

	interval := ttl / 3
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := mutex.ExtendContext(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil || !ok {
				l.logger.Warn("Lost distributed lock", logging.Field{Key: "lock", Value: mutex.Name()}, logging.Err(err))
				lost()
				return
			}
		}
	}
}

func (l *RedsyncLocker) release(name string, mutex *redsync.Mutex) {
	l.mu.Lock()
	delete(l.held, name)
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := mutex.UnlockContext(ctx); err != nil {
		l.logger.Debug("Failed to release lock", logging.Field{Key: "lock", Value: name}, logging.Err(err))
	}
}

// Close releases any locks still held.
func (l *RedsyncLocker) Close() error {
	l.mu.Lock()
	held := l.held
	l.held = make(map[string]*redsync.Mutex)
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, mutex := range held {
		mutex.UnlockContext(ctx)
	}
	return nil
}

// contended reports whether err means another holder has the lock.
func contended(err error) bool {
	var taken *redsync.ErrTaken
	var nodeTaken *redsync.ErrNodeTaken
	return stderrors.Is(err, redsync.ErrFailed) ||
		stderrors.As(err, &taken) ||
		stderrors.As(err, &nodeTaken)
}
