package locks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-gateway/internal/redis"
)

func newRedsyncLocker(t *testing.T) (*RedsyncLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	locker, err := NewRedsyncLocker(client)
	require.NoError(t, err)
	t.Cleanup(func() { locker.Close() })
	return locker, mr
}

// exercise checks that a second TryRun is refused while the first runs and
// that the lock is free again afterwards.
func exercise(t *testing.T, locker Locker) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	result := make(chan bool, 1)

	go func() {
		ran, err := locker.TryRun(ctx, "health.rollup", 10*time.Second, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
		assert.NoError(t, err)
		result <- ran
	}()
	<-started

	ran, err := locker.TryRun(ctx, "health.rollup", 10*time.Second, func(context.Context) error {
		t.Error("second holder must not run")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ran)

	ran, err = locker.TryRun(ctx, "tokens.purge", 10*time.Second, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.True(t, ran, "different names do not contend")

	close(release)
	assert.True(t, <-result)

	ran, err = locker.TryRun(ctx, "health.rollup", 10*time.Second, func(context.Context) error {
		return assert.AnError
	})
	assert.True(t, ran)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestMemoryLocker(t *testing.T) {
	exercise(t, NewMemoryLocker())
}

func TestRedsyncLocker(t *testing.T) {
	locker, mr := newRedsyncLocker(t)
	exercise(t, locker)
	assert.False(t, mr.Exists(keyPrefix+"health.rollup"), "lock key is deleted on release")
}

func TestRedsyncLockerRenewsWhileRunning(t *testing.T) {
	locker, mr := newRedsyncLocker(t)

	ran, err := locker.TryRun(context.Background(), "slow", 3*time.Second, func(ctx context.Context) error {
		// the first renewal happens after one second
		time.Sleep(1500 * time.Millisecond)
		assert.True(t, mr.Exists(keyPrefix+"slow"))
		assert.NoError(t, ctx.Err())
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestNewRedsyncLockerRequiresClient(t *testing.T) {
	_, err := NewRedsyncLocker(nil)
	assert.Error(t, err)
}
