package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// tag sets outlive the entries they index; stale members are harmless
// because deleting a missing key is a no-op.
const tagSetTTL = 24 * time.Hour

func tagKey(prefix, tag string) string {
	return prefix + "tag:" + tag
}

// SetTagged stores value under key with a PX ttl and records key in the set
// of every tag, in one MULTI/EXEC.
func (c *Client) SetTagged(ctx context.Context, prefix, key string, value []byte, ttl time.Duration, tags []string) error {
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, prefix+key, value, ttl)
	for _, tag := range tags {
		tk := tagKey(prefix, tag)
		pipe.SAdd(ctx, tk, key)
		pipe.Expire(ctx, tk, tagSetTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store tagged entry: %w", err)
	}
	return nil
}

// GetBytes returns the value at key, or found=false when it does not exist.
func (c *Client) GetBytes(ctx context.Context, prefix, key string) ([]byte, bool, error) {
	value, err := c.rdb.Get(ctx, prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get entry: %w", err)
	}
	return value, true, nil
}

// invalidateScript reads a tag set and deletes its members and the set in
// one step, so a concurrent SetTagged lands either before (and is removed)
// or after (and stays indexed).
//
// KEYS[1] tag set, ARGV[1] key prefix; returns the number of entries removed
var invalidateScript = redis.NewScript(`
local members = redis.call('SMEMBERS', KEYS[1])
local removed = 0
local batch = {}
for i, m in ipairs(members) do
	batch[#batch + 1] = ARGV[1] .. m
	if #batch == 500 then
		removed = removed + redis.call('DEL', unpack(batch))
		batch = {}
	end
end
if #batch > 0 then
	removed = removed + redis.call('DEL', unpack(batch))
end
redis.call('DEL', KEYS[1])
return removed
`)

// InvalidateTag deletes every key recorded under tag and the tag set itself.
// It returns the number of entries removed.
func (c *Client) InvalidateTag(ctx context.Context, prefix, tag string) (int, error) {
	removed, err := invalidateScript.Run(ctx, c.rdb, []string{tagKey(prefix, tag)}, prefix).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate tag %s: %w", tag, err)
	}
	return removed, nil
}

// DeleteKey removes a single entry.
func (c *Client) DeleteKey(ctx context.Context, prefix, key string) error {
	return c.rdb.Del(ctx, prefix+key).Err()
}
