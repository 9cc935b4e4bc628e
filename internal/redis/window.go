package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// slidingWindowScript keeps one hash per key with the aligned start of the
// current window and the counts of the current and previous windows. The
// estimate is current + previous * (remaining fraction of the window). A
// request is admitted, and counted, only while the estimate is below limit.
//
// KEYS[1] bucket key
// ARGV[1] now (unix ms), ARGV[2] window (ms), ARGV[3] limit
// returns {allowed (0|1), remaining, window start (unix ms)}
var slidingWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local start = now - (now % window)

local data = redis.call('HMGET', KEYS[1], 'start', 'cur', 'prev')
local s = tonumber(data[1])
local cur = tonumber(data[2]) or 0
local prev = tonumber(data[3]) or 0

if s == nil then
	cur = 0
	prev = 0
elseif s ~= start then
	if s == start - window then
		prev = cur
	else
		prev = 0
	end
	cur = 0
end

local weight = (window - (now - start)) / window
local estimate = cur + prev * weight
local allowed = 0
if estimate < limit then
	allowed = 1
	cur = cur + 1
	estimate = estimate + 1
end

redis.call('HSET', KEYS[1], 'start', start, 'cur', cur, 'prev', prev)
redis.call('PEXPIRE', KEYS[1], window * 2)

local remaining = math.floor(limit - estimate)
if remaining < 0 then
	remaining = 0
end
return {allowed, remaining, start}
`)

// WindowResult is the outcome of one sliding-window admission check.
type WindowResult struct {
	Allowed     bool
	Remaining   int
	WindowStart time.Time
}

// SlidingWindow atomically checks and, when admitted, increments the bucket
// at key. now is supplied by the caller so every instance shares one clock
// source for window alignment.
func (c *Client) SlidingWindow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (WindowResult, error) {
	if window < time.Millisecond {
		return WindowResult{}, fmt.Errorf("window must be at least 1ms")
	}

	res, err := slidingWindowScript.Run(ctx, c.rdb, []string{key},
		now.UnixMilli(), window.Milliseconds(), limit).Slice()
	if err != nil {
		return WindowResult{}, fmt.Errorf("failed to run sliding window script: %w", err)
	}
	if len(res) != 3 {
		return WindowResult{}, fmt.Errorf("unexpected sliding window reply: %v", res)
	}

	allowed, _ := res[0].(int64)
	remaining, _ := res[1].(int64)
	start, _ := res[2].(int64)

	return WindowResult{
		Allowed:     allowed == 1,
		Remaining:   int(remaining),
		WindowStart: time.UnixMilli(start),
	}, nil
}
