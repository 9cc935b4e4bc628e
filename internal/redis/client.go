// Package redis wraps go-redis with the operations the gateway shares across
// instances: sliding-window admission counters and tagged cache entries.
package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"api-gateway/internal/common/errors"
)

const pingTimeout = 5 * time.Second

type Config struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// Client is shared by the rate limiter, the response cache, the lock
// manager and the stream event source.
type Client struct {
	rdb *redis.Client
}

// NewClient connects and pings. An empty address means localhost:6379.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.ConfigurationError("redis config is required")
	}

	opts := &redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  pingTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 10
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.ConnectionError("failed to connect to Redis at "+opts.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health pings with a bounded timeout; the health monitor calls it on every
// report.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.ConnectionError("redis ping failed", err)
	}
	return nil
}

// GetGoRedisClient exposes the underlying client for redsync and stream
// consumers.
func (c *Client) GetGoRedisClient() *redis.Client {
	return c.rdb
}
