// Package redis builds the go-redis client used by the answer cache and the
// embedding cache.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/sentinel-faq/pkg/component/storage"
	options "github.com/kart-io/sentinel-faq/pkg/options/redis"
)

// Client wraps a go-redis client and implements storage.Client.
//
// Example usage:
//
//	client, err := redis.New(opts)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	if err := client.Ping(ctx); err != nil {
//	    // Redis 不可用时缓存降级运行
//	}
type Client struct {
	client *goredis.Client
	opts   *options.Options
}

// Compile-time check that Client implements storage.Client.
var _ storage.Client = (*Client)(nil)

// New creates a Redis client without contacting the server. go-redis dials
// lazily, so a Redis outage at startup does not prevent construction.
func New(opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("redis options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid redis options: %w", utilerrors.NewAggregate(errs))
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr(),
		Password:     opts.Password,
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	return &Client{client: rdb, opts: opts}, nil
}

// NewWithContext creates a Redis client and verifies connectivity.
func NewWithContext(ctx context.Context, opts *options.Options) (*Client, error) {
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return c, nil
}

// Name returns the storage type identifier.
func (c *Client) Name() string {
	return "redis"
}

// Ping checks if the connection to Redis is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection pool.
func (c *Client) Close() error {
	return c.client.Close()
}

// Client returns the underlying go-redis client.
func (c *Client) Client() *goredis.Client {
	return c.client
}

// Options returns the Redis options used by this client.
func (c *Client) Options() *options.Options {
	return c.opts
}
