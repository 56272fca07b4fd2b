// Package redis provides a pooled Redis client for credential lookups
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thenexusengine/bidmachine_adapter/pkg/logger"
)

// Client wraps a Redis connection pool
type Client struct {
	client *redis.Client
}

// ClientConfig holds configuration for the Redis client
type ClientConfig struct {
	// Connection pool size
	PoolSize int
	// Minimum idle connections to maintain
	MinIdleConns int
	// Maximum connection age before recycling
	MaxConnAge time.Duration
	// Timeout for establishing new connections
	DialTimeout time.Duration
	// Timeout for socket reads
	ReadTimeout time.Duration
	// Timeout for socket writes
	WriteTimeout time.Duration
	// Timeout for getting connection from pool
	PoolTimeout time.Duration
}

// DefaultClientConfig returns configuration sized for a single adapter process.
// Credential lookups happen once per setup, so the pool stays small.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		PoolSize:     10,
		MinIdleConns: 1,
		MaxConnAge:   30 * time.Minute,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}
}

// New creates a new Redis client from a URL with default configuration
func New(redisURL string) (*Client, error) {
	return NewWithConfig(redisURL, DefaultClientConfig())
}

// NewWithConfig creates a new Redis client with custom configuration.
// An unreachable server is logged, not returned; commands fail until it comes up.
func NewWithConfig(redisURL string, cfg *ClientConfig) (*Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is empty")
	}

	if cfg == nil {
		cfg = DefaultClientConfig()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.ConnMaxLifetime = cfg.MaxConnAge
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolTimeout = cfg.PoolTimeout

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	log := logger.Log.With().Str("component", "redis").Logger()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("address", opts.Addr).Msg("Redis connection test failed")
	} else {
		log.Info().
			Str("address", opts.Addr).
			Int("pool_size", cfg.PoolSize).
			Msg("Redis connected")
	}

	return &Client{client: client}, nil
}

// HGet gets a hash field value. A missing field yields "".
func (c *Client) HGet(ctx context.Context, key, field string) (string, error) {
	result, err := c.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return result, err
}

// HGetAll gets all fields and values from a hash
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.client.HGetAll(ctx, key).Result()
}

// HSetAll replaces the fields of a hash and sets its TTL. A zero ttl keeps the hash forever.
func (c *Client) HSetAll(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(values) > 0 {
		pipe.HSet(ctx, key, values)
	}
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Del deletes keys
func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

// Ping tests the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the connection pool
func (c *Client) Close() error {
	return c.client.Close()
}

// PoolStats returns connection pool statistics for monitoring
func (c *Client) PoolStats() *redis.PoolStats {
	return c.client.PoolStats()
}
