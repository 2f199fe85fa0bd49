// Package cache keeps hot lookups for the ledger API in Redis: resolved API
// keys, users by email and rate limit buckets. The same client carries the
// presence fanout and the activity stream.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps the shared Redis client.
type Cache struct {
	rdb *redis.Client
}

// configurePool sizes the pool for a single API process. Pub/sub and stream
// reads hold their own connections, so idle connections are kept low.
func configurePool(opt *redis.Options) {
	opt.PoolSize = 16
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	if opt.ClientName == "" {
		opt.ClientName = "splitledger-api"
	}
}

// New dials redisURL and checks that the server answers.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	configurePool(opt)
	return Wrap(ctx, redis.NewClient(opt))
}

// Wrap adopts an existing client. The client is closed if it does not answer.
func Wrap(ctx context.Context, rdb *redis.Client) (*Cache, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: ping redis: %w", err)
	}
	return &Cache{rdb: rdb}, nil
}

// Ping is used by the readiness probe.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Redis exposes the client to the notifier fanout and the activity stream.
func (c *Cache) Redis() *redis.Client {
	return c.rdb
}
