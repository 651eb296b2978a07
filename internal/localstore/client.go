package localstore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// KV is the durable client-context key-value storage the cart and preference
// stores persist into. Callers treat read/write failures as best-effort:
// a missing or unreadable key reads as empty, writes never block the caller's
// contract.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Client is a Redis-backed KV. Session-scoped snapshots expire after the
// configured TTL so abandoned guest state does not accumulate forever.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewClient creates a new Redis-backed KV client
func NewClient(addr, password string, db int, ttl time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, ttl: ttl}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Get reads a key; the second return is false when the key does not exist.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("localstore get %s: %w", key, err)
	}
	return val, true, nil
}

// Set writes a key with the store TTL.
func (c *Client) Set(ctx context.Context, key, value string) error {
	if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("localstore set %s: %w", key, err)
	}
	return nil
}

// Delete removes a key; deleting a missing key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("localstore delete %s: %w", key, err)
	}
	return nil
}

// IncrScore increments a member's score in a sorted set. Used by the trending
// worker to accumulate product view scores.
func (c *Client) IncrScore(ctx context.Context, set, member string, delta float64) error {
	return c.rdb.ZIncrBy(ctx, set, delta, member).Err()
}

// TopScores returns up to limit members of a sorted set, highest score first.
func (c *Client) TopScores(ctx context.Context, set string, limit int64) ([]string, error) {
	return c.rdb.ZRevRange(ctx, set, 0, limit-1).Result()
}

// ResetScores removes a sorted set entirely.
func (c *Client) ResetScores(ctx context.Context, set string) error {
	return c.rdb.Del(ctx, set).Err()
}
