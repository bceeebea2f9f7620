package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client caches advisory availability reads. Admission never consults this
// cache; it exists to keep list/detail pages off the ledger tables. Every
// ledger mutation deletes the schedule's key.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewClient creates a new Redis client
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

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func availabilityKey(scheduleID int64) string {
	return fmt.Sprintf("availability:%d", scheduleID)
}

// GetAvailability returns the cached seat count for a schedule, with a
// hit/miss flag.
func (c *Client) GetAvailability(ctx context.Context, scheduleID int64) (int, bool, error) {
	val, err := c.rdb.Get(ctx, availabilityKey(scheduleID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	seats, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt availability value %q: %w", val, err)
	}
	return seats, true, nil
}

// SetAvailability caches the seat count for a schedule with the configured
// TTL.
func (c *Client) SetAvailability(ctx context.Context, scheduleID int64, seats int) error {
	return c.rdb.Set(ctx, availabilityKey(scheduleID), seats, c.ttl).Err()
}

// InvalidateAvailability drops the cached count after a ledger mutation so
// the next advisory read recomputes from the ledger.
func (c *Client) InvalidateAvailability(ctx context.Context, scheduleID int64) error {
	return c.rdb.Del(ctx, availabilityKey(scheduleID)).Err()
}
