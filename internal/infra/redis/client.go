// Package redis holds the optional retry queue for blocks whose ingestion
// failed. The queue is a sorted set keyed by chain, scored by block number so
// retries drain in chain order.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration. An empty URL disables the
// retry queue.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Client wraps Redis operations for the retry queue.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis and verifies the connection.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// RetryQueue tracks block numbers that failed ingestion for one chain.
type RetryQueue struct {
	rdb     *redis.Client
	chainID uint64
}

// NewRetryQueue creates the retry queue for a chain.
func NewRetryQueue(client *Client, chainID uint64) *RetryQueue {
	return &RetryQueue{rdb: client.rdb, chainID: chainID}
}

func (q *RetryQueue) key() string {
	return fmt.Sprintf("failed_blocks:%d", q.chainID)
}

// Push records a failed block number. Pushing an already queued number
// updates its score and is harmless.
func (q *RetryQueue) Push(ctx context.Context, number uint64) error {
	member := strconv.FormatUint(number, 10)
	err := q.rdb.ZAdd(ctx, q.key(), redis.Z{
		Score:  float64(number),
		Member: member,
	}).Err()
	if err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// Pop removes and returns the lowest queued block number. found is false when
// the queue is empty.
func (q *RetryQueue) Pop(ctx context.Context) (number uint64, found bool, err error) {
	results, err := q.rdb.ZRange(ctx, q.key(), 0, 0).Result()
	if err != nil {
		return 0, false, fmt.Errorf("zrange failed: %w", err)
	}
	if len(results) == 0 {
		return 0, false, nil
	}

	member := results[0]
	number, err = strconv.ParseUint(member, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid block number %q: %w", member, err)
	}

	if err := q.rdb.ZRem(ctx, q.key(), member).Err(); err != nil {
		return 0, false, fmt.Errorf("zrem failed: %w", err)
	}
	return number, true, nil
}

// All returns every queued block number in ascending order.
func (q *RetryQueue) All(ctx context.Context) ([]uint64, error) {
	members, err := q.rdb.ZRange(ctx, q.key(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}
	numbers := make([]uint64, 0, len(members))
	for _, m := range members {
		n, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}
	return numbers, nil
}

// Count returns the number of queued blocks.
func (q *RetryQueue) Count(ctx context.Context) (int, error) {
	count, err := q.rdb.ZCard(ctx, q.key()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}
