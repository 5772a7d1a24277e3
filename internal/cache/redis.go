// Package cache holds Redis-backed helpers shared across service instances.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses url (redis://… or host:port), sizes the pool and
// verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	opts.PoolSize = 50
	opts.MinIdleConns = 5
	// The access core performs no internal retries.
	opts.MaxRetries = -1

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// FailureWindow keeps each address's failed code attempts in a sorted set
// scored by unix milliseconds. Entries outside the window are trimmed on
// read, so the count always covers exactly the trailing window.
type FailureWindow struct {
	client *redis.Client
	window time.Duration
	newID  func() string
}

// NewFailureWindow constructs a FailureWindow.
func NewFailureWindow(client *redis.Client, window time.Duration) *FailureWindow {
	return &FailureWindow{client: client, window: window, newID: uuid.NewString}
}

// failureMember keeps failures recorded at the same instant distinct.
func (w *FailureWindow) failureMember(at time.Time) string {
	return strconv.FormatInt(at.UnixNano(), 10) + ":" + w.newID()
}

func failureKey(address string) string {
	return "code_failures:" + address
}

// RecordFailure adds one failure at time at.
func (w *FailureWindow) RecordFailure(ctx context.Context, address string, at time.Time) error {
	key := failureKey(address)
	_, err := w.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(at.UnixMilli()),
			Member: w.failureMember(at),
		})
		pipe.Expire(ctx, key, w.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record failure for %s: %w", address, err)
	}
	return nil
}

// Failures counts failures strictly after since and returns the one nth
// places back from the newest.
func (w *FailureWindow) Failures(ctx context.Context, address string, since time.Time, nth int) (int, time.Time, error) {
	key := failureKey(address)
	if nth < 0 {
		nth = 0
	}

	var (
		card  *redis.IntCmd
		pivot *redis.ZSliceCmd
	)
	_, err := w.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(since.UnixMilli(), 10))
		card = pipe.ZCard(ctx, key)
		pivot = pipe.ZRevRangeWithScores(ctx, key, int64(nth), int64(nth))
		return nil
	})
	if err != nil && err != redis.Nil {
		return 0, time.Time{}, fmt.Errorf("count failures for %s: %w", address, err)
	}

	count := int(card.Val())
	if count == 0 || len(pivot.Val()) == 0 {
		return count, time.Time{}, nil
	}
	return count, time.UnixMilli(int64(pivot.Val()[0].Score)).UTC(), nil
}
