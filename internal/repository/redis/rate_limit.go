package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	red "github.com/redis/go-redis/v9"
)

const defaultRateLimitPrefix = "authz:rate_limit"

// RateLimitStore tracks request attempts in Redis sorted sets keyed by caller.
type RateLimitStore struct {
	client *red.Client
	prefix string
}

// NewRateLimitStore constructs a store using the provided Redis client.
func NewRateLimitStore(client *red.Client, prefix string) *RateLimitStore {
	if prefix == "" {
		prefix = defaultRateLimitPrefix
	}
	return &RateLimitStore{client: client, prefix: prefix}
}

// Allow records the attempt when it fits inside the window and reports how
// long the caller must wait otherwise.
func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int, window time.Duration, at time.Time) (bool, time.Duration, error) {
	if limit <= 0 || window <= 0 {
		return true, 0, nil
	}

	fullKey := s.prefix + ":" + key
	threshold := strconv.FormatInt(at.Add(-window).UnixNano(), 10)

	if err := s.client.ZRemRangeByScore(ctx, fullKey, "-inf", threshold).Err(); err != nil {
		return false, 0, fmt.Errorf("redis zremrangebyscore: %w", err)
	}

	count, err := s.client.ZCard(ctx, fullKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis zcard: %w", err)
	}

	if count >= int64(limit) {
		oldest, err := s.client.ZRangeWithScores(ctx, fullKey, 0, 0).Result()
		if err != nil {
			return false, 0, fmt.Errorf("redis zrange: %w", err)
		}

		retryAfter := window
		if len(oldest) > 0 {
			oldestAt := time.Unix(0, int64(oldest[0].Score))
			if wait := oldestAt.Add(window).Sub(at); wait > 0 {
				retryAfter = wait
			}
		}
		return false, retryAfter, nil
	}

	member := red.Z{Score: float64(at.UnixNano()), Member: at.UnixNano()}
	if err := s.client.ZAdd(ctx, fullKey, member).Err(); err != nil {
		return false, 0, fmt.Errorf("redis zadd: %w", err)
	}
	if err := s.client.Expire(ctx, fullKey, window).Err(); err != nil {
		return false, 0, fmt.Errorf("redis expire: %w", err)
	}

	return true, 0, nil
}
