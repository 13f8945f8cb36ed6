package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisWindowStore keeps fixed-window counters in Redis so every API
// process shares the same budget per IP
type RedisWindowStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisWindowStore(client redis.UniversalClient, prefix string) *RedisWindowStore {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisWindowStore{redis: client, prefix: prefix}
}

func (s *RedisWindowStore) key(key string) string {
	return s.prefix + ":" + key
}

// Increment counts one hit for key. The first hit in a window sets the TTL,
// so the window starts at the first request and resets when the key expires.
func (s *RedisWindowStore) Increment(ctx context.Context, key string, length time.Duration) (int64, time.Duration, error) {
	k := s.key(key)

	count, err := s.redis.Incr(ctx, k).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", models.ErrRateLimitStoreUnavailable, err)
	}

	if count == 1 {
		if err := s.redis.PExpire(ctx, k, length).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", models.ErrRateLimitStoreUnavailable, err)
		}
		return count, length, nil
	}

	ttl, err := s.redis.PTTL(ctx, k).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", models.ErrRateLimitStoreUnavailable, err)
	}

	// A key without TTL means the expire after the first hit was lost
	if ttl < 0 {
		if err := s.redis.PExpire(ctx, k, length).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", models.ErrRateLimitStoreUnavailable, err)
		}
		ttl = length
	}

	return count, ttl, nil
}

// Ping checks that Redis is reachable
func (s *RedisWindowStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
