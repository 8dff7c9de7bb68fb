package loginattempt

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "auth:login_attempt:"

// RedisTracker shares failure counts across portal instances. HINCRBY keeps
// the increment atomic on the server; the key's TTL is refreshed on every
// failure so it behaves like the in-memory sliding window.
type RedisTracker struct {
	client      *redis.Client
	maxAttempts int
	ttl         time.Duration
	now         func() time.Time
}

func NewRedisTracker(client *redis.Client, maxAttempts int, ttl time.Duration) *RedisTracker {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisTracker{client: client, maxAttempts: maxAttempts, ttl: ttl, now: time.Now}
}

func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func (t *RedisTracker) MaxAttempts() int {
	return t.maxAttempts
}

func (t *RedisTracker) RecordFailure(ctx context.Context, username string) (int, error) {
	key := redisKeyPrefix + username

	var incr *redis.IntCmd
	_, err := t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.HIncrBy(ctx, key, "failed_count", 1)
		p.HSet(ctx, key, "last_failure", t.now().Unix())
		p.Expire(ctx, key, t.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (t *RedisTracker) HasExceededMaxAttempts(ctx context.Context, username string) (bool, error) {
	count, err := t.client.HGet(ctx, redisKeyPrefix+username, "failed_count").Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return count >= t.maxAttempts, nil
}

func (t *RedisTracker) Evict(ctx context.Context, username string) error {
	return t.client.Del(ctx, redisKeyPrefix+username).Err()
}
