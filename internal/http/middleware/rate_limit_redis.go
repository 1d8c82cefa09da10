package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisFixedWindowScript counts requests in the current window and reports
// how long until the window resets when the limit is hit. INCR and PEXPIRE
// run atomically so concurrent replicas cannot double-start a window.
var redisFixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
local limit = tonumber(ARGV[1])
if count <= limit then
  return {1, 0}
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[2])
end
return {0, ttl}
`)

type RedisFixedWindowLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisFixedWindowLimiter(client redis.UniversalClient, prefix string) *RedisFixedWindowLimiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisFixedWindowLimiter{client: client, prefix: prefix}
}

func (l *RedisFixedWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	raw, err := redisFixedWindowScript.Run(
		ctx,
		l.client,
		[]string{l.prefix + ":" + key},
		limit,
		window.Milliseconds(),
	).Result()
	if err != nil {
		return false, 0, err
	}
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected redis script response %T", raw)
	}
	allowed, ok := values[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected redis script response %T", values[0])
	}
	retryMS, ok := values[1].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected redis script response %T", values[1])
	}
	return allowed == 1, time.Duration(retryMS) * time.Millisecond, nil
}
