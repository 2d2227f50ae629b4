// Package ratelimit provides a Redis fixed-window counter, used to throttle
// login attempts per email before any payment-provider call is made.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
-- KEYS[1] = counter key
-- ARGV[1] = limit (int)
-- ARGV[2] = window_ms (int)
--
-- Returns:
--  1 if the attempt is allowed
--  0 if the window limit is reached
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
else
  -- Ensure TTL exists even if the key somehow lost it
  if redis.call('PTTL', KEYS[1]) < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
  end
end

if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

// Limiter counts events per key inside a fixed window. Atomic via Lua; the
// TTL keeps abandoned windows from leaking keys.
type Limiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func New(rdb *redis.Client, prefix string, limit int, window time.Duration) (*Limiter, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if prefix == "" {
		return nil, fmt.Errorf("prefix is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be > 0")
	}
	return &Limiter{rdb: rdb, prefix: prefix, limit: limit, window: window}, nil
}

// Allow records one attempt for key and reports whether it is within the
// window limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("key is required")
	}
	res, err := fixedWindowScript.Run(ctx, l.rdb, []string{l.prefix + key}, l.limit, l.window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
