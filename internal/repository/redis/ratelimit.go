package redisrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Sliding window over a sorted set scored by hit time in milliseconds.
// KEYS[1] = key
// ARGV[1] = now_ms
// ARGV[2] = window_ms
// ARGV[3] = limit
// ARGV[4] = member (unique per hit)
const luaSlidingWindow = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
redis.call('ZADD', key, 'NX', now, member)
local count = redis.call('ZCARD', key)
redis.call('PEXPIRE', key, window)

if count > limit then
  local earliest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  local earliestScore = tonumber(earliest[2]) or (now - window)
  local retry_ms = window - (now - earliestScore)
  if retry_ms < 0 then retry_ms = 0 end
  return {0, count, retry_ms}
end
return {1, count, 0}
`

type RateDecision struct {
	Allowed    bool
	Current    int64
	RetryAfter time.Duration
}

// SlidingWindowLimiter allows at most limit hits per scope/id inside a
// rolling window. A nil limiter allows everything.
type SlidingWindowLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	script *redis.Script
}

func NewSlidingWindowLimiter(
	rdb *redis.Client,
	limit int,
	window time.Duration,
) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		rdb:    rdb,
		limit:  limit,
		window: window,
		script: redis.NewScript(luaSlidingWindow),
	}
}

func (l *SlidingWindowLimiter) Allow(ctx context.Context, scope, id string) (RateDecision, error) {
	const op = "redisrepo.SlidingWindowLimiter.Allow"

	if l == nil || l.limit <= 0 {
		return RateDecision{Allowed: true}, nil
	}

	vals, err := l.script.Run(
		ctx,
		l.rdb,
		[]string{KeyRateLimit(scope, id)},
		time.Now().UnixMilli(), l.window.Milliseconds(), l.limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return RateDecision{}, fmt.Errorf("%s:%w", op, err)
	}

	if len(vals) != 3 {
		return RateDecision{}, fmt.Errorf("%s: bad script result: %v", op, vals)
	}

	return RateDecision{
		Allowed:    vals[0] == 1,
		Current:    vals[1],
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}
