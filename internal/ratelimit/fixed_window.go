package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Decision describes one limiter check, enough to fill X-RateLimit-* headers.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// FixedWindowLimiter limits requests per key in a fixed time window, shared across API replicas.
type FixedWindowLimiter struct {
	limit    int
	window   time.Duration
	failOpen bool

	redisClient *redis.Client
	redisPrefix string
	now         func() time.Time
}

type Option func(*FixedWindowLimiter)

// FailOpen lets requests through when Redis is unreachable. The default fails closed.
func FailOpen() Option { return func(l *FixedWindowLimiter) { l.failOpen = true } }

func NewFixedWindowLimiter(client *redis.Client, prefix string, limit int, window time.Duration, opts ...Option) (*FixedWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	if client == nil {
		return nil, errors.New("rate limiter redis client is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "tailorjob:ratelimit"
	}
	l := &FixedWindowLimiter{
		limit:       limit,
		window:      window,
		redisClient: client,
		redisPrefix: prefix,
		now:         time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Allow reports whether the key is within quota for the current window.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) Decision {
	if l == nil {
		return Decision{}
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	windowMs := l.window.Milliseconds()
	nowMs := l.now().UTC().UnixMilli()
	slot := nowMs / windowMs
	d := Decision{Limit: l.limit, ResetAt: time.UnixMilli((slot + 1) * windowMs).UTC()}

	redisKey := fmt.Sprintf("%s:%s:%d", l.redisPrefix, key, slot)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := fixedWindowScript.Run(ctx, l.redisClient, []string{redisKey}, windowMs).Int64()
	if err != nil {
		d.Allowed = l.failOpen
		return d
	}
	d.Allowed = count <= int64(l.limit)
	if rem := int64(l.limit) - count; rem > 0 {
		d.Remaining = int(rem)
	}
	return d
}
