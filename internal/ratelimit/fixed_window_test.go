package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, limit int, opts ...Option) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	l, err := NewFixedWindowLimiter(rdb, "test:ratelimit", limit, time.Minute, opts...)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	fixed := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	return l, srv
}

func TestFixedWindowLimiter(t *testing.T) {
	l, _ := newLimiter(t, 2)
	ctx := context.Background()

	first := l.Allow(ctx, "user-1")
	if !first.Allowed || first.Remaining != 1 || first.Limit != 2 {
		t.Fatalf("unexpected first decision: %+v", first)
	}
	if want := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC); !first.ResetAt.Equal(want) {
		t.Fatalf("reset at %v, want %v", first.ResetAt, want)
	}
	if !l.Allow(ctx, "user-1").Allowed {
		t.Fatalf("second request should pass")
	}
	third := l.Allow(ctx, "user-1")
	if third.Allowed || third.Remaining != 0 {
		t.Fatalf("third request should be blocked: %+v", third)
	}
	if !l.Allow(ctx, "user-2").Allowed {
		t.Fatalf("keys must be limited independently")
	}
}

func TestFixedWindowLimiterFailClosed(t *testing.T) {
	l, srv := newLimiter(t, 1)
	srv.Close()
	if l.Allow(context.Background(), "user-1").Allowed {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterFailOpen(t *testing.T) {
	l, srv := newLimiter(t, 1, FailOpen())
	srv.Close()
	if !l.Allow(context.Background(), "user-1").Allowed {
		t.Fatalf("limiter configured to fail open should allow")
	}
}

func TestFixedWindowLimiterValidation(t *testing.T) {
	if _, err := NewFixedWindowLimiter(nil, "", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()
	if _, err := NewFixedWindowLimiter(rdb, "", 0, time.Second); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}
