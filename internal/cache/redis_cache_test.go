package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCache(rdb), srv
}

func TestRedisCacheJSON(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Summary string `json:"summary"`
	}
	if err := c.SetJSON(ctx, TailorOutputKey("abc"), payload{Summary: "backend engineer"}, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got payload
	hit, err := c.GetJSON(ctx, TailorOutputKey("abc"), &got)
	if err != nil || !hit || got.Summary != "backend engineer" {
		t.Fatalf("unexpected get: hit=%v err=%v got=%+v", hit, err, got)
	}
	if ttl := srv.TTL(TailorOutputKey("abc")); ttl != time.Hour {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	srv.Set("tailor:output:bad", "{not json")
	hit, err = c.GetJSON(ctx, "tailor:output:bad", &got)
	if err != nil || hit {
		t.Fatalf("corrupt entry should be a miss, hit=%v err=%v", hit, err)
	}
	if srv.Exists("tailor:output:bad") {
		t.Fatalf("corrupt entry should be removed")
	}
}

func TestRedisCacheDelPrefix(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()
	srv.Set(SubscriptionKey("u1"), "{}")
	srv.Set(SubscriptionKey("u2"), "{}")
	srv.Set(ScrapeKey("x"), "{}")

	n, err := c.DelPrefix(ctx, SubscriptionPrefix)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 deletions, got %d %v", n, err)
	}
	if !srv.Exists(ScrapeKey("x")) {
		t.Fatalf("unrelated key removed")
	}
}

func TestRemember(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	calls := 0
	load := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}
	for i := 0; i < 2; i++ {
		v, err := Remember(ctx, c, "k", time.Minute, load)
		if err != nil || v != 42 {
			t.Fatalf("unexpected value %d %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected loader to run once, ran %d times", calls)
	}

	boom := errors.New("boom")
	if _, err := Remember(ctx, c, "other", time.Minute, func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	var nilCache Cache
	if v, err := Remember(ctx, nilCache, "k", time.Minute, load); err != nil || v != 42 {
		t.Fatalf("nil cache should pass through")
	}
}
