package config

import "testing"

func TestRedisTargetPrecedence(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("UPSTASH_REDIS_URL", "rediss://default:pw@eu1.upstash.io:6379")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_URI", "")

	if got := redisTarget(); got != "rediss://default:pw@eu1.upstash.io:6379" {
		t.Fatalf("redisTarget() = %q", got)
	}
}

func TestRedisOptions(t *testing.T) {
	opt, err := redisOptions("redis://:secret@cache:6380/2")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if opt.Addr != "cache:6380" || opt.Password != "secret" || opt.DB != 2 {
		t.Fatalf("unexpected options: %+v", opt)
	}

	opt, err = redisOptions("localhost:6379")
	if err != nil || opt.Addr != "localhost:6379" {
		t.Fatalf("plain address not honoured: %+v %v", opt, err)
	}
}
