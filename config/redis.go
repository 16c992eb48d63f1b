package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// redisTarget picks the first configured Redis location.
func redisTarget() string {
	for _, key := range []string{"REDIS_URL", "UPSTASH_REDIS_URL", "REDIS_ADDR", "REDIS_URI"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func redisOptions(val string) (*redis.Options, error) {
	if strings.HasPrefix(val, "redis://") || strings.HasPrefix(val, "rediss://") {
		return redis.ParseURL(val)
	}
	return &redis.Options{Addr: val}, nil
}

func InitRedis() error {
	val := redisTarget()
	if val == "" {
		return errors.New("REDIS_URL (or UPSTASH_REDIS_URL/REDIS_ADDR/REDIS_URI) environment variable is not set")
	}

	opt, err := redisOptions(val)
	if err != nil {
		return err
	}
	opt.DialTimeout = 5 * time.Second
	RedisClient = redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return RedisClient.Ping(ctx).Err()
}
