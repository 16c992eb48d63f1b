package cache

import (
	"context"
	"time"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Key namespaces shared by services and the admin CLI.
const (
	TailorOutputPrefix = "tailor:output:"
	SubscriptionPrefix = "subscription:"
	ScrapePrefix       = "scrape:"
)

func TailorOutputKey(inputHash string) string { return TailorOutputPrefix + inputHash }
func SubscriptionKey(userID string) string    { return SubscriptionPrefix + userID }
func ScrapeKey(urlHash string) string         { return ScrapePrefix + urlHash }

// Remember returns the cached value for key, or calls load and stores its result.
// Cache errors are not fatal: load still runs and its value is returned.
func Remember[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var v T
	if c != nil {
		if hit, err := c.GetJSON(ctx, key, &v); err == nil && hit {
			return v, nil
		}
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if c != nil {
		_ = c.SetJSON(ctx, key, v, ttl)
	}
	return v, nil
}
