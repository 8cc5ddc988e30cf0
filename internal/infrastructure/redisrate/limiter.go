// Package redisrate is a fixed-window request limiter shared across
// instances through Redis.
package redisrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts hits per key in fixed windows with INCR + EXPIRE.
type Limiter struct {
	client *redis.Client
	prefix string
	max    int64
	window time.Duration
	now    func() time.Time
}

func New(client *redis.Client, prefix string, max int, window time.Duration) *Limiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &Limiter{client: client, prefix: prefix, max: int64(max), window: window, now: time.Now}
}

// NewClient parses a redis:// URL and pings the server.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return c, nil
}

// Allow records one hit for key and reports whether it is within the limit.
// When it is not, retryAfter is the time left in the current window.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	start := l.now().UTC().Truncate(l.window)
	k := fmt.Sprintf("%s%s:%d", l.prefix, strings.ReplaceAll(key, " ", "_"), start.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	ttl := pipe.TTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}
	// First hit of the window owns the expiry.
	if incr.Val() == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, 0, err
		}
	}

	if incr.Val() <= l.max {
		return true, 0, nil
	}
	retry := ttl.Val()
	if retry <= 0 {
		retry = l.window
	}
	return false, retry, nil
}
