// Package ratelimit provides a Redis-backed fixed-window limiter used to
// pace outbound CRM page reads.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter is a fixed-window counter limiter keyed per external API.
type Limiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewLimiter creates a limiter allowing limit calls per window.
func NewLimiter(client *redis.Client, name string, limit int, window time.Duration) *Limiter {
	return &Limiter{
		client: client,
		prefix: "ratelimit:" + name + ":",
		limit:  limit,
		window: window,
	}
}

// Allow reports whether another call is permitted in the current window.
// Fails open when Redis is unavailable; pacing is advisory, not a guarantee.
func (l *Limiter) Allow(ctx context.Context) (bool, error) {
	if l.client == nil {
		return true, nil
	}

	key := l.prefix + fmt.Sprintf("%d", time.Now().Unix()/int64(l.window.Seconds()))

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if count == 1 {
		l.client.Expire(ctx, key, l.window)
	}

	return count <= int64(l.limit), nil
}

// Wait blocks until a call is permitted or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		ok, err := l.Allow(ctx)
		if err != nil || ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}
