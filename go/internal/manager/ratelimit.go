package manager

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Counter is the slice of the redis client the limiter needs.
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	ExpireNX(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RateLimiter caps submissions per submitter in a fixed window. A nil
// limiter allows everything.
type RateLimiter struct {
	client Counter
	limit  int64
	window time.Duration
	prefix string
}

func NewRateLimiter(client Counter, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "contest:submit:",
	}
}

// Allow counts one submission for key. Redis failures let the request through.
// EXPIRE NX needs Redis 7 or later.
func (l *RateLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.client == nil || l.limit <= 0 {
		return true
	}

	redisKey := l.prefix + key
	n, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, allowing request")
		return true
	}
	// Every call sets the window if the key has none, so a failed EXPIRE
	// after the first INCR cannot leave a counter that never resets.
	if err := l.client.ExpireNX(ctx, redisKey, l.window).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to set rate limit window")
	}
	return n <= l.limit
}
