package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited = errors.New("rate limited")
	ErrUnavailable = errors.New("limiter redis unavailable")
)

// Limiter throttles credential-guessing by counting attempts per username
// and per client IP in Redis. A nil Limiter allows everything, so callers
// can wire it only when Redis is configured.
type Limiter struct {
	redis  *redis.Client
	max    int
	window time.Duration
}

func New(client *redis.Client, maxAttempts int, window time.Duration) *Limiter {
	return &Limiter{redis: client, max: maxAttempts, window: window}
}

func (l *Limiter) Allow(ctx context.Context, username, ip string) error {
	if l == nil {
		return nil
	}
	if username != "" {
		if err := l.enforceKey(ctx, "auth:attempt:u:"+username); err != nil {
			return err
		}
	}
	if ip != "" {
		if err := l.enforceKey(ctx, "auth:attempt:ip:"+ip); err != nil {
			return err
		}
	}
	return nil
}

func (l *Limiter) enforceKey(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if count > int64(l.max) {
		return ErrRateLimited
	}
	return nil
}
