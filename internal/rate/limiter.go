package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter scopes.
const (
	ScopeLogin    = "login"
	ScopeRefresh  = "refresh"
	ScopeAPIToken = "apitoken"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	Prefix string
	Window time.Duration
}

// Limiter counts attempts per scope and identifier in fixed windows. A nil
// *Limiter allows everything.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	window time.Duration
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		redis:  redisClient,
		prefix: cfg.Prefix,
		window: window,
	}
}

func (l *Limiter) key(scope, id string) string {
	return l.prefix + ":" + scope + ":" + id
}

// Allow records one attempt and returns ErrRateLimited once more than max
// attempts were made in the current window. max <= 0 disables the check.
func (l *Limiter) Allow(ctx context.Context, scope, id string, max int) error {
	if l == nil || max <= 0 || id == "" {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, l.key(scope, id))
	if err != nil {
		return err
	}
	if count > int64(max) {
		return ErrRateLimited
	}
	return nil
}

// Check reports ErrRateLimited when the counter already exceeds max, without
// recording an attempt.
func (l *Limiter) Check(ctx context.Context, scope, id string, max int) error {
	if l == nil || max <= 0 || id == "" {
		return nil
	}

	count, err := l.Attempts(ctx, scope, id)
	if err != nil {
		return err
	}
	if count >= max {
		return ErrRateLimited
	}
	return nil
}

// Record adds one attempt without checking a limit.
func (l *Limiter) Record(ctx context.Context, scope, id string) error {
	if l == nil || id == "" {
		return nil
	}
	_, err := l.incrementWithTTL(ctx, l.key(scope, id))
	return err
}

// Attempts returns the current counter. Missing keys return zero.
func (l *Limiter) Attempts(ctx context.Context, scope, id string) (int, error) {
	if l == nil {
		return 0, nil
	}
	count, err := l.redis.Get(ctx, l.key(scope, id)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Reset clears the counter.
func (l *Limiter) Reset(ctx context.Context, scope, id string) error {
	if l == nil || id == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(scope, id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
