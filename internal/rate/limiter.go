package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter budgets. A zero limit disables that limiter.
type Config struct {
	LoginLimit    int
	LoginWindow   time.Duration
	RefreshLimit  int
	RefreshWindow time.Duration
}

// Limiter enforces login and refresh budgets with Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// AllowLogin records a login attempt from addr and reports ErrRateLimited
// once the window budget is exceeded.
func (l *Limiter) AllowLogin(ctx context.Context, addr string) error {
	if l == nil {
		return nil
	}
	return l.allow(ctx, loginKey(addr), l.config.LoginLimit, l.config.LoginWindow)
}

// AllowRefresh records a refresh by subject.
func (l *Limiter) AllowRefresh(ctx context.Context, subject string) error {
	if l == nil {
		return nil
	}
	return l.allow(ctx, refreshKey(subject), l.config.RefreshLimit, l.config.RefreshWindow)
}

// ResetLogin clears the login counter of addr.
func (l *Limiter) ResetLogin(ctx context.Context, addr string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, loginKey(addr)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// LoginAttempts returns the attempts counted in the current window.
func (l *Limiter) LoginAttempts(ctx context.Context, addr string) (int, error) {
	count, err := l.redis.Get(ctx, loginKey(addr)).Int64()
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

func (l *Limiter) allow(ctx context.Context, key string, limit int, window time.Duration) error {
	if limit <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, key, window)
	if err != nil {
		return err
	}
	if count > int64(limit) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// fixed window: the first hit sets the expiry
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func loginKey(addr string) string {
	return "rl:login:" + addr
}

func refreshKey(subject string) string {
	return "rl:refresh:" + subject
}
