package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterTest(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func TestLoginBudgetFixedWindow(t *testing.T) {
	l, mr := newLimiterTest(t, Config{LoginLimit: 3, LoginWindow: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.AllowLogin(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("attempt %d: unexpected error %v", i+1, err)
		}
	}
	if err := l.AllowLogin(ctx, "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.AllowLogin(ctx, "10.0.0.2"); err != nil {
		t.Fatalf("other address must have its own budget: %v", err)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.AllowLogin(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("expected budget to reset after window, got %v", err)
	}
}

func TestResetLoginClearsCounter(t *testing.T) {
	l, _ := newLimiterTest(t, Config{LoginLimit: 5, LoginWindow: time.Minute})
	ctx := context.Background()

	_ = l.AllowLogin(ctx, "a")
	_ = l.AllowLogin(ctx, "a")
	if n, _ := l.LoginAttempts(ctx, "a"); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
	if err := l.ResetLogin(ctx, "a"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := l.LoginAttempts(ctx, "a"); n != 0 {
		t.Fatalf("expected 0 attempts after reset, got %d", n)
	}
}

func TestZeroLimitDisables(t *testing.T) {
	l, _ := newLimiterTest(t, Config{})
	for i := 0; i < 100; i++ {
		if err := l.AllowRefresh(context.Background(), "7"); err != nil {
			t.Fatalf("disabled limiter returned %v", err)
		}
	}
}

func TestRedisUnavailable(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	l := New(rdb, Config{LoginLimit: 1, LoginWindow: time.Minute})
	if err := l.AllowLogin(context.Background(), "a"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
