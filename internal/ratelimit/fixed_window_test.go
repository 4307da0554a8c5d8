package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestFixedWindowLimiterEnforcesQuota(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	limiter, err := NewFixedWindowLimiter(client, "test:rl", 2, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}

	if !limiter.Allow("user-a") || !limiter.Allow("user-a") {
		t.Fatalf("first two requests should pass")
	}
	if limiter.Allow("user-a") {
		t.Fatalf("third request in window should be limited")
	}
	// Distinct keys have their own quota.
	if !limiter.Allow("user-b") {
		t.Fatalf("other key should not be limited")
	}
}

func TestFixedWindowLimiterFailsClosedWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter, err := NewFixedWindowLimiter(client, "test:rl", 5, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	mr.Close()
	if limiter.Allow("user-a") {
		t.Fatalf("expected fail-closed when redis is down")
	}
}

func TestNewFixedWindowLimiterValidatesArgs(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if _, err := NewFixedWindowLimiter(client, "p", 0, time.Minute); err == nil {
		t.Fatalf("expected error for zero limit")
	}
	if _, err := NewFixedWindowLimiter(nil, "p", 1, time.Minute); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
