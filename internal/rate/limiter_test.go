package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterTest(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return New(rdb, Config{Prefix: "acr", Window: time.Minute}), mr
}

func TestAllowFixedWindow(t *testing.T) {
	l, mr := newLimiterTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Allow(ctx, ScopeRefresh, "sid-1", 3); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if err := l.Allow(ctx, ScopeRefresh, "sid-1", 3); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if ttl := mr.TTL("acr:refresh:sid-1"); ttl != time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	// Other identifiers have their own window.
	if err := l.Allow(ctx, ScopeRefresh, "sid-2", 3); err != nil {
		t.Fatalf("independent id: %v", err)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.Allow(ctx, ScopeRefresh, "sid-1", 3); err != nil {
		t.Fatalf("after window: %v", err)
	}
}

func TestCheckRecordReset(t *testing.T) {
	l, _ := newLimiterTest(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Check(ctx, ScopeAPIToken, "ip", 2); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if err := l.Record(ctx, ScopeAPIToken, "ip"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := l.Check(ctx, ScopeAPIToken, "ip", 2); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if n, _ := l.Attempts(ctx, ScopeAPIToken, "ip"); n != 2 {
		t.Fatalf("attempts = %d", n)
	}
	if err := l.Reset(ctx, ScopeAPIToken, "ip"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := l.Attempts(ctx, ScopeAPIToken, "ip"); n != 0 {
		t.Fatalf("attempts after reset = %d", n)
	}
}

func TestNilLimiterAllows(t *testing.T) {
	var l *Limiter
	ctx := context.Background()
	if err := l.Allow(ctx, ScopeLogin, "x", 1); err != nil {
		t.Fatalf("nil allow: %v", err)
	}
	if err := l.Check(ctx, ScopeLogin, "x", 1); err != nil {
		t.Fatalf("nil check: %v", err)
	}
	if err := l.Record(ctx, ScopeLogin, "x"); err != nil {
		t.Fatalf("nil record: %v", err)
	}
}

func TestZeroLimitDisables(t *testing.T) {
	l, mr := newLimiterTest(t)
	if err := l.Allow(context.Background(), ScopeLogin, "ip", 0); err != nil {
		t.Fatalf("allow: %v", err)
	}
	if mr.Exists("acr:login:ip") {
		t.Fatal("disabled limit should not touch redis")
	}
}
