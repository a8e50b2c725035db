package apitoken

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore"
)

// countingEngine records how many bcrypt comparisons the service asked for.
type countingEngine struct {
	*authcore.Engine
	verifies atomic.Int64
}

func (c *countingEngine) VerifyOpaqueToken(token, encoded string) bool {
	c.verifies.Add(1)
	return c.Engine.VerifyOpaqueToken(token, encoded)
}

type serviceFixture struct {
	svc    *Service
	engine *countingEngine
	mr     *miniredis.Miniredis
	audit  *authcore.ChannelSink
	now    *atomic.Int64
}

func newServiceFixture(t *testing.T, mutate func(*authcore.Config)) *serviceFixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Cost = 4
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}

	now := &atomic.Int64{}
	now.Store(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Unix())
	sink := authcore.NewChannelSink(256)

	engine, err := authcore.New().
		WithConfig(cfg).
		WithAuditSink(sink).
		WithClock(func() time.Time { return time.Unix(now.Load(), 0) }).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		rdb.Close()
		mr.Close()
	})

	ce := &countingEngine{Engine: engine}
	return &serviceFixture{
		svc:    New(ce, rdb, cfg),
		engine: ce,
		mr:     mr,
		audit:  sink,
		now:    now,
	}
}

func TestIssueAndAuthenticate(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	token, rec, err := f.svc.Issue(ctx, "svc-reporting", "reader", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !strings.HasPrefix(token, "act_"+rec.ID+"_") {
		t.Fatalf("unexpected token shape %q", token)
	}
	if _, err := ulid.ParseStrict(rec.ID); err != nil {
		t.Fatalf("id is not a ulid: %v", err)
	}

	stored, err := f.mr.Get("act:" + rec.ID)
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	secret := token[len("act_"+rec.ID+"_"):]
	if strings.Contains(stored, secret) {
		t.Fatal("plaintext secret stored in redis")
	}
	if !strings.Contains(stored, `"hash":"$2a$04$`) {
		t.Fatalf("expected bcrypt hash in record: %s", stored)
	}
	if ttl := f.mr.TTL("act:" + rec.ID); ttl != time.Hour {
		t.Fatalf("ttl = %v", ttl)
	}

	got, ok := f.svc.Authenticate(ctx, token)
	if !ok {
		t.Fatal("expected valid token")
	}
	if got.Subject != "svc-reporting" || got.Role != "reader" || got.ID != rec.ID {
		t.Fatalf("unexpected record %+v", got)
	}

	snap := f.engine.MetricsSnapshot()
	if snap.Counters[authcore.MetricAPITokenIssued] != 1 || snap.Counters[authcore.MetricAPITokenAuthSuccess] != 1 {
		t.Fatalf("unexpected metrics %+v", snap.Counters)
	}
}

func TestIssueDefaultTTLAndEmptySubject(t *testing.T) {
	f := newServiceFixture(t, func(c *authcore.Config) { c.APIToken.DefaultTTL = 48 * time.Hour })
	ctx := context.Background()

	_, rec, err := f.svc.Issue(ctx, "svc", "", 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if rec.ExpiresAt.Sub(rec.CreatedAt) != 48*time.Hour {
		t.Fatalf("default ttl not applied: %v", rec.ExpiresAt.Sub(rec.CreatedAt))
	}

	if _, _, err := f.svc.Issue(ctx, "", "reader", time.Hour); err != ErrInvalidSubject {
		t.Fatalf("expected ErrInvalidSubject, got %v", err)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	f := newServiceFixture(t, func(c *authcore.Config) { c.RateLimit.Enabled = false })
	ctx := context.Background()

	token, rec, err := f.svc.Issue(ctx, "svc", "reader", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	otherSecret := strings.Repeat("A", 43)

	cases := map[string]string{
		"empty":          "",
		"no prefix":      strings.TrimPrefix(token, "act_"),
		"wrong secret":   "act_" + rec.ID + "_" + otherSecret,
		"unknown id":     "act_" + ulid.Make().String() + "_" + otherSecret,
		"id not ulid":    "act_notaulid_" + otherSecret,
		"short secret":   "act_" + rec.ID + "_abc",
		"trailing bytes": token + "x",
	}
	for name, candidate := range cases {
		t.Run(name, func(t *testing.T) {
			before := f.engine.verifies.Load()
			if _, ok := f.svc.Authenticate(ctx, candidate); ok {
				t.Fatal("expected rejection")
			}
			if f.engine.verifies.Load()-before != 1 {
				t.Fatal("every rejection must cost exactly one bcrypt comparison")
			}
		})
	}
}

func TestAuthenticateExpired(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	token, _, err := f.svc.Issue(ctx, "svc", "reader", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// The engine clock runs ahead of the Redis TTL here.
	f.now.Add(int64(time.Hour / time.Second))
	if _, ok := f.svc.Authenticate(ctx, token); ok {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestRevoke(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	token, rec, err := f.svc.Issue(ctx, "svc", "reader", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := f.svc.Revoke(ctx, rec.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := f.svc.Revoke(ctx, rec.ID); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if _, ok := f.svc.Authenticate(ctx, token); ok {
		t.Fatal("revoked token still valid")
	}
	if f.mr.Exists("act:" + rec.ID) {
		t.Fatal("record still present")
	}
}

func TestListPrunesExpired(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	_, first, err := f.svc.Issue(ctx, "svc", "reader", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, second, err := f.svc.Issue(ctx, "svc", "writer", 3*time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	got, err := f.svc.List(ctx, "svc")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != first.ID || got[1].ID != second.ID {
		t.Fatalf("unexpected list %+v", got)
	}

	f.mr.FastForward(2 * time.Hour)
	got, err = f.svc.List(ctx, "svc")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != second.ID {
		t.Fatalf("expected only the live token, got %+v", got)
	}
	members, _ := f.mr.Members("act:sub:svc")
	if len(members) != 1 {
		t.Fatalf("stale index entry not pruned: %v", members)
	}
}

func TestAuthenticateRateLimitedPerIP(t *testing.T) {
	f := newServiceFixture(t, func(c *authcore.Config) { c.RateLimit.MaxAPITokenFailures = 2 })
	ctx := authcore.WithClientIP(context.Background(), "203.0.113.7")

	token, _, err := f.svc.Issue(ctx, "svc", "reader", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, ok := f.svc.Authenticate(ctx, "act_bogus"); ok {
			t.Fatal("bogus token accepted")
		}
	}
	if _, ok := f.svc.Authenticate(ctx, token); ok {
		t.Fatal("expected the valid token to be refused once the IP is limited")
	}

	other := authcore.WithClientIP(context.Background(), "198.51.100.1")
	if _, ok := f.svc.Authenticate(other, token); !ok {
		t.Fatal("other client IPs must not be limited")
	}
	if f.engine.MetricsSnapshot().Counters[authcore.MetricRateLimited] != 1 {
		t.Fatal("rate limited metric not recorded")
	}
}

func TestAuditEvents(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	_, rec, err := f.svc.Issue(ctx, "svc", "reader", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	f.svc.Authenticate(ctx, "act_"+rec.ID+"_"+strings.Repeat("A", 43))
	if err := f.svc.Revoke(ctx, rec.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	f.engine.Close()

	var types []string
	for len(f.audit.Events()) > 0 {
		ev := <-f.audit.Events()
		types = append(types, ev.EventType)
		if ev.EventType == authcore.AuditAPITokenRejected && ev.Reason != "invalid_token" {
			t.Fatalf("unexpected reject reason %q", ev.Reason)
		}
	}
	want := []string{authcore.AuditAPITokenIssued, authcore.AuditAPITokenRejected, authcore.AuditAPITokenRevoked}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("audit events = %v, want %v", types, want)
	}
}
