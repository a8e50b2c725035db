package authcore

import (
	"context"
	"testing"
)

func newBenchmarkEngine(b *testing.B, cfg Config) *Engine {
	b.Helper()
	engine, err := New().WithConfig(cfg).Build()
	if err != nil {
		b.Fatalf("build: %v", err)
	}
	b.Cleanup(engine.Close)
	return engine
}

func BenchmarkVerifyAccess(b *testing.B) {
	engine := newBenchmarkEngine(b, testConfig())
	pair, err := engine.IssuePair(context.Background(), Identity{Subject: "alice", Role: "member"})
	if err != nil {
		b.Fatalf("issue: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := engine.VerifyAccess(pair.AccessToken); !ok {
			b.Fatal("verify failed")
		}
	}
}

func BenchmarkVerifyAccessParallel(b *testing.B) {
	engine := newBenchmarkEngine(b, testConfig())
	pair, err := engine.IssuePair(context.Background(), Identity{Subject: "alice", Role: "member"})
	if err != nil {
		b.Fatalf("issue: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, ok := engine.VerifyAccess(pair.AccessToken); !ok {
				b.Error("verify failed")
				return
			}
		}
	})
}

func BenchmarkIssuePair(b *testing.B) {
	engine := newBenchmarkEngine(b, testConfig())
	ctx := context.Background()
	id := Identity{Subject: "alice", Role: "member", SessionID: "sid-bench"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.IssuePair(ctx, id); err != nil {
			b.Fatalf("issue: %v", err)
		}
	}
}

func BenchmarkVerifyPassword(b *testing.B) {
	cfg := testConfig()
	cfg.Password.Cost = 10
	engine := newBenchmarkEngine(b, cfg)
	encoded, err := engine.HashPassword("correct-password-123")
	if err != nil {
		b.Fatalf("hash: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !engine.VerifyPassword("correct-password-123", encoded) {
			b.Fatal("verify failed")
		}
	}
}
