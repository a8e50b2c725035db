package session

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func BenchmarkRotateRefresh(b *testing.B) {
	mr, err := miniredis.Run()
	if err != nil {
		b.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	store := NewStore(rdb, "acs")
	ctx := context.Background()

	rec := testRecord("sid-bench")
	if err := store.Save(ctx, rec, time.Hour); err != nil {
		b.Fatalf("save: %v", err)
	}
	current := rec.RefreshHash

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		next := sha256.Sum256(current[:])
		if err := store.RotateRefresh(ctx, "sid-bench", current, next); err != nil {
			b.Fatalf("rotate: %v", err)
		}
		current = next
	}
}
