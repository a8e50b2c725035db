// Command authcore-loadtest measures concurrent throughput of the engine
// and the Redis session store.
//
// Phases: issue (IssuePair), verify (VerifyAccess), hash (VerifyPassword at
// the configured cost), session-get and session-rotate. Redis phases use
// -redis-addr, REDIS_ADDR or an in-process miniredis.
package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/session"
)

type sessionState struct {
	sid  string
	hash [32]byte
	mu   sync.Mutex
}

type options struct {
	sessions    int
	concurrency int
	ops         int
	hashOps     int
	cost        int
	redisAddr   string
	prefix      string
	phases      string
}

func main() {
	var opts options
	flag.IntVar(&opts.sessions, "sessions", 10000, "number of sessions to seed")
	flag.IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	flag.IntVar(&opts.ops, "ops", 100000, "operations per token and session phase")
	flag.IntVar(&opts.hashOps, "hash-ops", 200, "operations for the password phase")
	flag.IntVar(&opts.cost, "cost", 10, "bcrypt cost for the password phase")
	flag.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	flag.StringVar(&opts.prefix, "prefix", "acs-load", "session key prefix")
	flag.StringVar(&opts.phases, "phases", "issue,verify,hash,session-get,session-rotate", "comma separated phases to run")
	flag.Parse()

	if opts.sessions <= 0 || opts.concurrency <= 0 || opts.ops <= 0 || opts.hashOps <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, ops and hash-ops must be > 0")
		os.Exit(2)
	}

	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte("authcore-loadtest-secret-0123456789abcdef")
	cfg.Password.Cost = opts.cost
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := authcore.New().
		WithConfig(cfg).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	phases := map[string]bool{}
	for _, p := range strings.Split(opts.phases, ",") {
		phases[strings.TrimSpace(p)] = true
	}

	var results []namedStats

	if phases["issue"] {
		st := runPhase(opts.ops, opts.concurrency, func(_ *rand.Rand, i int) error {
			_, err := engine.IssuePair(ctx, authcore.Identity{
				Subject: fmt.Sprintf("user-%d", i%opts.sessions),
				Role:    "member",
			})
			return err
		})
		results = append(results, namedStats{"issue", st})
	}

	if phases["verify"] {
		tokens := make([]string, 1024)
		for i := range tokens {
			pair, err := engine.IssuePair(ctx, authcore.Identity{Subject: fmt.Sprintf("user-%d", i), Role: "member"})
			if err != nil {
				return err
			}
			tokens[i] = pair.AccessToken
		}
		st := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand, _ int) error {
			if _, ok := engine.VerifyAccess(tokens[r.Intn(len(tokens))]); !ok {
				return errVerify
			}
			return nil
		})
		results = append(results, namedStats{"verify", st})
	}

	if phases["hash"] {
		encoded, err := engine.HashPassword("correct horse battery staple")
		if err != nil {
			return err
		}
		st := runPhase(opts.hashOps, opts.concurrency, func(_ *rand.Rand, _ int) error {
			if !engine.VerifyPassword("correct horse battery staple", encoded) {
				return errVerify
			}
			return nil
		})
		results = append(results, namedStats{fmt.Sprintf("hash(cost=%d)", opts.cost), st})
	}

	if phases["session-get"] || phases["session-rotate"] {
		store, cleanup, err := openStore(opts)
		if err != nil {
			return err
		}
		defer cleanup()

		states, err := seed(ctx, store, opts.sessions)
		if err != nil {
			return err
		}
		if phases["session-get"] {
			st := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand, _ int) error {
				_, err := store.Get(ctx, states[r.Intn(len(states))].sid)
				return err
			})
			results = append(results, namedStats{"session-get", st})
		}
		if phases["session-rotate"] {
			st := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand, i int) error {
				state := &states[r.Intn(len(states))]
				state.mu.Lock()
				defer state.mu.Unlock()
				next := sha256.Sum256(append(state.hash[:], byte(i), byte(i>>8), byte(i>>16)))
				if err := store.RotateRefresh(ctx, state.sid, state.hash, next); err != nil {
					return err
				}
				state.hash = next
				return nil
			})
			results = append(results, namedStats{"session-rotate", st})
		}
	}

	fmt.Println("---- results ----")
	for _, r := range results {
		printStats(r.name, r.stats)
	}
	snap := engine.MetricsSnapshot()
	fmt.Printf("engine: access_signed=%d verify_ok=%d verify_fail=%d\n",
		snap.Counters[authcore.MetricAccessSigned],
		snap.Counters[authcore.MetricAccessVerifySuccess],
		snap.Counters[authcore.MetricAccessVerifyFailure],
	)
	return nil
}

var errVerify = errors.New("verification failed")

type namedStats struct {
	name  string
	stats phaseStats
}

func openStore(opts options) (*session.Store, func(), error) {
	addr := opts.redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
		return session.NewStore(client, opts.prefix), func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	fmt.Printf("using redis at %s\n", addr)
	return session.NewStore(client, opts.prefix), func() { _ = client.Close() }, nil
}

func seed(ctx context.Context, store *session.Store, n int) ([]sessionState, error) {
	states := make([]sessionState, n)
	fmt.Printf("seeding %d sessions...\n", n)
	start := time.Now()
	now := time.Now()
	for i := 0; i < n; i++ {
		sid := fmt.Sprintf("sid-%d", i)
		h := sha256.Sum256([]byte(sid))
		states[i] = sessionState{sid: sid, hash: h}
		rec := &session.Record{
			SessionID:   sid,
			Subject:     fmt.Sprintf("user-%d", i),
			Role:        "member",
			RefreshHash: h,
			CreatedAt:   now.Unix(),
			ExpiresAt:   now.Add(24 * time.Hour).Unix(),
		}
		if err := store.Save(ctx, rec, 24*time.Hour); err != nil {
			return nil, fmt.Errorf("save: %w", err)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(start).Round(time.Millisecond))
	return states, nil
}

// runPhase spreads ops calls of fn over concurrency workers. fn receives a
// per-worker rand and the global operation index.
func runPhase(ops, concurrency int, fn func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			local := make([]time.Duration, 0, ops/concurrency+1)
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					break
				}
				t0 := time.Now()
				err := fn(r, i)
				local = append(local, time.Since(t0))
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
