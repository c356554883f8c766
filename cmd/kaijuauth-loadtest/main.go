// Command kaijuauth-loadtest measures token verification and session load
// throughput against a real or embedded Redis.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-logr/logr"
	"github.com/redis/go-redis/v9"

	"github.com/karudo/kaijuauth/keystore"
	"github.com/karudo/kaijuauth/session"
	"github.com/karudo/kaijuauth/token"
)

func main() {
	var (
		sessions    = flag.Int("sessions", 100000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (verify + load)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "session.", "session key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	keys, err := keystore.New(keystore.Config{Lifetime: 24 * time.Hour}, keystore.NewRedisCache(client), logr.Discard())
	if err != nil {
		fmt.Fprintf(os.Stderr, "keystore init failed: %v\n", err)
		os.Exit(1)
	}
	tokens, err := token.NewService(token.Config{}, keys, logr.Discard())
	if err != nil {
		fmt.Fprintf(os.Stderr, "token service init failed: %v\n", err)
		os.Exit(1)
	}
	manager, err := session.NewManager(
		session.Config{TTL: 24 * time.Hour},
		session.NewRedisStore(client, *prefix),
		logr.Discard(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "session manager init failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	ids := make([]string, *sessions)
	for i := 0; i < *sessions; i++ {
		sess, err := manager.New("loadtest")
		if err != nil {
			fmt.Fprintf(os.Stderr, "session create failed: %v\n", err)
			os.Exit(1)
		}
		sess.Authenticate(fmt.Sprintf("user-%d", i), []string{"read"})
		if err := manager.Save(ctx, sess); err != nil {
			fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			os.Exit(1)
		}
		ids[i] = sess.ID
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	signed, err := tokens.Access(ctx, token.Claims{UID: "user-0", Permissions: []string{"read"}})
	if err != nil {
		fmt.Fprintf(os.Stderr, "access token mint failed: %v\n", err)
		os.Exit(1)
	}

	verifyStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := tokens.Verify(ctx, signed)
		return err
	})
	loadStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		sess, err := manager.Load(ctx, ids[r.Intn(len(ids))], "loadtest")
		if err == nil && sess == nil {
			return fmt.Errorf("seeded session missing")
		}
		return err
	})

	fmt.Println("---- results ----")
	printStats("verify", verifyStats)
	printStats("load", loadStats)
}

func runPhase(ops, concurrency int, op func(*rand.Rand) error) phaseStats {
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
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
