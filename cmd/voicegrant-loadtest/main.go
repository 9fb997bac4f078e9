// Command voicegrant-loadtest drives concurrent issuance against an
// in-process Engine and verifies every token it gets back.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	voicegrant "github.com/MrEthical07/voicegrant"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

func main() {
	flagSet := pflag.NewFlagSet("voicegrant-loadtest", pflag.ContinueOnError)
	var (
		concurrency = flagSet.Int("concurrency", 256, "number of concurrent workers")
		ops         = flagSet.Int("ops", 200000, "operations per phase (issue + verify)")
		identities  = flagSet.Int("identities", 1000, "distinct identities to cycle through")
		rateLimit   = flagSet.Bool("rate-limit", false, "route every issue through the redis rate limiter")
		redisAddr   = flagSet.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		jtiMode     = flagSet.String("jti-mode", string(voicegrant.JTIPerSecond), "jti derivation: per_second or random")
	)
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if *concurrency <= 0 || *ops <= 0 || *identities <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency, ops, and identities must be > 0")
		os.Exit(2)
	}

	cfg := voicegrant.DefaultConfig()
	cfg.Keys = voicegrant.KeyMaterial{
		AccountID:         "AC-loadtest",
		KeyID:             "SK-loadtest",
		Secret:            "loadtest-secret",
		ApplicationTarget: "AP-loadtest",
	}
	cfg.Token.JTIMode = voicegrant.JTIMode(*jtiMode)
	cfg.Metrics.EnableLatencyHistograms = true

	builder := voicegrant.New()

	if *rateLimit {
		// Large enough that the limiter is exercised but never trips.
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.MaxPerIdentity = *ops
		cfg.RateLimit.IdentityWindow = time.Hour

		client, cleanup, err := connectRedis(*redisAddr)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer cleanup()
		builder.WithRedis(client)
	}

	engine, err := builder.WithConfig(cfg).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()
	tokens := make([]string, *ops)

	issueStats := runPhase(*ops, *concurrency, func(i int) error {
		issued, err := engine.Issue(ctx, voicegrant.CredentialRequest{
			Identity: loadIdentity(i % *identities),
		})
		if err != nil {
			return err
		}
		tokens[i] = issued.Token
		return nil
	})

	verifyStats := runPhase(*ops, *concurrency, func(i int) error {
		if tokens[i] == "" {
			return fmt.Errorf("no token for op %d", i)
		}
		_, err := engine.Verify(ctx, tokens[i])
		return err
	})

	if *rateLimit {
		// Leave a shared redis clean so the next run starts with full budgets.
		if err := resetRateLimits(ctx, engine, *identities); err != nil {
			fmt.Fprintf(os.Stderr, "reset rate limits: %v\n", err)
		}
	}

	fmt.Println("---- results ----")
	printStats("issue", issueStats)
	printStats("verify", verifyStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("engine: issued=%d verified=%d verify_failures=%d latency_buckets=%v\n",
		snap.Counters[voicegrant.MetricIssueSuccess],
		snap.Counters[voicegrant.MetricVerifySuccess],
		snap.Counters[voicegrant.MetricVerifyFailure],
		snap.Histograms[voicegrant.MetricIssueLatency],
	)

	if issueStats.failures > 0 || verifyStats.failures > 0 {
		os.Exit(1)
	}
}

func loadIdentity(n int) string {
	return fmt.Sprintf("user-%d@loadtest", n)
}

func resetRateLimits(ctx context.Context, engine *voicegrant.Engine, identities int) error {
	for n := 0; n < identities; n++ {
		if err := engine.ResetRateLimit(ctx, loadIdentity(n), ""); err != nil {
			return err
		}
	}
	return nil
}

func connectRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{mr.Addr()},
		})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{addr},
	})
	fmt.Printf("using redis at %s\n", addr)
	return client, func() { _ = client.Close() }, nil
}

func runPhase(ops, concurrency int, op func(i int) error) phaseStats {
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
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
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
