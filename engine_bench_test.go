package voicegrant

import (
	"context"
	"testing"
	"time"
)

func newBenchmarkEngine(b *testing.B, mutate func(*Config)) *Engine {
	b.Helper()

	cfg := DefaultConfig()
	cfg.Keys = testKeys()
	if mutate != nil {
		mutate(&cfg)
	}
	engine, err := New().WithConfig(cfg).Build()
	if err != nil {
		b.Fatalf("Build: %v", err)
	}
	b.Cleanup(engine.Close)
	return engine
}

func BenchmarkIssue(b *testing.B) {
	engine := newBenchmarkEngine(b, nil)
	req := CredentialRequest{Identity: "alice@example.com"}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Issue(ctx, req); err != nil {
			b.Fatalf("Issue: %v", err)
		}
	}
}

func BenchmarkIssueParallelRandomJTI(b *testing.B) {
	engine := newBenchmarkEngine(b, func(c *Config) { c.Token.JTIMode = JTIRandom })
	req := CredentialRequest{Identity: "alice@example.com"}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := engine.Issue(ctx, req); err != nil {
				b.Errorf("Issue: %v", err)
				return
			}
		}
	})
}

func BenchmarkVerify(b *testing.B) {
	engine := newBenchmarkEngine(b, nil)
	issued, err := engine.Issue(context.Background(), CredentialRequest{Identity: "alice@example.com"})
	if err != nil {
		b.Fatalf("Issue: %v", err)
	}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Verify(ctx, issued.Token); err != nil {
			b.Fatalf("Verify: %v", err)
		}
	}
}

func BenchmarkMetricsIncParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricIssueSuccess)
		}
	})
}

func BenchmarkMetricsObserveLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	d := 300 * time.Microsecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricIssueLatency, d)
		}
	})
}
