package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	voicegrant "github.com/MrEthical07/voicegrant"
)

type fakeSource struct {
	snapshot voicegrant.MetricsSnapshot
	dropped  uint64
	ready    error
}

func (f fakeSource) MetricsSnapshot() voicegrant.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }
func (f fakeSource) Ready() error                                { return f.ready }

func assertContains(t *testing.T, out string, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if !strings.Contains(out, line+"\n") {
			t.Fatalf("expected %q in output, got:\n%s", line, out)
		}
	}
}

func TestRenderDisabledMetricsKeepsKeyAndAuditSeries(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: voicegrant.MetricsSnapshot{
			Counters:   map[voicegrant.MetricID]uint64{},
			Histograms: map[voicegrant.MetricID][]uint64{},
		},
		ready: voicegrant.ErrMisconfigured,
	})

	out := exp.Render()
	if strings.Contains(out, "voicegrant_issue_total") || strings.Contains(out, "voicegrant_issue_latency_seconds") {
		t.Fatalf("disabled metrics must not render issue series, got:\n%s", out)
	}
	assertContains(t, out,
		"voicegrant_signing_keys_configured 0",
		"voicegrant_audit_dropped_total 0",
	)
}

func TestRenderLabelsIssueOutcomes(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: voicegrant.MetricsSnapshot{
			Counters: map[voicegrant.MetricID]uint64{
				voicegrant.MetricIssueSuccess:     7,
				voicegrant.MetricIssueRateLimited: 3,
				voicegrant.MetricVerifyFailure:    1,
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	assertContains(t, out,
		"# TYPE voicegrant_issue_total counter",
		`voicegrant_issue_total{outcome="success"} 7`,
		`voicegrant_issue_total{outcome="bad_request"} 0`,
		`voicegrant_issue_total{outcome="misconfigured"} 0`,
		`voicegrant_issue_total{outcome="rate_limited"} 3`,
		`voicegrant_issue_total{outcome="unavailable"} 0`,
		`voicegrant_issue_total{outcome="failure"} 0`,
		`voicegrant_verify_total{result="success"} 0`,
		`voicegrant_verify_total{result="failure"} 1`,
		"voicegrant_signing_keys_configured 1",
		"voicegrant_audit_dropped_total 2",
	)
	if strings.Count(out, "# TYPE voicegrant_issue_total") != 1 {
		t.Fatalf("issue outcomes must share one family, got:\n%s", out)
	}
}

func TestRenderLatencyHistogram(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: voicegrant.MetricsSnapshot{
			Counters: map[voicegrant.MetricID]uint64{voicegrant.MetricIssueSuccess: 36},
			Histograms: map[voicegrant.MetricID][]uint64{
				voicegrant.MetricIssueLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
			IssueLatencySum: 1500 * time.Millisecond,
		},
	})

	assertContains(t, exp.Render(),
		"# TYPE voicegrant_issue_latency_seconds histogram",
		`voicegrant_issue_latency_seconds_bucket{le="0.0001"} 1`,
		`voicegrant_issue_latency_seconds_bucket{le="0.01"} 28`,
		`voicegrant_issue_latency_seconds_bucket{le="+Inf"} 36`,
		"voicegrant_issue_latency_seconds_sum 1.5",
		"voicegrant_issue_latency_seconds_count 36",
	)
}

func TestRenderFromEngine(t *testing.T) {
	engine, err := voicegrant.New().WithKeys(voicegrant.KeyMaterial{
		AccountID:         "AC1",
		KeyID:             "SK1",
		Secret:            "s3cr3t",
		ApplicationTarget: "AP1",
	}).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	if _, err := engine.Issue(t.Context(), voicegrant.CredentialRequest{Identity: "alice"}); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := engine.Issue(t.Context(), voicegrant.CredentialRequest{}); err == nil {
		t.Fatal("expected missing identity to fail")
	}

	assertContains(t, NewExporter(engine).Render(),
		`voicegrant_issue_total{outcome="success"} 1`,
		`voicegrant_issue_total{outcome="bad_request"} 1`,
		"voicegrant_signing_keys_configured 1",
	)
}

func TestRenderNilSource(t *testing.T) {
	if got := NewExporter(nil).Render(); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: voicegrant.MetricsSnapshot{
			Counters: map[voicegrant.MetricID]uint64{voicegrant.MetricIssueSuccess: 1},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewExporter(fakeSource{
		snapshot: voicegrant.MetricsSnapshot{
			Counters: map[voicegrant.MetricID]uint64{
				voicegrant.MetricIssueSuccess:     1000,
				voicegrant.MetricIssueBadRequest:  40,
				voicegrant.MetricIssueRateLimited: 12,
				voicegrant.MetricVerifySuccess:    800,
				voicegrant.MetricVerifyFailure:    10,
			},
			Histograms: map[voicegrant.MetricID][]uint64{
				voicegrant.MetricIssueLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
