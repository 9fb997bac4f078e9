package internaldefs

import (
	voicegrant "github.com/MrEthical07/voicegrant"
)

// Outcome binds one engine counter to its label value within a Family.
type Outcome struct {
	ID    voicegrant.MetricID
	Value string
}

// Family is one counter exported as a single series set split by Label.
type Family struct {
	Name     string
	Help     string
	Label    string
	Outcomes []Outcome
}

// Issue splits issuance requests by how they ended. The outcome values follow
// the engine's error taxonomy.
var Issue = Family{
	Name:  "voicegrant_issue_total",
	Help:  "Token issue requests by outcome.",
	Label: "outcome",
	Outcomes: []Outcome{
		{ID: voicegrant.MetricIssueSuccess, Value: "success"},
		{ID: voicegrant.MetricIssueBadRequest, Value: "bad_request"},
		{ID: voicegrant.MetricIssueMisconfigured, Value: "misconfigured"},
		{ID: voicegrant.MetricIssueRateLimited, Value: "rate_limited"},
		{ID: voicegrant.MetricIssueUnavailable, Value: "unavailable"},
		{ID: voicegrant.MetricIssueFailure, Value: "failure"},
	},
}

// Verify splits token verifications by result.
var Verify = Family{
	Name:  "voicegrant_verify_total",
	Help:  "Token verifications by result.",
	Label: "result",
	Outcomes: []Outcome{
		{ID: voicegrant.MetricVerifySuccess, Value: "success"},
		{ID: voicegrant.MetricVerifyFailure, Value: "failure"},
	},
}

// Families lists every counter family in render order.
var Families = []Family{Issue, Verify}

// Total sums the family's counters in snapshot.
func (f Family) Total(snapshot voicegrant.MetricsSnapshot) uint64 {
	var total uint64
	for _, o := range f.Outcomes {
		total += snapshot.Counters[o.ID]
	}
	return total
}

const (
	LatencyName = "voicegrant_issue_latency_seconds"
	LatencyHelp = "Time spent in Engine.Issue, including the rate limiter."

	KeysConfiguredName = "voicegrant_signing_keys_configured"
	KeysConfiguredHelp = "1 when signing key material is complete, 0 when every issue request is refused."

	AuditDroppedName = "voicegrant_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

// LatencyBuckets is the number of issuance latency buckets, +Inf included.
const LatencyBuckets = 8

// LatencyBounds are the le label values, in seconds, of the latency buckets.
var LatencyBounds = [LatencyBuckets]string{
	"0.0001",
	"0.00025",
	"0.0005",
	"0.001",
	"0.0025",
	"0.005",
	"0.01",
	"+Inf",
}

// Cumulative turns the engine's per-bucket counts into le-style cumulative
// counts. Missing buckets count as zero; extra ones are folded into +Inf.
func Cumulative(raw []uint64) [LatencyBuckets]uint64 {
	var out [LatencyBuckets]uint64
	var running uint64
	for i, n := range raw {
		running += n
		if i < LatencyBuckets {
			out[i] = running
		}
	}
	for i := len(raw); i < LatencyBuckets; i++ {
		out[i] = running
	}
	out[LatencyBuckets-1] = running
	return out
}

// KeysConfigured maps an Engine readiness error to the gauge value.
func KeysConfigured(readyErr error) int64 {
	if readyErr != nil {
		return 0
	}
	return 1
}
