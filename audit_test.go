package voicegrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newAuditedEngine(t *testing.T, sink AuditSink) *Engine {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Keys = testKeys()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false

	engine, err := New().
		WithConfig(cfg).
		WithAuditSink(sink).
		WithClock(fixedClock(1700000000)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return engine
}

func drain(sink *ChannelSink) []AuditEvent {
	var events []AuditEvent
	for {
		select {
		case e := <-sink.Events():
			events = append(events, e)
		default:
			return events
		}
	}
}

func TestAuditIssueEvents(t *testing.T) {
	sink := NewChannelSink(16)
	engine := newAuditedEngine(t, sink)

	ctx := WithRequestID(WithClientIP(context.Background(), "198.51.100.7"), "req-1")
	if _, err := engine.Issue(ctx, CredentialRequest{Identity: "alice", UserID: "u-1"}); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := engine.Issue(ctx, CredentialRequest{}); !errors.Is(err, ErrIdentityRequired) {
		t.Fatalf("expected ErrIdentityRequired, got %v", err)
	}
	engine.Close()

	events := drain(sink)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	issued := events[0]
	if issued.Kind != AuditTokenIssued || !issued.Success() {
		t.Fatalf("unexpected first event: %+v", issued)
	}
	if issued.TokenID != "SK1-1700000000" || issued.Identity != "alice" || issued.UserID != "u-1" {
		t.Fatalf("unexpected issued fields: %+v", issued)
	}
	if issued.RequestID != "req-1" || issued.ClientIP != "198.51.100.7" {
		t.Fatalf("context fields missing: %+v", issued)
	}
	if !issued.ExpiresAt.Equal(time.Unix(1700003600, 0)) {
		t.Fatalf("unexpected exp %v", issued.ExpiresAt)
	}

	rejected := events[1]
	if rejected.Kind != AuditTokenIssueRejected || rejected.Success() {
		t.Fatalf("unexpected second event: %+v", rejected)
	}
	if rejected.Code != string(auditErrBadRequest) {
		t.Fatalf("expected bad_request code, got %q", rejected.Code)
	}
}

func TestAuditVerifyFailure(t *testing.T) {
	sink := NewChannelSink(4)
	engine := newAuditedEngine(t, sink)

	if _, err := engine.Verify(context.Background(), "not.a.token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	engine.Close()

	events := drain(sink)
	if len(events) != 1 || events[0].Kind != AuditTokenVerifyFailure {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].Code != string(auditErrInvalidToken) {
		t.Fatalf("expected invalid_token code, got %q", events[0].Code)
	}
}

func TestAuditLogSinkNeverCarriesSecretOrToken(t *testing.T) {
	var buf bytes.Buffer
	engine := newAuditedEngine(t, NewLogSink(zerolog.New(&buf)))

	issued, err := engine.Issue(context.Background(), CredentialRequest{Identity: "alice"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	engine.Close()

	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "s3cr3t") || strings.Contains(line, issued.Token) {
		t.Fatalf("secret or token leaked into audit log: %s", line)
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		t.Fatalf("audit line is not JSON: %v", err)
	}
	if fields["event_type"] != string(AuditTokenIssued) || fields["exp"] != "2023-11-14T23:13:20Z" {
		t.Fatalf("unexpected audit line %v", fields)
	}
}

func TestAuditDisabledIsSilent(t *testing.T) {
	sink := NewChannelSink(1)
	engine, err := New().WithKeys(testKeys()).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := engine.Issue(context.Background(), CredentialRequest{Identity: "alice"}); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	engine.Close()

	if events := drain(sink); len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrIdentityRequired, auditErrBadRequest},
		{ErrMisconfigured, auditErrMisconfigured},
		{ErrRateLimited, auditErrRateLimited},
		{ErrIssuanceUnavailable, auditErrUnavailable},
		{ErrTokenInvalid, auditErrInvalidToken},
		{errors.New("boom"), auditErrInternal},
	}

	for _, tt := range tests {
		if got := auditErrorCode(tt.err); got != tt.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
