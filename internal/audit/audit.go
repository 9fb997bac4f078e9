package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Kind names the issuance or verification outcome an Event records.
type Kind string

const (
	KindIssued        Kind = "token_issued"
	KindIssueRejected Kind = "token_issue_rejected"
	KindIssueFailure  Kind = "token_issue_failure"
	KindRateLimited   Kind = "token_rate_limited"
	KindVerifyFailure Kind = "token_verify_failure"
)

// Event is one audit record. Tokens and key material never appear in it;
// TokenID is the jti claim only.
type Event struct {
	Timestamp time.Time
	Kind      Kind
	Identity  string
	UserID    string
	TokenID   string
	ExpiresAt time.Time
	RequestID string
	ClientIP  string
	// Code is the stable failure label. Empty means the operation succeeded.
	Code string
}

// Success reports whether the event records a successful operation.
func (e Event) Success() bool {
	return e.Code == ""
}

// MarshalZerologObject writes the event as flat fields. Empty fields are
// omitted.
func (e Event) MarshalZerologObject(ev *zerolog.Event) {
	ev.Time("timestamp", e.Timestamp).
		Str("event_type", string(e.Kind)).
		Bool("success", e.Success())
	optionalStr(ev, "identity", e.Identity)
	optionalStr(ev, "user_id", e.UserID)
	optionalStr(ev, "jti", e.TokenID)
	optionalStr(ev, "request_id", e.RequestID)
	optionalStr(ev, "ip", e.ClientIP)
	optionalStr(ev, "code", e.Code)
	if !e.ExpiresAt.IsZero() {
		ev.Time("exp", e.ExpiresAt)
	}
}

func optionalStr(ev *zerolog.Event, key, value string) {
	if value != "" {
		ev.Str(key, value)
	}
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink hands events to a buffered channel for the caller to drain.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// LogSink writes each event as one zerolog line, without a level field.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, event Event) {
	if s == nil {
		return
	}
	s.logger.Log().EmbedObject(event).Send()
}
