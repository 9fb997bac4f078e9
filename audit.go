package voicegrant

import (
	"github.com/MrEthical07/voicegrant/internal/audit"
	"github.com/rs/zerolog"
)

// AuditEvent is one issuance or verification record.
type AuditEvent = audit.Event

// AuditKind names what an AuditEvent records.
type AuditKind = audit.Kind

const (
	AuditTokenIssued        = audit.KindIssued
	AuditTokenIssueRejected = audit.KindIssueRejected
	AuditTokenIssueFailure  = audit.KindIssueFailure
	AuditTokenRateLimited   = audit.KindRateLimited
	AuditTokenVerifyFailure = audit.KindVerifyFailure
)

// AuditSink receives audit events from the Engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers events on a channel for the caller to drain.
type ChannelSink = audit.ChannelSink

// LogSink writes one zerolog line per event.
type LogSink = audit.LogSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewLogSink writes events through logger. Give it a dedicated logger so
// audit lines stay separate from application logs.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return audit.NewLogSink(logger)
}
