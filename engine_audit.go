package voicegrant

import (
	"context"
	"errors"
	"time"
)

// AuditErrorCode is the stable failure label carried in AuditEvent.Code.
type AuditErrorCode string

const (
	auditErrBadRequest    AuditErrorCode = "bad_request"
	auditErrMisconfigured AuditErrorCode = "misconfigured"
	auditErrRateLimited   AuditErrorCode = "rate_limited"
	auditErrUnavailable   AuditErrorCode = "backend_unavailable"
	auditErrInvalidToken  AuditErrorCode = "invalid_token"
	auditErrInternal      AuditErrorCode = "internal_error"
)

// auditRecord is what the Engine knows about one outcome; emitAudit fills in
// the clock and request context.
type auditRecord struct {
	kind      AuditKind
	req       CredentialRequest
	tokenID   string
	expiresAt time.Time
	err       error
}

func (e *Engine) emitAudit(ctx context.Context, rec auditRecord) {
	if e == nil || e.audit == nil {
		return
	}

	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now().UTC(),
		Kind:      rec.kind,
		Identity:  rec.req.Identity,
		UserID:    rec.req.UserID,
		TokenID:   rec.tokenID,
		ExpiresAt: rec.expiresAt.UTC(),
		RequestID: RequestIDFromContext(ctx),
		ClientIP:  clientIPFromContext(ctx),
		Code:      string(auditErrorCode(rec.err)),
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrBadRequest):
		return auditErrBadRequest
	case errors.Is(err, ErrMisconfigured):
		return auditErrMisconfigured
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrIssuanceUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	default:
		return auditErrInternal
	}
}
