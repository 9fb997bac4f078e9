package voicegrant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/voicegrant/internal/audit"
	"github.com/MrEthical07/voicegrant/internal/rate"
	"github.com/MrEthical07/voicegrant/token"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Engine issues and verifies voice tokens.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config   Config
	signer   *token.Signer
	verifier *token.Verifier
	limiter  *rate.Limiter
	audit    *audit.Dispatcher
	metrics  *Metrics
	logger   zerolog.Logger
	now      func() time.Time
	newUUID  func() (uuid.UUID, error)
}

// Close describes the close operation and its observable behavior.
//
// Close flushes pending audit events. It is safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events lost to backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// ExposeInternalErrors reports whether transports may show internal failure
// text to callers.
func (e *Engine) ExposeInternalErrors() bool {
	return e != nil && e.config.Security.ExposeInternalErrors
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Ready reports ErrMisconfigured when the Engine was built without complete
// key material. It does no cryptographic work.
func (e *Engine) Ready() error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.signer == nil {
		return ErrMisconfigured
	}
	return nil
}

// Issue validates req and returns a signed token valid for TokenTTL.
//
// Checks run in this order: key material, identity, rate limit. No token is
// returned unless every step succeeded.
func (e *Engine) Issue(ctx context.Context, req CredentialRequest) (*IssuedToken, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricIssueLatency, time.Since(start))
		}
	}()

	if err := e.Ready(); err != nil {
		e.metricInc(MetricIssueMisconfigured)
		e.logger.Error().Err(err).Msg("token issuance refused: key material incomplete")
		e.emitAudit(ctx, auditRecord{kind: AuditTokenIssueRejected, req: req, err: err})
		return nil, err
	}

	if err := validateIdentity(req.Identity); err != nil {
		e.metricInc(MetricIssueBadRequest)
		e.emitAudit(ctx, auditRecord{kind: AuditTokenIssueRejected, req: req, err: err})
		return nil, err
	}

	if err := e.allowIssue(ctx, req.Identity); err != nil {
		return nil, err
	}

	issued, err := e.sign(req)
	if err != nil {
		e.metricInc(MetricIssueFailure)
		e.logger.Error().
			Err(err).
			Str("key_id", e.config.Keys.KeyID).
			Str("request_id", RequestIDFromContext(ctx)).
			Msg("token issuance failed")
		e.emitAudit(ctx, auditRecord{kind: AuditTokenIssueFailure, req: req, err: err})
		return nil, fmt.Errorf("%w: %v", ErrIssuanceFailed, err)
	}

	e.metricInc(MetricIssueSuccess)
	e.logger.Debug().
		Str("identity", issued.Identity).
		Str("jti", issued.JTI).
		Time("exp", issued.ExpiresAt).
		Msg("token issued")
	e.emitAudit(ctx, auditRecord{
		kind:      AuditTokenIssued,
		req:       req,
		tokenID:   issued.JTI,
		expiresAt: issued.ExpiresAt,
	})

	return issued, nil
}

// validateIdentity rejects identities that cannot be signed as received.
// Invalid UTF-8 would be rewritten to U+FFFD by the encoder, so the signed
// identity would differ from the echoed one.
func validateIdentity(identity string) error {
	if strings.TrimSpace(identity) == "" {
		return ErrIdentityRequired
	}
	if !utf8.ValidString(identity) {
		return ErrIdentityInvalid
	}
	return nil
}

func (e *Engine) allowIssue(ctx context.Context, identity string) error {
	if e.limiter == nil {
		return nil
	}

	ip := clientIPFromContext(ctx)
	err := e.limiter.AllowIssue(ctx, identity, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(MetricIssueRateLimited)
		e.emitAudit(ctx, auditRecord{kind: AuditTokenRateLimited, req: CredentialRequest{Identity: identity}, err: ErrRateLimited})
		return ErrRateLimited
	default:
		e.metricInc(MetricIssueUnavailable)
		e.logger.Error().Err(err).Msg("rate limiter unavailable")
		e.emitAudit(ctx, auditRecord{kind: AuditTokenIssueFailure, req: CredentialRequest{Identity: identity}, err: ErrIssuanceUnavailable})
		return fmt.Errorf("%w: %v", ErrIssuanceUnavailable, err)
	}
}

func (e *Engine) sign(req CredentialRequest) (*IssuedToken, error) {
	issuedAt := time.Unix(e.now().Unix(), 0)
	keys := e.config.Keys

	jti, err := e.tokenID(issuedAt)
	if err != nil {
		return nil, err
	}

	claims := token.BuildClaims(token.ClaimsInput{
		JTI:               jti,
		KeyID:             keys.KeyID,
		AccountID:         keys.AccountID,
		ApplicationTarget: keys.ApplicationTarget,
		Identity:          req.Identity,
		IssuedAt:          issuedAt,
		TTL:               TokenTTL,
	})

	signed, err := e.signer.Sign(token.NewHeader(e.config.Token.ContentType), claims)
	if err != nil {
		return nil, err
	}

	return &IssuedToken{
		Token:     signed,
		JTI:       jti,
		Identity:  req.Identity,
		UserID:    req.UserID,
		UserName:  req.UserName,
		ExpiresIn: int(TokenTTL / time.Second),
		IssuedAt:  issuedAt,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (e *Engine) tokenID(issuedAt time.Time) (string, error) {
	base := token.SecondJTI(e.config.Keys.KeyID, issuedAt)
	if e.config.Token.JTIMode != JTIRandom {
		return base, nil
	}
	id, err := e.newUUID()
	if err != nil {
		return "", fmt.Errorf("generate jti: %w", err)
	}
	return base + "-" + id.String(), nil
}

// Verify checks a token issued with this Engine's key material and returns
// its claims. Any failure is reported as ErrTokenInvalid.
func (e *Engine) Verify(ctx context.Context, tokenStr string) (*token.VerifiedClaims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.verifier == nil {
		return nil, ErrMisconfigured
	}

	claims, err := e.verifier.Verify(tokenStr)
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		e.logger.Debug().Err(err).Str("request_id", RequestIDFromContext(ctx)).Msg("token rejected")
		e.emitAudit(ctx, auditRecord{kind: AuditTokenVerifyFailure, err: ErrTokenInvalid})
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	e.metricInc(MetricVerifySuccess)
	return claims, nil
}

// ResetRateLimit clears the issuance counters for identity and, when ip is
// non-empty, for that client IP. It is a no-op when rate limiting is off.
func (e *Engine) ResetRateLimit(ctx context.Context, identity, ip string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.limiter == nil {
		return nil
	}
	if err := e.limiter.Reset(ctx, identity, ip); err != nil {
		return fmt.Errorf("%w: %v", ErrIssuanceUnavailable, err)
	}
	return nil
}
