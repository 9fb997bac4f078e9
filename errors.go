package voicegrant

import (
	"errors"
	"fmt"
)

var (
	// ErrBadRequest marks caller-correctable input problems.
	ErrBadRequest = errors.New("bad request")
	// ErrIdentityRequired is returned when the credential request has no identity.
	ErrIdentityRequired = fmt.Errorf("%w: identity is required", ErrBadRequest)
	// ErrIdentityInvalid is returned when the identity is not valid UTF-8.
	ErrIdentityInvalid = fmt.Errorf("%w: identity is not valid UTF-8", ErrBadRequest)
	// ErrMisconfigured is returned when signing key material is incomplete.
	// The message never names the missing field.
	ErrMisconfigured = errors.New("signing key material is not configured")
	// ErrIssuanceFailed wraps unexpected failures while encoding or signing.
	ErrIssuanceFailed = errors.New("token issuance failed")
	// ErrRateLimited is returned when the caller exceeded the issuance budget.
	ErrRateLimited = errors.New("token issuance rate limited")
	// ErrIssuanceUnavailable is returned when a backend needed for issuance
	// (the rate limiter) cannot be reached.
	ErrIssuanceUnavailable = errors.New("token issuance backend unavailable")
	// ErrTokenInvalid is returned by Verify for any token that fails checks.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrEngineNotReady is returned when methods are called on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
